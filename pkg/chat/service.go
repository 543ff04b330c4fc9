package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/vinealabs/go-sommelier/pkg/llm"
	"github.com/vinealabs/go-sommelier/pkg/wine"
)

// maxHistoryTurns bounds per-conversation history kept in memory.
// Persistent conversation storage is out of scope; this is working memory
// for the current session only.
const maxHistoryTurns = 20

const basePersona = `You are an expert sommelier having a spoken conversation with a winery guest.
Keep answers short and conversational; they will be read aloud.
Never invent wines that are not in the provided catalog.`

// Request is one inbound chat turn.
type Request struct {
	Messages         []llm.Message `json:"messages"`
	ConversationID   string        `json:"conversationId,omitempty"`
	WineContext      *wine.Context `json:"wineContext,omitempty"`
	OptimizeForSpeed bool          `json:"optimize_for_speed,omitempty"`
}

// Emit delivers one envelope to the transport. A non-nil return aborts the
// stream (client gone).
type Emit func(Envelope) error

// Service produces envelope streams from chat requests.
type Service struct {
	provider llm.Provider
	logger   *slog.Logger

	mu      sync.Mutex
	history map[string][]llm.Message
}

// NewService creates a chat service over the given provider.
func NewService(provider llm.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		logger:   logger.With("component", "chat.service"),
		history:  make(map[string][]llm.Message),
	}
}

// StreamResponse runs one chat turn, emitting envelopes in order:
// first_token (with start_tts), token..., then exactly one terminal
// complete or error. Provider failures become error envelopes; they are
// never returned to the transport as Go errors.
func (s *Service) StreamResponse(ctx context.Context, req *Request, emit Emit) {
	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}

	messages := s.buildMessages(convID, req)

	llmReq := &llm.ChatRequest{Messages: messages}
	if req.OptimizeForSpeed {
		llmReq.MaxTokens = 256
	}

	stream, err := s.provider.Stream(ctx, llmReq)
	if err != nil {
		s.logger.Warn("stream open failed", "error", err, "conversation", convID)
		_ = emit(Envelope{Type: TypeError, Message: userMessage(err)})
		return
	}
	defer stream.Close()

	var full string
	first := true

	for {
		chunk, err := stream.Recv()
		if err != nil {
			s.logger.Warn("stream read failed", "error", err, "conversation", convID)
			_ = emit(Envelope{Type: TypeError, Message: userMessage(err)})
			return
		}

		if chunk.Delta != "" {
			full += chunk.Delta

			env := Envelope{Type: TypeToken, Content: chunk.Delta}
			if first {
				env.Type = TypeFirstToken
				env.StartTTS = true
				first = false
			}
			if err := emit(env); err != nil {
				// Client disconnected; drop the turn silently.
				return
			}
		}

		if chunk.Done {
			break
		}
	}

	s.remember(convID, req.Messages, full)

	_ = emit(Envelope{Type: TypeComplete, ConversationID: convID})
}

// buildMessages layers the persona and wine context ahead of the
// conversation history and the new turn.
func (s *Service) buildMessages(convID string, req *Request) []llm.Message {
	system := basePersona
	if frag := req.WineContext.PromptFragment(); frag != "" {
		system += "\n\n" + frag
	}

	s.mu.Lock()
	prior := s.history[convID]
	s.mu.Unlock()

	messages := make([]llm.Message, 0, len(prior)+len(req.Messages)+1)
	messages = append(messages, llm.NewSystemMessage(system))
	messages = append(messages, prior...)
	messages = append(messages, req.Messages...)
	return messages
}

// remember appends the turn to the bounded in-memory history.
func (s *Service) remember(convID string, userTurn []llm.Message, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history[convID]
	h = append(h, userTurn...)
	h = append(h, llm.NewAssistantMessage(reply))
	if len(h) > maxHistoryTurns {
		h = h[len(h)-maxHistoryTurns:]
	}
	s.history[convID] = h
}

// userMessage maps provider failures onto the user-facing string carried in
// error envelopes. Rate limiting is surfaced distinctly so the UI can offer
// retry-after guidance.
func userMessage(err error) string {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsRateLimited() {
			return "The sommelier is busy right now. Please try again in a moment."
		}
		if apiErr.IsServerError() {
			return "The sommelier service is temporarily unavailable."
		}
	}
	return "Something went wrong generating a response."
}
