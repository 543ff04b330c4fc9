// Package assistant coordinates one voice turn end to end: recording,
// transcription, the streaming chat response, and spoken output. It owns
// the pipeline state machine and is the single writer of the UI-facing
// VoiceState.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/vinealabs/go-sommelier/pkg/chat"
	"github.com/vinealabs/go-sommelier/pkg/events"
	"github.com/vinealabs/go-sommelier/pkg/llm"
	"github.com/vinealabs/go-sommelier/pkg/playback"
	"github.com/vinealabs/go-sommelier/pkg/recorder"
	"github.com/vinealabs/go-sommelier/pkg/tts"
	"github.com/vinealabs/go-sommelier/pkg/wine"
)

// Transcriber converts a recorded audio blob into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Components are the collaborators one orchestrator drives. All are
// required except Playback, which only the suggestion/cached-audio path
// uses.
type Components struct {
	Recorder    *recorder.Recorder
	Transcriber Transcriber
	Chat        *chat.StreamingClient
	Speech      *tts.Manager
	Playback    *playback.Manager
	Bus         events.Bus
	Logger      *slog.Logger
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithContinuous keeps the conversation going: after a response finishes
// speaking, the orchestrator starts listening again instead of idling.
func WithContinuous(on bool) Option {
	return func(o *Orchestrator) { o.continuous = on }
}

// WithWineContext attaches tenant and wine context to every chat turn.
func WithWineContext(wc *wine.Context) Option {
	return func(o *Orchestrator) { o.wineCtx = wc }
}

// Orchestrator is the voice pipeline state machine. Collaborators report
// through callbacks; the orchestrator never polls. Results carrying a
// stale generation number belong to a superseded turn and are discarded.
type Orchestrator struct {
	rec         *recorder.Recorder
	transcriber Transcriber
	chatClient  *chat.StreamingClient
	speech      *tts.Manager
	player      *playback.Manager
	bus         events.Bus
	logger      *slog.Logger

	continuous bool
	wineCtx    *wine.Context

	mu             sync.Mutex
	state          State
	voice          VoiceState
	generation     uint64
	sessionCtx     context.Context
	sessionCancel  context.CancelFunc
	conversationID string
	history        []llm.Message
	queue          *speechQueue
	deviceRetried  bool

	unsubscribe func()
}

// New creates an orchestrator and wires itself into the collaborators'
// callbacks and the event bus.
func New(c Components, opts ...Option) *Orchestrator {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		rec:         c.Recorder,
		transcriber: c.Transcriber,
		chatClient:  c.Chat,
		speech:      c.Speech,
		player:      c.Playback,
		bus:         c.Bus,
		logger:      logger.With("component", "assistant"),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.rec.OnRecordingStop = o.handleRecordingStop
	o.rec.OnRecordingError = o.handleRecordingError

	o.chatClient.OnFirstToken = o.handleFirstToken
	o.chatClient.OnToken = o.handleToken
	o.chatClient.OnComplete = o.handleComplete
	o.chatClient.OnError = o.handleChatError

	if o.bus != nil {
		o.unsubscribe = o.bus.Subscribe(o.handleBusEvent)
	}

	return o
}

// State returns the current pipeline state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Voice returns a snapshot of the UI-facing state.
func (o *Orchestrator) Voice() VoiceState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.voice
}

// ConversationID returns the id assigned by the chat service, empty
// before the first completed turn.
func (o *Orchestrator) ConversationID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conversationID
}

// ResponseText returns the chat text received so far this turn,
// including partial text from an interrupted stream.
func (o *Orchestrator) ResponseText() string {
	return o.chatClient.Text()
}

// Start begins a voice turn: opens the microphone and listens until the
// detector signals end of utterance. Starting while a turn is active
// tears the old one down first.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	active := o.sessionCancel != nil || o.state != StateIdle
	o.mu.Unlock()
	if active {
		o.Stop()
	}

	o.mu.Lock()
	o.generation++
	gen := o.generation
	sctx, cancel := context.WithCancel(ctx)
	o.sessionCtx = sctx
	o.sessionCancel = cancel
	o.deviceRetried = false
	o.mu.Unlock()

	return o.startListening(sctx, gen)
}

// Stop cancels the active turn from any state: it stops recording,
// closes the chat stream, stops audio output, and resets the UI flags,
// in that order, before returning to idle.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.generation++
	cancel := o.sessionCancel
	o.sessionCancel = nil
	o.sessionCtx = nil
	queue := o.queue
	o.queue = nil
	o.mu.Unlock()

	if queue != nil {
		queue.cancel()
	}

	o.rec.StopRecording()
	o.chatClient.Stop()
	o.speech.Cancel()
	if o.player != nil {
		o.player.StopAll()
	}
	if cancel != nil {
		cancel()
	}

	o.setVoice(func(v *VoiceState) { *v = VoiceState{ShowAskButton: true} })
	o.setState(StateIdle, events.StatusIdle)
}

// Close detaches the orchestrator from the bus and cancels any active
// turn.
func (o *Orchestrator) Close() {
	o.Stop()
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
}

func (o *Orchestrator) startListening(ctx context.Context, gen uint64) error {
	o.setVoice(func(v *VoiceState) {
		*v = VoiceState{IsListening: true, ShowBottomSheet: true}
	})
	o.setState(StateListening, events.StatusListening)

	err := o.rec.StartRecording(ctx)
	if err == nil {
		return nil
	}

	// Device failures get one silent retry before surfacing.
	if isDeviceError(err) && !o.deviceRetriedOnce() {
		o.logger.Warn("device error, retrying once", "error", err)
		if retryErr := o.rec.StartRecording(ctx); retryErr == nil {
			return nil
		}
	}

	o.failTurn(gen, userMessage(err), err)
	return err
}

func (o *Orchestrator) deviceRetriedOnce() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.deviceRetried {
		return true
	}
	o.deviceRetried = true
	return false
}

// handleRecordingStop receives the finalized blob and kicks off
// transcription. Runs on the recorder's finalize goroutine, so the HTTP
// work moves to its own.
func (o *Orchestrator) handleRecordingStop(blob []byte, mimeType string) {
	o.mu.Lock()
	gen := o.generation
	ctx := o.sessionCtx
	o.mu.Unlock()
	if ctx == nil {
		return
	}

	go o.processUtterance(ctx, gen, blob, mimeType)
}

func (o *Orchestrator) handleRecordingError(err error) {
	o.mu.Lock()
	gen := o.generation
	o.mu.Unlock()
	o.failTurn(gen, userMessage(err), err)
}

func (o *Orchestrator) processUtterance(ctx context.Context, gen uint64, blob []byte, mimeType string) {
	if o.stale(gen) {
		return
	}

	o.setVoice(func(v *VoiceState) {
		v.IsListening = false
		v.IsVoiceActive = false
		v.IsThinking = true
	})
	o.setState(StateThinking, events.StatusProcessing)

	text, err := o.transcriber.Transcribe(ctx, blob, mimeType)
	if o.stale(gen) {
		return
	}
	if err != nil {
		o.failTurn(gen, userMessage(err), err)
		return
	}
	if strings.TrimSpace(text) == "" {
		o.failTurn(gen, msgNoSpeech, nil)
		return
	}

	o.mu.Lock()
	o.history = append(o.history, llm.NewUserMessage(text))
	messages := make([]llm.Message, len(o.history))
	copy(messages, o.history)
	convID := o.conversationID
	queue := newSpeechQueue(ctx, o.speech, func() { o.handleSpeechDone(gen) })
	o.queue = queue
	o.mu.Unlock()

	o.setState(StateStreaming, events.StatusThinking)

	if err := o.chatClient.StartStreaming(ctx, messages, convID, o.wineCtx); err != nil {
		if o.stale(gen) {
			return
		}
		o.failTurn(gen, msgServiceError, err)
	}
}

func (o *Orchestrator) handleFirstToken(content string, startTTS bool) {
	o.mu.Lock()
	gen := o.generation
	queue := o.queue
	o.mu.Unlock()
	if o.stale(gen) || queue == nil {
		return
	}

	o.setVoice(func(v *VoiceState) {
		v.IsThinking = false
		v.IsResponding = true
	})

	if startTTS {
		queue.feed(content)
		return
	}

	// The service declined synthesis for this turn; drop the queue so
	// completion goes straight back to idle.
	o.mu.Lock()
	if o.queue == queue {
		o.queue = nil
	}
	o.mu.Unlock()
	queue.cancel()
}

func (o *Orchestrator) handleToken(content string) {
	o.mu.Lock()
	queue := o.queue
	o.mu.Unlock()
	if queue != nil {
		queue.feed(content)
	}
}

func (o *Orchestrator) handleComplete(conversationID string) {
	o.mu.Lock()
	gen := o.generation
	queue := o.queue
	o.conversationID = conversationID
	full := o.chatClient.Text()
	if full != "" {
		o.history = append(o.history, llm.NewAssistantMessage(full))
	}
	o.mu.Unlock()

	if queue == nil {
		o.finishTurn(gen)
		return
	}

	o.setVoice(func(v *VoiceState) { v.IsPlayingAudio = true })
	o.setState(StateSpeaking, events.StatusProcessing)
	queue.finish()
}

func (o *Orchestrator) handleChatError(message string) {
	o.mu.Lock()
	gen := o.generation
	queue := o.queue
	o.queue = nil
	// Partial text stays in the chat client and in history so the turn's
	// progress is not discarded.
	if partial := o.chatClient.Text(); partial != "" {
		o.history = append(o.history, llm.NewAssistantMessage(partial))
	}
	o.mu.Unlock()

	if queue != nil {
		queue.cancel()
	}
	o.speech.Cancel()
	o.surfaceError(gen, message)
}

// handleSpeechDone fires when the response has been fully spoken.
func (o *Orchestrator) handleSpeechDone(gen uint64) {
	if o.stale(gen) {
		return
	}

	o.setVoice(func(v *VoiceState) {
		*v = VoiceState{ShowAskButton: true, ShowUnmuteButton: true}
	})

	o.mu.Lock()
	ctx := o.sessionCtx
	continuous := o.continuous && ctx != nil && ctx.Err() == nil
	o.mu.Unlock()

	if continuous {
		o.startListening(ctx, gen)
		return
	}
	o.setState(StateIdle, events.StatusIdle)
}

func (o *Orchestrator) finishTurn(gen uint64) {
	if o.stale(gen) {
		return
	}
	o.setVoice(func(v *VoiceState) {
		*v = VoiceState{ShowAskButton: true}
	})
	o.setState(StateIdle, events.StatusIdle)
}

// failTurn surfaces an internal error as one user-facing message and
// resets to idle.
func (o *Orchestrator) failTurn(gen uint64, message string, err error) {
	if err != nil {
		o.logger.Error("voice turn failed", "error", err)
	}
	o.surfaceError(gen, message)
}

func (o *Orchestrator) surfaceError(gen uint64, message string) {
	if o.stale(gen) {
		return
	}

	o.setState(StateError, "")
	if o.bus != nil {
		o.bus.Publish(events.New(events.AssistantError, map[string]string{"message": message}))
	}

	o.setVoice(func(v *VoiceState) {
		*v = VoiceState{ShowAskButton: true}
	})
	o.setState(StateIdle, events.StatusIdle)
}

// stale reports whether gen belongs to a superseded turn.
func (o *Orchestrator) stale(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen != o.generation
}

func (o *Orchestrator) handleBusEvent(ev events.Event) {
	switch ev.Name {
	case events.TriggerVoiceAssistant:
		// Toggle: active turns are canceled, idle starts a new one.
		if o.State() != StateIdle {
			o.Stop()
			return
		}
		go o.Start(context.Background())
	case events.VoiceVolume:
		o.setVoice(func(v *VoiceState) {
			if v.IsListening {
				v.IsVoiceActive = true
			}
		})
	}
}

// setState updates the machine state and publishes a mic-status event
// when micStatus is non-empty. Never called with o.mu held.
func (o *Orchestrator) setState(s State, micStatus string) {
	o.mu.Lock()
	changed := o.state != s
	o.state = s
	o.mu.Unlock()

	if changed {
		o.logger.Debug("state change", "state", s.String())
	}
	if micStatus != "" && o.bus != nil {
		o.bus.Publish(events.New(events.MicStatus, events.MicStatusPayload{Status: micStatus}))
	}
}

// setVoice mutates the VoiceState under lock and broadcasts the new
// snapshot. Never called with o.mu held.
func (o *Orchestrator) setVoice(mutate func(*VoiceState)) {
	o.mu.Lock()
	mutate(&o.voice)
	snapshot := o.voice
	o.mu.Unlock()

	if o.bus != nil {
		o.bus.Publish(events.New(events.VoiceStateChanged, snapshot))
	}
}
