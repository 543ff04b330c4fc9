// Package chat implements the streaming conversation layer: a server-side
// service that turns chat requests into server-push envelope streams, and a
// client that consumes such a stream in strict arrival order.
package chat

import "encoding/json"

// Envelope types. The wire names are a compatibility contract.
const (
	TypeFirstToken = "first_token"
	TypeToken      = "token"
	TypeComplete   = "complete"
	TypeError      = "error"
)

// Envelope is one server-push message of the streaming chat protocol.
type Envelope struct {
	// Type discriminates the envelope: first_token, token, complete, error.
	Type string `json:"type"`

	// Content is the text fragment for first_token and token envelopes.
	Content string `json:"content,omitempty"`

	// ConversationID is authoritative on complete envelopes.
	ConversationID string `json:"conversationId,omitempty"`

	// Message is the human-readable failure on error envelopes.
	Message string `json:"message,omitempty"`

	// StartTTS signals that speech synthesis should begin now. Set on
	// first_token to minimize perceived latency.
	StartTTS bool `json:"start_tts,omitempty"`
}

// Terminal reports whether no further envelopes follow this one.
func (e *Envelope) Terminal() bool {
	return e.Type == TypeComplete || e.Type == TypeError
}

// Encode renders the envelope as a JSON line.
func (e *Envelope) Encode() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		// Envelope fields are plain strings; this cannot fail in practice.
		return []byte(`{"type":"error","message":"encode failure"}`)
	}
	return data
}
