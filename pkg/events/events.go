// Package events defines the cross-component signals exchanged between the
// voice pipeline and UI clients, and an in-process bus for delivering them.
//
// Event names and payload shapes are a compatibility contract with existing
// front-end consumers and must not be renamed.
package events

import "encoding/json"

// Event names consumed by UI indicators and visualizers.
const (
	VoiceVolume               = "voiceVolume"
	MicStatus                 = "mic-status"
	TriggerVoiceAssistant     = "triggerVoiceAssistant"
	PlayAudioResponse         = "playAudioResponse"
	SuggestionPlaybackStarted = "suggestionPlaybackStarted"
	SuggestionPlaybackEnded   = "suggestionPlaybackEnded"
	CachedResponseEnded       = "cachedResponseEnded"
	DeploymentAudioStopped    = "deploymentAudioStopped"

	// VoiceStateChanged carries the orchestrator's full UI state snapshot.
	VoiceStateChanged = "voiceStateChanged"

	// AssistantError carries the single user-facing message emitted when
	// a voice turn fails.
	AssistantError = "assistantError"
)

// Mic status values carried by the mic-status event.
const (
	StatusIdle       = "idle"
	StatusListening  = "listening"
	StatusProcessing = "processing"
	StatusThinking   = "thinking"
)

// Event is a named signal with an optional JSON payload.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"data,omitempty"`
}

// VolumePayload is the payload of the voiceVolume event.
type VolumePayload struct {
	Volume    float64 `json:"volume"`
	Threshold float64 `json:"threshold"`
}

// MicStatusPayload is the payload of the mic-status event.
type MicStatusPayload struct {
	Status string `json:"status"`
}

// AudioPayload is the payload of the playAudioResponse event.
// The audio blob is base64-encoded by encoding/json.
type AudioPayload struct {
	AudioBlob []byte `json:"audioBlob"`
}

// New builds an event, marshaling the payload.
// A nil payload produces an event with no data field.
func New(name string, payload any) Event {
	if payload == nil {
		return Event{Name: name}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload types are our own structs; a marshal failure is a
		// programming error. Deliver the bare event rather than dropping it.
		return Event{Name: name}
	}
	return Event{Name: name, Payload: data}
}

// Handler receives published events.
type Handler func(Event)

// Bus delivers events from a single publisher to many subscribers.
type Bus interface {
	Publish(Event)
	Subscribe(Handler) (unsubscribe func())
}
