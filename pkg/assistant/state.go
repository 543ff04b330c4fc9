package assistant

// State is the orchestrator's position in the voice turn lifecycle.
type State int

const (
	// StateIdle means no voice turn is in progress.
	StateIdle State = iota

	// StateListening means the microphone is open and recording.
	StateListening

	// StateThinking means a finished recording is being transcribed.
	StateThinking

	// StateStreaming means the chat response is arriving.
	StateStreaming

	// StateSpeaking means synthesized audio is playing.
	StateSpeaking

	// StateError is a transient state reached when a turn fails; the
	// orchestrator returns to idle after surfacing one message.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateStreaming:
		return "streaming"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// VoiceState is the UI-facing snapshot of the voice pipeline. The
// orchestrator is its single writer; consumers receive copies via the
// voiceStateChanged event and must not mutate it.
type VoiceState struct {
	IsListening      bool `json:"isListening"`
	IsResponding     bool `json:"isResponding"`
	IsThinking       bool `json:"isThinking"`
	IsPlayingAudio   bool `json:"isPlayingAudio"`
	IsVoiceActive    bool `json:"isVoiceActive"`
	ShowBottomSheet  bool `json:"showBottomSheet"`
	ShowUnmuteButton bool `json:"showUnmuteButton"`
	ShowAskButton    bool `json:"showAskButton"`
}
