package assistant

import (
	"errors"

	"github.com/vinealabs/go-sommelier/pkg/recorder"
	"github.com/vinealabs/go-sommelier/pkg/transcribe"
)

// User-facing messages for each failure class. Every terminal error
// surfaces exactly one of these, never a raw error string.
const (
	msgPermissionDenied = "Microphone access was denied. Allow microphone access in your browser settings and try again."
	msgDeviceError      = "There was a problem with your microphone. Check your audio settings and try again."
	msgRateLimited      = "The sommelier is a little busy right now. Give it a moment and try again."
	msgServiceError     = "Something went wrong while talking to the sommelier. Please try again."
	msgNoSpeech         = "I didn't catch that. Try speaking a little closer to the microphone."
)

// userMessage maps an internal error to its user-facing message.
func userMessage(err error) string {
	switch {
	case errors.Is(err, recorder.ErrPermissionDenied):
		return msgPermissionDenied
	case errors.Is(err, recorder.ErrDevice):
		return msgDeviceError
	case errors.Is(err, recorder.ErrNoAudio):
		return msgNoSpeech
	}

	var apiErr *transcribe.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsRateLimited() {
			return msgRateLimited
		}
		return msgServiceError
	}

	return msgServiceError
}

// isDeviceError reports whether the failure is worth one silent retry
// before surfacing.
func isDeviceError(err error) bool {
	return errors.Is(err, recorder.ErrDevice)
}
