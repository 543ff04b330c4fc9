package tts

import (
	"errors"
	"fmt"
)

// Common errors returned by TTS providers.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("tts: API key required")

	// ErrEmptyText is returned when the text to synthesize is empty.
	ErrEmptyText = errors.New("tts: text is empty")

	// ErrTextTooLong is returned when text exceeds the provider limit.
	ErrTextTooLong = errors.New("tts: text exceeds maximum length")

	// ErrInvalidVoice is returned when the voice ID is not recognized.
	ErrInvalidVoice = errors.New("tts: invalid voice")

	// ErrSynthesisFailed is returned when audio generation fails.
	ErrSynthesisFailed = errors.New("tts: synthesis failed")

	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("tts: stream closed")

	// ErrNoVoices is returned when the voice list is empty and a voice
	// is strictly required.
	ErrNoVoices = errors.New("tts: no voices available")
)

// APIError represents an error response from a TTS API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("tts %s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true if the error is a rate limit (429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsAuthError returns true if the error is an auth failure (401/403).
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsServerError returns true for 5xx status codes.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if the request can be retried.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("tts %s: %w", provider, err)
}
