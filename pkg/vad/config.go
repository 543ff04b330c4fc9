// Package vad classifies a live audio stream into voice and silence and
// signals end-of-utterance after a configurable run of silent windows.
package vad

import (
	"fmt"
	"time"
)

// Config tunes when an utterance is considered finished.
// Immutable per detection session.
type Config struct {
	// VoiceThreshold is the smoothed-energy level above which a window
	// counts as voice. Normalized 0.0-1.0.
	VoiceThreshold float64 `json:"voice_threshold"`

	// SilenceThreshold is the level below which a window counts as hard
	// silence. Levels between the two thresholds keep the current state.
	SilenceThreshold float64 `json:"silence_threshold"`

	// SilenceDuration is how long continuous silence must last before one
	// silence window is counted.
	SilenceDuration time.Duration `json:"silence_duration"`

	// ConsecutiveSilenceLimit is how many full silence windows must elapse
	// before the utterance is considered finished.
	ConsecutiveSilenceLimit int `json:"consecutive_silence_limit"`

	// PollInterval is how often energy is evaluated.
	PollInterval time.Duration `json:"poll_interval"`

	// Smoothing is the exponential smoothing constant applied to the energy
	// estimate. Higher values react more slowly.
	Smoothing float64 `json:"smoothing"`

	// WindowSize is the number of trailing samples analyzed per poll.
	WindowSize int `json:"window_size"`
}

// DefaultConfig returns the detection parameters tuned for speech at 16kHz.
func DefaultConfig() Config {
	return Config{
		VoiceThreshold:          0.0008,
		SilenceThreshold:        0.0002,
		SilenceDuration:         1500 * time.Millisecond,
		ConsecutiveSilenceLimit: 2,
		PollInterval:            100 * time.Millisecond,
		Smoothing:               0.8,
		WindowSize:              256,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.VoiceThreshold <= 0 {
		return fmt.Errorf("voice_threshold must be positive, got %g", c.VoiceThreshold)
	}
	if c.SilenceThreshold < 0 || c.SilenceThreshold > c.VoiceThreshold {
		return fmt.Errorf("silence_threshold must be in [0, voice_threshold], got %g", c.SilenceThreshold)
	}
	if c.SilenceDuration <= 0 {
		return fmt.Errorf("silence_duration must be positive, got %v", c.SilenceDuration)
	}
	if c.ConsecutiveSilenceLimit <= 0 {
		return fmt.Errorf("consecutive_silence_limit must be positive, got %d", c.ConsecutiveSilenceLimit)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		return fmt.Errorf("smoothing must be in [0,1), got %g", c.Smoothing)
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %d", c.WindowSize)
	}
	return nil
}
