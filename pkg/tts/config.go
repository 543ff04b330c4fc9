package tts

import (
	"errors"
	"log/slog"
	"time"
)

// OpenAI voice identifiers.
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// ModelTTS1 is the standard low-latency synthesis model.
const ModelTTS1 = "tts-1"

// MaxTextLength is the provider character limit per request.
const MaxTextLength = 4000

// openAIVoices is the set of accepted voice identifiers.
var openAIVoices = map[string]bool{
	VoiceAlloy:   true,
	VoiceEcho:    true,
	VoiceFable:   true,
	VoiceOnyx:    true,
	VoiceNova:    true,
	VoiceShimmer: true,
}

// ValidVoice reports whether id names a supported OpenAI voice.
func ValidVoice(id string) bool {
	return openAIVoices[id]
}

// Config holds TTS provider configuration.
type Config struct {
	// APIKey for the TTS provider.
	APIKey string

	// BaseURL for the API endpoint.
	BaseURL string

	// Voice is the voice identifier.
	Voice string

	// Model is the synthesis model.
	Model string

	// Encoding is the requested audio output format.
	Encoding Encoding

	// Speed adjusts playback rate, 0.25 to 4.0.
	Speed float64

	// Timeout for API requests.
	Timeout time.Duration

	// MaxRetries on transient failures.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for the OpenAI provider.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://api.openai.com/v1",
		Voice:      VoiceNova,
		Model:      ModelTTS1,
		Encoding:   EncodingMP3,
		Speed:      1.0,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Option configures the TTS provider.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithVoice sets the voice identifier.
func WithVoice(voice string) Option {
	return func(c *Config) { c.Voice = voice }
}

// WithModel sets the synthesis model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithEncoding sets the audio output format.
func WithEncoding(enc Encoding) Option {
	return func(c *Config) { c.Encoding = enc }
}

// WithSpeed sets the playback speed factor.
func WithSpeed(speed float64) Option {
	return func(c *Config) { c.Speed = speed }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetries sets the retry policy.
func WithRetries(max int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = max
		c.RetryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.Voice != "" && !ValidVoice(c.Voice) {
		return ErrInvalidVoice
	}
	if c.Speed < 0.25 || c.Speed > 4.0 {
		return errors.New("tts: speed must be between 0.25 and 4.0")
	}
	return nil
}
