package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vinealabs/go-sommelier/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI implements Provider for the OpenAI speech API.
type OpenAI struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.Voice == "" {
		cfg.Voice = VoiceNova
	}
	if cfg.Model == "" {
		cfg.Model = ModelTTS1
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &OpenAI{
		config: cfg,
		client: httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "tts.openai"),
	}, nil
}

// Voice returns the configured voice identifier.
func (o *OpenAI) Voice() string {
	return o.config.Voice
}

// SetVoice changes the voice used for subsequent synthesis.
func (o *OpenAI) SetVoice(id string) error {
	if !ValidVoice(id) {
		return ErrInvalidVoice
	}
	o.config.Voice = id
	return nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	chars := utf8.RuneCountInString(text)
	if chars > MaxTextLength {
		return nil, ErrTextTooLong
	}

	start := time.Now()

	payload := map[string]any{
		"model": o.config.Model,
		"voice": o.config.Voice,
		"input": text,
	}
	if o.config.Speed != 0 && o.config.Speed != 1.0 {
		payload["speed"] = o.config.Speed
	}
	if format := responseFormat(o.config.Encoding); format != "" {
		payload["response_format"] = format
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.config.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.doWithRetry(ctx, req, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, o.parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
	}

	o.logger.Debug("synthesized audio",
		"chars", chars,
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", o.config.Voice,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    o.outputFormat(),
		CharCount: chars,
		LatencyMs: latency,
	}, nil
}

// Stream converts text to audio with streaming output.
// The OpenAI speech API returns a complete buffer, so this wraps Synthesize.
func (o *OpenAI) Stream(ctx context.Context, text string) (AudioStream, error) {
	result, err := o.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return &bufferStream{data: result.Audio, format: result.Format}, nil
}

// Health checks API connectivity using the models endpoint.
func (o *OpenAI) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.config.BaseURL+"/models", nil)
	if err != nil {
		return WrapError(providerOpenAI, err)
	}

	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return WrapError(providerOpenAI, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return o.parseError(resp)
	}

	return nil
}

// Close releases resources.
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// doWithRetry performs the request with retry logic.
func (o *OpenAI) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.config.RetryDelay * time.Duration(attempt)):
			}

			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := o.client.Do(req)
		if err != nil {
			lastErr = WrapError(providerOpenAI, err)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = o.parseError(resp)
			o.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response. Consumes resp.Body.
func (o *OpenAI) parseError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := string(body)
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Code
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerOpenAI,
	}
}

// outputFormat returns the audio format for the configured encoding.
func (o *OpenAI) outputFormat() AudioFormat {
	switch o.config.Encoding {
	case EncodingPCM16, EncodingPCM24:
		return AudioFormat{
			Encoding:   o.config.Encoding,
			SampleRate: SampleRateFromEncoding(o.config.Encoding),
			Channels:   1,
			BitDepth:   16,
		}
	default:
		return AudioFormat{
			Encoding:   EncodingMP3,
			SampleRate: 44100,
			Channels:   1,
		}
	}
}

// responseFormat maps an Encoding to the API response_format value.
func responseFormat(enc Encoding) string {
	switch enc {
	case EncodingPCM16, EncodingPCM24:
		return "pcm"
	case EncodingMP3:
		return "mp3"
	default:
		return ""
	}
}
