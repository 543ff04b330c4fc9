// Package transcribe sends recorded audio to a speech-to-text service and
// returns the recognized text. Upstream failures surface as typed errors:
// rate limiting and service errors are distinguishable by the caller.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/vinealabs/go-sommelier/internal/httpc"
)

// Client calls the transcription API.
type Client struct {
	config *Config
	client *http.Client
}

// New creates a transcription client.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		client: httpc.NewClient(cfg.Timeout),
	}, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Transcribe sends an audio blob and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	start := time.Now()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio.wav"`)
	if mimeType != "" {
		header.Set("Content-Type", mimeType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("transcribe: create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("transcribe: write audio: %w", err)
	}
	if err := writer.WriteField("model", c.config.ModelID); err != nil {
		return "", fmt.Errorf("transcribe: write model field: %w", err)
	}
	if c.config.Language != "" {
		if err := writer.WriteField("language", c.config.Language); err != nil {
			return "", fmt.Errorf("transcribe: write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("transcribe: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL, &body)
	if err != nil {
		return "", fmt.Errorf("transcribe: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseError(resp)
	}

	var result transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}

	c.config.Logger.Debug("transcription complete",
		"bytes", len(audio),
		"chars", len(result.Text),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return result.Text, nil
}

// parseError converts a non-2xx response into an APIError, preserving the
// service's error detail where possible.
func (c *Client) parseError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return apiErr
	}

	var flat errorResponse
	if json.Unmarshal(data, &flat) == nil && flat.Error != "" {
		apiErr.Message = flat.Error
		apiErr.Details = flat.Details
		return apiErr
	}

	var nested struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &nested) == nil && nested.Error.Message != "" {
		apiErr.Message = nested.Error.Message
		apiErr.Details = nested.Error.Code
	}
	return apiErr
}
