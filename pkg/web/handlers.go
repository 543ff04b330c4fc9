package web

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/vinealabs/go-sommelier/pkg/audioio"
	"github.com/vinealabs/go-sommelier/pkg/chat"
	"github.com/vinealabs/go-sommelier/pkg/transcribe"
	"github.com/vinealabs/go-sommelier/pkg/tts"
)

// handleTranscribe accepts a multipart audio upload and returns its text.
// The upload is staged to a temp file that is always removed, success or
// failure.
func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	if s.cfg.Transcriber == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "transcription service is not configured",
		})
	}

	file, err := c.FormFile("audio")
	if err != nil {
		file, err = c.FormFile("file")
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "audio file required",
		})
	}

	tmp, err := os.CreateTemp("", "sommelier-upload-*")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to stage upload",
		})
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.SaveFile(file, tmpPath); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to stage upload",
		})
	}
	audio, err := os.ReadFile(tmpPath)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read upload",
		})
	}

	mime := file.Header.Get("Content-Type")
	if mime == "" {
		mime = audioio.WAVMimeType
	}

	text, err := s.cfg.Transcriber.Transcribe(c.Context(), audio, mime)
	if err != nil {
		return s.transcribeError(c, err)
	}

	return c.JSON(fiber.Map{"text": text})
}

func (s *Server) transcribeError(c *fiber.Ctx, err error) error {
	s.logger.Error("transcription failed", "error", err)

	var apiErr *transcribe.APIError
	if errors.As(err, &apiErr) {
		status := fiber.StatusBadGateway
		if apiErr.IsRateLimited() {
			status = fiber.StatusTooManyRequests
		}
		body := fiber.Map{"error": apiErr.Message}
		if apiErr.Details != "" {
			body["details"] = apiErr.Details
		}
		return c.Status(status).JSON(body)
	}

	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "transcription failed",
	})
}

// ttsRequest is the speech endpoint's body.
type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// handleTTS validates the request, serves repeats from the audio cache,
// and otherwise synthesizes with the requested voice.
func (s *Server) handleTTS(c *fiber.Ctx) error {
	var req ttsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": fiber.Map{"body": "invalid JSON"},
		})
	}

	fields := make(map[string]string)
	if strings.TrimSpace(req.Text) == "" {
		fields["text"] = "text is required"
	} else if utf8.RuneCountInString(req.Text) > tts.MaxTextLength {
		fields["text"] = fmt.Sprintf("text must be at most %d characters", tts.MaxTextLength)
	}

	voice := req.Voice
	if voice == "" {
		voice = tts.VoiceNova
	}
	if !tts.ValidVoice(voice) {
		fields["voice"] = "voice must be one of alloy, echo, fable, onyx, nova, shimmer"
	}

	if len(fields) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": fields,
		})
	}

	if s.cfg.Synthesizer == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "speech service is not configured",
		})
	}

	cacheKey := voice + "\x00" + req.Text
	if s.cfg.Cache != nil {
		if audio := s.cfg.Cache.Get(cacheKey); audio != nil {
			c.Set(fiber.HeaderContentType, "audio/mpeg")
			return c.Send(audio)
		}
	}

	synth, err := s.cfg.Synthesizer(voice)
	if err != nil {
		s.logger.Error("synthesizer unavailable", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "speech service is not configured",
		})
	}

	result, err := synth.Synthesize(c.Context(), req.Text)
	if err != nil {
		return s.ttsError(c, err)
	}

	if s.cfg.Cache != nil {
		s.cfg.Cache.Set(cacheKey, result.Audio)
	}

	c.Set(fiber.HeaderContentType, encodingMIME(result.Format.Encoding))
	return c.Send(result.Audio)
}

func (s *Server) ttsError(c *fiber.Ctx, err error) error {
	s.logger.Error("synthesis failed", "error", err)

	var apiErr *tts.APIError
	if errors.As(err, &apiErr) {
		status := fiber.StatusBadGateway
		if apiErr.IsRateLimited() {
			status = fiber.StatusTooManyRequests
		}
		return c.Status(status).JSON(fiber.Map{"error": apiErr.Message})
	}

	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "synthesis failed",
	})
}

func encodingMIME(enc tts.Encoding) string {
	switch enc {
	case tts.EncodingPCM16, tts.EncodingPCM24:
		return "audio/pcm"
	default:
		return "audio/mpeg"
	}
}

// handleChatStream parses the chat request and streams response envelopes
// as server-sent events.
func (s *Server) handleChatStream(c *fiber.Ctx) error {
	if s.cfg.Chat == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "chat service is not configured",
		})
	}

	var req chat.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "messages are required",
		})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	service := s.cfg.Chat
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		emit := func(env chat.Envelope) error {
			if _, err := fmt.Fprintf(w, "data: %s\n\n", env.Encode()); err != nil {
				return err
			}
			return w.Flush()
		}
		service.StreamResponse(context.Background(), &req, emit)
	}))
	return nil
}
