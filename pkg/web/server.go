// Package web exposes the voice pipeline's external interfaces: the
// transcription and speech endpoints, the streaming chat endpoint, and a
// websocket channel carrying the cross-component UI events.
package web

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/vinealabs/go-sommelier/pkg/audiocache"
	"github.com/vinealabs/go-sommelier/pkg/chat"
	"github.com/vinealabs/go-sommelier/pkg/events"
	"github.com/vinealabs/go-sommelier/pkg/hub"
	"github.com/vinealabs/go-sommelier/pkg/tts"
)

// Transcriber converts uploaded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Synthesizer renders text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.AudioResult, error)
}

// SynthesizerFactory returns a synthesizer bound to the requested voice.
// A nil factory means speech credentials are not configured.
type SynthesizerFactory func(voice string) (Synthesizer, error)

// Config holds the server's collaborators.
type Config struct {
	Chat        *chat.Service
	Transcriber Transcriber
	Synthesizer SynthesizerFactory
	Cache       *audiocache.Cache
	Bus         events.Bus
	Logger      *slog.Logger
}

// Server is the fiber application serving the external interfaces.
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	eventsHub *hub.Hub
	detachBus func()
}

// NewServer builds the application and wires its routes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger.With("component", "web"),
		eventsHub: hub.New("events", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Sommelier",
		DisableStartupMessage: true,
		BodyLimit:             16 * 1024 * 1024,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Post("/voice/transcribe", s.handleTranscribe)
	api.Post("/voice/tts", s.handleTTS)
	api.Post("/chat/stream", s.handleChatStream)
	api.Get("/health", s.handleHealth)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start runs the event hub and listens on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.eventsHub.Run()
	if s.cfg.Bus != nil {
		s.detachBus = s.eventsHub.AttachBus(s.cfg.Bus)
	}
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	if s.detachBus != nil {
		s.detachBus()
		s.detachBus = nil
	}
	return s.app.Shutdown()
}

// App exposes the fiber application for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// EventsHub returns the websocket broadcast hub.
func (s *Server) EventsHub() *hub.Hub {
	return s.eventsHub
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleEventsWS attaches one UI client to the event hub.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	client := hub.NewClient(s.eventsHub, c)
	client.Run()
}
