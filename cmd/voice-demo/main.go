// Voice demo - runs the full voice pipeline from a terminal: microphone
// capture with voice-activity detection, transcription, streaming chat
// against a sommelier server, and spoken responses on the local output
// device. Requires OPENAI_API_KEY and a reachable chat endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	gorilla "github.com/gorilla/websocket"

	"github.com/vinealabs/go-sommelier/internal/config"
	"github.com/vinealabs/go-sommelier/internal/log"
	"github.com/vinealabs/go-sommelier/pkg/assistant"
	"github.com/vinealabs/go-sommelier/pkg/chat"
	"github.com/vinealabs/go-sommelier/pkg/clientstate"
	"github.com/vinealabs/go-sommelier/pkg/events"
	"github.com/vinealabs/go-sommelier/pkg/permission"
	"github.com/vinealabs/go-sommelier/pkg/playback"
	"github.com/vinealabs/go-sommelier/pkg/recorder"
	"github.com/vinealabs/go-sommelier/pkg/transcribe"
	"github.com/vinealabs/go-sommelier/pkg/tts"
)

func main() {
	serverURL := flag.String("server", "", "sommelier server base URL (default http://localhost:<PORT>)")
	continuous := flag.Bool("continuous", false, "keep listening after each response")
	flag.Parse()

	config.Load()
	log.Init(config.LogLevel())
	logger := log.L()

	apiKey := config.OpenAIKey()
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "OPENAI_API_KEY is required")
		os.Exit(1)
	}

	base := *serverURL
	if base == "" {
		base = "http://localhost:" + config.Port()
	}
	endpoint := base + "/api/chat/stream"

	bus := events.NewBus()

	var store clientstate.Store
	store, err := clientstate.OpenBadger(config.DataDir(), logger)
	if err != nil {
		logger.Warn("falling back to in-memory client state", "error", err)
		store = clientstate.NewMemoryStore()
	}
	defer store.Close()

	gate, err := permission.NewGate(store, &permission.TerminalPrompter{}, logger)
	if err != nil {
		fatal(logger, "permission gate init failed", err)
	}

	rec, err := recorder.New(recorder.DefaultConfig(), gate, bus, logger)
	if err != nil {
		fatal(logger, "recorder init failed", err)
	}

	transcriber, err := transcribe.New(
		transcribe.WithAPIKey(apiKey),
		transcribe.WithLogger(logger),
	)
	if err != nil {
		fatal(logger, "transcription client init failed", err)
	}

	provider, err := tts.NewOpenAI(
		tts.WithAPIKey(apiKey),
		tts.WithLogger(logger),
	)
	if err != nil {
		fatal(logger, "speech provider init failed", err)
	}
	defer provider.Close()

	player := playback.New(nil, logger)
	speech, err := tts.NewManager(assistant.NewSpeaker(provider, player), tts.OpenAIVoices(), store, logger)
	if err != nil {
		fatal(logger, "speech manager init failed", err)
	}

	orch := assistant.New(assistant.Components{
		Recorder:    rec,
		Transcriber: transcriber,
		Chat:        chat.NewStreamingClient(endpoint, nil, logger),
		Speech:      speech,
		Playback:    player,
		Bus:         bus,
		Logger:      logger,
	}, assistant.WithContinuous(*continuous))

	unsubscribe := bus.Subscribe(func(ev events.Event) {
		switch ev.Name {
		case events.MicStatus, events.AssistantError:
			fmt.Printf("[%s] %s\n", ev.Name, ev.Payload)
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go watchServerEvents(ctx, "ws"+strings.TrimPrefix(base, "http")+"/ws/events", logger)

	if err := orch.Start(ctx); err != nil {
		fatal(logger, "voice assistant start failed", err)
	}
	fmt.Println("Listening. Speak, then pause; Ctrl-C to quit.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	orch.Stop()
}

// watchServerEvents mirrors the server's websocket event channel into the
// local log so a terminal session can see what UI clients would see. The
// channel is optional: a server without connected state still works.
func watchServerEvents(ctx context.Context, url string, logger *slog.Logger) {
	conn, _, err := gorilla.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		logger.Debug("server event channel unavailable", "url", url, "error", err)
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		logger.Debug("server event", "event", ev.Name)
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
