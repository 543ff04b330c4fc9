// Sommelier service - transcription, speech, and streaming chat for the
// wine-tasting companion, plus the websocket event channel for UI clients.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/vinealabs/go-sommelier/internal/config"
	"github.com/vinealabs/go-sommelier/internal/log"
	"github.com/vinealabs/go-sommelier/pkg/audiocache"
	"github.com/vinealabs/go-sommelier/pkg/chat"
	"github.com/vinealabs/go-sommelier/pkg/events"
	"github.com/vinealabs/go-sommelier/pkg/llm"
	"github.com/vinealabs/go-sommelier/pkg/transcribe"
	"github.com/vinealabs/go-sommelier/pkg/tts"
	"github.com/vinealabs/go-sommelier/pkg/web"
)

func main() {
	config.Load()
	log.Init(config.LogLevel())
	logger := log.L()

	apiKey := config.OpenAIKey()
	if apiKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, speech and chat endpoints will return errors")
	}

	cfg := web.Config{
		Cache:  audiocache.New(audiocache.DefaultMaxEntries),
		Bus:    events.NewBus(),
		Logger: logger,
	}

	if apiKey != "" {
		transcriber, err := transcribe.New(
			transcribe.WithAPIKey(apiKey),
			transcribe.WithLogger(logger),
		)
		if err != nil {
			logger.Error("transcription client init failed", "error", err)
			os.Exit(1)
		}
		cfg.Transcriber = transcriber

		provider, err := llm.NewClient(
			llm.WithAPIKey(apiKey),
			llm.WithBaseURL(config.ChatBaseURL()),
			llm.WithModel(config.ChatModel()),
			llm.WithLogger(logger),
		)
		if err != nil {
			logger.Error("chat client init failed", "error", err)
			os.Exit(1)
		}
		defer provider.Close()
		cfg.Chat = chat.NewService(provider, logger)

		cfg.Synthesizer = func(voice string) (web.Synthesizer, error) {
			speech, err := tts.NewOpenAI(
				tts.WithAPIKey(apiKey),
				tts.WithVoice(voice),
				tts.WithLogger(logger),
			)
			if err != nil {
				return nil, err
			}
			return speech, nil
		}
	}

	server := web.NewServer(cfg)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		server.Shutdown()
	}()

	if err := server.Start(":" + config.Port()); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
