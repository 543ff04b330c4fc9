package assistant

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/vinealabs/go-sommelier/pkg/audiocache"
	"github.com/vinealabs/go-sommelier/pkg/audioio"
	"github.com/vinealabs/go-sommelier/pkg/events"
	"github.com/vinealabs/go-sommelier/pkg/playback"
	"github.com/vinealabs/go-sommelier/pkg/tts"
)

func newResponderHarness(t *testing.T) (*Responder, *tts.Mock, *eventLog, *events.MemoryBus) {
	t.Helper()

	bus := events.NewBus()
	log := &eventLog{}
	bus.Subscribe(log.record)

	player := playback.New(func(cfg audioio.Config, logger *slog.Logger) (audioio.Sink, error) {
		return audioio.NewMockSink(cfg, logger), nil
	}, nil)

	provider := tts.NewMock()
	// Mock synthesis output has no WAV/MP3 signature, so it plays as a
	// short raw PCM clip.
	r := NewResponder(player, provider, audiocache.New(4), bus, nil)
	t.Cleanup(r.Close)
	return r, provider, log, bus
}

func waitForEvent(t *testing.T, log *eventLog, name string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(log.named(name)) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("event %q never published", name)
}

func TestPlaySuggestionSynthesizesAndCaches(t *testing.T) {
	r, provider, log, _ := newResponderHarness(t)

	if err := r.PlaySuggestion(context.Background(), "Try the Riesling with oysters"); err != nil {
		t.Fatalf("PlaySuggestion: %v", err)
	}
	waitForEvent(t, log, events.SuggestionPlaybackStarted)
	waitForEvent(t, log, events.SuggestionPlaybackEnded)

	if calls := len(provider.SynthesizeCalls); calls != 1 {
		t.Fatalf("synthesize calls = %d, want 1", calls)
	}
	// First play is fresh, so no cached-response signal.
	if n := len(log.named(events.CachedResponseEnded)); n != 0 {
		t.Errorf("cachedResponseEnded fired %d times on first play", n)
	}

	// Second play of the same text is served from the cache.
	if err := r.PlaySuggestion(context.Background(), "Try the Riesling with oysters"); err != nil {
		t.Fatalf("second PlaySuggestion: %v", err)
	}
	waitForEvent(t, log, events.CachedResponseEnded)

	if calls := len(provider.SynthesizeCalls); calls != 1 {
		t.Errorf("synthesize calls = %d after cached replay, want 1", calls)
	}
}

func TestPlaySuggestionSynthesisFailure(t *testing.T) {
	r, provider, log, _ := newResponderHarness(t)
	provider.Err = tts.ErrSynthesisFailed

	err := r.PlaySuggestion(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected synthesis error")
	}
	if n := len(log.named(events.SuggestionPlaybackStarted)); n != 0 {
		t.Errorf("playback started despite synthesis failure (%d events)", n)
	}
}

func TestResponderPlaysPushedAudio(t *testing.T) {
	r, _, log, bus := newResponderHarness(t)
	defer r.Close()

	clip := audioio.SamplesToBytes(make([]int16, 2400))
	bus.Publish(events.New(events.PlayAudioResponse, events.AudioPayload{AudioBlob: clip}))

	waitForEvent(t, log, events.SuggestionPlaybackEnded)
}

func TestStopAllAnnounces(t *testing.T) {
	r, _, log, _ := newResponderHarness(t)

	r.StopAll()
	if n := len(log.named(events.DeploymentAudioStopped)); n != 1 {
		t.Errorf("deploymentAudioStopped fired %d times, want 1", n)
	}
}
