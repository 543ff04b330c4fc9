package assistant

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/vinealabs/go-sommelier/pkg/audiocache"
	"github.com/vinealabs/go-sommelier/pkg/events"
	"github.com/vinealabs/go-sommelier/pkg/playback"
	"github.com/vinealabs/go-sommelier/pkg/tts"
)

// Responder plays pre-synthesized response audio: tasting-note
// suggestions, cached phrases, and audio blobs pushed over the bus. It
// shares the playback slot with the orchestrator, so either one starting
// audio silences the other.
type Responder struct {
	player   *playback.Manager
	provider tts.Provider
	cache    *audiocache.Cache
	bus      events.Bus
	logger   *slog.Logger

	unsubscribe func()
}

// NewResponder wires a responder to the bus: playAudioResponse events are
// played immediately.
func NewResponder(player *playback.Manager, provider tts.Provider, cache *audiocache.Cache, bus events.Bus, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Responder{
		player:   player,
		provider: provider,
		cache:    cache,
		bus:      bus,
		logger:   logger.With("component", "responder"),
	}
	if bus != nil {
		r.unsubscribe = bus.Subscribe(r.handleBusEvent)
	}
	return r
}

// PlaySuggestion speaks a suggestion phrase, serving repeated phrases
// from the audio cache instead of re-synthesizing them.
func (r *Responder) PlaySuggestion(ctx context.Context, text string) error {
	audio, cached := r.lookup(text)
	if !cached {
		result, err := r.provider.Synthesize(ctx, text)
		if err != nil {
			return err
		}
		audio = result.Audio
		if r.cache != nil {
			r.cache.Set(text, audio)
		}
	}

	r.publish(events.SuggestionPlaybackStarted, nil)
	_, err := r.player.Play(ctx, playback.Source{Data: audio}, func() {
		r.publish(events.SuggestionPlaybackEnded, nil)
		if cached {
			r.publish(events.CachedResponseEnded, nil)
		}
	})
	if err != nil {
		r.publish(events.SuggestionPlaybackEnded, nil)
		return err
	}
	return nil
}

// StopAll silences every playing response and announces the stop.
func (r *Responder) StopAll() {
	r.player.StopAll()
	r.publish(events.DeploymentAudioStopped, nil)
}

// Close detaches the responder from the bus.
func (r *Responder) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

func (r *Responder) handleBusEvent(ev events.Event) {
	if ev.Name != events.PlayAudioResponse {
		return
	}
	var payload events.AudioPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || len(payload.AudioBlob) == 0 {
		r.logger.Warn("ignoring malformed playAudioResponse payload")
		return
	}

	_, err := r.player.Play(context.Background(), playback.Source{Data: payload.AudioBlob}, func() {
		r.publish(events.SuggestionPlaybackEnded, nil)
	})
	if err != nil {
		r.logger.Error("failed to play pushed audio", "error", err)
	}
}

func (r *Responder) lookup(text string) ([]byte, bool) {
	if r.cache == nil {
		return nil, false
	}
	audio := r.cache.Get(text)
	return audio, audio != nil
}

func (r *Responder) publish(name string, payload any) {
	if r.bus != nil {
		r.bus.Publish(events.New(name, payload))
	}
}
