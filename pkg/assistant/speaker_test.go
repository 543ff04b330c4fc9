package assistant

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vinealabs/go-sommelier/pkg/audioio"
	"github.com/vinealabs/go-sommelier/pkg/playback"
	"github.com/vinealabs/go-sommelier/pkg/tts"
)

type speakerSinks struct {
	mu    sync.Mutex
	sinks []*audioio.MockSink
}

func (r *speakerSinks) factory(cfg audioio.Config, logger *slog.Logger) (audioio.Sink, error) {
	s := audioio.NewMockSink(cfg, logger)
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
	return s, nil
}

func (r *speakerSinks) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}

// pcmResult fakes a synthesis result carrying n samples of raw PCM.
func pcmResult(n int) *tts.AudioResult {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i % 500)
	}
	return &tts.AudioResult{
		Audio:  audioio.SamplesToBytes(samples),
		Format: tts.AudioFormat{Encoding: tts.EncodingPCM24, SampleRate: 24000, Channels: 1},
	}
}

func TestSpeakerSynthesizesAndPlays(t *testing.T) {
	provider := tts.NewMock()
	provider.SynthesizeFunc = func(ctx context.Context, text string) (*tts.AudioResult, error) {
		return pcmResult(240), nil // 10ms at 24kHz
	}

	sinks := &speakerSinks{}
	sp := NewSpeaker(provider, playback.New(sinks.factory, nil))

	u := tts.Utterance{Text: "a bright Gamay", Voice: &tts.Voice{ID: tts.VoiceNova}}
	if err := sp.Speak(context.Background(), u); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if got := provider.SynthesizeCalls; len(got) != 1 || got[0] != "a bright Gamay" {
		t.Errorf("synthesize calls = %v", got)
	}
	if sinks.count() != 1 {
		t.Errorf("sinks opened = %d, want 1", sinks.count())
	}
}

func TestSpeakerPropagatesSynthesisError(t *testing.T) {
	boom := errors.New("synth down")
	provider := tts.NewMock().WithError(boom)

	sinks := &speakerSinks{}
	sp := NewSpeaker(provider, playback.New(sinks.factory, nil))

	err := sp.Speak(context.Background(), tts.Utterance{Text: "hello"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if sinks.count() != 0 {
		t.Errorf("sink opened despite synthesis failure")
	}
}

func TestSpeakerCancelInterruptsPlayback(t *testing.T) {
	provider := tts.NewMock()
	provider.SynthesizeFunc = func(ctx context.Context, text string) (*tts.AudioResult, error) {
		return pcmResult(24000), nil // one second of audio
	}

	sinks := &speakerSinks{}
	sp := NewSpeaker(provider, playback.New(sinks.factory, nil))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := sp.Speak(ctx, tts.Utterance{Text: "a very long tasting note"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Speak took %v after cancel, want prompt return", elapsed)
	}
}
