package recorder

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/vinealabs/go-sommelier/pkg/audioio"
	"github.com/vinealabs/go-sommelier/pkg/clientstate"
	"github.com/vinealabs/go-sommelier/pkg/permission"
	"github.com/vinealabs/go-sommelier/pkg/vad"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Audio.Backend = audioio.BackendMock
	cfg.Audio.BufferDuration = 20 * time.Millisecond
	cfg.VAD = vad.Config{
		VoiceThreshold:          0.01,
		SilenceThreshold:        0.001,
		SilenceDuration:         40 * time.Millisecond,
		ConsecutiveSilenceLimit: 2,
		PollInterval:            20 * time.Millisecond,
		Smoothing:               0,
		WindowSize:              256,
	}
	return cfg
}

// utteranceScript is two voiced chunks followed by enough silence to
// trip the consecutive-silence limit.
func utteranceScript(cfg audioio.Config) []audioio.AudioChunk {
	makeChunk := func(amplitude int16) audioio.AudioChunk {
		samples := make([]int16, cfg.BufferSize())
		for i := range samples {
			samples[i] = amplitude
		}
		return audioio.AudioChunk{Samples: samples, SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	}

	script := []audioio.AudioChunk{makeChunk(16000), makeChunk(16000)}
	for i := 0; i < 6; i++ {
		script = append(script, makeChunk(0))
	}
	return script
}

func scriptedFactory(script []audioio.AudioChunk) SourceFactory {
	return func(cfg audioio.Config, logger *slog.Logger) (audioio.Source, error) {
		return audioio.NewMockSource(cfg, logger, audioio.WithScript(script)), nil
	}
}

func TestRecordingCompletesOnSilence(t *testing.T) {
	cfg := testConfig()

	rec, err := New(cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	rec.SetSourceFactory(scriptedFactory(utteranceScript(cfg.Audio)))

	type result struct {
		blob []byte
		mime string
	}
	stopCh := make(chan result, 4)
	rec.OnRecordingStop = func(blob []byte, mime string) {
		stopCh <- result{blob, mime}
	}
	rec.OnRecordingError = func(err error) {
		t.Errorf("unexpected recording error: %v", err)
	}

	if err := rec.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	var got result
	select {
	case got = <-stopCh:
	case <-time.After(3 * time.Second):
		t.Fatal("OnRecordingStop never fired")
	}

	if got.mime != audioio.WAVMimeType {
		t.Errorf("expected mime %q, got %q", audioio.WAVMimeType, got.mime)
	}
	samples, rate, err := audioio.DecodeWAV(got.blob)
	if err != nil {
		t.Fatalf("blob is not valid WAV: %v", err)
	}
	if rate != cfg.Audio.SampleRate {
		t.Errorf("expected sample rate %d, got %d", cfg.Audio.SampleRate, rate)
	}
	if len(samples) == 0 {
		t.Error("expected captured samples in blob")
	}

	select {
	case <-stopCh:
		t.Fatal("OnRecordingStop fired more than once")
	case <-time.After(100 * time.Millisecond):
	}

	if rec.IsRecording() {
		t.Error("expected recorder idle after completion")
	}
}

func TestPermissionDeniedAbortsBeforeDevice(t *testing.T) {
	cfg := testConfig()

	gate, err := permission.NewGate(clientstate.NewMemoryStore(), &permission.MockPrompter{PromptGranted: false}, nil)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	rec, err := New(cfg, gate, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	sourcesOpened := 0
	rec.SetSourceFactory(func(c audioio.Config, l *slog.Logger) (audioio.Source, error) {
		sourcesOpened++
		return audioio.NewMockSource(c, l), nil
	})

	callbacks := 0
	rec.OnRecordingError = func(error) { callbacks++ }

	if err := rec.StartRecording(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	// Startup failures report through the return value only; firing the
	// callback too would surface the same failure twice upstream.
	if callbacks != 0 {
		t.Errorf("OnRecordingError fired %d times for a startup failure, want 0", callbacks)
	}

	if sourcesOpened != 0 {
		t.Errorf("device must not be touched on refusal, opened %d sources", sourcesOpened)
	}
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	rec, err := New(testConfig(), nil, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	fired := false
	rec.OnRecordingStop = func([]byte, string) { fired = true }

	rec.StopRecording()
	if fired {
		t.Error("stop when idle must not deliver a blob")
	}
}

func TestStartSupersedesActiveSession(t *testing.T) {
	cfg := testConfig()

	rec, err := New(cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// Continuous sine keeps the session voiced so neither auto-completes.
	rec.SetSourceFactory(func(c audioio.Config, l *slog.Logger) (audioio.Source, error) {
		return audioio.NewMockSource(c, l, audioio.WithSineWave(440, 0.5)), nil
	})

	stops := make(chan []byte, 4)
	rec.OnRecordingStop = func(blob []byte, _ string) { stops <- blob }

	ctx := context.Background()
	if err := rec.StartRecording(ctx); err != nil {
		t.Fatalf("first StartRecording failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	// The second start must tear down the first session silently.
	if err := rec.StartRecording(ctx); err != nil {
		t.Fatalf("second StartRecording failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	rec.StopRecording()

	select {
	case <-stops:
	case <-time.After(2 * time.Second):
		t.Fatal("OnRecordingStop never fired for second session")
	}

	select {
	case <-stops:
		t.Fatal("superseded session must not deliver a blob")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDurationCallback(t *testing.T) {
	cfg := testConfig()

	rec, err := New(cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	rec.SetSourceFactory(func(c audioio.Config, l *slog.Logger) (audioio.Source, error) {
		return audioio.NewMockSource(c, l, audioio.WithSineWave(440, 0.5)), nil
	})

	durations := make(chan time.Duration, 16)
	rec.OnDuration = func(d time.Duration) {
		select {
		case durations <- d:
		default:
		}
	}

	if err := rec.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	defer rec.StopRecording()

	select {
	case d := <-durations:
		if d <= 0 {
			t.Errorf("expected positive elapsed duration, got %v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnDuration never fired")
	}
}
