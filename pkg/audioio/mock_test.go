package audioio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestMockSourceScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	script := []AudioChunk{
		{Samples: []int16{100, 200}, SampleRate: 16000, Channels: 1},
		{Samples: []int16{300, 400}, SampleRate: 16000, Channels: 1},
	}

	tick := make(chan time.Time)
	src := NewMockSource(cfg, nil, WithScript(script), WithTick(tick))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	go func() {
		for i := 0; i < len(script)+1; i++ {
			select {
			case tick <- time.Now():
			case <-ctx.Done():
				return
			}
		}
	}()

	for i, want := range script {
		chunk, err := src.Read(ctx)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if len(chunk.Samples) != len(want.Samples) {
			t.Fatalf("chunk %d: expected %d samples, got %d", i, len(want.Samples), len(chunk.Samples))
		}
		if chunk.Samples[0] != want.Samples[0] {
			t.Errorf("chunk %d: expected first sample %d, got %d", i, want.Samples[0], chunk.Samples[0])
		}
	}

	// The script is exhausted; the source stops itself.
	if _, err := src.Read(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after script end, got %v", err)
	}
}

func TestMockSourceSineWave(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	cfg.BufferDuration = 10 * time.Millisecond

	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if chunk.RMS() == 0 {
		t.Error("expected non-zero energy from sine wave")
	}
	if chunk.SampleRate != cfg.SampleRate {
		t.Errorf("expected sample rate %d, got %d", cfg.SampleRate, chunk.SampleRate)
	}
}

func TestMockSourceStopIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	src := NewMockSource(cfg, nil)

	if err := src.Stop(); err != nil {
		t.Errorf("Stop before Start should be a no-op, got %v", err)
	}

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

func TestMockSinkRecordsWrites(t *testing.T) {
	cfg := DefaultConfig()
	sink := NewMockSink(cfg, nil)
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk := AudioChunk{Samples: []int16{1, 2, 3}, SampleRate: 16000, Channels: 1}
	if err := sink.Write(ctx, chunk); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	written := sink.Written()
	if len(written) != 1 {
		t.Fatalf("expected 1 written chunk, got %d", len(written))
	}
	if len(written[0].Samples) != 3 {
		t.Errorf("expected 3 samples, got %d", len(written[0].Samples))
	}
}

func TestMockSinkWriteBeforeStart(t *testing.T) {
	cfg := DefaultConfig()
	sink := NewMockSink(cfg, nil)

	chunk := AudioChunk{Samples: []int16{1}, SampleRate: 16000, Channels: 1}
	if err := sink.Write(context.Background(), chunk); err == nil {
		t.Error("expected error writing before Start")
	}
}

func TestMockSinkGain(t *testing.T) {
	cfg := DefaultConfig()
	sink := NewMockSink(cfg, nil)

	sink.SetGain(0.5)
	if g := sink.Gain(); g != 0.5 {
		t.Errorf("expected gain 0.5, got %f", g)
	}
}

func TestFactoryMockBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	src, err := NewSource(cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()
	if src.Name() != "mock" {
		t.Errorf("expected mock backend, got %q", src.Name())
	}

	sink, err := NewSink(cfg, nil)
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}
	defer sink.Close()
	if sink.Name() != "mock" {
		t.Errorf("expected mock backend, got %q", sink.Name())
	}
}

func TestFactoryInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 0

	if _, err := NewSource(cfg, nil); err == nil {
		t.Error("expected error for invalid config")
	}
}
