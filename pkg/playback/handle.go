package playback

import (
	"context"
	"sync"
	"time"

	"github.com/vinealabs/go-sommelier/pkg/audioio"
)

// Handle controls one playback. All methods are safe to call concurrently
// and after the playback has ended.
type Handle struct {
	manager *Manager
	sink    audioio.Sink
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	volume  float64
	stopped bool

	releaseOnce sync.Once
}

// run writes samples to the sink in real-time-sized chunks, then drains.
// It owns the sink lifecycle: the sink is closed exactly once, whether
// playback ends naturally, errors, or is stopped.
func (h *Handle) run(ctx context.Context, samples []int16, cfg audioio.Config, onEnded func()) {
	natural := h.writeLoop(ctx, samples, cfg)

	if natural {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := h.sink.Flush(flushCtx); err != nil || ctx.Err() != nil {
			natural = false
		}
		cancel()
	}

	h.release()
	close(h.done)

	h.mu.Lock()
	stopped := h.stopped
	h.mu.Unlock()

	if natural && !stopped && onEnded != nil {
		onEnded()
	}
}

// writeLoop paces writes at playback rate so interruption takes effect
// immediately instead of after the whole clip is buffered. Returns true
// when every chunk was written without interruption.
func (h *Handle) writeLoop(ctx context.Context, samples []int16, cfg audioio.Config) bool {
	chunkSamples := cfg.BufferSize()
	if chunkSamples <= 0 {
		chunkSamples = cfg.SampleRate / 10
	}

	for offset := 0; offset < len(samples); offset += chunkSamples {
		end := offset + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		chunk := audioio.AudioChunk{
			Samples:    samples[offset:end],
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		}

		if err := h.sink.Write(ctx, chunk); err != nil {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(chunk.Duration() * float64(time.Second))):
		}
	}
	return true
}

// Stop halts playback immediately and releases the handle. It does not
// fire onEnded. Safe to call multiple times; blocks until the playback
// goroutine has exited.
func (h *Handle) Stop() {
	h.mu.Lock()
	already := h.stopped
	h.stopped = true
	h.mu.Unlock()

	if !already {
		h.cancel()
		h.sink.Clear()
	}
	<-h.done
}

// FadeOut linearly ramps volume to zero over d using fixed 50ms steps,
// then stops and releases. Blocks for the ramp duration.
func (h *Handle) FadeOut(d time.Duration) {
	select {
	case <-h.done:
		return
	default:
	}

	steps := int(d / FadeStepInterval)
	if steps < 1 {
		steps = 1
	}

	h.mu.Lock()
	start := h.volume
	h.mu.Unlock()

	for i := 1; i <= steps; i++ {
		select {
		case <-h.done:
			return
		case <-time.After(FadeStepInterval):
		}
		h.SetVolume(start * float64(steps-i) / float64(steps))
	}
	h.Stop()
}

// SetVolume clamps v to [0,1] and applies it to the output device.
func (h *Handle) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	h.mu.Lock()
	h.volume = v
	h.mu.Unlock()
	h.sink.SetGain(v)
}

// Volume returns the last applied volume.
func (h *Handle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

// Done is closed when the playback goroutine has exited, whatever the
// reason.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// release closes the sink and detaches from the manager exactly once.
func (h *Handle) release() {
	h.releaseOnce.Do(func() {
		h.sink.Stop()
		h.sink.Close()
		h.manager.release(h)
	})
}
