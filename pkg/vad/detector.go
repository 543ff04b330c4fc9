package vad

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vinealabs/go-sommelier/pkg/audioio"
	"github.com/vinealabs/go-sommelier/pkg/events"
)

// Detector consumes an audio chunk stream and classifies each analysis
// window as voice or silence. Voice detection resets all silence tracking
// immediately (voice wins ties). After ConsecutiveSilenceLimit full silence
// windows the detector fires OnRecordingComplete exactly once and stops.
type Detector struct {
	cfg    Config
	bus    events.Bus
	logger *slog.Logger

	// OnVoiceDetected fires on every voice-classified window.
	OnVoiceDetected func()

	// OnRecordingComplete fires exactly once, when the consecutive-silence
	// limit is reached.
	OnRecordingComplete func()

	mu          sync.Mutex
	running     bool
	completed   bool
	voiceActive bool
	stopCh      chan struct{}
	doneCh      chan struct{}

	smoothed  float64
	silentFor time.Duration
	silences  int
}

// New creates a detector. The bus may be nil when no volume visualization
// is wanted.
func New(cfg Config, bus events.Bus, logger *slog.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cfg:    cfg,
		bus:    bus,
		logger: logger.With("component", "vad"),
	}, nil
}

// Start begins consuming the stream in a background goroutine.
// The stream is expected to deliver chunks at the configured poll interval;
// each chunk is one analysis window.
func (d *Detector) Start(ctx context.Context, stream <-chan audioio.AudioChunk) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	d.running = true
	d.completed = false
	d.voiceActive = false
	d.smoothed = 0
	d.silentFor = 0
	d.silences = 0
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})

	go d.loop(ctx, stream)
	return nil
}

func (d *Detector) loop(ctx context.Context, stream <-chan audioio.AudioChunk) {
	defer close(d.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case chunk, ok := <-stream:
			if !ok {
				return
			}
			if d.process(chunk) {
				return
			}
		}
	}
}

// process analyzes one chunk and returns true when detection is finished.
func (d *Detector) process(chunk audioio.AudioChunk) bool {
	window := chunk.Samples
	if len(window) > d.cfg.WindowSize {
		window = window[len(window)-d.cfg.WindowSize:]
	}
	energy := audioio.CalculateRMS(window)

	d.mu.Lock()
	d.smoothed = d.cfg.Smoothing*d.smoothed + (1-d.cfg.Smoothing)*energy
	smoothed := d.smoothed

	if smoothed > d.cfg.VoiceThreshold {
		d.voiceActive = true
		d.silentFor = 0
		d.silences = 0
		onVoice := d.OnVoiceDetected
		d.mu.Unlock()

		if d.bus != nil {
			d.bus.Publish(events.New(events.VoiceVolume, events.VolumePayload{
				Volume:    smoothed,
				Threshold: d.cfg.VoiceThreshold,
			}))
		}
		if onVoice != nil {
			onVoice()
		}
		return false
	}

	if smoothed < d.cfg.SilenceThreshold {
		d.voiceActive = false
	}

	dur := time.Duration(chunk.Duration() * float64(time.Second))
	if dur == 0 {
		dur = d.cfg.PollInterval
	}
	d.silentFor += dur
	if d.silentFor >= d.cfg.SilenceDuration {
		d.silentFor = 0
		d.silences++
		d.logger.Debug("silence window elapsed", "count", d.silences, "limit", d.cfg.ConsecutiveSilenceLimit)
	}

	if d.silences >= d.cfg.ConsecutiveSilenceLimit && !d.completed {
		d.completed = true
		d.running = false
		onComplete := d.OnRecordingComplete
		d.mu.Unlock()

		if onComplete != nil {
			onComplete()
		}
		return true
	}

	d.mu.Unlock()
	return false
}

// VoiceActive reports whether the most recent windows were classified as
// voice. Clears only after energy drops below the silence threshold.
func (d *Detector) VoiceActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voiceActive
}

// Energy returns the current smoothed energy estimate.
func (d *Detector) Energy() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.smoothed
}

// Stop halts detection and waits for the analysis loop to exit. Idempotent.
func (d *Detector) Stop() {
	d.mu.Lock()
	if d.stopCh == nil {
		d.mu.Unlock()
		return
	}
	if d.running {
		d.running = false
		close(d.stopCh)
	}
	done := d.doneCh
	d.mu.Unlock()

	if done != nil {
		<-done
	}
}
