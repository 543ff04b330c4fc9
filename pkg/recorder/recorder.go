// Package recorder turns microphone capture and voice-activity detection
// into a start/stop recording session that yields one finalized WAV blob.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vinealabs/go-sommelier/pkg/audioio"
	"github.com/vinealabs/go-sommelier/pkg/events"
	"github.com/vinealabs/go-sommelier/pkg/permission"
	"github.com/vinealabs/go-sommelier/pkg/vad"
)

// DurationResolution is the interval at which elapsed time is published.
const DurationResolution = 100 * time.Millisecond

var (
	// ErrPermissionDenied indicates the user refused microphone access.
	ErrPermissionDenied = errors.New("recorder: microphone permission denied")

	// ErrDevice indicates the capture device could not be opened or failed
	// mid-session.
	ErrDevice = errors.New("recorder: audio device failure")

	// ErrNoAudio indicates the session ended without capturing any samples.
	ErrNoAudio = errors.New("recorder: no audio captured")
)

// SourceFactory opens an audio source. Injected so tests can substitute a
// scripted source.
type SourceFactory func(cfg audioio.Config, logger *slog.Logger) (audioio.Source, error)

// Config holds recorder configuration.
type Config struct {
	Audio audioio.Config
	VAD   vad.Config
}

// DefaultConfig returns recording defaults: 16kHz mono capture with the
// standard voice-activity tuning.
func DefaultConfig() Config {
	return Config{
		Audio: audioio.DefaultConfig(),
		VAD:   vad.DefaultConfig(),
	}
}

// Recorder owns at most one active recording session. Starting a new
// session while one is active stops and cleans up the prior one first.
type Recorder struct {
	cfg     Config
	gate    *permission.Gate
	bus     events.Bus
	logger  *slog.Logger
	sources SourceFactory

	// OnRecordingStop receives the finalized WAV blob.
	OnRecordingStop func(blob []byte, mimeType string)

	// OnRecordingError receives capture-layer failures. Errors never
	// escape StartRecording as return values once the session is running.
	OnRecordingError func(error)

	// OnDuration receives elapsed recording time at DurationResolution.
	OnDuration func(elapsed time.Duration)

	mu      sync.Mutex
	session *session
}

type session struct {
	source   audioio.Source
	detector *vad.Detector
	cancel   context.CancelFunc
	doneCh   chan struct{}

	mu      sync.Mutex
	samples []int16
	stopped bool
}

// New creates a recorder. The permission gate is consulted before every
// session; the bus (optional) carries volume-visualization events.
func New(cfg Config, gate *permission.Gate, bus events.Bus, logger *slog.Logger) (*Recorder, error) {
	if err := cfg.Audio.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.VAD.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:    cfg,
		gate:   gate,
		bus:    bus,
		logger: logger.With("component", "recorder"),
		sources: func(c audioio.Config, l *slog.Logger) (audioio.Source, error) {
			return audioio.NewSource(c, l)
		},
	}, nil
}

// SetSourceFactory overrides how capture sources are opened.
func (r *Recorder) SetSourceFactory(f SourceFactory) {
	r.sources = f
}

// IsRecording reports whether a session is active.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// StartRecording begins a new session. If one is already active it is
// stopped and cleaned up first. Permission is consulted before the device
// is touched; refusal returns ErrPermissionDenied. Startup failures are
// reported only through the return value; OnRecordingError carries
// failures that happen after the session is running.
func (r *Recorder) StartRecording(ctx context.Context) error {
	r.mu.Lock()
	prior := r.session
	r.session = nil
	r.mu.Unlock()
	if prior != nil {
		r.finalize(prior, false)
	}

	if r.gate != nil && !r.gate.ShouldSkipPrompt() {
		if !r.gate.RequestPermission(ctx) {
			return ErrPermissionDenied
		}
	}

	source, err := r.sources(r.cfg.Audio, r.logger)
	if err != nil {
		return errors.Join(ErrDevice, err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	if err := source.Start(sessCtx); err != nil {
		cancel()
		source.Close()
		return errors.Join(ErrDevice, err)
	}

	detector, err := vad.New(r.cfg.VAD, r.bus, r.logger)
	if err != nil {
		cancel()
		source.Close()
		return err
	}

	sess := &session{
		source:   source,
		detector: detector,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
	}
	detector.OnRecordingComplete = func() {
		// End-of-utterance finalizes the session with the blob delivered.
		go r.stopSession(sess, true)
	}

	detectorStream := make(chan audioio.AudioChunk, 16)
	if err := detector.Start(sessCtx, detectorStream); err != nil {
		cancel()
		source.Close()
		return err
	}

	r.mu.Lock()
	r.session = sess
	r.mu.Unlock()

	go r.captureLoop(sessCtx, sess, detectorStream)
	go r.durationLoop(sessCtx, sess)

	r.logger.Info("recording started", "backend", source.Name())
	return nil
}

// captureLoop accumulates chunks in arrival order and tees them to the
// voice-activity detector.
func (r *Recorder) captureLoop(ctx context.Context, sess *session, detectorStream chan<- audioio.AudioChunk) {
	defer close(sess.doneCh)
	defer close(detectorStream)

	for {
		chunk, err := sess.source.Read(ctx)
		if err != nil {
			return
		}

		sess.mu.Lock()
		sess.samples = append(sess.samples, chunk.Samples...)
		sess.mu.Unlock()

		select {
		case detectorStream <- chunk:
		default:
			// Detection lagging is tolerable; accumulation is not.
		}
	}
}

func (r *Recorder) durationLoop(ctx context.Context, sess *session) {
	start := time.Now()
	ticker := time.NewTicker(DurationResolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.doneCh:
			return
		case <-ticker.C:
			if r.OnDuration != nil {
				r.OnDuration(time.Since(start))
			}
		}
	}
}

// StopRecording finalizes the active session and delivers the blob via
// OnRecordingStop. Calling it with no active session is a no-op.
func (r *Recorder) StopRecording() {
	r.mu.Lock()
	sess := r.session
	r.session = nil
	r.mu.Unlock()

	if sess == nil {
		return
	}
	r.finalize(sess, true)
}

func (r *Recorder) stopSession(sess *session, deliver bool) {
	r.mu.Lock()
	if r.session != sess {
		// Superseded; the session was already finalized.
		r.mu.Unlock()
		return
	}
	r.session = nil
	r.mu.Unlock()

	r.finalize(sess, deliver)
}

// finalize tears down a session. Cleanup runs unconditionally, including
// on error paths; the blob callback fires only when deliver is set and
// audio was captured.
func (r *Recorder) finalize(sess *session, deliver bool) {
	sess.mu.Lock()
	if sess.stopped {
		sess.mu.Unlock()
		return
	}
	sess.stopped = true
	sess.mu.Unlock()

	defer func() {
		sess.cancel()
		sess.detector.Stop()
		if err := sess.source.Close(); err != nil {
			r.logger.Warn("failed to close audio source", "error", err)
		}
		sess.mu.Lock()
		sess.samples = nil
		sess.mu.Unlock()
	}()

	sess.source.Stop()
	<-sess.doneCh

	if !deliver {
		return
	}

	sess.mu.Lock()
	samples := sess.samples
	sess.mu.Unlock()

	if len(samples) == 0 {
		r.fireError(ErrNoAudio)
		return
	}

	blob, err := audioio.EncodeWAV(samples, r.cfg.Audio.SampleRate)
	if err != nil {
		r.fireError(err)
		return
	}

	r.logger.Info("recording finished",
		"samples", len(samples),
		"bytes", len(blob),
	)

	if r.OnRecordingStop != nil {
		r.OnRecordingStop(blob, audioio.WAVMimeType)
	}
}

func (r *Recorder) fireError(err error) {
	r.logger.Warn("recording error", "error", err)
	if r.OnRecordingError != nil {
		r.OnRecordingError(err)
	}
}
