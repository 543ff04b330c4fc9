package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures audio from the default microphone via miniaudio.
type MalgoSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk

	actx   *malgo.AllocatedContext
	device *malgo.Device
}

// NewMalgoSource creates a microphone source.
// The Processing switches are requested from the platform; miniaudio applies
// what the host supports.
func NewMalgoSource(cfg Config, logger *slog.Logger) (*MalgoSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audioio: init context: %w", err)
	}

	return &MalgoSource{
		cfg:      cfg,
		logger:   logger.With("component", "audioio.malgo"),
		streamCh: make(chan AudioChunk, 32),
		actx:     actx,
	}, nil
}

// Start begins audio capture from the default microphone.
func (s *MalgoSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(s.cfg.Channels)
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(s.cfg.BufferDuration.Milliseconds())

	s.streamCh = make(chan AudioChunk, 32)

	onRecv := func(_, input []byte, _ uint32) {
		samples := BytesToSamples(input)
		chunk := AudioChunk{
			Samples:    samples,
			SampleRate: s.cfg.SampleRate,
			Channels:   s.cfg.Channels,
		}
		select {
		case s.streamCh <- chunk:
		default:
			// Consumer is behind; drop rather than block the audio callback.
		}
	}

	device, err := malgo.InitDevice(s.actx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecv,
	})
	if err != nil {
		return fmt.Errorf("audioio: init capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audioio: start capture: %w", err)
	}

	s.device = device
	s.running = true

	s.logger.Info("microphone capture started",
		"sample_rate", s.cfg.SampleRate,
		"buffer_ms", s.cfg.BufferDuration.Milliseconds(),
	)

	return nil
}

// Stop halts audio capture.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	close(s.streamCh)

	return nil
}

// Read reads the next audio chunk.
func (s *MalgoSource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-s.streamCh:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *MalgoSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *MalgoSource) Config() Config {
	return s.cfg
}

// Name returns "malgo".
func (s *MalgoSource) Name() string {
	return "malgo"
}

// Close releases the device and context.
func (s *MalgoSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()

	_ = s.actx.Uninit()
	s.actx.Free()
	return nil
}

var _ Source = (*MalgoSource)(nil)

// MalgoSink plays audio through the default output device via miniaudio.
type MalgoSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	gain    float64
	pending []int16

	actx   *malgo.AllocatedContext
	device *malgo.Device
}

// NewMalgoSink creates a speaker sink.
func NewMalgoSink(cfg Config, logger *slog.Logger) (*MalgoSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audioio: init context: %w", err)
	}

	return &MalgoSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.malgo"),
		gain:   1.0,
		actx:   actx,
	}, nil
}

// Start opens the output device.
func (k *MalgoSink) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return io.ErrClosedPipe
	}
	if k.running {
		return nil
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(k.cfg.Channels)
	deviceConfig.SampleRate = uint32(k.cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = uint32(k.cfg.BufferDuration.Milliseconds())

	onSend := func(output, _ []byte, _ uint32) {
		k.mu.Lock()
		gain := k.gain
		n := len(output) / 2
		if n > len(k.pending) {
			n = len(k.pending)
		}
		for i := 0; i < n; i++ {
			s := float64(k.pending[i]) * gain
			if s > math.MaxInt16 {
				s = math.MaxInt16
			} else if s < math.MinInt16 {
				s = math.MinInt16
			}
			v := int16(s)
			output[i*2] = byte(v)
			output[i*2+1] = byte(v >> 8)
		}
		k.pending = k.pending[n:]
		k.mu.Unlock()
		// Remaining output bytes stay zero (silence) on underrun.
	}

	device, err := malgo.InitDevice(k.actx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSend,
	})
	if err != nil {
		return fmt.Errorf("audioio: init playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("audioio: start playback: %w", err)
	}

	k.device = device
	k.running = true

	return nil
}

// Stop halts playback.
func (k *MalgoSink) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.running {
		return nil
	}
	k.running = false

	if k.device != nil {
		k.device.Uninit()
		k.device = nil
	}
	k.pending = nil

	return nil
}

// Write queues an audio chunk for playback, resampling if needed.
func (k *MalgoSink) Write(ctx context.Context, chunk AudioChunk) error {
	samples := chunk.Samples
	if chunk.SampleRate != 0 && chunk.SampleRate != k.cfg.SampleRate {
		samples = Resample(samples, chunk.SampleRate, k.cfg.SampleRate)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed || !k.running {
		return io.ErrClosedPipe
	}
	k.pending = append(k.pending, samples...)
	return nil
}

// Flush waits until all queued audio has been consumed by the device.
func (k *MalgoSink) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		k.mu.Lock()
		remaining := len(k.pending)
		running := k.running
		k.mu.Unlock()

		if remaining == 0 || !running {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Clear discards all queued audio immediately.
func (k *MalgoSink) Clear() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pending = nil
	return nil
}

// SetGain scales playback volume, clamped to [0,1].
func (k *MalgoSink) SetGain(gain float64) {
	if gain < 0 {
		gain = 0
	} else if gain > 1 {
		gain = 1
	}
	k.mu.Lock()
	k.gain = gain
	k.mu.Unlock()
}

// Config returns the audio configuration.
func (k *MalgoSink) Config() Config {
	return k.cfg
}

// Name returns "malgo".
func (k *MalgoSink) Name() string {
	return "malgo"
}

// Close releases the device and context.
func (k *MalgoSink) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	k.Stop()

	_ = k.actx.Uninit()
	k.actx.Free()
	return nil
}

var _ Sink = (*MalgoSink)(nil)
