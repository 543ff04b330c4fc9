// Package playback plays synthesized or service-returned audio through an
// output device, with volume control, fade-out, and strict at-most-one-current
// semantics: starting a new playback stops and releases the previous one.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vinealabs/go-sommelier/internal/httpc"
	"github.com/vinealabs/go-sommelier/pkg/audioio"
)

// FadeStepInterval is the fixed step interval for fade-out ramps.
const FadeStepInterval = 50 * time.Millisecond

// Sentinel errors.
var (
	ErrEmptySource = errors.New("playback: source has no data or URL")
	ErrNoAudio     = errors.New("playback: decoded audio is empty")
)

// Source is one playable input: raw audio bytes or a URL to fetch them from.
type Source struct {
	Data []byte
	URL  string
	MIME string // content-type hint, used when the bytes are ambiguous
}

// SinkFactory opens an output device for the given configuration.
type SinkFactory func(cfg audioio.Config, logger *slog.Logger) (audioio.Sink, error)

// Manager owns the playback slot. It tracks every handle it creates so
// StopAll can silence everything, and enforces that at most one handle is
// current at a time.
type Manager struct {
	newSink SinkFactory
	client  *http.Client
	logger  *slog.Logger

	mu      sync.Mutex
	current *Handle
	handles map[*Handle]struct{}
}

// New creates a playback manager. A nil factory uses the platform default
// output device.
func New(factory SinkFactory, logger *slog.Logger) *Manager {
	if factory == nil {
		factory = func(cfg audioio.Config, logger *slog.Logger) (audioio.Sink, error) {
			return audioio.NewSink(cfg, logger)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		newSink: factory,
		client:  httpc.NewClient(httpc.DefaultTimeout),
		logger:  logger.With("component", "playback"),
	}
}

// Play stops any current playback, then starts playing src. onEnded fires
// exactly once when playback reaches its natural end; it does not fire on
// Stop, StopAll, or error. The returned handle controls this playback only.
func (m *Manager) Play(ctx context.Context, src Source, onEnded func()) (*Handle, error) {
	samples, cfg, err := m.resolve(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrNoAudio
	}

	// At-most-one-current: tear down the previous playback fully before
	// the new sink opens the device.
	m.mu.Lock()
	prev := m.current
	m.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	sink, err := m.newSink(cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("playback: open sink: %w", err)
	}
	if err := sink.Start(ctx); err != nil {
		sink.Close()
		return nil, fmt.Errorf("playback: start sink: %w", err)
	}

	playCtx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		manager: m,
		sink:    sink,
		cancel:  cancel,
		done:    make(chan struct{}),
		volume:  1.0,
	}

	m.mu.Lock()
	m.current = h
	if m.handles == nil {
		m.handles = make(map[*Handle]struct{})
	}
	m.handles[h] = struct{}{}
	m.mu.Unlock()

	go h.run(playCtx, samples, cfg, onEnded)
	return h, nil
}

// Current returns the active handle, or nil when idle.
func (m *Manager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetVolume applies a clamped [0,1] volume to the active playback, if any.
func (m *Manager) SetVolume(v float64) {
	m.mu.Lock()
	h := m.current
	m.mu.Unlock()
	if h != nil {
		h.SetVolume(v)
	}
}

// StopAll silences every tracked handle, including ones already superseded
// but not yet fully drained.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := make([]*Handle, 0, len(m.handles))
	for h := range m.handles {
		all = append(all, h)
	}
	m.mu.Unlock()

	for _, h := range all {
		h.Stop()
	}
}

// resolve turns a Source into mono PCM samples and a device configuration.
func (m *Manager) resolve(ctx context.Context, src Source) ([]int16, audioio.Config, error) {
	data := src.Data
	mime := src.MIME

	if len(data) == 0 {
		if src.URL == "" {
			return nil, audioio.Config{}, ErrEmptySource
		}
		fetched, fetchedMIME, err := m.fetch(ctx, src.URL)
		if err != nil {
			return nil, audioio.Config{}, err
		}
		data = fetched
		if mime == "" {
			mime = fetchedMIME
		}
	}

	return decode(data, mime)
}

func (m *Manager) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("playback: create request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("playback: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("playback: fetch %s: HTTP %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("playback: read body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// release removes h from the manager's tracking. Called exactly once per
// handle, from Handle.release.
func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, h)
	if m.current == h {
		m.current = nil
	}
}
