package tts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vinealabs/go-sommelier/pkg/clientstate"
)

// Voice-list retry policy. Some backends populate their catalog
// asynchronously, so the first enumeration can come back empty.
const (
	voicePollAttempts = 10
	voicePollInterval = 200 * time.Millisecond
)

// Utterance is one unit of spoken output.
type Utterance struct {
	Text  string
	Voice *Voice // nil speaks with the backend default
	Rate  float64
	Pitch float64
}

// Speaker renders a single utterance, blocking until playback finishes
// or ctx is canceled.
type Speaker interface {
	Speak(ctx context.Context, u Utterance) error
}

// lockedVoiceRecord is the persisted shape under clientstate.KeyLockedVoice.
type lockedVoiceRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Manager selects and locks one synthesis voice for the session and
// exposes a speak/cancel API over it. The lock is persisted so the same
// voice narrates across restarts even if the backend reorders its list.
type Manager struct {
	speaker Speaker
	voices  VoiceLister
	store   clientstate.Store
	logger  *slog.Logger

	mu       sync.Mutex
	locked   *Voice
	resolved bool // selection ran, even if it found nothing
	degraded bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
}

// NewManager creates a voice-locking manager. The speaker and voice
// lister are required capabilities; store may be nil to disable
// persistence.
func NewManager(speaker Speaker, voices VoiceLister, store clientstate.Store, logger *slog.Logger) (*Manager, error) {
	if speaker == nil {
		return nil, errors.New("tts: speaker required")
	}
	if voices == nil {
		return nil, errors.New("tts: voice lister required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		speaker: speaker,
		voices:  voices,
		store:   store,
		logger:  logger.With("component", "tts.manager"),
	}, nil
}

// LockedVoice returns the currently locked voice, or nil when running
// degraded with no voice resolved.
func (m *Manager) LockedVoice() *Voice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked == nil {
		return nil
	}
	v := *m.locked
	return &v
}

// Speak cancels any in-flight utterance and speaks text with the locked
// voice at fixed rate and pitch. onEnd fires when playback completes,
// onError when synthesis or playback fails; neither fires after Cancel.
// Either callback may be nil.
func (m *Manager) Speak(ctx context.Context, text string, onEnd func(), onError func(error)) {
	m.Cancel()

	voice := m.ensureVoice(ctx)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.doneCh = done
	m.mu.Unlock()

	go func() {
		defer close(done)

		err := m.speaker.Speak(ctx, Utterance{
			Text:  text,
			Voice: voice,
			Rate:  1.0,
			Pitch: 1.0,
		})

		m.mu.Lock()
		current := m.doneCh == done
		if current {
			m.cancel = nil
			m.doneCh = nil
		}
		m.mu.Unlock()

		// A canceled utterance was superseded or stopped; its
		// callbacks are stale and must not fire.
		if !current || ctx.Err() != nil {
			return
		}

		if err != nil {
			m.logger.Error("utterance failed", "error", err)
			if onError != nil {
				onError(err)
			}
			return
		}
		if onEnd != nil {
			onEnd()
		}
	}()
}

// Cancel stops the in-flight utterance immediately. Safe to call when
// nothing is speaking.
func (m *Manager) Cancel() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.doneCh
	m.cancel = nil
	m.doneCh = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// ensureVoice resolves and locks the session voice on first use.
// Selection never fails hard: with no voices at all the manager runs
// degraded and speaks with the backend default.
func (m *Manager) ensureVoice(ctx context.Context) *Voice {
	m.mu.Lock()
	if m.resolved {
		v := m.locked
		m.mu.Unlock()
		return v
	}
	m.mu.Unlock()

	list := m.awaitVoices(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolved {
		return m.locked
	}
	m.resolved = true

	if len(list) == 0 {
		m.degraded = true
		m.logger.Warn("no synthesis voices available, speaking with backend default")
		return nil
	}

	selected := m.selectVoice(list)
	m.locked = &selected
	m.persist(selected)
	m.logger.Info("voice locked", "id", selected.ID, "name", selected.Name)
	return m.locked
}

// awaitVoices enumerates the voice list, retrying on change notification
// and by bounded re-polling while it stays empty.
func (m *Manager) awaitVoices(ctx context.Context) []Voice {
	if list := m.voices.Voices(); len(list) > 0 {
		return list
	}

	changed := make(chan struct{}, 1)
	unsubscribe := m.voices.OnVoicesChanged(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for attempt := 0; attempt < voicePollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		case <-time.After(voicePollInterval):
		}
		if list := m.voices.Voices(); len(list) > 0 {
			return list
		}
	}
	return nil
}

// selectVoice applies the deterministic priority order. First match wins.
func (m *Manager) selectVoice(list []Voice) Voice {
	if persisted := m.loadPersisted(); persisted != nil {
		for _, v := range list {
			if v.ID == persisted.ID {
				return v
			}
		}
	}

	for _, v := range list {
		if v.Name == "Google UK English Male" {
			return v
		}
	}
	for _, v := range list {
		if v.Name == "Google US English Male" {
			return v
		}
	}
	for _, v := range list {
		if strings.Contains(v.Name, "Google") && strings.Contains(v.Name, "Male") && englishLang(v.Lang) {
			return v
		}
	}
	for _, v := range list {
		if strings.Contains(v.Name, "Male") && englishLang(v.Lang) {
			return v
		}
	}
	for _, v := range list {
		if englishLang(v.Lang) && !strings.Contains(strings.ToLower(v.Name), "female") {
			return v
		}
	}
	return list[0]
}

func (m *Manager) loadPersisted() *lockedVoiceRecord {
	if m.store == nil {
		return nil
	}
	data, err := m.store.Get(clientstate.KeyLockedVoice)
	if err != nil {
		return nil
	}
	var rec lockedVoiceRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.ID == "" {
		// Corrupt record, drop it so the next selection starts clean.
		m.store.Delete(clientstate.KeyLockedVoice)
		return nil
	}
	return &rec
}

func (m *Manager) persist(v Voice) {
	if m.store == nil {
		return
	}
	data, err := json.Marshal(lockedVoiceRecord{ID: v.ID, Name: v.Name})
	if err != nil {
		return
	}
	if err := m.store.Set(clientstate.KeyLockedVoice, data); err != nil {
		m.logger.Warn("failed to persist voice lock", "error", err)
	}
}
