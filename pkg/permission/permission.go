// Package permission gates microphone access behind a prompt-and-cache
// policy. Grant decisions are persisted with a timestamp and expire after
// thirty days, after which the user is prompted again.
package permission

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/vinealabs/go-sommelier/pkg/clientstate"
)

// Expiry is how long a persisted grant remains valid.
const Expiry = 30 * 24 * time.Hour

// ErrNoPrompter is returned by NewGate when no prompter capability is
// available. Absence of the capability is a constructor-time failure, not
// something discovered mid-recording.
var ErrNoPrompter = errors.New("permission: no prompter available")

// Record is the persisted outcome of a permission decision.
type Record struct {
	Granted   bool  `json:"granted"`
	Timestamp int64 `json:"timestamp"` // epoch milliseconds
}

// Prompter is the platform capability that can ask the user for microphone
// access. Implementations either query a native permission API or probe the
// device directly.
type Prompter interface {
	// Query returns the current permission status without prompting,
	// if the platform can answer that. ok is false when it cannot.
	Query(ctx context.Context) (granted, ok bool)

	// Prompt explicitly asks the user. An error means the platform call
	// itself failed and is treated as "not granted".
	Prompt(ctx context.Context) (bool, error)
}

// Gate decides whether recording may start without prompting the user.
type Gate struct {
	store    clientstate.Store
	prompter Prompter
	logger   *slog.Logger
	now      func() time.Time
}

// NewGate creates a permission gate. The prompter is required.
func NewGate(store clientstate.Store, prompter Prompter, logger *slog.Logger) (*Gate, error) {
	if prompter == nil {
		return nil, ErrNoPrompter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:    store,
		prompter: prompter,
		logger:   logger.With("component", "permission"),
		now:      time.Now,
	}, nil
}

// CheckPermission queries the platform for the current state, falling back
// to a prompt when the platform cannot answer. The outcome is persisted.
// Platform failures are treated as "not granted", never returned upward.
func (g *Gate) CheckPermission(ctx context.Context) bool {
	if granted, ok := g.prompter.Query(ctx); ok {
		g.persist(granted)
		return granted
	}

	granted, err := g.prompter.Prompt(ctx)
	if err != nil {
		g.logger.Warn("permission probe failed", "error", err)
		g.persist(false)
		return false
	}
	g.persist(granted)
	return granted
}

// RequestPermission explicitly prompts the user and persists the outcome.
func (g *Gate) RequestPermission(ctx context.Context) bool {
	granted, err := g.prompter.Prompt(ctx)
	if err != nil {
		g.logger.Warn("permission prompt failed", "error", err)
		g.persist(false)
		return false
	}
	g.persist(granted)
	return granted
}

// SetSkipPrompt records the user's choice to suppress the microphone
// prompt. The flag survives restarts and wins over the grant cache.
func (g *Gate) SetSkipPrompt(skip bool) {
	if !skip {
		if err := g.store.Delete(clientstate.KeySkipPrompt); err != nil {
			g.logger.Warn("failed to clear skip-prompt flag", "error", err)
		}
		return
	}
	if err := g.store.Set(clientstate.KeySkipPrompt, []byte("true")); err != nil {
		g.logger.Warn("failed to persist skip-prompt flag", "error", err)
	}
}

// ShouldSkipPrompt reports whether prompting can be skipped: either the
// user set the skip flag, or a non-expired granted record exists.
// Expired records are purged on read.
func (g *Gate) ShouldSkipPrompt() bool {
	if g.skipFlag() {
		return true
	}

	rec, ok := g.load()
	if !ok {
		return false
	}

	age := g.now().Sub(time.UnixMilli(rec.Timestamp))
	if age > Expiry {
		if err := g.store.Delete(clientstate.KeyMicPermission); err != nil {
			g.logger.Warn("failed to purge expired permission record", "error", err)
		}
		return false
	}
	return rec.Granted
}

func (g *Gate) skipFlag() bool {
	data, err := g.store.Get(clientstate.KeySkipPrompt)
	if err != nil {
		if !errors.Is(err, clientstate.ErrNotFound) {
			g.logger.Warn("failed to read skip-prompt flag", "error", err)
		}
		return false
	}
	return string(data) == "true"
}

func (g *Gate) persist(granted bool) {
	rec := Record{Granted: granted, Timestamp: g.now().UnixMilli()}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := g.store.Set(clientstate.KeyMicPermission, data); err != nil {
		g.logger.Warn("failed to persist permission record", "error", err)
	}
}

func (g *Gate) load() (Record, bool) {
	data, err := g.store.Get(clientstate.KeyMicPermission)
	if err != nil {
		if !errors.Is(err, clientstate.ErrNotFound) {
			g.logger.Warn("failed to read permission record", "error", err)
		}
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt record is as good as absent.
		_ = g.store.Delete(clientstate.KeyMicPermission)
		return Record{}, false
	}
	return rec, true
}
