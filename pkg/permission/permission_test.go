package permission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vinealabs/go-sommelier/pkg/clientstate"
)

func TestNewGateRequiresPrompter(t *testing.T) {
	if _, err := NewGate(clientstate.NewMemoryStore(), nil, nil); !errors.Is(err, ErrNoPrompter) {
		t.Errorf("expected ErrNoPrompter, got %v", err)
	}
}

func TestRequestPermissionPersists(t *testing.T) {
	store := clientstate.NewMemoryStore()
	prompter := &MockPrompter{PromptGranted: true}

	gate, err := NewGate(store, prompter, nil)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	if !gate.RequestPermission(context.Background()) {
		t.Fatal("expected permission granted")
	}
	if !gate.ShouldSkipPrompt() {
		t.Error("expected granted record to allow skipping the prompt")
	}
	if prompter.PromptCount() != 1 {
		t.Errorf("expected 1 prompt, got %d", prompter.PromptCount())
	}
}

func TestCheckPermissionPrefersQuery(t *testing.T) {
	store := clientstate.NewMemoryStore()
	prompter := &MockPrompter{QueryGranted: true, QueryOK: true}

	gate, err := NewGate(store, prompter, nil)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	if !gate.CheckPermission(context.Background()) {
		t.Fatal("expected permission granted via query")
	}
	if prompter.PromptCount() != 0 {
		t.Errorf("query answered; expected no prompts, got %d", prompter.PromptCount())
	}
}

func TestCheckPermissionPlatformFailure(t *testing.T) {
	store := clientstate.NewMemoryStore()
	prompter := &MockPrompter{PromptErr: errors.New("device busy")}

	gate, err := NewGate(store, prompter, nil)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	// A platform failure is "not granted", never an error.
	if gate.CheckPermission(context.Background()) {
		t.Error("expected not granted on platform failure")
	}
	if gate.ShouldSkipPrompt() {
		t.Error("denied record must not allow skipping the prompt")
	}
}

func TestShouldSkipPromptExpiry(t *testing.T) {
	store := clientstate.NewMemoryStore()
	prompter := &MockPrompter{PromptGranted: true}

	gate, err := NewGate(store, prompter, nil)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	now := time.Now()
	gate.now = func() time.Time { return now }
	gate.RequestPermission(context.Background())

	// Advance past the expiry; the stale grant must be treated as absent
	// and purged.
	gate.now = func() time.Time { return now.Add(Expiry + time.Hour) }
	if gate.ShouldSkipPrompt() {
		t.Error("expired grant must not allow skipping the prompt")
	}
	if _, err := store.Get(clientstate.KeyMicPermission); !errors.Is(err, clientstate.ErrNotFound) {
		t.Errorf("expected expired record purged, got %v", err)
	}
}

func TestShouldSkipPromptWithinExpiry(t *testing.T) {
	store := clientstate.NewMemoryStore()
	prompter := &MockPrompter{PromptGranted: true}

	gate, err := NewGate(store, prompter, nil)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	now := time.Now()
	gate.now = func() time.Time { return now }
	gate.RequestPermission(context.Background())

	// A second visit a week later still skips the prompt.
	gate.now = func() time.Time { return now.Add(7 * 24 * time.Hour) }
	if !gate.ShouldSkipPrompt() {
		t.Error("recent grant should allow skipping the prompt")
	}
}

func TestShouldSkipPromptCorruptRecord(t *testing.T) {
	store := clientstate.NewMemoryStore()
	if err := store.Set(clientstate.KeyMicPermission, []byte("not json")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	gate, err := NewGate(store, &MockPrompter{}, nil)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	if gate.ShouldSkipPrompt() {
		t.Error("corrupt record must not allow skipping the prompt")
	}
}

func TestSkipPromptFlag(t *testing.T) {
	store := clientstate.NewMemoryStore()
	gate, err := NewGate(store, &MockPrompter{}, nil)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	if gate.ShouldSkipPrompt() {
		t.Fatal("fresh gate must not skip the prompt")
	}

	gate.SetSkipPrompt(true)
	if !gate.ShouldSkipPrompt() {
		t.Error("skip flag set, prompt should be skipped")
	}
	if _, err := store.Get(clientstate.KeySkipPrompt); err != nil {
		t.Errorf("skip flag not persisted: %v", err)
	}

	gate.SetSkipPrompt(false)
	if gate.ShouldSkipPrompt() {
		t.Error("cleared skip flag must not skip the prompt")
	}
}
