package clientstate

import (
	"bytes"
	"errors"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	if _, err := store.Get(KeyMicPermission); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	want := []byte(`{"granted":true}`)
	if err := store.Set(KeyMicPermission, want); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(KeyMicPermission)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("expected %s, got %s", want, got)
	}

	if err := store.Delete(KeyMicPermission); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(KeyMicPermission); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	store, err := OpenBadger(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer store.Close()

	want := []byte(`{"id":"en-GB-male-1","name":"Google UK English Male"}`)
	if err := store.Set(KeyLockedVoice, want); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(KeyLockedVoice)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("expected %s, got %s", want, got)
	}

	// Deleting an absent key is a no-op.
	if err := store.Delete(KeySkipPrompt); err != nil {
		t.Errorf("delete absent key: %v", err)
	}
}
