// Package clientstate persists small per-install client records: the
// microphone permission cache, the locked synthesis voice, and the
// skip-prompt flag. Values are JSON blobs under fixed keys.
package clientstate

import "errors"

// Persisted state keys. These names are a compatibility contract with
// existing clients and must not change.
const (
	KeyMicPermission = "mic_permission"
	KeyLockedVoice   = "selected_voice"
	KeySkipPrompt    = "skip_mic_prompt"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("clientstate: key not found")

// Store defines the interface for client-state persistence backends.
// Implementations can store to BadgerDB, memory, etc.
type Store interface {
	// Get retrieves the value stored under key.
	// Returns ErrNotFound when the key is absent.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes the value under key. Deleting an absent key is a no-op.
	Delete(key string) error

	// Close releases any resources held by the store.
	Close() error
}
