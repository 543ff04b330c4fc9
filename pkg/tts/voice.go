package tts

import (
	"strings"
	"sync"
)

// Voice describes a single synthesis voice as reported by a backend.
type Voice struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// VoiceLister exposes the set of voices a backend offers. Some backends
// populate their list asynchronously, so a lister may legitimately return
// an empty slice at first and notify later.
type VoiceLister interface {
	// Voices returns the currently known voices. May be empty while the
	// backend is still loading.
	Voices() []Voice

	// OnVoicesChanged registers a callback invoked whenever the voice
	// list changes. Returns a function that removes the callback.
	OnVoicesChanged(fn func()) func()
}

// StaticVoices is a VoiceLister over a fixed list. The list can be swapped
// at runtime, which fires change notifications; tests and backends with a
// known catalog use this.
type StaticVoices struct {
	mu        sync.Mutex
	voices    []Voice
	listeners map[int]func()
	nextID    int
}

// NewStaticVoices creates a lister over the given voices.
func NewStaticVoices(voices ...Voice) *StaticVoices {
	return &StaticVoices{
		voices:    voices,
		listeners: make(map[int]func()),
	}
}

// Voices returns a copy of the current voice list.
func (s *StaticVoices) Voices() []Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Voice, len(s.voices))
	copy(out, s.voices)
	return out
}

// SetVoices replaces the list and notifies listeners.
func (s *StaticVoices) SetVoices(voices []Voice) {
	s.mu.Lock()
	s.voices = make([]Voice, len(voices))
	copy(s.voices, voices)
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// OnVoicesChanged registers a change callback.
func (s *StaticVoices) OnVoicesChanged(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// OpenAIVoices returns the fixed OpenAI voice catalog as a lister.
func OpenAIVoices() *StaticVoices {
	return NewStaticVoices(
		Voice{ID: VoiceAlloy, Name: "Alloy", Lang: "en-US"},
		Voice{ID: VoiceEcho, Name: "Echo", Lang: "en-US"},
		Voice{ID: VoiceFable, Name: "Fable", Lang: "en-GB"},
		Voice{ID: VoiceOnyx, Name: "Onyx", Lang: "en-US"},
		Voice{ID: VoiceNova, Name: "Nova", Lang: "en-US", Default: true},
		Voice{ID: VoiceShimmer, Name: "Shimmer", Lang: "en-US"},
	)
}

// englishLang reports whether a BCP-47 tag is an English variant.
func englishLang(lang string) bool {
	return strings.HasPrefix(strings.ToLower(lang), "en")
}
