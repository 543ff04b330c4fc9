package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	mu sync.Mutex

	// SynthesizeFunc overrides Synthesize behavior.
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)

	// StreamFunc overrides Stream behavior.
	StreamFunc func(ctx context.Context, text string) (AudioStream, error)

	// HealthFunc overrides Health behavior.
	HealthFunc func(ctx context.Context) error

	// Err, when set, is returned from all calls.
	Err error

	// SynthesizeCalls records the text of each Synthesize invocation.
	SynthesizeCalls []string

	// StreamCalls records the text of each Stream invocation.
	StreamCalls []string
}

// NewMock creates a mock provider that returns placeholder audio.
func NewMock() *Mock {
	return &Mock{}
}

// WithError configures the mock to fail every call.
func (m *Mock) WithError(err error) *Mock {
	m.Err = err
	return m
}

// Synthesize records the call and returns placeholder audio.
func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.SynthesizeCalls = append(m.SynthesizeCalls, text)
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	return &AudioResult{
		Audio:     []byte("mock-audio:" + text),
		Format:    AudioFormat{Encoding: EncodingMP3, SampleRate: 44100, Channels: 1},
		Duration:  time.Duration(len(text)) * 50 * time.Millisecond,
		CharCount: len(text),
	}, nil
}

// Stream records the call and returns the placeholder audio as a stream.
func (m *Mock) Stream(ctx context.Context, text string) (AudioStream, error) {
	m.mu.Lock()
	m.StreamCalls = append(m.StreamCalls, text)
	m.mu.Unlock()

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, text)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	result, err := m.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return &bufferStream{data: result.Audio, format: result.Format}, nil
}

// Health returns the configured error, if any.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return m.Err
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// SpokenUtterance records one MockSpeaker invocation.
type SpokenUtterance struct {
	Text  string
	Voice *Voice
	Rate  float64
	Pitch float64
}

// MockSpeaker implements Speaker for testing the manager.
type MockSpeaker struct {
	mu sync.Mutex

	// Delay simulates playback duration. Zero returns immediately.
	Delay time.Duration

	// Err, when set, is returned from Speak.
	Err error

	spoken   []SpokenUtterance
	canceled int
}

// Speak records the utterance and blocks for Delay or until ctx cancels.
func (s *MockSpeaker) Speak(ctx context.Context, u Utterance) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, SpokenUtterance{
		Text:  u.Text,
		Voice: u.Voice,
		Rate:  u.Rate,
		Pitch: u.Pitch,
	})
	s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.canceled++
			s.mu.Unlock()
			return ctx.Err()
		case <-time.After(s.Delay):
		}
	}
	return nil
}

// Spoken returns the recorded utterances.
func (s *MockSpeaker) Spoken() []SpokenUtterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SpokenUtterance, len(s.spoken))
	copy(out, s.spoken)
	return out
}

// CanceledCount returns how many utterances were cut off mid-playback.
func (s *MockSpeaker) CanceledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}
