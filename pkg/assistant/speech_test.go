package assistant

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/vinealabs/go-sommelier/pkg/clientstate"
	"github.com/vinealabs/go-sommelier/pkg/tts"
)

func newQueueManager(t *testing.T) (*tts.Manager, *tts.MockSpeaker) {
	t.Helper()
	speaker := &tts.MockSpeaker{}
	m, err := tts.NewManager(speaker, tts.NewStaticVoices(
		tts.Voice{ID: "uk", Name: "Google UK English Male", Lang: "en-GB"},
	), clientstate.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, speaker
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in       string
		want     []string
		wantRest string
	}{
		{"", nil, ""},
		{"Hello", nil, "Hello"},
		{"Hello. World", []string{"Hello."}, " World"},
		{"One. Two! Three? rest", []string{"One.", "Two!", "Three?"}, " rest"},
		// A terminator at the buffer's end stays pending until more
		// text or finish arrives.
		{"A 2019 vintage.", nil, "A 2019 vintage."},
		// Decimal points inside a token do not end a sentence.
		{"Rated 4.5 stars. More", []string{"Rated 4.5 stars."}, " More"},
	}
	for _, tt := range tests {
		got, rest := splitSentences(tt.in)
		if !reflect.DeepEqual(got, tt.want) || rest != tt.wantRest {
			t.Errorf("splitSentences(%q) = %v, %q; want %v, %q", tt.in, got, rest, tt.want, tt.wantRest)
		}
	}
}

func TestSpeechQueueSpeaksInOrder(t *testing.T) {
	m, speaker := newQueueManager(t)

	done := make(chan struct{})
	q := newSpeechQueue(context.Background(), m, func() { close(done) })

	q.feed("First sentence. Second ")
	q.feed("sentence. Third")
	q.finish()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("queue never drained")
	}

	var texts []string
	for _, u := range speaker.Spoken() {
		texts = append(texts, u.Text)
	}
	want := []string{"First sentence.", "Second sentence.", "Third"}
	if !reflect.DeepEqual(texts, want) {
		t.Errorf("spoken %v, want %v", texts, want)
	}
}

func TestSpeechQueueDoneFiresOnce(t *testing.T) {
	m, _ := newQueueManager(t)

	var fired int
	done := make(chan struct{}, 4)
	q := newSpeechQueue(context.Background(), m, func() {
		fired++
		done <- struct{}{}
	})

	q.finish() // empty input completes immediately
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("onDone never fired")
	}

	q.finish()
	q.feed("late text ignored after cancel is separate")
	time.Sleep(50 * time.Millisecond)

	if fired != 1 {
		t.Errorf("onDone fired %d times, want 1", fired)
	}
}

func TestSpeechQueueCancelSuppressesDone(t *testing.T) {
	m, speaker := newQueueManager(t)
	speaker.Delay = 100 * time.Millisecond

	done := make(chan struct{}, 1)
	q := newSpeechQueue(context.Background(), m, func() { done <- struct{}{} })

	q.feed("A long first sentence. A queued second sentence. ")
	q.cancel()
	m.Cancel()
	q.finish()

	select {
	case <-done:
		t.Error("onDone fired after cancel")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSpeechQueueFailedUtteranceContinues(t *testing.T) {
	m, speaker := newQueueManager(t)
	speaker.Err = context.DeadlineExceeded

	done := make(chan struct{})
	q := newSpeechQueue(context.Background(), m, func() { close(done) })

	q.feed("One. Two. ")
	q.finish()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("queue stalled on failed utterance")
	}

	if n := len(speaker.Spoken()); n != 2 {
		t.Errorf("attempted %d utterances, want 2", n)
	}
}
