package assistant

import (
	"context"
	"strings"
	"sync"

	"github.com/vinealabs/go-sommelier/pkg/tts"
)

// speechQueue speaks streamed chat text sentence by sentence, starting as
// soon as the first complete sentence forms rather than waiting for the
// whole response. Utterances play strictly in order.
type speechQueue struct {
	ctx    context.Context
	speech *tts.Manager
	onDone func()

	mu       sync.Mutex
	pending  []string
	buffer   string
	speaking bool
	finished bool
	canceled bool
	notified bool
}

func newSpeechQueue(ctx context.Context, speech *tts.Manager, onDone func()) *speechQueue {
	return &speechQueue{ctx: ctx, speech: speech, onDone: onDone}
}

// feed appends streamed text, queueing any sentences it completes.
func (q *speechQueue) feed(text string) {
	q.mu.Lock()
	if q.canceled {
		q.mu.Unlock()
		return
	}
	q.buffer += text
	complete, rest := splitSentences(q.buffer)
	q.buffer = rest
	q.pending = append(q.pending, complete...)
	q.mu.Unlock()

	q.speakNext()
}

// finish flushes the trailing partial sentence and marks the input
// complete. onDone fires once the last utterance ends.
func (q *speechQueue) finish() {
	q.mu.Lock()
	if q.canceled {
		q.mu.Unlock()
		return
	}
	if rest := strings.TrimSpace(q.buffer); rest != "" {
		q.pending = append(q.pending, rest)
	}
	q.buffer = ""
	q.finished = true
	q.mu.Unlock()

	q.speakNext()
}

// cancel discards queued sentences and suppresses onDone. The caller
// stops the synthesis manager itself.
func (q *speechQueue) cancel() {
	q.mu.Lock()
	q.canceled = true
	q.pending = nil
	q.buffer = ""
	q.mu.Unlock()
}

func (q *speechQueue) speakNext() {
	q.mu.Lock()
	if q.canceled || q.speaking {
		q.mu.Unlock()
		return
	}
	if len(q.pending) == 0 {
		done := q.finished && !q.notified
		if done {
			q.notified = true
		}
		q.mu.Unlock()
		if done && q.onDone != nil {
			q.onDone()
		}
		return
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	q.speaking = true
	q.mu.Unlock()

	q.speech.Speak(q.ctx, next,
		func() {
			q.utteranceDone()
		},
		func(error) {
			// A failed utterance must not stall the rest of the
			// response.
			q.utteranceDone()
		},
	)
}

func (q *speechQueue) utteranceDone() {
	q.mu.Lock()
	q.speaking = false
	q.mu.Unlock()
	q.speakNext()
}

// splitSentences returns the complete sentences in text and the trailing
// partial remainder. A sentence ends at ., !, or ? followed by whitespace;
// a terminator at the very end of the buffer stays pending, since more of
// the same token may still arrive (finish flushes it).
func splitSentences(text string) ([]string, string) {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 >= len(text) || (text[i+1] != ' ' && text[i+1] != '\n') {
				continue
			}
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	return sentences, text[start:]
}
