package events

import "sync"

// MemoryBus is an in-process Bus. Publish is safe from any goroutine;
// handlers run synchronously on the publisher's goroutine in subscription
// order, so handlers must not block.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id      int
	handler Handler
}

// NewBus creates an empty in-process bus.
func NewBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish delivers the event to every current subscriber.
func (b *MemoryBus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(ev)
	}
}

// Subscribe registers a handler and returns a function that removes it.
func (b *MemoryBus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	}
}

var _ Bus = (*MemoryBus)(nil)
