package events

import "sync"

// Bus fans Events out to every attached consumer without backpressure: a
// slow or absent consumer never blocks the publisher. Grounded in the same
// register/unregister/broadcast shape as a websocket hub, but simplified
// to plain Go channels since there is no network framing here.
type Bus struct {
	mu        sync.RWMutex
	consumers map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{consumers: make(map[chan Event]struct{})}
}

// Subscribe attaches a new consumer and returns its channel. buffer sizes
// the channel so a burst of events does not immediately drop; once full,
// further events to this consumer are dropped rather than blocking the
// publisher.
func (b *Bus) Subscribe(buffer int) chan Event {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.consumers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe detaches and closes a consumer channel previously returned
// by Subscribe.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.consumers[ch]; ok {
		delete(b.consumers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers ev to every attached consumer, skipping any whose
// buffer is currently full.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.consumers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Len reports the number of attached consumers, for tests.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.consumers)
}
