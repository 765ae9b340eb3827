package eventbus

import "sync"

// Event is an arbitrary event passed on the bus. Components publish
// pass and slot lifecycle events for observers such as loggers.
type Event any

// Bus is a simple fan-out publish/subscribe bus. Delivery is
// non-blocking: slow subscribers drop events rather than stall
// publishers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is a handle to a subscriber channel.
type Subscription struct {
	C   <-chan Event
	bus *Bus
	ch  chan Event
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
		}
	}
}

// Subscribe registers a subscriber with the given channel buffer.
// A zero buffer is bumped to one so a single event is never lost.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	s := &Subscription{C: ch, bus: b, ch: ch}
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs[s] = struct{}{}
	}
	b.mu.Unlock()
	return s
}

// Cancel removes the subscription and closes its channel.
func (s *Subscription) Cancel() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	if !b.closed {
		close(s.ch)
	}
}

// Close closes all subscriber channels and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
	}
	b.subs = make(map[*Subscription]struct{})
}
