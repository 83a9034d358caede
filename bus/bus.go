package bus

import (
	"sync"
	"sync/atomic"

	"github.com/memelabs/candlecast/domain"
	"github.com/memelabs/candlecast/infra"
)

// DefaultBuffer is the per-subscriber high-water mark when the caller does
// not pick one.
const DefaultBuffer = 256

// Subscriber is one registered consumer of bus events. Events arrive on the
// channel behind Events; the filter set belongs to the subscribing session
// and is mutated only through Add and Remove.
type Subscriber struct {
	id string
	ch chan domain.Event

	mu      sync.Mutex
	filters []domain.Subscription

	dropped atomic.Int64
}

func (s *Subscriber) ID() string {
	return s.id
}

// Events is the subscriber's inbound stream. It is closed when the
// subscriber is removed from the bus.
func (s *Subscriber) Events() <-chan domain.Event {
	return s.ch
}

// Add registers one more filter; the subscriber receives the union of its
// filters. Adding an equal filter twice is a no-op.
func (s *Subscriber) Add(f domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, have := range s.filters {
		if have.Equal(f) {
			return
		}
	}
	s.filters = append(s.filters, f)
}

// Remove drops the filter equal to f. Removing an absent filter is a no-op.
func (s *Subscriber) Remove(f domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, have := range s.filters {
		if have.Equal(f) {
			s.filters = append(s.filters[:i], s.filters[i+1:]...)
			return
		}
	}
}

// Dropped counts events this subscriber lost to a full buffer.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscriber) matches(ev domain.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.filters {
		if f.Matches(ev) {
			return true
		}
	}

	return false
}

// Bus fans events out to filtered subscribers. Publishing never blocks: a
// subscriber whose buffer is full loses the event and the drop is counted,
// without slowing anyone else down.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	buf    int
	closed bool
	stats  *infra.Stats
}

func New(buffer int, stats *infra.Stats) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Bus{
		subs:  make(map[string]*Subscriber),
		buf:   buffer,
		stats: stats,
	}
}

// Subscribe registers a subscriber under id and returns it. Subscribing an
// existing id again returns the existing subscriber with the extra filters
// merged in.
func (b *Bus) Subscribe(id string, filters ...domain.Subscription) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		for _, f := range filters {
			sub.Add(f)
		}
		return sub
	}

	sub := &Subscriber{
		id:      id,
		ch:      make(chan domain.Event, b.buf),
		filters: filters,
	}
	b.subs[id] = sub

	return sub
}

// Unsubscribe removes the subscriber and closes its event channel. Safe to
// call any number of times.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
}

// Publish delivers ev to every subscriber whose filter union matches, at
// most once each, preserving per-subscriber publish order.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.stats.EventsPublished.Add(1)

	for _, sub := range b.subs {
		if !sub.matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
			b.stats.EventsDropped.Add(1)
		}
	}
}

// Close stops all future publishes. Subscriber channels stay open until
// their owners unsubscribe.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
}

// Len reports the number of registered subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}
