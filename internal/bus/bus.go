// Package bus fans registry updates out to an arbitrary set of
// subscribers. Publish never blocks: each subscription carries a
// bounded queue, and when a slow consumer fills it the oldest queued
// update is dropped so the newest still lands (the consumer can see
// the drop via Dropped and resynchronize).
package bus

import (
	"sync"
	"sync/atomic"

	"terrainview.dev/internal/protocol"
)

const DefaultQueueSize = 100

type Bus struct {
	mu   sync.Mutex
	subs map[uint64]*Subscription
	next uint64

	queueSize int

	published atomic.Uint64
	dropped   atomic.Uint64
}

func New(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		subs:      map[uint64]*Subscription{},
		queueSize: queueSize,
	}
}

// Publish delivers u to every attached subscription. With no
// subscribers it is a no-op. Updates are delivered to each
// subscription in publish order.
func (b *Bus) Publish(u protocol.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published.Add(1)
	for _, s := range b.subs {
		s.offer(u)
	}
}

// Subscribe attaches a new subscription positioned after every update
// published so far.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	s := &Subscription{
		bus: b,
		id:  b.next,
		ch:  make(chan protocol.Update, b.queueSize),
	}
	b.subs[s.id] = s
	return s
}

func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) Published() uint64 { return b.published.Load() }
func (b *Bus) Dropped() uint64   { return b.dropped.Load() }

type Subscription struct {
	bus *Bus
	id  uint64
	ch  chan protocol.Update

	dropped atomic.Uint64
	once    sync.Once
}

// C yields updates in publish order. It is closed after Close.
func (s *Subscription) C() <-chan protocol.Update { return s.ch }

// Dropped reports how many queued updates were discarded because this
// subscriber fell behind. A nonzero value means the received stream
// has a gap and the consumer should resynchronize.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close detaches the subscription and closes its channel. Safe to
// call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// offer runs under the bus mutex.
func (s *Subscription) offer(u protocol.Update) {
	select {
	case s.ch <- u:
		return
	default:
	}
	// Full: drop the oldest so the newest still lands.
	select {
	case <-s.ch:
		s.dropped.Add(1)
		s.bus.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- u:
	default:
		s.dropped.Add(1)
		s.bus.dropped.Add(1)
	}
}
