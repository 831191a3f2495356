package event

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"
)

// ErrClosed is returned by Next once the subscription is closed and its
// mailbox is drained.
var ErrClosed = errors.New("subscription closed")

// Bus fans events out to every live subscription. Safe for concurrent use.
type Bus struct {
	subs   *skipmap.Uint64Map[*Subscription]
	nextID atomic.Uint64
}

// NewBus creates a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: skipmap.NewUint64[*Subscription]()}
}

// Publish delivers e to every subscription live at the time of the call,
// in subscription order. Never blocks.
func (b *Bus) Publish(e Event) {
	b.subs.Range(func(_ uint64, sub *Subscription) bool {
		sub.box.put(e)
		return true
	})
}

// Subscribe registers a new subscription. It receives every event
// published after Subscribe returns. Close it when done.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		id:  b.nextID.Add(1),
		bus: b,
		box: newMailbox(),
	}
	b.subs.Store(sub.id, sub)
	return sub
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	return b.subs.Len()
}

// Subscription is one subscriber's view of the bus.
type Subscription struct {
	id  uint64
	bus *Bus
	box *mailbox
}

// Next blocks until an event is available, the context is done, or the
// subscription is closed and drained.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		e, ok, done := s.box.take()
		if ok {
			return e, nil
		}
		if done {
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.box.wait():
		}
	}
}

// Pending returns the number of undelivered events.
func (s *Subscription) Pending() int {
	return s.box.len()
}

// Close unregisters the subscription. Events already queued remain
// readable through Next.
func (s *Subscription) Close() {
	s.bus.subs.Delete(s.id)
	s.box.close()
}

// WaitFor consumes events from sub until one satisfies match, returning it.
// Non-matching events are discarded.
func WaitFor(ctx context.Context, sub *Subscription, match func(Event) bool) (Event, error) {
	for {
		e, err := sub.Next(ctx)
		if err != nil {
			return nil, err
		}
		if match(e) {
			return e, nil
		}
	}
}
