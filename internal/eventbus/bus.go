// Package eventbus fans session events out to subscribers. Publishing never
// blocks; a slow subscriber loses events rather than stalling the session.
package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/ramvault/schema"
)

// Bus fanouts session events to subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan schema.SessionEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan schema.SessionEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan schema.SessionEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.SessionEvent, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "subs", count)
	}
	return ch, func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
		if b.log != nil {
			b.log.Debug("eventbus unsubscribe")
		}
	}
}

// OnSessionEvent publishes a session event to all subscribers. Sends happen
// under the lock so an unsubscribe can never close a channel mid-publish;
// they are non-blocking, so holding the lock cannot stall the publisher.
func (b *Bus) OnSessionEvent(event schema.SessionEvent) {
	if b == nil {
		return
	}
	dropped := 0
	b.mu.Lock()
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "count", dropped)
	}
}
