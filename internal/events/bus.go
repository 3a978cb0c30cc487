// Package events is the outbound notification path: the engine publishes
// after each committed state change, and unrelated collaborators (real-time
// sync, notification layers) consume asynchronously. Engine correctness
// never depends on a subscriber keeping up.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/truthgraph/veracity/internal/model"
)

// Bus fans committed-state events out to subscribers. Publishing is
// non-blocking: a subscriber whose buffer is full misses the event and a
// warning is logged, rather than the engine stalling.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan model.Event
	nextID int
	closed bool
	buffer int
	logger *zap.Logger
}

// NewBus creates a bus whose subscriber channels hold up to buffer events
func NewBus(buffer int, logger *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[int]chan model.Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new consumer. The returned cancel function must be
// called when the consumer is done; it closes the channel.
func (b *Bus) Subscribe() (<-chan model.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan model.Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking
func (b *Bus) Publish(e model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Warn("event dropped for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("event_type", e.EventType()))
		}
	}
}

// Close shuts the bus down and closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
