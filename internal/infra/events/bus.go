package events

import (
	"sync"

	"go.uber.org/zap"
)

const defaultBufferSize = 256

// Bus dispatches events to subscribed handlers from a single background
// goroutine. Publish never blocks the caller: when the buffer is full the
// event is dropped and logged. Handler errors are logged and swallowed,
// never propagated to the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	queue  chan Event
	done   chan struct{}
	closed sync.Once
	logger *zap.Logger
}

// NewBus creates a bus and starts its dispatch loop. bufferSize <= 0
// selects the default.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	b := &Bus{
		handlers: make(map[string][]Handler),
		queue:    make(chan Event, bufferSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go b.dispatch()
	return b
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeFunc registers a function handler for an event type.
func (b *Bus) SubscribeFunc(eventType string, fn func(Event) error) {
	b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish enqueues an event for asynchronous delivery. Best effort only.
func (b *Bus) Publish(event Event) {
	select {
	case b.queue <- event:
	default:
		b.logger.Warn("event bus full, dropping event",
			zap.String("event_type", event.EventType()),
			zap.String("aggregate_id", event.AggregateID()))
	}
}

// Close stops the dispatch loop after draining queued events.
func (b *Bus) Close() {
	b.closed.Do(func() {
		close(b.queue)
		<-b.done
	})
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for event := range b.queue {
		b.mu.RLock()
		handlers := b.handlers[event.EventType()]
		b.mu.RUnlock()

		for _, handler := range handlers {
			if err := handler.Handle(event); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err))
			}
		}
	}
}
