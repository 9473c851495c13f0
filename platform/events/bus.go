package events

import (
	"context"
	"sync"

	"leadflow_backend/platform/logger"
)

// InMemoryBus is a simple in-process event bus.
// Handlers for the same event run sequentially; Publish dispatches them on a
// separate goroutine so callers are never blocked by subscribers.
type InMemoryBus struct {
	handlers map[string][]Handler
	mu       sync.RWMutex
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event asynchronously. Handler errors are logged,
// never returned to the publisher.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	go func() {
		// Detach from the request context so in-flight handlers survive
		// the originating HTTP request.
		bg := context.Background()
		for _, h := range handlers {
			if err := h.Handle(bg, event); err != nil && b.log != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}
	}()
}

// PublishSync dispatches the event and waits for all handlers.
// The first handler error is returned.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	var firstErr error
	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			if b.log != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Compile-time check that InMemoryBus implements Bus.
var _ Bus = (*InMemoryBus)(nil)
