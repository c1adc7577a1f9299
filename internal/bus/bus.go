// Package bus provides the in-process event fan-out used to decouple the
// engine from notification and observability consumers. A Bus is constructed
// once at startup and passed by reference to every component that publishes
// or subscribes; there is no package-level singleton.
package bus

import (
	"context"
	"log/slog"
	"sync"
)

// Handler consumes one published event payload. A handler error is logged by
// the bus and never propagated to the publisher.
type Handler func(ctx context.Context, payload any) error

// Bus is a topic-keyed handler registry with best-effort synchronous
// delivery. Delivery order across handlers of one topic follows subscription
// order; a failing handler does not block the remaining ones.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger.With(slog.String("component", "bus")),
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish delivers payload to every handler registered for topic. Handler
// errors are logged and swallowed.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) {
	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, payload); err != nil {
			b.logger.ErrorContext(ctx, "event handler failed",
				slog.String("topic", topic),
				slog.String("error", err.Error()),
			)
		}
	}
}
