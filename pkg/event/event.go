// Package event is a small publish-subscribe bus used to report progress
// out of a long-running operation (a directory scan) without the engine
// having any opinion on where that progress goes — a CLI logs it, a
// future server could stream it, a test can just count calls.
package event

import (
	"context"
	"sync"
)

// Handler receives one published event's payload.
type Handler func(ctx context.Context, data any)

// EventBus is the subscribe/publish contract; Bus is its only
// implementation but callers should depend on the interface.
type EventBus interface {
	Subscribe(topic string, handler Handler)
	Publish(ctx context.Context, topic string, data any)
}

// Bus fans out published events to every handler subscribed to a topic.
// Handlers run concurrently and are never awaited by Publish, so a slow
// or blocking handler cannot stall the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers handler to run on every future Publish to topic.
// There is no Unsubscribe; a Bus is expected to live for the duration of
// a single operation, not to be reused across independent scans.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish fans data out to every handler subscribed to topic, each in its
// own goroutine, and returns without waiting for them to finish.
func (b *Bus) Publish(ctx context.Context, topic string, data any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		go h(ctx, data)
	}
}
