package events

import (
	"fmt"
	"sync"

	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

// Handler processes an event. Returning an error logs it but does not stop dispatch.
type Handler func(Event) error

// Bus is a synchronous in-process event bus.
// Subscribers are invoked in registration order on the publisher's goroutine,
// so a batch run publishing from several workers calls handlers concurrently.
// A panicking handler is logged and skipped; the publisher never sees it.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]namedHandler
}

type namedHandler struct {
	name string
	fn   Handler
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]namedHandler),
	}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType EventType, h Handler) {
	b.SubscribeNamed(eventType, "", h)
}

// SubscribeNamed is Subscribe with a name used in dispatch failure logs.
func (b *Bus) SubscribeNamed(eventType EventType, name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if name == "" {
		name = fmt.Sprintf("#%d", len(b.handlers[eventType]))
	}
	b.handlers[eventType] = append(b.handlers[eventType], namedHandler{name: name, fn: h})
}

// Subscribers reports how many handlers listen for eventType.
func (b *Bus) Subscribers(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Publish dispatches an event to all registered handlers for its type.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := dispatch(h.fn, e); err != nil {
			telemetry.Warnf("events: %s handler %s: %v", e.Type, h.name, err)
		}
	}
}

func dispatch(h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(e)
}
