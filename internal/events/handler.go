// internal/events/handler.go
package events

import (
	"context"
	"sync"
)

// Handler processes events of a specific type. Handlers invoked through
// PublishSync run on the publisher's goroutine.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription is returned by Subscribe.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
	once     sync.Once
}

// Unsubscribe removes this subscription from the event bus. Repeated calls are no-ops.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.eventBus.unsubscribe(s.id, s.typ)
	})
}
