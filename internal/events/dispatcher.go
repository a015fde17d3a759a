package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler reacts to one domain event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans domain events out to in-process listeners.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

type listenerSet struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

// NewInMemoryDispatcher returns a synchronous dispatcher. Handlers run on the
// publishing goroutine in subscription order.
func NewInMemoryDispatcher() Dispatcher {
	return &listenerSet{listeners: make(map[EventType][]EventHandler)}
}

// Publish runs every handler for event.Type, including those after a failing
// or panicking one, and returns the joined failures.
func (l *listenerSet) Publish(ctx context.Context, event Event) error {
	l.mu.RLock()
	handlers := l.listeners[event.Type]
	l.mu.RUnlock()

	var errs []error
	for i, handler := range handlers {
		if err := invoke(ctx, handler, event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler %d: %w", event.Type, i, err))
		}
	}
	return errors.Join(errs...)
}

func (l *listenerSet) Subscribe(eventType EventType, handler EventHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// copy on write so Publish can iterate a snapshot without holding the lock
	next := make([]EventHandler, 0, len(l.listeners[eventType])+1)
	next = append(next, l.listeners[eventType]...)
	l.listeners[eventType] = append(next, handler)
}

func invoke(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, event)
}
