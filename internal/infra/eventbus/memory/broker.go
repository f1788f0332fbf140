// Package memory provides an in-memory implementation of the event bus.
// It offers a lightweight, non-persistent broker that fans monitor events out
// to in-process subscribers such as the websocket notification hub.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/ahrav/jobwatch/internal/domain/events"
)

var (
	_ events.EventBus             = (*Broker)(nil)
	_ events.DomainEventPublisher = (*Broker)(nil)
)

// ErrBrokerClosed is returned by operations on a closed broker.
var ErrBrokerClosed = errors.New("broker is closed")

type handlerEntry[T any] struct {
	id      uint64
	accepts func(T) bool
	handle  func(context.Context, T) error
}

type handlerList[T any] []handlerEntry[T]

// Broker provides an in-memory implementation of events.EventBus.
// It enables decoupled communication between components through message passing,
// making it useful for single-process deployments and tests where persistence
// is not required.
//
// Handlers run synchronously on the publishing goroutine.
type Broker struct {
	mu     sync.RWMutex
	nextID uint64
	closed bool

	handlers handlerList[events.EventEnvelope]
}

// NewBroker creates and initializes a new in-memory broker.
func NewBroker() *Broker {
	return &Broker{handlers: make(handlerList[events.EventEnvelope], 0)}
}

// subscribe is a generic helper that registers handler until ctx is done.
func subscribe[T any](
	ctx context.Context,
	b *Broker,
	handlers *handlerList[T],
	accepts func(T) bool,
	handler func(context.Context, T) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	b.nextID++
	id := b.nextID
	*handlers = append(*handlers, handlerEntry[T]{id: id, accepts: accepts, handle: handler})
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		*handlers = slices.DeleteFunc(*handlers, func(e handlerEntry[T]) bool { return e.id == id })
	}()

	return nil
}

// publish is a generic helper that delivers msg to every accepting handler,
// stopping at the first error.
func publish[T any](ctx context.Context, b *Broker, handlers *handlerList[T], msg T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}
	// Copy the handlers to avoid holding the lock while executing them.
	handlersCopy := slices.Clone(*handlers)
	b.mu.RUnlock()

	for _, h := range handlersCopy {
		if err := ctx.Err(); err != nil {
			return err
		}
		if h.accepts != nil && !h.accepts(msg) {
			continue
		}
		if err := h.handle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// PublishDomainEvent wraps event in an envelope and publishes it.
func (b *Broker) PublishDomainEvent(ctx context.Context, event events.DomainEvent, opts ...events.PublishOption) error {
	return b.Publish(ctx, events.ToEnvelope(event, opts...))
}

// Publish broadcasts evt to all subscribers of its type, stopping at the
// first handler error. Options override the envelope's key and headers.
func (b *Broker) Publish(ctx context.Context, evt events.EventEnvelope, opts ...events.PublishOption) error {
	params := events.ApplyOptions(opts...)
	if params.Key != "" {
		evt.Key = params.Key
	}
	if params.Headers != nil {
		evt.Headers = params.Headers
	}
	return publish(ctx, b, &b.handlers, evt)
}

// Subscribe registers handler for the given event types until ctx is done. An
// empty eventTypes subscribes to every event.
func (b *Broker) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	var accepts func(events.EventEnvelope) bool
	if len(eventTypes) > 0 {
		types := slices.Clone(eventTypes)
		accepts = func(evt events.EventEnvelope) bool { return slices.Contains(types, evt.Type) }
	}

	return subscribe[events.EventEnvelope](ctx, b, &b.handlers, accepts, handler)
}

// Close drops every subscription. Later publishes and subscriptions fail with
// ErrBrokerClosed.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.handlers = nil
	return nil
}
