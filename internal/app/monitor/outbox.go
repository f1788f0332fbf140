package monitor

import (
	"context"
	"errors"
	"sync"

	"github.com/ahrav/jobwatch/internal/domain/events"
	"github.com/ahrav/jobwatch/pkg/common/logger"
)

// DefaultEventQueueSize is the number of events the outbox buffers before it
// starts dropping.
const DefaultEventQueueSize = 256

var (
	// ErrEventQueueFull is returned when an event is dropped because the
	// downstream publisher has fallen behind.
	ErrEventQueueFull = errors.New("monitor event queue is full")
	errOutboxClosed   = errors.New("monitor event queue is closed")
)

var _ events.DomainEventPublisher = (*outbox)(nil)

type outboundEvent struct {
	ctx   context.Context
	event events.DomainEvent
	opts  []events.PublishOption
	// flushed marks a barrier; it is closed once every earlier event has been
	// handed to the downstream publisher.
	flushed chan struct{}
}

// outbox decouples the event loop from the downstream publisher. Enqueueing
// never blocks: a full queue drops the event. A single goroutine drains the
// queue so events reach the publisher in the order they were raised.
type outbox struct {
	next  events.DomainEventPublisher
	queue chan outboundEvent
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	metrics MonitorMetrics
	logger  *logger.Logger
}

func newOutbox(next events.DomainEventPublisher, size int, metrics MonitorMetrics, logger *logger.Logger) *outbox {
	if size <= 0 {
		size = DefaultEventQueueSize
	}
	o := &outbox{
		next:    next,
		queue:   make(chan outboundEvent, size),
		done:    make(chan struct{}),
		metrics: metrics,
		logger:  logger.With("component", "monitor_outbox"),
	}
	go o.drain()
	return o
}

// PublishDomainEvent queues event for delivery.
func (o *outbox) PublishDomainEvent(ctx context.Context, event events.DomainEvent, opts ...events.PublishOption) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return errOutboxClosed
	}

	select {
	case o.queue <- outboundEvent{ctx: context.WithoutCancel(ctx), event: event, opts: opts}:
		return nil
	default:
		o.metrics.IncEventsDropped(ctx)
		return ErrEventQueueFull
	}
}

func (o *outbox) drain() {
	defer close(o.done)

	for ev := range o.queue {
		if ev.flushed != nil {
			close(ev.flushed)
			continue
		}
		if o.next == nil {
			continue
		}
		if err := o.next.PublishDomainEvent(ev.ctx, ev.event, ev.opts...); err != nil {
			o.logger.Warn(ev.ctx, "failed to publish monitor event",
				"event_type", string(ev.event.EventType()),
				"error", err,
			)
		}
	}
}

// flush waits until every event queued before the call has been delivered.
func (o *outbox) flush(ctx context.Context) error {
	barrier := outboundEvent{flushed: make(chan struct{})}

	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		return nil
	}
	select {
	case o.queue <- barrier:
		o.mu.RUnlock()
	case <-ctx.Done():
		o.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-barrier.flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting events and waits for the queue to drain.
func (o *outbox) close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()

	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
