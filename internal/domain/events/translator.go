package events

import "context"

// ToEnvelope wraps a domain event for transport, applying the publish options
// so the envelope carries the routing key and headers.
func ToEnvelope(event DomainEvent, opts ...PublishOption) EventEnvelope {
	params := ApplyOptions(opts...)
	return EventEnvelope{
		Type:      event.EventType(),
		Key:       params.Key,
		Headers:   params.Headers,
		Timestamp: event.OccurredAt(),
		Payload:   event,
	}
}

// ApplyOptions folds the given options into a PublishParams value.
func ApplyOptions(opts ...PublishOption) PublishParams {
	var p PublishParams
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// MultiPublisher fans one domain event out to several publishers. Every
// publisher is attempted and the first error is returned.
type MultiPublisher []DomainEventPublisher

// PublishDomainEvent implements DomainEventPublisher.
func (m MultiPublisher) PublishDomainEvent(ctx context.Context, event DomainEvent, opts ...PublishOption) error {
	var firstErr error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishDomainEvent(ctx, event, opts...); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
