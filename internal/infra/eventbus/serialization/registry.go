// Package serialization provides a registry-based system for serializing and deserializing
// domain events in the event bus infrastructure. It acts as a translation layer between
// domain objects and their JSON wire format representations.
//
// Serialization functions are registered per event type, so adding an event
// means registering one pair of functions without touching the transports.
package serialization

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/internal/domain/events"
	serializationerrors "github.com/ahrav/jobwatch/internal/infra/eventbus/serialization/errors"
)

// SerializeFunc converts a domain object into a serialized byte slice.
type SerializeFunc func(payload any) ([]byte, error)

// DeserializeFunc converts a serialized byte slice back into a domain object.
type DeserializeFunc func(data []byte) (any, error)

// Global registries map event types to their serialization functions.
// This allows for dynamic dispatch based on event type at runtime.
var (
	serializerRegistry   = map[events.EventType]SerializeFunc{}
	deserializerRegistry = map[events.EventType]DeserializeFunc{}
)

// RegisterSerializeFunc registers a serialization function for a given event type.
func RegisterSerializeFunc(eventType events.EventType, fn SerializeFunc) {
	serializerRegistry[eventType] = fn
}

// RegisterDeserializeFunc registers a deserialization function for a given event type.
func RegisterDeserializeFunc(eventType events.EventType, fn DeserializeFunc) {
	deserializerRegistry[eventType] = fn
}

// SerializePayload converts a domain object into bytes using the registered serializer for its event type.
// Returns an error if no serializer is registered for the given event type.
func SerializePayload(eventType events.EventType, payload any) ([]byte, error) {
	fn, ok := serializerRegistry[eventType]
	if !ok {
		return nil, serializationerrors.ErrUnregisteredEvent{EventType: string(eventType)}
	}
	if payload == nil {
		return nil, serializationerrors.ErrNilEvent{EventType: string(eventType)}
	}
	return fn(payload)
}

// DeserializePayload converts bytes back into a domain object using the registered deserializer for its event type.
// Returns an error if no deserializer is registered for the given event type.
func DeserializePayload(eventType events.EventType, data []byte) (any, error) {
	fn, ok := deserializerRegistry[eventType]
	if !ok {
		return nil, serializationerrors.ErrUnregisteredEvent{EventType: string(eventType)}
	}
	return fn(data)
}

func init() {
	RegisterEventSerializers()
}

// RegisterEventSerializers registers the codecs for every monitor event.
func RegisterEventSerializers() {
	register[background.ItemAddedEvent](background.EventTypeItemAdded)
	register[background.ItemRemovedEvent](background.EventTypeItemRemoved)
	register[background.ItemStatusChangedEvent](background.EventTypeItemStatusChanged)
	register[background.ItemActivatedEvent](background.EventTypeItemActivated)
}

func register[T any](eventType events.EventType) {
	RegisterSerializeFunc(eventType, func(payload any) ([]byte, error) {
		evt, ok := payload.(T)
		if !ok {
			return nil, serializationerrors.ErrUnexpectedPayload{
				EventType: string(eventType),
				Got:       fmt.Sprintf("%T", payload),
			}
		}
		return json.Marshal(evt)
	})
	RegisterDeserializeFunc(eventType, func(data []byte) (any, error) {
		var evt T
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", eventType, err)
		}
		return evt, nil
	})
}

// wireEnvelope is the JSON document written to transports.
type wireEnvelope struct {
	Type       events.EventType  `json:"type"`
	Key        string            `json:"key,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Payload    json.RawMessage   `json:"payload"`
}

// SerializeEventEnvelope encodes an envelope and its payload as one JSON
// document.
func SerializeEventEnvelope(evt events.EventEnvelope) ([]byte, error) {
	payload, err := SerializePayload(evt.Type, evt.Payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(wireEnvelope{
		Type:       evt.Type,
		Key:        evt.Key,
		Headers:    evt.Headers,
		OccurredAt: evt.Timestamp,
		Payload:    payload,
	})
}

// DeserializeEventEnvelope decodes a document written by
// SerializeEventEnvelope.
func DeserializeEventEnvelope(data []byte) (events.EventEnvelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return events.EventEnvelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	payload, err := DeserializePayload(w.Type, w.Payload)
	if err != nil {
		return events.EventEnvelope{}, err
	}

	return events.EventEnvelope{
		Type:      w.Type,
		Key:       w.Key,
		Headers:   w.Headers,
		Timestamp: w.OccurredAt,
		Payload:   payload,
	}, nil
}
