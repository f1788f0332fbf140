package serializationerrors

import "fmt"

// ErrNilEvent indicates that a nil event was provided for serialization/deserialization
type ErrNilEvent struct{ EventType string }

func (e ErrNilEvent) Error() string { return fmt.Sprintf("nil %s event", e.EventType) }

// ErrUnexpectedPayload indicates that a payload does not match the type
// registered for its event type.
type ErrUnexpectedPayload struct {
	EventType string
	Got       string
}

func (e ErrUnexpectedPayload) Error() string {
	return fmt.Sprintf("unexpected payload %s for event %s", e.Got, e.EventType)
}

// ErrUnregisteredEvent indicates that no codec is registered for an event type.
type ErrUnregisteredEvent struct{ EventType string }

func (e ErrUnregisteredEvent) Error() string {
	return fmt.Sprintf("no codec registered for eventType=%s", e.EventType)
}
