package background

import "errors"

var (
	// ErrUnknownJobState is returned when a state name is not recognized.
	ErrUnknownJobState = errors.New("unknown job state")
	// ErrUnknownUIType is returned when a UI type name is not recognized.
	ErrUnknownUIType = errors.New("unknown ui type")
	// ErrUnknownJobKind is returned when a job kind name is not recognized.
	ErrUnknownJobKind = errors.New("unknown job kind")
	// ErrEmptyComposite signals an attempt to aggregate or build a composite
	// item without any members.
	ErrEmptyComposite = errors.New("composite requires at least one member")
	// ErrMissingJobID is returned when a status record has no id.
	ErrMissingJobID = errors.New("status record has no job id")
	// ErrItemNotFound is returned when an item id is not monitored.
	ErrItemNotFound = errors.New("tracked item not found")
	// ErrSubIndexOutOfRange is returned for a sub-job index outside the item.
	ErrSubIndexOutOfRange = errors.New("sub-job index out of range")
	// ErrStateNotFound is returned by a StateStore when no value is stored
	// under the requested key.
	ErrStateNotFound = errors.New("persisted state not found")
)
