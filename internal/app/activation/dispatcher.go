// Package activation runs the completion handler of a tracked item when one
// of its sub-jobs first succeeds. Handlers are looked up in a table keyed by
// the item's UI type, so supporting a new kind of result means registering
// one more Handler.
package activation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/pkg/common/logger"
)

var (
	// ErrNoHandler is returned when no handler is registered for a UI type.
	ErrNoHandler = errors.New("no activation handler registered")
	// ErrAlreadyActivated is returned when a sub-job was already activated.
	ErrAlreadyActivated = errors.New("sub-job already activated")
)

// UIHandle describes the control a UI should present for one sub-job.
type UIHandle struct {
	Label          string
	Enabled        bool
	Activated      bool
	WaitingMessage string
}

// Handler is the completion handler for one UI type.
type Handler interface {
	// Build describes the control for sub-job subIndex of item.
	Build(item *background.TrackedItem, subIndex int, alreadyActivated bool) UIHandle
	// Activate performs the completion action. automatic is true when the
	// monitor triggered it rather than the user.
	Activate(ctx context.Context, item *background.TrackedItem, subIndex int, automatic bool) error
	// WaitingMessage is shown while the job is still running.
	WaitingMessage() string
}

type activationKey struct {
	itemID   string
	subIndex int
}

var _ background.Activator = (*Dispatcher)(nil)

// Dispatcher routes activations to the handler registered for the item's UI
// type and guarantees each (item, sub-job) pair is activated at most once.
type Dispatcher struct {
	mu        sync.Mutex
	handlers  map[background.UIType]Handler
	activated map[activationKey]struct{}

	logger *logger.Logger
	tracer trace.Tracer
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *logger.Logger, tracer trace.Tracer) *Dispatcher {
	return &Dispatcher{
		handlers:  make(map[background.UIType]Handler),
		activated: make(map[activationKey]struct{}),
		logger:    logger.With("component", "activation_dispatcher"),
		tracer:    tracer,
	}
}

// Register installs h for uiType, replacing any previous handler.
func (d *Dispatcher) Register(uiType background.UIType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[uiType] = h
}

func (d *Dispatcher) handler(uiType background.UIType) (Handler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.handlers[uiType]
	if !ok || uiType == background.UITypeNone {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, uiType)
	}
	return h, nil
}

// Build returns the UI handle for sub-job subIndex of item.
func (d *Dispatcher) Build(item *background.TrackedItem, subIndex int) (UIHandle, error) {
	h, err := d.handler(item.UIType())
	if err != nil {
		return UIHandle{}, err
	}
	return h.Build(item, subIndex, d.IsActivated(item.ID(), subIndex) || item.IsActivated(subIndex)), nil
}

// WaitingMessage returns the message shown while an item of uiType runs.
func (d *Dispatcher) WaitingMessage(uiType background.UIType) string {
	h, err := d.handler(uiType)
	if err != nil {
		return ""
	}
	return h.WaitingMessage()
}

// IsActivated reports whether the dispatcher already ran sub-job subIndex of
// itemID.
func (d *Dispatcher) IsActivated(itemID string, subIndex int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.activated[activationKey{itemID: itemID, subIndex: subIndex}]
	return ok
}

// Activate runs the handler for item. The pair is claimed before the handler
// runs, so a failed handler is not retried.
func (d *Dispatcher) Activate(ctx context.Context, item *background.TrackedItem, subIndex int, automatic bool) error {
	ctx, span := d.tracer.Start(ctx, "activation_dispatcher.activate",
		trace.WithAttributes(
			attribute.String("item_id", item.ID()),
			attribute.Int("sub_index", subIndex),
			attribute.String("ui_type", string(item.UIType())),
			attribute.Bool("automatic", automatic),
		))
	defer span.End()

	h, err := d.handler(item.UIType())
	if err != nil {
		span.SetStatus(codes.Error, "no handler")
		span.RecordError(err)
		return err
	}

	key := activationKey{itemID: item.ID(), subIndex: subIndex}
	d.mu.Lock()
	if _, done := d.activated[key]; done {
		d.mu.Unlock()
		span.AddEvent("already_activated")
		return fmt.Errorf("%w: item %s sub-job %d", ErrAlreadyActivated, item.ID(), subIndex)
	}
	d.activated[key] = struct{}{}
	d.mu.Unlock()

	if err := h.Activate(ctx, item, subIndex, automatic); err != nil {
		d.logger.Error(ctx, "activation handler failed",
			"item_id", item.ID(),
			"sub_index", subIndex,
			"error", err,
		)
		span.SetStatus(codes.Error, "handler failed")
		span.RecordError(err)
		return fmt.Errorf("failed to activate item %s sub-job %d: %w", item.ID(), subIndex, err)
	}

	span.AddEvent("activated")
	span.SetStatus(codes.Ok, "activated")
	return nil
}

// Forget drops the activation bookkeeping of itemID.
func (d *Dispatcher) Forget(itemID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.activated {
		if k.itemID == itemID {
			delete(d.activated, k)
		}
	}
}
