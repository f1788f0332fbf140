// Package monitor keeps track of background jobs running on the job server.
// It polls their status on an irregular cyclic schedule, folds composite
// groups into one state, runs completion handlers when sub-jobs succeed, and
// persists enough of its item list to rebuild it after a restart.
//
// All registry state is owned by a single event loop goroutine. Public
// methods hand closures to that loop and wait for them to run; status
// requests run on their own goroutines and post their results back.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/internal/domain/events"
	"github.com/ahrav/jobwatch/pkg/common/logger"
)

// DefaultStorageKey is the key the item list is persisted under.
const DefaultStorageKey = "background.monitor.items"

var (
	// ErrMonitorClosed is returned by operations issued after Stop.
	ErrMonitorClosed = errors.New("monitor is closed")
	// ErrItemDeleted is returned when an item id has been tombstoned.
	ErrItemDeleted = errors.New("tracked item was deleted")
	// ErrNotReady is returned when activating a sub-job that has not succeeded.
	ErrNotReady = errors.New("sub-job has not succeeded")
)

// Config tunes the monitor.
type Config struct {
	// PollUnit scales every entry of PollTable.
	PollUnit time.Duration
	// PollTable is the cyclic delay sequence. Nil selects DefaultPollTable.
	PollTable []int
	// PersistInterval is how often the item list is saved. Zero disables the
	// periodic save; Stop still saves once.
	PersistInterval time.Duration
	// StorageKey is the key the item list is saved under.
	StorageKey string
	// RecoveryConcurrency bounds how many persisted items are recovered at
	// once.
	RecoveryConcurrency int
	// EventQueueSize bounds the events waiting for the publisher. Events
	// raised while the queue is full are dropped.
	EventQueueSize int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PollUnit:            DefaultPollUnit,
		PersistInterval:     30 * time.Second,
		StorageKey:          DefaultStorageKey,
		RecoveryConcurrency: 8,
		EventQueueSize:      DefaultEventQueueSize,
	}
}

// forgetter is implemented by activators that keep their own bookkeeping.
type forgetter interface{ Forget(itemID string) }

// Monitor tracks background jobs until they finish.
type Monitor struct {
	id  string
	cfg Config

	svc       background.StatusService
	store     background.StateStore
	activator background.Activator
	outbox    *outbox

	mailbox   chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	cancel context.CancelCauseFunc
	loops  sync.WaitGroup

	// Owned by the event loop.
	items       map[string]*background.TrackedItem
	order       []string
	deleted     map[string]struct{}
	schedule    *PollSchedule
	timer       *time.Timer
	pollCtx     context.Context
	pending     int
	idleWaiters []chan struct{}

	metrics MonitorMetrics
	logger  *logger.Logger
	tracer  trace.Tracer
}

// NewMonitor creates a Monitor and starts its event loop. Polling and
// periodic persistence begin only once Start is called.
//
// Events are delivered to publisher from a separate goroutine, in order, so a
// slow publisher never holds up the event loop.
func NewMonitor(
	cfg Config,
	svc background.StatusService,
	store background.StateStore,
	activator background.Activator,
	publisher events.DomainEventPublisher,
	metrics MonitorMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) (*Monitor, error) {
	if cfg.StorageKey == "" {
		cfg.StorageKey = DefaultStorageKey
	}
	if cfg.RecoveryConcurrency <= 0 {
		cfg.RecoveryConcurrency = 8
	}

	schedule, err := NewPollSchedule(cfg.PollUnit, cfg.PollTable)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll schedule: %w", err)
	}

	id := uuid.NewString()
	log := logger.With("component", "monitor", "monitor_id", id)
	m := &Monitor{
		id:        id,
		cfg:       cfg,
		svc:       svc,
		store:     store,
		activator: activator,
		outbox:    newOutbox(publisher, cfg.EventQueueSize, metrics, log),
		mailbox:   make(chan func()),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		items:     make(map[string]*background.TrackedItem),
		deleted:   make(map[string]struct{}),
		schedule:  schedule,
		metrics:   metrics,
		logger:    log,
		tracer:    tracer,
	}

	go m.run()
	return m, nil
}

// ID returns the monitor instance id.
func (m *Monitor) ID() string { return m.id }

// Publisher returns the monitor's queued publisher. Components that raise
// events from inside the event loop, such as completion handlers, publish
// through it.
func (m *Monitor) Publisher() events.DomainEventPublisher { return m.outbox }

func (m *Monitor) run() {
	defer close(m.stopped)

	for {
		var tick <-chan time.Time
		if m.timer != nil {
			tick = m.timer.C
		}

		select {
		case fn := <-m.mailbox:
			fn()

		case <-tick:
			m.pollAll(m.pollCtx)
			m.timer.Reset(m.schedule.NextBackOff())

		case <-m.quit:
			if m.timer != nil {
				m.timer.Stop()
			}
			return
		}
	}
}

// do runs fn on the event loop and waits for it to finish.
func (m *Monitor) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case m.mailbox <- wrapped:
	case <-m.quit:
		return ErrMonitorClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	<-done
	return nil
}

// post hands fn to the event loop without waiting for it. It returns false
// once the monitor is closed.
func (m *Monitor) post(fn func()) bool {
	select {
	case m.mailbox <- fn:
		return true
	case <-m.quit:
		return false
	}
}

// Start arms the poll timer and, if configured, the persistence loop. The
// timer keeps firing until Stop; a pass with nothing to poll does no I/O.
func (m *Monitor) Start(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "monitor.start",
		trace.WithAttributes(
			attribute.String("monitor_id", m.id),
			attribute.Int("poll_table_len", m.schedule.Len()),
			attribute.String("poll_unit", m.cfg.PollUnit.String()),
			attribute.String("persist_interval", m.cfg.PersistInterval.String()),
		))
	defer span.End()

	ctx, m.cancel = context.WithCancelCause(ctx)

	if err := m.do(ctx, func() {
		m.pollCtx = ctx
		if m.timer == nil {
			m.timer = time.NewTimer(m.schedule.Current())
		}
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start")
		return err
	}

	if m.cfg.PersistInterval > 0 && m.store != nil {
		m.loops.Add(1)
		go m.persistLoop(ctx)
	}

	span.AddEvent("monitor_started")
	m.logger.Info(ctx, "monitor started", "poll_unit", m.cfg.PollUnit)
	return nil
}

// Stop halts the loops, waits for in-flight requests, saves the item list
// once more, shuts down the event loop and delivers queued events.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel(errors.New("monitor stopping"))
	}
	m.loops.Wait()

	var errs []error
	if err := m.AwaitInflight(ctx); err != nil && !errors.Is(err, ErrMonitorClosed) {
		errs = append(errs, fmt.Errorf("failed waiting for in-flight requests: %w", err))
	}
	if m.store != nil {
		if err := m.Persist(ctx); err != nil && !errors.Is(err, ErrMonitorClosed) {
			errs = append(errs, err)
		}
	}

	m.closeOnce.Do(func() { close(m.quit) })
	<-m.stopped

	if err := m.outbox.close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed draining event queue: %w", err))
	}

	m.logger.Info(ctx, "monitor stopped")
	return errors.Join(errs...)
}

func (m *Monitor) persistLoop(ctx context.Context) {
	defer m.loops.Done()

	ticker := time.NewTicker(m.cfg.PersistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Persist(ctx); err != nil {
				m.logger.Error(ctx, "periodic persist failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Add starts monitoring item. It is a no-op returning false if the item's id
// has been deleted. Adding an id that is already monitored replaces it.
func (m *Monitor) Add(ctx context.Context, item *background.TrackedItem) bool {
	if item == nil {
		panic("monitor: Add called with nil item")
	}

	clone := item.Clone()
	var added bool
	if err := m.do(ctx, func() { added = m.addItem(ctx, clone) }); err != nil {
		m.logger.Warn(ctx, "add rejected", "item_id", clone.ID(), "error", err)
		return false
	}
	return added
}

func (m *Monitor) addItem(ctx context.Context, item *background.TrackedItem) bool {
	id := item.ID()
	if _, gone := m.deleted[id]; gone {
		m.logger.Debug(ctx, "ignoring add of deleted item", "item_id", id)
		return false
	}

	if _, exists := m.items[id]; !exists {
		m.order = append(m.order, id)
	}
	m.items[id] = item
	m.metrics.SetItemsTracked(ctx, len(m.items))

	m.publish(ctx, background.NewItemAddedEvent(item), id)
	return true
}

// Remove stops monitoring id and tombstones it so late responses and re-adds
// are ignored. It reports whether an item was present. Calling it again is
// harmless.
func (m *Monitor) Remove(ctx context.Context, id string) bool {
	var removed bool
	_ = m.do(ctx, func() { removed = m.removeItem(ctx, id, "removed") })
	return removed
}

func (m *Monitor) removeItem(ctx context.Context, id, reason string) bool {
	m.deleted[id] = struct{}{}

	if _, ok := m.items[id]; !ok {
		return false
	}
	delete(m.items, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.metrics.SetItemsTracked(ctx, len(m.items))

	m.publish(ctx, background.NewItemRemovedEvent(id, reason), id)
	return true
}

// Forget clears the tombstone of id so it may be added again.
func (m *Monitor) Forget(ctx context.Context, id string) error {
	return m.do(ctx, func() {
		delete(m.deleted, id)
		if f, ok := m.activator.(forgetter); ok {
			f.Forget(id)
		}
	})
}

// IsDeleted reports whether id has been tombstoned.
func (m *Monitor) IsDeleted(id string) bool {
	var gone bool
	_ = m.do(context.Background(), func() { gone = m.isDeleted(id) })
	return gone
}

func (m *Monitor) isDeleted(id string) bool {
	_, gone := m.deleted[id]
	return gone
}

// IsMonitored reports whether id is currently tracked.
func (m *Monitor) IsMonitored(id string) bool {
	var ok bool
	_ = m.do(context.Background(), func() { _, ok = m.items[id] })
	return ok
}

// Get returns a copy of the item tracked under id.
func (m *Monitor) Get(id string) (*background.TrackedItem, bool) {
	var item *background.TrackedItem
	_ = m.do(context.Background(), func() {
		if it, ok := m.items[id]; ok {
			item = it.Clone()
		}
	})
	return item, item != nil
}

// Items returns copies of all tracked items in insertion order.
func (m *Monitor) Items() []*background.TrackedItem {
	var out []*background.TrackedItem
	_ = m.do(context.Background(), func() {
		out = make([]*background.TrackedItem, 0, len(m.order))
		for _, id := range m.order {
			out = append(out, m.items[id].Clone())
		}
	})
	return out
}

// Summary reports what the tracked items need from the user.
func (m *Monitor) Summary() background.Summary {
	var s background.Summary
	_ = m.do(context.Background(), func() { s = background.Summarize(m.orderedItems()) })
	return s
}

// orderedItems returns the live items in insertion order. Event loop only.
func (m *Monitor) orderedItems() []*background.TrackedItem {
	out := make([]*background.TrackedItem, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out
}

// Cancel asks the server to cancel every job of the item and removes it
// immediately, without waiting for the server.
func (m *Monitor) Cancel(ctx context.Context, id string) error {
	return m.terminate(ctx, id, "cancel", false)
}

// Cleanup asks the server to discard every job of the item and removes it
// immediately, without waiting for the server.
func (m *Monitor) Cleanup(ctx context.Context, id string) error {
	return m.terminate(ctx, id, "cleanup", false)
}

// Dismiss removes a finished item, or cancels one that is still running.
func (m *Monitor) Dismiss(ctx context.Context, id string) error {
	return m.terminate(ctx, id, "cancel", true)
}

func (m *Monitor) terminate(ctx context.Context, id, op string, dismiss bool) error {
	ctx, span := m.tracer.Start(ctx, "monitor."+op,
		trace.WithAttributes(
			attribute.String("item_id", id),
			attribute.Bool("dismiss", dismiss),
		))
	defer span.End()

	call := m.svc.Cancel
	if op == "cleanup" {
		call = m.svc.Cleanup
	}

	var found bool
	err := m.do(ctx, func() {
		item, ok := m.items[id]
		if !ok {
			return
		}
		found = true

		if dismiss && item.State().IsDone() {
			m.removeItem(ctx, id, "dismissed")
			return
		}

		reqCtx := context.WithoutCancel(ctx)
		for _, jobID := range item.JobIDs() {
			m.fireAndForget(reqCtx, op, jobID, call)
		}
		m.removeItem(ctx, id, op)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "monitor unavailable")
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", background.ErrItemNotFound, id)
	}

	span.AddEvent("item_removed")
	return nil
}

// fireAndForget sends a best-effort request. Failures are only logged. Event
// loop only.
func (m *Monitor) fireAndForget(
	ctx context.Context,
	op, jobID string,
	call func(context.Context, string) error,
) {
	m.pending++
	go func() {
		err := call(ctx, jobID)
		m.post(func() {
			defer m.requestDone()
			if err != nil {
				m.logger.Warn(ctx, "best-effort request failed",
					"operation", op,
					"job_id", jobID,
					"error", err,
				)
			}
		})
	}()
}

// Activate runs the completion handler for sub-job subIndex of item id on
// behalf of the user.
func (m *Monitor) Activate(ctx context.Context, id string, subIndex int) error {
	var actErr error
	err := m.do(ctx, func() {
		item, ok := m.items[id]
		if !ok {
			actErr = fmt.Errorf("%w: %s", background.ErrItemNotFound, id)
			return
		}
		if subIndex < 0 || subIndex >= item.Len() {
			actErr = fmt.Errorf("%w: %d", background.ErrSubIndexOutOfRange, subIndex)
			return
		}
		if item.ResolvedState(subIndex) != background.JobStateSuccess {
			actErr = fmt.Errorf("%w: item %s sub-job %d", ErrNotReady, id, subIndex)
			return
		}
		actErr = m.activate(ctx, item, subIndex, false)
	})
	if err != nil {
		return err
	}
	return actErr
}

// activate invokes the activator and marks the sub-job, whatever the outcome,
// so a handler never runs twice for the same sub-job. Event loop only.
func (m *Monitor) activate(ctx context.Context, item *background.TrackedItem, subIndex int, automatic bool) error {
	defer item.MarkActivated(subIndex)
	if m.activator == nil || item.UIType() == background.UITypeNone {
		return nil
	}

	if err := m.activator.Activate(ctx, item.Clone(), subIndex, automatic); err != nil {
		m.metrics.IncActivationErrors(ctx)
		m.logger.Warn(ctx, "activation failed",
			"item_id", item.ID(),
			"sub_index", subIndex,
			"automatic", automatic,
			"error", err,
		)
		return err
	}

	m.metrics.IncActivations(ctx)
	return nil
}

// AwaitInflight blocks until every issued request has been applied or
// discarded and the events they raised have been delivered.
func (m *Monitor) AwaitInflight(ctx context.Context) error {
	ch := make(chan struct{})
	if err := m.do(ctx, func() {
		if m.pending == 0 {
			close(ch)
			return
		}
		m.idleWaiters = append(m.idleWaiters, ch)
	}); err != nil {
		return err
	}

	select {
	case <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.outbox.flush(ctx)
}

// requestDone settles one in-flight request. Event loop only.
func (m *Monitor) requestDone() {
	m.pending--
	if m.pending > 0 {
		return
	}
	for _, ch := range m.idleWaiters {
		close(ch)
	}
	m.idleWaiters = nil
}

func (m *Monitor) publish(ctx context.Context, evt events.DomainEvent, key string) {
	if err := m.outbox.PublishDomainEvent(ctx, evt, events.WithKey(key)); err != nil {
		m.logger.Warn(ctx, "failed to publish monitor event",
			"event_type", string(evt.EventType()),
			"item_id", key,
			"error", err,
		)
	}
}
