package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/jobwatch/internal/domain/background"
)

// Reasons a status response is dropped without being applied.
const (
	discardDeleted       = "deleted"
	discardNotMonitored  = "not_monitored"
	discardIDMismatch    = "id_mismatch"
	discardUnknownMember = "unknown_member"
)

// PollAll issues one status request for every non-terminal job of every
// tracked item. It returns once the requests are issued; responses are
// applied as they arrive. Use AwaitInflight to wait for them.
func (m *Monitor) PollAll(ctx context.Context) error {
	return m.do(ctx, func() { m.pollAll(ctx) })
}

// pollAll runs on the event loop.
func (m *Monitor) pollAll(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := m.tracer.Start(ctx, "monitor.poll_all",
		trace.WithAttributes(
			attribute.Int("items", len(m.items)),
			attribute.Int("schedule_cursor", m.schedule.Cursor()),
		))
	defer span.End()

	m.metrics.IncPollsFired(ctx)

	// Requests outlive the poll and any caller deadline.
	reqCtx := context.WithoutCancel(ctx)
	var issued int
	for _, id := range m.order {
		for _, jobID := range m.items[id].PendingJobIDs() {
			m.requestStatus(reqCtx, id, jobID)
			issued++
		}
	}

	span.SetAttributes(attribute.Int("requests_issued", issued))
	if issued == 0 {
		span.AddEvent("nothing_to_poll")
	}
}

// requestStatus asks the server for jobID and posts the answer back to the
// event loop. Event loop only.
func (m *Monitor) requestStatus(ctx context.Context, itemID, jobID string) {
	m.pending++
	m.metrics.IncStatusRequests(ctx)

	go func() {
		rec, err := m.svc.GetStatus(ctx, jobID)
		m.post(func() { m.applyStatus(ctx, itemID, jobID, rec, err) })
	}()
}

// applyStatus folds a status response into the item it was requested for.
// Event loop only.
func (m *Monitor) applyStatus(
	ctx context.Context,
	itemID, jobID string,
	rec background.StatusRecord,
	reqErr error,
) {
	defer m.requestDone()

	ctx, span := m.tracer.Start(ctx, "monitor.apply_status",
		trace.WithAttributes(
			attribute.String("item_id", itemID),
			attribute.String("job_id", jobID),
		))
	defer span.End()

	if reqErr != nil {
		m.metrics.IncStatusRequestErrors(ctx)
		span.RecordError(reqErr)
		span.SetStatus(codes.Error, "status request failed")
		m.logger.Warn(ctx, "status request failed, retrying on next poll",
			"item_id", itemID,
			"job_id", jobID,
			"error", reqErr,
		)
		return
	}

	if m.isDeleted(itemID) || m.isDeleted(jobID) {
		m.discard(ctx, span, discardDeleted)
		return
	}
	item, ok := m.items[itemID]
	if !ok {
		m.discard(ctx, span, discardNotMonitored)
		return
	}
	if rec.ID != jobID {
		m.discard(ctx, span, discardIDMismatch)
		m.logger.Warn(ctx, "status response id does not match request",
			"item_id", itemID,
			"job_id", jobID,
			"response_id", rec.ID,
		)
		return
	}

	idx := item.IndexOf(jobID)
	if idx < 0 {
		m.discard(ctx, span, discardUnknownMember)
		return
	}

	previous := item.ResolvedState(idx)
	item.ApplyStatus(rec)
	current := item.ResolvedState(idx)
	span.SetAttributes(
		attribute.String("previous_state", previous.String()),
		attribute.String("state", current.String()),
		attribute.String("item_state", item.State().String()),
	)

	m.publish(ctx, background.NewItemStatusChangedEvent(item, idx, previous), itemID)

	if current == background.JobStateSuccess && !item.IsActivated(idx) {
		span.AddEvent("activating", trace.WithAttributes(attribute.Int("sub_index", idx)))
		_ = m.activate(ctx, item, idx, true)
	}
}

func (m *Monitor) discard(ctx context.Context, span trace.Span, reason string) {
	m.metrics.IncResponsesDiscarded(ctx, reason)
	span.AddEvent("response_discarded", trace.WithAttributes(attribute.String("reason", reason)))
}

// AddGroup queries every job in jobIDs, folds them into one composite item and
// starts monitoring it. An empty groupID is replaced with a generated one.
func (m *Monitor) AddGroup(
	ctx context.Context,
	groupID, title string,
	uiType background.UIType,
	watchable bool,
	jobIDs []string,
) (*background.TrackedItem, error) {
	ctx, span := m.tracer.Start(ctx, "monitor.add_group",
		trace.WithAttributes(
			attribute.String("group_id", groupID),
			attribute.Int("members", len(jobIDs)),
		))
	defer span.End()

	if len(jobIDs) == 0 {
		span.SetStatus(codes.Error, "empty group")
		return nil, background.ErrEmptyComposite
	}

	members, err := m.fetchAll(ctx, jobIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query group members")
		return nil, fmt.Errorf("failed to query group members: %w", err)
	}

	item, err := background.NewCompositeItem(groupID, title, uiType, watchable, members)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build composite")
		return nil, fmt.Errorf("failed to build composite item: %w", err)
	}

	if !m.Add(ctx, item) {
		return nil, fmt.Errorf("%w: %s", ErrItemDeleted, item.ID())
	}

	span.SetAttributes(attribute.String("item_state", item.State().String()))
	return item, nil
}

// fetchAll queries every id concurrently and returns the records in the same
// order. Any failure fails the whole call.
func (m *Monitor) fetchAll(ctx context.Context, jobIDs []string) ([]background.StatusRecord, error) {
	records := make([]background.StatusRecord, len(jobIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, jobID := range jobIDs {
		g.Go(func() error {
			m.metrics.IncStatusRequests(gctx)
			rec, err := m.svc.GetStatus(gctx, jobID)
			if err != nil {
				m.metrics.IncStatusRequestErrors(gctx)
				return fmt.Errorf("failed to get status for job %s: %w", jobID, err)
			}
			if rec.ID != jobID {
				return fmt.Errorf("status for job %s returned id %q", jobID, rec.ID)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return records, nil
}
