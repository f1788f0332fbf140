package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/internal/infra/serialization/monitorlist"
	"github.com/ahrav/jobwatch/pkg/common/logger"
)

// Reasons a persisted record is not recovered.
const (
	dropQueryFailed = "query_failed"
	dropJobFailed   = "job_failed"
	dropBuildFailed = "build_failed"
	dropDeleted     = "deleted"
)

// RecoveryReport summarizes one recovery pass.
type RecoveryReport struct {
	// Added counts items rebuilt and added to the monitor.
	Added int
	// Dropped counts well-formed records that were not recovered.
	Dropped int
	// Malformed holds one error per record that could not be decoded.
	Malformed []error
}

// Persist saves the current item list under the configured storage key.
func (m *Monitor) Persist(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "monitor.persist",
		trace.WithAttributes(attribute.String("storage_key", m.cfg.StorageKey)))
	defer span.End()

	var (
		text  string
		count int
	)
	if err := m.do(ctx, func() {
		items := m.orderedItems()
		count = len(items)
		text = monitorlist.SerializeMonitorList(items)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "monitor unavailable")
		return err
	}

	if err := m.store.Save(ctx, m.cfg.StorageKey, text); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save item list")
		return fmt.Errorf("failed to persist monitor items: %w", err)
	}

	span.SetAttributes(attribute.Int("items", count), attribute.Int("bytes", len(text)))
	m.logger.Debug(ctx, "monitor items persisted", "items", count)
	return nil
}

// Restore loads the item list saved under the configured storage key and
// recovers it. A missing key is not an error.
func (m *Monitor) Restore(ctx context.Context) (RecoveryReport, error) {
	ctx, span := m.tracer.Start(ctx, "monitor.restore",
		trace.WithAttributes(attribute.String("storage_key", m.cfg.StorageKey)))
	defer span.End()

	text, err := m.store.Load(ctx, m.cfg.StorageKey)
	if err != nil {
		if errors.Is(err, background.ErrStateNotFound) {
			span.AddEvent("nothing_persisted")
			return RecoveryReport{}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load item list")
		return RecoveryReport{}, fmt.Errorf("failed to load monitor items: %w", err)
	}

	return m.DeserializeAndLoad(ctx, text), nil
}

// DeserializeAndLoad decodes text and rebuilds every record by querying the
// server for fresh status. Records recover concurrently and independently: a
// malformed record, a failed query or a failed job drops only that record.
func (m *Monitor) DeserializeAndLoad(ctx context.Context, text string) RecoveryReport {
	ctx, span := m.tracer.Start(ctx, "monitor.deserialize_and_load")
	defer span.End()

	records, malformed := monitorlist.Decode(text)
	for _, err := range malformed {
		m.metrics.IncRecoveryDropped(ctx, "malformed")
		m.logger.Warn(ctx, "skipping malformed persisted record", "error", err)
	}

	var (
		mu     sync.Mutex
		report = RecoveryReport{Malformed: malformed}
	)

	g := new(errgroup.Group)
	g.SetLimit(m.cfg.RecoveryConcurrency)
	for _, rec := range records {
		g.Go(func() error {
			reason := m.recoverRecord(ctx, rec)

			mu.Lock()
			defer mu.Unlock()
			if reason == "" {
				report.Added++
				return nil
			}
			report.Dropped++
			m.metrics.IncRecoveryDropped(ctx, reason)
			return nil
		})
	}
	_ = g.Wait()

	m.metrics.IncItemsRecovered(ctx, report.Added)
	span.SetAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("added", report.Added),
		attribute.Int("dropped", report.Dropped),
		attribute.Int("malformed", len(malformed)),
	)
	m.logger.Info(ctx, "monitor recovery finished",
		"added", report.Added,
		"dropped", report.Dropped,
		"malformed", len(malformed),
	)

	return report
}

// recoverRecord rebuilds and adds one record. It returns the drop reason, or
// "" when the item was added.
func (m *Monitor) recoverRecord(ctx context.Context, rec monitorlist.Record) string {
	logCtx := logger.NewLoggerContext(m.logger.With("operation", "recover", "item_id", rec.ID))

	var (
		item *background.TrackedItem
		err  error
	)
	if rec.IsComposite() {
		logCtx.Add("members", len(rec.SubIDs))
		var members []background.StatusRecord
		members, err = m.fetchAll(ctx, rec.SubIDs)
		if err != nil {
			logCtx.Warn(ctx, "dropping composite, member query failed", "error", err)
			return dropQueryFailed
		}
		item, err = background.NewCompositeItem(rec.ID, rec.Title, rec.UIType, rec.Watchable, members)
	} else {
		var reason string
		item, reason = m.recoverSingle(ctx, logCtx, rec)
		if reason != "" {
			return reason
		}
	}
	if err != nil {
		logCtx.Warn(ctx, "dropping record, failed to rebuild item", "error", err)
		return dropBuildFailed
	}

	item.RestoreActivation(rec.Activated)
	item.MarkRecreated()

	if !m.Add(ctx, item) {
		logCtx.Debug(ctx, "recovered item was deleted meanwhile")
		return dropDeleted
	}

	logCtx.Debug(ctx, "item recovered", "state", item.State().String(), "watchable", item.Watchable())
	return ""
}

func (m *Monitor) recoverSingle(
	ctx context.Context,
	logCtx *logger.LoggerContext,
	rec monitorlist.Record,
) (*background.TrackedItem, string) {
	m.metrics.IncStatusRequests(ctx)
	status, err := m.svc.GetStatus(ctx, rec.ID)
	if err != nil {
		m.metrics.IncStatusRequestErrors(ctx)
		logCtx.Warn(ctx, "dropping record, status query failed", "error", err)
		return nil, dropQueryFailed
	}
	if status.ID != rec.ID {
		logCtx.Warn(ctx, "dropping record, status id mismatch", "response_id", status.ID)
		return nil, dropQueryFailed
	}
	if status.State.IsFail() {
		logCtx.Debug(ctx, "dropping record, job failed", "state", status.State.String())
		return nil, dropJobFailed
	}

	watchable := rec.Watchable
	if watchable && status.State == background.JobStateSuccess && status.FilePath != "" {
		watchable = m.downloadStillWatched(ctx, logCtx, status.FilePath)
	}

	item, err := background.NewTrackedItem(rec.Title, rec.UIType, watchable, status)
	if err != nil {
		logCtx.Warn(ctx, "dropping record, failed to rebuild item", "error", err)
		return nil, dropBuildFailed
	}
	return item, ""
}

// downloadStillWatched reports whether a finished file still has a trailing
// download to watch. Only a completed download stops the watch.
func (m *Monitor) downloadStillWatched(ctx context.Context, logCtx *logger.LoggerContext, filePath string) bool {
	progress, err := m.svc.GetDownloadProgress(ctx, filePath)
	if err != nil {
		logCtx.Warn(ctx, "download progress query failed, keeping watch", "file_path", filePath, "error", err)
		return true
	}
	logCtx.Debug(ctx, "download progress", "file_path", filePath, "progress", string(progress))
	return progress != background.DownloadDone
}
