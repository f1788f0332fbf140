package monitor

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MonitorMetrics defines the metrics the monitor records.
type MonitorMetrics interface {
	IncPollsFired(ctx context.Context)
	IncStatusRequests(ctx context.Context)
	IncStatusRequestErrors(ctx context.Context)
	IncResponsesDiscarded(ctx context.Context, reason string)
	IncActivations(ctx context.Context)
	IncActivationErrors(ctx context.Context)
	IncItemsRecovered(ctx context.Context, n int)
	IncRecoveryDropped(ctx context.Context, reason string)
	SetItemsTracked(ctx context.Context, n int)
	IncEventsDropped(ctx context.Context)
}

type monitorMetrics struct {
	pollsFired          metric.Int64Counter
	statusRequests      metric.Int64Counter
	statusRequestErrors metric.Int64Counter
	responsesDiscarded  metric.Int64Counter
	activations         metric.Int64Counter
	activationErrors    metric.Int64Counter
	itemsRecovered      metric.Int64Counter
	recoveryDropped     metric.Int64Counter
	itemsTracked        metric.Int64Gauge
	eventsDropped       metric.Int64Counter
}

const namespace = "jobwatch_monitor"

// NewMonitorMetrics creates the monitor's otel instruments.
func NewMonitorMetrics(mp metric.MeterProvider) (*monitorMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(monitorMetrics)
	var err error

	if m.pollsFired, err = meter.Int64Counter(
		"polls_fired_total",
		metric.WithDescription("Total number of scheduled or explicit poll passes"),
	); err != nil {
		return nil, err
	}

	if m.statusRequests, err = meter.Int64Counter(
		"status_requests_total",
		metric.WithDescription("Total number of job status requests issued"),
	); err != nil {
		return nil, err
	}

	if m.statusRequestErrors, err = meter.Int64Counter(
		"status_request_errors_total",
		metric.WithDescription("Total number of job status requests that failed"),
	); err != nil {
		return nil, err
	}

	if m.responsesDiscarded, err = meter.Int64Counter(
		"responses_discarded_total",
		metric.WithDescription("Total number of status responses dropped before being applied"),
	); err != nil {
		return nil, err
	}

	if m.activations, err = meter.Int64Counter(
		"activations_total",
		metric.WithDescription("Total number of completion handlers run"),
	); err != nil {
		return nil, err
	}

	if m.activationErrors, err = meter.Int64Counter(
		"activation_errors_total",
		metric.WithDescription("Total number of completion handlers that failed"),
	); err != nil {
		return nil, err
	}

	if m.itemsRecovered, err = meter.Int64Counter(
		"items_recovered_total",
		metric.WithDescription("Total number of items rebuilt from persisted state"),
	); err != nil {
		return nil, err
	}

	if m.recoveryDropped, err = meter.Int64Counter(
		"recovery_dropped_total",
		metric.WithDescription("Total number of persisted items dropped during recovery"),
	); err != nil {
		return nil, err
	}

	if m.itemsTracked, err = meter.Int64Gauge(
		"items_tracked",
		metric.WithDescription("Number of items currently monitored"),
	); err != nil {
		return nil, err
	}

	if m.eventsDropped, err = meter.Int64Counter(
		"events_dropped_total",
		metric.WithDescription("Total number of monitor events dropped because the event queue was full"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *monitorMetrics) IncPollsFired(ctx context.Context) { m.pollsFired.Add(ctx, 1) }

func (m *monitorMetrics) IncStatusRequests(ctx context.Context) { m.statusRequests.Add(ctx, 1) }

func (m *monitorMetrics) IncStatusRequestErrors(ctx context.Context) {
	m.statusRequestErrors.Add(ctx, 1)
}

func (m *monitorMetrics) IncResponsesDiscarded(ctx context.Context, reason string) {
	m.responsesDiscarded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *monitorMetrics) IncActivations(ctx context.Context) { m.activations.Add(ctx, 1) }

func (m *monitorMetrics) IncActivationErrors(ctx context.Context) { m.activationErrors.Add(ctx, 1) }

func (m *monitorMetrics) IncItemsRecovered(ctx context.Context, n int) {
	m.itemsRecovered.Add(ctx, int64(n))
}

func (m *monitorMetrics) IncRecoveryDropped(ctx context.Context, reason string) {
	m.recoveryDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *monitorMetrics) SetItemsTracked(ctx context.Context, n int) {
	m.itemsTracked.Record(ctx, int64(n))
}

func (m *monitorMetrics) IncEventsDropped(ctx context.Context) { m.eventsDropped.Add(ctx, 1) }
