package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/internal/domain/events"
	"github.com/ahrav/jobwatch/internal/infra/storage/monitor/memory"
	"github.com/ahrav/jobwatch/pkg/common/logger"
)

// mockStatusService implements background.StatusService for testing.
type mockStatusService struct{ mock.Mock }

func (m *mockStatusService) GetStatus(ctx context.Context, jobID string) (background.StatusRecord, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(background.StatusRecord), args.Error(1)
}

func (m *mockStatusService) Cancel(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *mockStatusService) Cleanup(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *mockStatusService) GetDownloadProgress(ctx context.Context, filePath string) (background.DownloadProgress, error) {
	args := m.Called(ctx, filePath)
	return args.Get(0).(background.DownloadProgress), args.Error(1)
}

// mockActivator implements background.Activator for testing.
type mockActivator struct{ mock.Mock }

func (m *mockActivator) Activate(ctx context.Context, item *background.TrackedItem, subIndex int, automatic bool) error {
	args := m.Called(ctx, item, subIndex, automatic)
	return args.Error(0)
}

// recordingPublisher keeps every published event. While held, every publish
// blocks until released.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
	gate   chan struct{}
}

func (p *recordingPublisher) PublishDomainEvent(_ context.Context, event events.DomainEvent, _ ...events.PublishOption) error {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// hold makes publishes block until the returned release func is called.
func (p *recordingPublisher) hold() (release func()) {
	gate := make(chan struct{})
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.gate = nil
			p.mu.Unlock()
			close(gate)
		})
	}
}

func (p *recordingPublisher) count(t events.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var n int
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

type testMonitor struct {
	*Monitor
	svc       *mockStatusService
	activator *mockActivator
	publisher *recordingPublisher
	store     *memory.StateStore
}

func newTestMonitor(t *testing.T, cfg Config) *testMonitor {
	t.Helper()

	pub := new(recordingPublisher)
	tm := newTestMonitorWithPublisher(t, cfg, pub)
	tm.publisher = pub
	return tm
}

func newTestMonitorWithPublisher(t *testing.T, cfg Config, pub events.DomainEventPublisher) *testMonitor {
	t.Helper()

	svc := new(mockStatusService)
	act := new(mockActivator)
	store := memory.NewStateStore()

	metrics, err := NewMonitorMetrics(metricnoop.NewMeterProvider())
	require.NoError(t, err)

	mon, err := NewMonitor(cfg, svc, store, act, pub, metrics, logger.Noop(), noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mon.Stop(ctx)
	})

	return &testMonitor{Monitor: mon, svc: svc, activator: act, store: store}
}

// pollAndWait runs one poll pass and waits until every response is applied.
func (tm *testMonitor) pollAndWait(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, tm.PollAll(ctx))
	require.NoError(t, tm.AwaitInflight(ctx))
}

func status(id string, state background.JobState) background.StatusRecord {
	return background.StatusRecord{ID: id, Kind: background.JobKindSearch, State: state}
}

func newSingle(t *testing.T, id string, state background.JobState, ui background.UIType, watchable bool) *background.TrackedItem {
	t.Helper()

	item, err := background.NewTrackedItem("job "+id, ui, watchable, status(id, state))
	require.NoError(t, err)
	return item
}

func newGroup(t *testing.T, groupID string, ui background.UIType, members ...background.StatusRecord) *background.TrackedItem {
	t.Helper()

	item, err := background.NewCompositeItem(groupID, "group "+groupID, ui, true, members)
	require.NoError(t, err)
	return item
}
