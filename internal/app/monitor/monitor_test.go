package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/jobwatch/internal/domain/background"
	"github.com/ahrav/jobwatch/internal/infra/serialization/monitorlist"
)

func TestMonitor_SingleJobWorkingThenSuccess(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "J1", background.JobStateStarting, background.UITypeDownload, true)))

	tm.svc.On("GetStatus", mock.Anything, "J1").
		Return(status("J1", background.JobStateWorking), nil).Once()

	tm.pollAndWait(t)

	item, ok := tm.Get("J1")
	require.True(t, ok)
	assert.Equal(t, background.JobStateWorking, item.State())
	assert.False(t, item.State().IsDone())
	assert.Equal(t, 1, tm.publisher.count(background.EventTypeItemStatusChanged))
	tm.activator.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	done := status("J1", background.JobStateSuccess)
	done.FilePath = "/out.zip"
	tm.svc.On("GetStatus", mock.Anything, "J1").Return(done, nil).Once()
	tm.activator.On("Activate", mock.Anything, mock.Anything, 0, true).Return(nil).Once()

	tm.pollAndWait(t)

	item, ok = tm.Get("J1")
	require.True(t, ok)
	assert.Equal(t, background.JobStateSuccess, item.State())
	assert.Equal(t, "/out.zip", item.Primary().FilePath)
	assert.True(t, item.IsActivated(0))
	tm.activator.AssertNumberOfCalls(t, "Activate", 1)

	// A finished job is no longer polled, so nothing can activate it again.
	tm.pollAndWait(t)
	tm.svc.AssertNumberOfCalls(t, "GetStatus", 2)
	tm.activator.AssertNumberOfCalls(t, "Activate", 1)
}

func TestMonitor_RemoveWinsOverInflightResponse(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "J1", background.JobStateWorking, background.UITypeDownload, true)))

	release := make(chan struct{})
	tm.svc.On("GetStatus", mock.Anything, "J1").
		Run(func(mock.Arguments) { <-release }).
		Return(status("J1", background.JobStateSuccess), nil).Once()

	require.NoError(t, tm.PollAll(ctx))
	assert.True(t, tm.Remove(ctx, "J1"))
	close(release)
	require.NoError(t, tm.AwaitInflight(ctx))

	assert.False(t, tm.IsMonitored("J1"))
	assert.True(t, tm.IsDeleted("J1"))
	assert.Zero(t, tm.publisher.count(background.EventTypeItemStatusChanged))
	tm.activator.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	// The tombstone also blocks a re-add until it is forgotten.
	assert.False(t, tm.Add(ctx, newSingle(t, "J1", background.JobStateWorking, background.UITypeNone, false)))
	assert.False(t, tm.Remove(ctx, "J1"))

	require.NoError(t, tm.Forget(ctx, "J1"))
	assert.False(t, tm.IsDeleted("J1"))
	assert.True(t, tm.Add(ctx, newSingle(t, "J1", background.JobStateWorking, background.UITypeNone, false)))
}

func TestMonitor_TransientPollFailureIsIgnored(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "J1", background.JobStateWorking, background.UITypeNone, false)))

	tm.svc.On("GetStatus", mock.Anything, "J1").
		Return(background.StatusRecord{}, errors.New("connection refused")).Once()
	tm.pollAndWait(t)

	item, ok := tm.Get("J1")
	require.True(t, ok)
	assert.Equal(t, background.JobStateWorking, item.State())

	tm.svc.On("GetStatus", mock.Anything, "J1").
		Return(status("J1", background.JobStateFail), nil).Once()
	tm.pollAndWait(t)

	item, ok = tm.Get("J1")
	require.True(t, ok)
	assert.Equal(t, background.JobStateFail, item.State())
	tm.activator.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMonitor_MismatchedResponseIsDiscarded(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "J1", background.JobStateWorking, background.UITypeNone, false)))

	tm.svc.On("GetStatus", mock.Anything, "J1").
		Return(status("J2", background.JobStateSuccess), nil).Once()
	tm.pollAndWait(t)

	item, ok := tm.Get("J1")
	require.True(t, ok)
	assert.Equal(t, background.JobStateWorking, item.State())
}

func TestMonitor_CompositeActivatesEachSubJobOnce(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	group := newGroup(t, "G1", background.UITypePackage,
		status("A", background.JobStateWorking),
		status("B", background.JobStateWorking),
	)
	require.True(t, tm.Add(ctx, group))

	tm.svc.On("GetStatus", mock.Anything, "A").Return(status("A", background.JobStateSuccess), nil).Once()
	tm.svc.On("GetStatus", mock.Anything, "B").Return(status("B", background.JobStateWorking), nil).Once()
	tm.activator.On("Activate", mock.Anything, mock.Anything, 0, true).Return(nil).Once()

	tm.pollAndWait(t)

	item, _ := tm.Get("G1")
	assert.Equal(t, background.JobStateWaiting, item.State())
	assert.Equal(t, []bool{true, false}, item.ActivationFlags())

	// Only B is still pending; A is never polled or activated again.
	tm.svc.On("GetStatus", mock.Anything, "B").Return(status("B", background.JobStateSuccess), nil).Once()
	tm.activator.On("Activate", mock.Anything, mock.Anything, 1, true).Return(nil).Once()

	tm.pollAndWait(t)

	item, _ = tm.Get("G1")
	assert.Equal(t, background.JobStateSuccess, item.State())
	assert.Equal(t, []bool{true, true}, item.ActivationFlags())
	tm.activator.AssertNumberOfCalls(t, "Activate", 2)
	tm.svc.AssertNumberOfCalls(t, "GetStatus", 3)
}

func TestMonitor_ActivationFailureStillMarksSubJob(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "J1", background.JobStateWorking, background.UITypeDownload, true)))

	tm.svc.On("GetStatus", mock.Anything, "J1").Return(status("J1", background.JobStateSuccess), nil).Once()
	tm.activator.On("Activate", mock.Anything, mock.Anything, 0, true).Return(errors.New("boom")).Once()

	tm.pollAndWait(t)

	item, _ := tm.Get("J1")
	assert.True(t, item.IsActivated(0))
}

func TestMonitor_ManualActivate(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "DONE", background.JobStateSuccess, background.UITypeQuery, false)))
	require.True(t, tm.Add(ctx, newSingle(t, "RUN", background.JobStateWorking, background.UITypeQuery, false)))

	tm.activator.On("Activate", mock.Anything, mock.Anything, 0, false).Return(nil).Once()

	require.NoError(t, tm.Activate(ctx, "DONE", 0))
	assert.ErrorIs(t, tm.Activate(ctx, "RUN", 0), ErrNotReady)
	assert.ErrorIs(t, tm.Activate(ctx, "MISSING", 0), background.ErrItemNotFound)
	assert.ErrorIs(t, tm.Activate(ctx, "DONE", 3), background.ErrSubIndexOutOfRange)

	item, _ := tm.Get("DONE")
	assert.True(t, item.IsActivated(0))
}

func TestMonitor_CancelAndCleanup(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "J1", background.JobStateWorking, background.UITypeNone, false)))
	require.True(t, tm.Add(ctx, newGroup(t, "G1", background.UITypePackage,
		status("A", background.JobStateSuccess),
		status("B", background.JobStateWorking),
	)))

	tm.svc.On("Cancel", mock.Anything, "J1").Return(errors.New("server gone")).Once()
	tm.svc.On("Cleanup", mock.Anything, "A").Return(nil).Once()
	tm.svc.On("Cleanup", mock.Anything, "B").Return(nil).Once()

	require.NoError(t, tm.Cancel(ctx, "J1"))
	require.NoError(t, tm.Cleanup(ctx, "G1"))
	require.NoError(t, tm.AwaitInflight(ctx))

	assert.False(t, tm.IsMonitored("J1"))
	assert.False(t, tm.IsMonitored("G1"))
	assert.True(t, tm.IsDeleted("J1"))
	assert.True(t, tm.IsDeleted("G1"))
	assert.Equal(t, 2, tm.publisher.count(background.EventTypeItemRemoved))
	tm.svc.AssertExpectations(t)

	assert.ErrorIs(t, tm.Cancel(ctx, "J1"), background.ErrItemNotFound)
}

func TestMonitor_Dismiss(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "DONE", background.JobStateSuccess, background.UITypeNone, false)))
	require.True(t, tm.Add(ctx, newSingle(t, "RUN", background.JobStateWorking, background.UITypeNone, false)))

	tm.svc.On("Cancel", mock.Anything, "RUN").Return(nil).Once()

	require.NoError(t, tm.Dismiss(ctx, "DONE"))
	require.NoError(t, tm.Dismiss(ctx, "RUN"))
	require.NoError(t, tm.AwaitInflight(ctx))

	assert.Empty(t, tm.Items())
	tm.svc.AssertNotCalled(t, "Cancel", mock.Anything, "DONE")
	tm.svc.AssertExpectations(t)
}

func TestMonitor_AddGroup(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	tm.svc.On("GetStatus", mock.Anything, "A").Return(status("A", background.JobStateStarting), nil).Once()
	tm.svc.On("GetStatus", mock.Anything, "B").Return(status("B", background.JobStateSuccess), nil).Once()

	item, err := tm.AddGroup(ctx, "", "two parts", background.UITypePackage, true, []string{"A", "B"})
	require.NoError(t, err)

	assert.NotEmpty(t, item.ID())
	assert.True(t, item.IsComposite())
	assert.Equal(t, []string{"A", "B"}, item.JobIDs())
	assert.Equal(t, background.JobStateStarting, item.State())
	assert.True(t, tm.IsMonitored(item.ID()))
}

func TestMonitor_AddGroupFailsWhenAnyMemberFails(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	tm.svc.On("GetStatus", mock.Anything, "A").Return(status("A", background.JobStateSuccess), nil).Maybe()
	tm.svc.On("GetStatus", mock.Anything, "B").Return(background.StatusRecord{}, errors.New("timeout")).Once()

	_, err := tm.AddGroup(ctx, "G1", "two parts", background.UITypePackage, true, []string{"A", "B"})
	require.Error(t, err)
	assert.False(t, tm.IsMonitored("G1"))

	_, err = tm.AddGroup(ctx, "G2", "none", background.UITypePackage, true, nil)
	assert.ErrorIs(t, err, background.ErrEmptyComposite)
}

func TestMonitor_Summary(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	assert.Equal(t, background.AttentionNone, tm.Summary().Attention)

	require.True(t, tm.Add(ctx, newSingle(t, "RUN", background.JobStateWorking, background.UITypeNone, false)))
	assert.Equal(t, background.AttentionWorking, tm.Summary().Attention)

	require.True(t, tm.Add(ctx, newSingle(t, "DONE", background.JobStateSuccess, background.UITypeQuery, false)))
	s := tm.Summary()
	assert.Equal(t, 1, s.Working)
	assert.Equal(t, 1, s.Ready)
	assert.Equal(t, background.AttentionReadyWorking, s.Attention)

	require.True(t, tm.Add(ctx, newSingle(t, "BAD", background.JobStateFail, background.UITypeNone, false)))
	assert.Equal(t, background.AttentionFail, tm.Summary().Attention)
}

func TestMonitor_PersistAndRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	src := newTestMonitor(t, DefaultConfig())
	failed := newSingle(t, "F1", background.JobStateFail, background.UITypeDownload, true)
	done := newSingle(t, "S1", background.JobStateSuccess, background.UITypeQuery, false)
	done.MarkActivated(0)
	group := newGroup(t, "G1", background.UITypePackage,
		status("A", background.JobStateWaiting),
		status("B", background.JobStateWaiting),
	)
	require.True(t, src.Add(ctx, failed))
	require.True(t, src.Add(ctx, done))
	require.True(t, src.Add(ctx, group))
	require.NoError(t, src.Persist(ctx))

	blob, err := src.store.Load(ctx, DefaultStorageKey)
	require.NoError(t, err)
	assert.NotContains(t, blob, "F1")

	dst := newTestMonitor(t, DefaultConfig())
	require.NoError(t, dst.store.Save(ctx, DefaultStorageKey, blob))
	dst.svc.On("GetStatus", mock.Anything, "S1").Return(status("S1", background.JobStateSuccess), nil).Once()
	dst.svc.On("GetStatus", mock.Anything, "A").Return(status("A", background.JobStateWaiting), nil).Once()
	dst.svc.On("GetStatus", mock.Anything, "B").Return(status("B", background.JobStateWorking), nil).Once()

	report, err := dst.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
	assert.Zero(t, report.Dropped)
	assert.Empty(t, report.Malformed)

	assert.False(t, dst.IsMonitored("F1"))
	for _, want := range []*background.TrackedItem{done, group} {
		got, ok := dst.Get(want.ID())
		require.True(t, ok, want.ID())
		assert.Equal(t, want.Title(), got.Title())
		assert.Equal(t, want.Watchable(), got.Watchable())
		assert.Equal(t, want.UIType(), got.UIType())
		assert.Equal(t, want.ActivationFlags(), got.ActivationFlags())
		assert.Equal(t, want.IsComposite(), got.IsComposite())
		assert.True(t, got.RecreatedFromStorage())
	}

	// Status comes from the server, not from the persisted snapshot.
	g, _ := dst.Get("G1")
	assert.Equal(t, background.JobStateWaiting, g.State())
	rec, err := g.Record(1)
	require.NoError(t, err)
	assert.Equal(t, background.JobStateWorking, rec.State)
}

func TestMonitor_RestoreWithNothingPersisted(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())

	report, err := tm.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RecoveryReport{}, report)
}

func TestMonitor_RecoveryDropsFailedRecords(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	text := monitorlist.Encode([]monitorlist.Record{
		{ID: "OK", Title: "fine", UIType: background.UITypeQuery, Activated: []bool{false}},
		{ID: "GONE", Title: "failed on server", UIType: background.UITypeQuery, Activated: []bool{false}},
		{ID: "ERR", Title: "query error", UIType: background.UITypeQuery, Activated: []bool{false}},
		{ID: "G1", Title: "group", UIType: background.UITypePackage, Activated: []bool{false, false}, SubIDs: []string{"A", "B"}},
		{ID: "G2", Title: "group with failed part", UIType: background.UITypePackage, Activated: []bool{true, false}, SubIDs: []string{"C", "D"}},
	}) + monitorlist.ListSep + "garbage"

	tm.svc.On("GetStatus", mock.Anything, "OK").Return(status("OK", background.JobStateWorking), nil).Once()
	tm.svc.On("GetStatus", mock.Anything, "GONE").Return(status("GONE", background.JobStateUnknownPackageID), nil).Once()
	tm.svc.On("GetStatus", mock.Anything, "ERR").Return(background.StatusRecord{}, errors.New("503")).Once()
	tm.svc.On("GetStatus", mock.Anything, "A").Return(status("A", background.JobStateWorking), nil).Maybe()
	tm.svc.On("GetStatus", mock.Anything, "B").Return(background.StatusRecord{}, errors.New("503")).Once()
	tm.svc.On("GetStatus", mock.Anything, "C").Return(status("C", background.JobStateSuccess), nil).Once()
	tm.svc.On("GetStatus", mock.Anything, "D").Return(status("D", background.JobStateFail), nil).Once()

	report := tm.DeserializeAndLoad(ctx, text)

	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 3, report.Dropped)
	require.Len(t, report.Malformed, 1)
	assert.ErrorIs(t, report.Malformed[0], monitorlist.ErrMalformedRecord)

	assert.True(t, tm.IsMonitored("OK"))
	assert.False(t, tm.IsMonitored("GONE"))
	assert.False(t, tm.IsMonitored("ERR"))
	assert.False(t, tm.IsMonitored("G1"))

	// A composite is kept when every query answered, even if a part failed.
	g2, ok := tm.Get("G2")
	require.True(t, ok)
	assert.Equal(t, background.JobStateFail, g2.State())
	assert.Equal(t, []bool{true, false}, g2.ActivationFlags())
}

func TestMonitor_RecoveryChecksTrailingDownload(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	text := monitorlist.Encode([]monitorlist.Record{
		{ID: "D1", Title: "downloaded", Watchable: true, UIType: background.UITypeDownload, Activated: []bool{true}},
		{ID: "D2", Title: "downloading", Watchable: true, UIType: background.UITypeDownload, Activated: []bool{true}},
	})

	d1 := status("D1", background.JobStateSuccess)
	d1.FilePath = "/tmp/d1.zip"
	d2 := status("D2", background.JobStateSuccess)
	d2.FilePath = "/tmp/d2.zip"
	tm.svc.On("GetStatus", mock.Anything, "D1").Return(d1, nil).Once()
	tm.svc.On("GetStatus", mock.Anything, "D2").Return(d2, nil).Once()
	tm.svc.On("GetDownloadProgress", mock.Anything, "/tmp/d1.zip").Return(background.DownloadDone, nil).Once()
	tm.svc.On("GetDownloadProgress", mock.Anything, "/tmp/d2.zip").Return(background.DownloadWorking, nil).Once()

	report := tm.DeserializeAndLoad(ctx, text)
	assert.Equal(t, 2, report.Added)

	got1, _ := tm.Get("D1")
	got2, _ := tm.Get("D2")
	assert.False(t, got1.Watchable())
	assert.True(t, got2.Watchable())
}

func TestMonitor_TimerDrivesPollingAndPersistence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollUnit = time.Millisecond
	cfg.PollTable = []int{1, 3, 2}
	cfg.PersistInterval = 5 * time.Millisecond

	tm := newTestMonitor(t, cfg)
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "J1", background.JobStateWaiting, background.UITypeQuery, false)))

	tm.svc.On("GetStatus", mock.Anything, "J1").Return(status("J1", background.JobStateWorking), nil).Once()
	tm.svc.On("GetStatus", mock.Anything, "J1").Return(status("J1", background.JobStateSuccess), nil)
	tm.activator.On("Activate", mock.Anything, mock.Anything, 0, true).Return(nil).Once()

	require.NoError(t, tm.Start(ctx))

	assert.Eventually(t, func() bool {
		item, ok := tm.Get("J1")
		return ok && item.State() == background.JobStateSuccess && item.IsActivated(0)
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		blob, err := tm.store.Load(ctx, DefaultStorageKey)
		return err == nil && strings.Contains(blob, "J1")
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, tm.Stop(ctx))
	assert.ErrorIs(t, tm.PollAll(ctx), ErrMonitorClosed)
	tm.activator.AssertNumberOfCalls(t, "Activate", 1)
}

func TestMonitor_StopPersistsItems(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "J9", background.JobStateWorking, background.UITypeNone, false)))
	require.NoError(t, tm.Stop(ctx))

	blob, err := tm.store.Load(ctx, DefaultStorageKey)
	require.NoError(t, err)
	records, errs := monitorlist.Decode(blob)
	require.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, "J9", records[0].ID)
}

func TestMonitor_AddNilPanics(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	assert.Panics(t, func() { tm.Add(context.Background(), nil) })
}

func TestMonitor_CompositeSubJobsSucceedingInSamePass(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newGroup(t, "G1", background.UITypePackage,
		status("A", background.JobStateWorking),
		status("B", background.JobStateWorking),
	)))

	tm.svc.On("GetStatus", mock.Anything, "A").Return(status("A", background.JobStateSuccess), nil).Once()
	tm.svc.On("GetStatus", mock.Anything, "B").Return(status("B", background.JobStateSuccess), nil).Once()
	tm.activator.On("Activate", mock.Anything, mock.Anything, 0, true).Return(nil).Once()
	tm.activator.On("Activate", mock.Anything, mock.Anything, 1, true).Return(nil).Once()

	for range 3 {
		tm.pollAndWait(t)
	}

	item, ok := tm.Get("G1")
	require.True(t, ok)
	assert.Equal(t, background.JobStateSuccess, item.State())
	assert.Equal(t, []bool{true, true}, item.ActivationFlags())
	tm.activator.AssertNumberOfCalls(t, "Activate", 2)
	tm.activator.AssertExpectations(t)
	tm.svc.AssertNumberOfCalls(t, "GetStatus", 2)
}

func TestMonitor_AddedSuccessWaitsForManualActivation(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "DONE", background.JobStateSuccess, background.UITypeQuery, false)))
	tm.pollAndWait(t)
	tm.pollAndWait(t)

	tm.activator.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	tm.svc.AssertNotCalled(t, "GetStatus", mock.Anything, mock.Anything)
	assert.Equal(t, 1, tm.Summary().Ready)
	assert.Equal(t, background.AttentionReady, tm.Summary().Attention)

	tm.activator.On("Activate", mock.Anything, mock.Anything, 0, false).Return(nil).Once()
	require.NoError(t, tm.Activate(ctx, "DONE", 0))
	assert.Zero(t, tm.Summary().Ready)
}

func TestMonitor_NoneUITypeSkipsCompletionHandler(t *testing.T) {
	tm := newTestMonitor(t, DefaultConfig())
	ctx := context.Background()

	require.True(t, tm.Add(ctx, newSingle(t, "J1", background.JobStateWorking, background.UITypeNone, false)))

	tm.svc.On("GetStatus", mock.Anything, "J1").Return(status("J1", background.JobStateSuccess), nil).Once()
	tm.pollAndWait(t)

	item, ok := tm.Get("J1")
	require.True(t, ok)
	assert.Equal(t, background.JobStateSuccess, item.State())
	assert.True(t, item.IsActivated(0))
	assert.Zero(t, tm.Summary().Ready)
	tm.activator.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
