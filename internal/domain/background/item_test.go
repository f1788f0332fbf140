package background

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrackedItem(t *testing.T) {
	_, err := NewTrackedItem("t", UITypeDownload, true, StatusRecord{})
	assert.ErrorIs(t, err, ErrMissingJobID)

	item, err := NewTrackedItem("report", UITypeDownload, true, StatusRecord{ID: "J1", State: JobStateWorking})
	require.NoError(t, err)
	assert.Equal(t, "J1", item.ID())
	assert.False(t, item.IsComposite())
	assert.Equal(t, 1, item.Len())
	assert.Equal(t, []string{"J1"}, item.JobIDs())
	assert.Equal(t, []string{"J1"}, item.PendingJobIDs())
	assert.Nil(t, item.Group())
}

func TestNewCompositeItem(t *testing.T) {
	_, err := NewCompositeItem("G", "g", UITypeQuery, false, nil)
	assert.ErrorIs(t, err, ErrEmptyComposite)

	_, err = NewCompositeItem("G", "g", UITypeQuery, false, []StatusRecord{{ID: ""}})
	assert.ErrorIs(t, err, ErrMissingJobID)

	item, err := NewCompositeItem("", "g", UITypeQuery, false, []StatusRecord{
		{ID: "A", State: JobStateSuccess},
		{ID: "B", State: JobStateWorking},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID())
	assert.True(t, item.IsComposite())
	assert.Equal(t, JobStateWaiting, item.State())
	assert.Equal(t, []string{"A", "B"}, item.JobIDs())
	assert.Equal(t, []string{"B"}, item.PendingJobIDs())
	assert.Equal(t, []int{0}, item.PendingActivations())
}

func TestTrackedItem_ApplyStatus(t *testing.T) {
	item, err := NewCompositeItem("G", "g", UITypeQuery, false, []StatusRecord{
		{ID: "A", State: JobStateSuccess},
		{ID: "B", State: JobStateWorking},
	})
	require.NoError(t, err)

	idx, ok := item.ApplyStatus(StatusRecord{ID: "B", State: JobStateSuccess})
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, JobStateSuccess, item.State())

	_, ok = item.ApplyStatus(StatusRecord{ID: "Z", State: JobStateFail})
	assert.False(t, ok)
	assert.Equal(t, JobStateSuccess, item.State())

	single, err := NewTrackedItem("s", UITypeDownload, false, StatusRecord{ID: "J1", State: JobStateWorking})
	require.NoError(t, err)
	_, ok = single.ApplyStatus(StatusRecord{ID: "J2", State: JobStateSuccess})
	assert.False(t, ok)
	idx, ok = single.ApplyStatus(StatusRecord{ID: "J1", State: JobStateSuccess, FilePath: "/f"})
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.True(t, single.Primary().IsDownloadable())
}

func TestTrackedItem_Activation(t *testing.T) {
	item, err := NewCompositeItem("G", "g", UITypeQuery, false, []StatusRecord{
		{ID: "A", State: JobStateSuccess},
		{ID: "B", State: JobStateSuccess},
		{ID: "C", State: JobStateFail},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, item.PendingActivations())
	item.MarkActivated(0)
	assert.Equal(t, []int{1}, item.PendingActivations())
	assert.Equal(t, []bool{true, false, false}, item.ActivationFlags())

	item.RestoreActivation([]bool{false, true, false, true, true})
	assert.Equal(t, []bool{true, true, false}, item.ActivationFlags())
	assert.Empty(t, item.PendingActivations())
}

func TestTrackedItem_CloneIsIndependent(t *testing.T) {
	item, err := NewCompositeItem("G", "g", UITypeQuery, true, []StatusRecord{
		{ID: "A", State: JobStateWorking},
	})
	require.NoError(t, err)

	c := item.Clone()
	c.MarkActivated(0)
	c.SetWatchable(false)
	c.ApplyStatus(StatusRecord{ID: "A", State: JobStateSuccess})

	assert.False(t, item.IsActivated(0))
	assert.True(t, item.Watchable())
	assert.Equal(t, JobStateWaiting, item.State())
	assert.Equal(t, JobStateSuccess, c.State())
}

func TestTrackedItem_RecordBounds(t *testing.T) {
	item, err := NewTrackedItem("s", UITypeDownload, false, StatusRecord{ID: "J1"})
	require.NoError(t, err)

	_, err = item.Record(1)
	assert.ErrorIs(t, err, ErrSubIndexOutOfRange)
	assert.Equal(t, JobStateUnspecified, item.ResolvedState(3))
}

func TestTrackedItem_Snapshot(t *testing.T) {
	item, err := NewTrackedItem("report", UITypeDownload, true, StatusRecord{ID: "J1", State: JobStateSuccess})
	require.NoError(t, err)
	item.MarkActivated(0)
	item.MarkRecreated()

	snap := item.Snapshot()
	assert.Equal(t, "J1", snap.ID)
	assert.False(t, snap.Composite)
	assert.Len(t, snap.Records, 1)
	assert.Equal(t, []bool{true}, snap.Activated)
	assert.True(t, snap.RecreatedFromStorage)
}

func TestSummarize(t *testing.T) {
	mk := func(id string, st JobState, activated bool) *TrackedItem {
		it, err := NewTrackedItem(id, UITypeDownload, false, StatusRecord{ID: id, State: st})
		require.NoError(t, err)
		if activated {
			it.MarkActivated(0)
		}
		return it
	}

	assert.Equal(t, AttentionNone, Summarize(nil).Attention)

	s := Summarize([]*TrackedItem{mk("a", JobStateWorking, false)})
	assert.Equal(t, AttentionWorking, s.Attention)

	s = Summarize([]*TrackedItem{mk("a", JobStateWorking, false), mk("b", JobStateSuccess, false)})
	assert.Equal(t, AttentionReadyWorking, s.Attention)
	assert.Equal(t, 1, s.Ready)

	s = Summarize([]*TrackedItem{mk("b", JobStateSuccess, true)})
	assert.Equal(t, AttentionNone, s.Attention)

	s = Summarize([]*TrackedItem{mk("b", JobStateSuccess, false), mk("c", JobStateCanceled, false)})
	assert.Equal(t, AttentionFail, s.Attention)
	assert.Equal(t, 1, s.Failed)
}

func TestTrackedItem_IndexOf(t *testing.T) {
	g, err := NewCompositeItem("G", "g", UITypeQuery, false, []StatusRecord{{ID: "A"}, {ID: "B"}})
	require.NoError(t, err)
	assert.Equal(t, 1, g.IndexOf("B"))
	assert.Equal(t, -1, g.IndexOf("G"))

	s, err := NewTrackedItem("s", UITypeDownload, false, StatusRecord{ID: "J1"})
	require.NoError(t, err)
	assert.Equal(t, 0, s.IndexOf("J1"))
	assert.Equal(t, -1, s.IndexOf("J2"))
}
