package background

import (
	"fmt"

	"github.com/google/uuid"
)

// UIType selects the completion handler that runs when a tracked job finishes.
type UIType string

const (
	UITypeNone     UIType = "NONE"
	UITypeQuery    UIType = "QUERY"
	UITypePackage  UIType = "PACKAGE"
	UITypeDownload UIType = "DOWNLOAD"
	UITypeScript   UIType = "SCRIPT"
)

// ParseUIType converts the canonical textual form into a UIType.
func ParseUIType(s string) (UIType, error) {
	switch t := UIType(s); t {
	case UITypeNone, UITypeQuery, UITypePackage, UITypeDownload, UITypeScript:
		return t, nil
	default:
		return UITypeNone, fmt.Errorf("%w: %q", ErrUnknownUIType, s)
	}
}

// TrackedItem is a job, or a group of jobs, the monitor keeps polling until it
// finishes. A single job has no group and its primary record is its status. A
// composite job polls each group member and keeps the primary record's state
// equal to Aggregate over the group.
//
// The monitor owns every TrackedItem it holds; everything it hands out is a
// Clone.
type TrackedItem struct {
	title     string
	uiType    UIType
	watchable bool

	primary StatusRecord
	group   []StatusRecord

	// activated[i] is true once the completion handler ran for sub-job i.
	activated            map[int]bool
	recreatedFromStorage bool
}

// NewTrackedItem creates an item for a single job.
func NewTrackedItem(title string, uiType UIType, watchable bool, status StatusRecord) (*TrackedItem, error) {
	if status.ID == "" {
		return nil, ErrMissingJobID
	}
	return &TrackedItem{
		title:     title,
		uiType:    uiType,
		watchable: watchable,
		primary:   status.Clone(),
		activated: make(map[int]bool),
	}, nil
}

// NewCompositeItem creates an item for a group of jobs. When groupID is empty a
// random id is generated. The primary record takes the group id and the
// aggregate state of the members.
func NewCompositeItem(
	groupID, title string,
	uiType UIType,
	watchable bool,
	members []StatusRecord,
) (*TrackedItem, error) {
	if len(members) == 0 {
		return nil, ErrEmptyComposite
	}
	if groupID == "" {
		groupID = uuid.NewString()
	}

	group := make([]StatusRecord, len(members))
	for i, m := range members {
		if m.ID == "" {
			return nil, fmt.Errorf("member %d: %w", i, ErrMissingJobID)
		}
		group[i] = m.Clone()
	}

	item := &TrackedItem{
		title:     title,
		uiType:    uiType,
		watchable: watchable,
		primary:   StatusRecord{ID: groupID, Kind: members[0].Kind},
		group:     group,
		activated: make(map[int]bool),
	}
	item.primary.State = Aggregate(item.group)
	return item, nil
}

func (t *TrackedItem) ID() string                 { return t.primary.ID }
func (t *TrackedItem) Title() string              { return t.title }
func (t *TrackedItem) UIType() UIType             { return t.uiType }
func (t *TrackedItem) Watchable() bool            { return t.watchable }
func (t *TrackedItem) State() JobState            { return t.primary.State }
func (t *TrackedItem) Primary() StatusRecord      { return t.primary.Clone() }
func (t *TrackedItem) IsComposite() bool          { return t.group != nil }
func (t *TrackedItem) RecreatedFromStorage() bool { return t.recreatedFromStorage }

// Len returns the number of sub-jobs: one for a single job, otherwise the
// group size.
func (t *TrackedItem) Len() int {
	if t.group == nil {
		return 1
	}
	return len(t.group)
}

// Group returns a copy of the member records, or nil for a single job.
func (t *TrackedItem) Group() []StatusRecord {
	if t.group == nil {
		return nil
	}
	out := make([]StatusRecord, len(t.group))
	for i, r := range t.group {
		out[i] = r.Clone()
	}
	return out
}

// Record returns the record polled for sub-job i.
func (t *TrackedItem) Record(i int) (StatusRecord, error) {
	if i < 0 || i >= t.Len() {
		return StatusRecord{}, fmt.Errorf("%w: %d", ErrSubIndexOutOfRange, i)
	}
	if t.group == nil {
		return t.primary.Clone(), nil
	}
	return t.group[i].Clone(), nil
}

// ResolvedState returns the state that decides activation for sub-job i.
func (t *TrackedItem) ResolvedState(i int) JobState {
	if t.group == nil {
		return t.primary.State
	}
	if i < 0 || i >= len(t.group) {
		return JobStateUnspecified
	}
	return t.group[i].State
}

// JobIDs lists the ids the monitor polls for this item.
func (t *TrackedItem) JobIDs() []string {
	if t.group == nil {
		return []string{t.primary.ID}
	}
	ids := make([]string, len(t.group))
	for i, r := range t.group {
		ids[i] = r.ID
	}
	return ids
}

// IndexOf returns the sub-job index polled under jobID, or -1.
func (t *TrackedItem) IndexOf(jobID string) int {
	if t.group == nil {
		if t.primary.ID == jobID {
			return 0
		}
		return -1
	}
	for i, r := range t.group {
		if r.ID == jobID {
			return i
		}
	}
	return -1
}

// PendingJobIDs lists the polled ids whose records are not yet terminal.
func (t *TrackedItem) PendingJobIDs() []string {
	if t.group == nil {
		if t.primary.State.IsDone() {
			return nil
		}
		return []string{t.primary.ID}
	}
	var ids []string
	for _, r := range t.group {
		if !r.State.IsDone() {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// IsActivated reports whether the completion handler already ran for sub-job i.
func (t *TrackedItem) IsActivated(i int) bool { return t.activated[i] }

// ActivationFlags returns one flag per sub-job.
func (t *TrackedItem) ActivationFlags() []bool {
	flags := make([]bool, t.Len())
	for i := range flags {
		flags[i] = t.activated[i]
	}
	return flags
}

// PendingActivations lists the sub-job indexes whose resolved state is SUCCESS
// and whose completion handler has not run yet.
func (t *TrackedItem) PendingActivations() []int {
	var idx []int
	for i := 0; i < t.Len(); i++ {
		if t.ResolvedState(i) == JobStateSuccess && !t.activated[i] {
			idx = append(idx, i)
		}
	}
	return idx
}

// ApplyStatus replaces the record whose id matches rec.ID and, for composites,
// recomputes the primary state. It returns the sub-job index that changed and
// false when rec does not belong to the item.
func (t *TrackedItem) ApplyStatus(rec StatusRecord) (int, bool) {
	if t.group == nil {
		if rec.ID != t.primary.ID {
			return -1, false
		}
		t.primary = rec.Clone()
		return 0, true
	}

	for i := range t.group {
		if t.group[i].ID == rec.ID {
			t.group[i] = rec.Clone()
			t.primary.State = Aggregate(t.group)
			return i, true
		}
	}
	return -1, false
}

// MarkActivated records that the completion handler ran for sub-job i.
func (t *TrackedItem) MarkActivated(i int) { t.activated[i] = true }

// RestoreActivation sets the activation flags from persisted state. Flags
// beyond the item's sub-job count are ignored.
func (t *TrackedItem) RestoreActivation(flags []bool) {
	for i, f := range flags {
		if i >= t.Len() {
			break
		}
		if f {
			t.activated[i] = true
		}
	}
}

// SetWatchable toggles whether the item's trailing download is watched.
func (t *TrackedItem) SetWatchable(w bool) { t.watchable = w }

// MarkRecreated flags the item as rebuilt from persisted state.
func (t *TrackedItem) MarkRecreated() { t.recreatedFromStorage = true }

// Clone returns a deep copy of the item.
func (t *TrackedItem) Clone() *TrackedItem {
	c := &TrackedItem{
		title:                t.title,
		uiType:               t.uiType,
		watchable:            t.watchable,
		primary:              t.primary.Clone(),
		group:                t.Group(),
		activated:            make(map[int]bool, len(t.activated)),
		recreatedFromStorage: t.recreatedFromStorage,
	}
	for k, v := range t.activated {
		c.activated[k] = v
	}
	return c
}

// ItemSnapshot is the exported, serializable view of a TrackedItem used in
// notifications and diagnostics.
type ItemSnapshot struct {
	ID                   string         `json:"id" yaml:"id"`
	Title                string         `json:"title" yaml:"title"`
	UIType               UIType         `json:"ui_type" yaml:"ui_type"`
	Watchable            bool           `json:"watchable" yaml:"watchable"`
	State                JobState       `json:"state" yaml:"state"`
	Composite            bool           `json:"composite" yaml:"composite"`
	Records              []StatusRecord `json:"records" yaml:"records"`
	Activated            []bool         `json:"activated" yaml:"activated"`
	RecreatedFromStorage bool           `json:"recreated_from_storage" yaml:"recreated_from_storage"`
}

// Snapshot returns the serializable view of the item.
func (t *TrackedItem) Snapshot() ItemSnapshot {
	records := t.Group()
	if records == nil {
		records = []StatusRecord{t.primary.Clone()}
	}
	return ItemSnapshot{
		ID:                   t.ID(),
		Title:                t.title,
		UIType:               t.uiType,
		Watchable:            t.watchable,
		State:                t.primary.State,
		Composite:            t.IsComposite(),
		Records:              records,
		Activated:            t.ActivationFlags(),
		RecreatedFromStorage: t.recreatedFromStorage,
	}
}
