package monitor

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff"
)

// DefaultPollTable is the cyclic sequence of poll delays, in units. Early
// polls are frequent so short jobs report quickly; later entries alternate
// between long and short so newly added long-running items still see an
// occasional quick poll without the cursor ever resetting.
var DefaultPollTable = []int{1, 1, 1, 2, 2, 2, 2, 5, 5, 5, 5, 10, 4, 10, 10, 6, 10, 4, 10, 6, 10, 4, 10, 10, 6, 10, 4, 10, 10}

// DefaultPollUnit scales DefaultPollTable.
const DefaultPollUnit = time.Second

// ErrInvalidPollTable is returned for an empty table or a non-positive entry.
var ErrInvalidPollTable = errors.New("poll table must be non-empty with positive entries")

var _ backoff.BackOff = (*PollSchedule)(nil)

// PollSchedule walks a fixed delay table cyclically. Unlike an exponential
// backoff it never grows without bound and never stops.
//
// PollSchedule is not safe for concurrent use; the monitor's event loop owns
// it.
type PollSchedule struct {
	table  []int
	unit   time.Duration
	cursor int
}

// NewPollSchedule creates a schedule over table scaled by unit. A nil table
// selects DefaultPollTable.
func NewPollSchedule(unit time.Duration, table []int) (*PollSchedule, error) {
	if table == nil {
		table = DefaultPollTable
	}
	if len(table) == 0 || unit <= 0 {
		return nil, ErrInvalidPollTable
	}
	for _, v := range table {
		if v <= 0 {
			return nil, ErrInvalidPollTable
		}
	}

	t := make([]int, len(table))
	copy(t, table)
	return &PollSchedule{table: t, unit: unit}, nil
}

// Current returns the delay at the cursor.
func (s *PollSchedule) Current() time.Duration {
	return time.Duration(s.table[s.cursor]) * s.unit
}

// NextBackOff advances the cursor, wrapping at the end of the table, and
// returns the delay now under it.
func (s *PollSchedule) NextBackOff() time.Duration {
	s.cursor = (s.cursor + 1) % len(s.table)
	return s.Current()
}

// Reset moves the cursor back to the start of the table.
func (s *PollSchedule) Reset() { s.cursor = 0 }

// Cursor returns the current table position.
func (s *PollSchedule) Cursor() int { return s.cursor }

// Len returns the table length.
func (s *PollSchedule) Len() int { return len(s.table) }
