// Package background models server-side jobs that a client tracks while they
// run: their status records, the items the monitor watches, and the rule that
// folds a composite group into one state.
package background

import "fmt"

// JobState is the lifecycle state the job server reports for a job.
type JobState string

const (
	// JobStateUnspecified is never reported by the server. The aggregator uses
	// it as its starting value.
	JobStateUnspecified JobState = ""

	// JobStateWaiting indicates the job is queued on the server.
	JobStateWaiting JobState = "WAITING"
	// JobStateStarting indicates the server accepted the job and is preparing it.
	JobStateStarting JobState = "STARTING"
	// JobStateWorking indicates the job is executing.
	JobStateWorking JobState = "WORKING"
	// JobStateSuccess indicates the job finished and its result is available.
	JobStateSuccess JobState = "SUCCESS"
	// JobStateFail indicates the job failed on the server.
	JobStateFail JobState = "FAIL"
	// JobStateCanceled indicates the job was canceled by the system.
	JobStateCanceled JobState = "CANCELED"
	// JobStateUserAborted indicates the user aborted the job.
	JobStateUserAborted JobState = "USER_ABORTED"
	// JobStateUnknownPackageID indicates the server no longer knows the job id.
	JobStateUnknownPackageID JobState = "UNKNOWN_PACKAGE_ID"
)

func (s JobState) String() string {
	if s == JobStateUnspecified {
		return "UNSPECIFIED"
	}
	return string(s)
}

// IsDone reports whether the state is terminal.
func (s JobState) IsDone() bool {
	switch s {
	case JobStateSuccess, JobStateFail, JobStateCanceled, JobStateUserAborted, JobStateUnknownPackageID:
		return true
	default:
		return false
	}
}

// IsFail reports whether the state is a negative terminal state.
func (s JobState) IsFail() bool {
	switch s {
	case JobStateFail, JobStateCanceled, JobStateUserAborted, JobStateUnknownPackageID:
		return true
	default:
		return false
	}
}

// IsActive reports whether the job is still queued or running.
func (s JobState) IsActive() bool {
	switch s {
	case JobStateWaiting, JobStateStarting, JobStateWorking:
		return true
	default:
		return false
	}
}

// ParseJobState converts the canonical textual form into a JobState.
func ParseJobState(s string) (JobState, error) {
	switch st := JobState(s); st {
	case JobStateWaiting, JobStateStarting, JobStateWorking, JobStateSuccess,
		JobStateFail, JobStateCanceled, JobStateUserAborted, JobStateUnknownPackageID:
		return st, nil
	default:
		return JobStateUnspecified, fmt.Errorf("%w: %q", ErrUnknownJobState, s)
	}
}
