package background

import "context"

// StatusService is the client's view of the job server.
type StatusService interface {
	// GetStatus fetches the current status record for a job.
	GetStatus(ctx context.Context, jobID string) (StatusRecord, error)
	// Cancel asks the server to stop a job.
	Cancel(ctx context.Context, jobID string) error
	// Cleanup asks the server to discard a job and its results.
	Cleanup(ctx context.Context, jobID string) error
	// GetDownloadProgress reports how far the client-side download of a
	// finished job's file has progressed.
	GetDownloadProgress(ctx context.Context, filePath string) (DownloadProgress, error)
}

// StateStore persists the monitor's serialized item list as a single value
// under a well-known key.
type StateStore interface {
	// Load returns the stored value, or ErrStateNotFound.
	Load(ctx context.Context, key string) (string, error)
	// Save replaces the stored value.
	Save(ctx context.Context, key, value string) error
}

// Activator runs the completion handler for one sub-job of an item.
type Activator interface {
	Activate(ctx context.Context, item *TrackedItem, subIndex int, automatic bool) error
}
