package background

import (
	"fmt"
	"slices"
)

// JobKind is the category of work a job performs on the server.
type JobKind string

const (
	JobKindSearch     JobKind = "SEARCH"
	JobKindPackage    JobKind = "PACKAGE"
	JobKindPersistent JobKind = "PERSISTENT"
	JobKindUnknown    JobKind = "UNKNOWN"
)

// ParseJobKind converts the canonical textual form into a JobKind.
func ParseJobKind(s string) (JobKind, error) {
	switch k := JobKind(s); k {
	case JobKindSearch, JobKindPackage, JobKindPersistent, JobKindUnknown:
		return k, nil
	default:
		return JobKindUnknown, fmt.Errorf("%w: %q", ErrUnknownJobKind, s)
	}
}

// JobAttribute is a flag the server attaches to a job.
type JobAttribute string

const (
	AttributeZipped          JobAttribute = "ZIPPED"
	AttributeCanSendEmail    JobAttribute = "CAN_SEND_EMAIL"
	AttributeDownloadScript  JobAttribute = "DOWNLOAD_SCRIPT"
	AttributeEmailSent       JobAttribute = "EMAIL_SENT"
	AttributeLongQueue       JobAttribute = "LONG_QUEUE"
	AttributeClientActivated JobAttribute = "CLIENT_ACTIVATED"
	AttributeUnknown         JobAttribute = "UNKNOWN"
)

// ParseJobAttribute maps a name to a JobAttribute. Unrecognized names map to
// AttributeUnknown so newer servers do not break older clients.
func ParseJobAttribute(s string) JobAttribute {
	switch a := JobAttribute(s); a {
	case AttributeZipped, AttributeCanSendEmail, AttributeDownloadScript, AttributeEmailSent,
		AttributeLongQueue, AttributeClientActivated:
		return a
	default:
		return AttributeUnknown
	}
}

// PackageProgress describes one output package produced by a PACKAGE job.
type PackageProgress struct {
	TotalFiles           int64  `json:"total_files" yaml:"total_files"`
	ProcessedFiles       int64  `json:"processed_files" yaml:"processed_files"`
	TotalBytes           int64  `json:"total_bytes" yaml:"total_bytes"`
	ProcessedBytes       int64  `json:"processed_bytes" yaml:"processed_bytes"`
	FinalCompressedBytes int64  `json:"final_compressed_bytes" yaml:"final_compressed_bytes"`
	URL                  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// IsDone reports whether the package is ready, either because a URL was
// published or because every file has been processed.
func (p PackageProgress) IsDone() bool {
	if p.URL != "" {
		return true
	}
	return p.TotalFiles > 0 && p.ProcessedFiles >= p.TotalFiles
}

// StatusRecord is an immutable snapshot of one job's status as reported by the
// server. The client never edits a record; it replaces it with a fresh one.
type StatusRecord struct {
	ID         string            `json:"id" yaml:"id"`
	Kind       JobKind           `json:"kind" yaml:"kind"`
	State      JobState          `json:"state" yaml:"state"`
	Attributes []JobAttribute    `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Messages   []string          `json:"messages,omitempty" yaml:"messages,omitempty"`
	Packages   []PackageProgress `json:"packages,omitempty" yaml:"packages,omitempty"`
	FilePath   string            `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	TotalBytes int64             `json:"total_bytes" yaml:"total_bytes"`
	DataSource string            `json:"data_source,omitempty" yaml:"data_source,omitempty"`
}

// HasAttribute reports whether the record carries attr.
func (r StatusRecord) HasAttribute(attr JobAttribute) bool {
	return slices.Contains(r.Attributes, attr)
}

// IsDownloadable reports whether the job finished with a file ready to fetch.
func (r StatusRecord) IsDownloadable() bool {
	return r.State == JobStateSuccess && r.FilePath != ""
}

// TotalSizeInBytes returns the actual processed size once a job succeeded and
// its packages report data, otherwise the server's estimate.
func (r StatusRecord) TotalSizeInBytes() int64 {
	if r.State == JobStateSuccess && len(r.Packages) > 0 {
		var sum int64
		for _, p := range r.Packages {
			sum += p.ProcessedBytes
		}
		if sum > 0 {
			return sum
		}
	}
	return r.TotalBytes
}

// PackagesDone returns how many packages of the record are complete.
func (r StatusRecord) PackagesDone() int {
	var n int
	for _, p := range r.Packages {
		if p.IsDone() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the record.
func (r StatusRecord) Clone() StatusRecord {
	r.Attributes = slices.Clone(r.Attributes)
	r.Messages = slices.Clone(r.Messages)
	r.Packages = slices.Clone(r.Packages)
	return r
}

// DownloadProgress is the state of a client-side download of a finished job's
// output file.
type DownloadProgress string

const (
	DownloadDone     DownloadProgress = "DONE"
	DownloadWorking  DownloadProgress = "WORKING"
	DownloadStarting DownloadProgress = "STARTING"
	DownloadUnknown  DownloadProgress = "UNKNOWN"
	DownloadFail     DownloadProgress = "FAIL"
)

// ParseDownloadProgress maps a name to a DownloadProgress, defaulting to
// DownloadUnknown.
func ParseDownloadProgress(s string) DownloadProgress {
	switch p := DownloadProgress(s); p {
	case DownloadDone, DownloadWorking, DownloadStarting, DownloadFail:
		return p
	default:
		return DownloadUnknown
	}
}
