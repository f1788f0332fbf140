package jobserver

import (
	"fmt"

	"github.com/ahrav/jobwatch/internal/domain/background"
)

// statusResponse is the job server's JSON status document.
type statusResponse struct {
	ID         string                       `json:"id"`
	Kind       string                       `json:"kind"`
	State      string                       `json:"state"`
	Attributes []string                     `json:"attributes"`
	Messages   []string                     `json:"messages"`
	Packages   []background.PackageProgress `json:"packages"`
	FilePath   string                       `json:"file_path"`
	TotalBytes int64                        `json:"total_bytes"`
	DataSource string                       `json:"data_source"`
}

// toDomain converts the response into a StatusRecord. An unknown state is an
// error; an unknown kind or attribute degrades to its UNKNOWN value.
func (r statusResponse) toDomain() (background.StatusRecord, error) {
	state, err := background.ParseJobState(r.State)
	if err != nil {
		return background.StatusRecord{}, fmt.Errorf("job %s: %w", r.ID, err)
	}
	kind, _ := background.ParseJobKind(r.Kind)

	var attrs []background.JobAttribute
	for _, a := range r.Attributes {
		attrs = append(attrs, background.ParseJobAttribute(a))
	}

	return background.StatusRecord{
		ID:         r.ID,
		Kind:       kind,
		State:      state,
		Attributes: attrs,
		Messages:   r.Messages,
		Packages:   r.Packages,
		FilePath:   r.FilePath,
		TotalBytes: r.TotalBytes,
		DataSource: r.DataSource,
	}, nil
}

// downloadProgressResponse is the job server's JSON download progress document.
type downloadProgressResponse struct {
	File     string `json:"file"`
	Progress string `json:"progress"`
}
