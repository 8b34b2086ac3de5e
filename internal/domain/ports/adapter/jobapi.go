package adapter

import (
	"context"
	"io"

	"genmedia-studio/internal/domain/model"
)

// CreatedJob is the remote answer to a create request.
type CreatedJob struct {
	JobID  string
	Status string
}

type JobResult struct {
	URL        string
	OutputType string
}

// JobQuery is one status snapshot of a remote job.
// FailureReason is set when the remote reports an error code alongside a status.
type JobQuery struct {
	JobID         string
	Status        string
	Results       []JobResult
	Usage         *model.Usage
	FailureReason string
	Prompt        string
}

// FirstURL returns the first non-empty result url.
func (q JobQuery) FirstURL() string {
	for _, r := range q.Results {
		if r.URL != "" {
			return r.URL
		}
	}
	return ""
}

type MediaFile struct {
	Name        string
	ContentType string
	Data        io.Reader
}

// JobAPI is the port for the remote generation service.
type JobAPI interface {
	CreateJob(ctx context.Context, kind model.Kind, params model.GenerationParams) (CreatedJob, error)
	QueryJob(ctx context.Context, jobID string) (JobQuery, error)
	// UploadMedia returns one hosted URL per file, in order.
	UploadMedia(ctx context.Context, files ...MediaFile) ([]string, error)
}
