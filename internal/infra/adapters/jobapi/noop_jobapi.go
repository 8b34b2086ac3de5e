package jobapi

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
)

var _ adapter.JobAPI = (*Noop)(nil)

// Noop is an offline stand-in used in dev mode without an API key.
// Jobs succeed on their second query with a placeholder result.
type Noop struct {
	seq   atomic.Int64
	mu    sync.Mutex
	polls map[string]int
	kinds map[string]model.Kind
}

func NewNoop() *Noop {
	return &Noop{polls: map[string]int{}, kinds: map[string]model.Kind{}}
}

func (n *Noop) CreateJob(ctx context.Context, kind model.Kind, params model.GenerationParams) (adapter.CreatedJob, error) {
	params = params.WithDefaults(kind)
	if err := params.Validate(kind); err != nil {
		return adapter.CreatedJob{}, err
	}
	id := fmt.Sprintf("noop-%d", n.seq.Add(1))
	n.mu.Lock()
	n.kinds[id] = kind
	n.mu.Unlock()
	return adapter.CreatedJob{JobID: id, Status: model.StatusQueued}, nil
}

func (n *Noop) QueryJob(ctx context.Context, jobID string) (adapter.JobQuery, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	kind, ok := n.kinds[jobID]
	if !ok {
		return adapter.JobQuery{}, &domain.APIError{Kind: domain.ErrUnknownJobID, Message: "TASK_NOT_FOUND"}
	}
	n.polls[jobID]++
	if n.polls[jobID] < 2 {
		return adapter.JobQuery{JobID: jobID, Status: model.StatusRunning}, nil
	}
	ext := ".mp4"
	if !kind.IsVideo() {
		ext = ".png"
	}
	return adapter.JobQuery{
		JobID:   jobID,
		Status:  model.StatusSuccess,
		Results: []adapter.JobResult{{URL: "https://example.invalid/" + jobID + ext}},
	}, nil
}

func (n *Noop) UploadMedia(ctx context.Context, files ...adapter.MediaFile) ([]string, error) {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = "https://example.invalid/uploads/" + f.Name
	}
	return out, nil
}
