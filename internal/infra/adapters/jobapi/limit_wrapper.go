package jobapi

import (
	"context"
	"sync"

	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.JobAPI = (*Limited)(nil)

// Limited bounds the number of in-flight calls to inner. The bound can be
// changed at runtime when the user edits the concurrency setting.
type Limited struct {
	inner adapter.JobAPI

	mu       sync.Mutex
	limit    int
	inflight int
	changed  chan struct{}
}

func NewLimited(inner adapter.JobAPI, maxConcurrent int) *Limited {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limited{inner: inner, limit: maxConcurrent, changed: make(chan struct{})}
}

// SetLimit takes effect for calls not yet admitted.
func (l *Limited) SetLimit(n int) {
	if n <= 0 {
		n = 1
	}
	l.mu.Lock()
	l.limit = n
	l.broadcast()
	l.mu.Unlock()
}

func (l *Limited) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// broadcast wakes every waiter; callers hold mu.
func (l *Limited) broadcast() {
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *Limited) acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.inflight < l.limit {
			l.inflight++
			l.mu.Unlock()
			return nil
		}
		wait := l.changed
		l.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Limited) release() {
	l.mu.Lock()
	l.inflight--
	l.broadcast()
	l.mu.Unlock()
}

func (l *Limited) CreateJob(ctx context.Context, kind model.Kind, params model.GenerationParams) (adapter.CreatedJob, error) {
	if err := l.acquire(ctx); err != nil {
		return adapter.CreatedJob{}, err
	}
	defer l.release()
	return l.inner.CreateJob(ctx, kind, params)
}

func (l *Limited) QueryJob(ctx context.Context, jobID string) (adapter.JobQuery, error) {
	if err := l.acquire(ctx); err != nil {
		return adapter.JobQuery{}, err
	}
	defer l.release()
	return l.inner.QueryJob(ctx, jobID)
}

func (l *Limited) UploadMedia(ctx context.Context, files ...adapter.MediaFile) ([]string, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()
	return l.inner.UploadMedia(ctx, files...)
}
