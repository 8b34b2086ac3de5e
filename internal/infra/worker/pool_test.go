//go:build !integration

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPoolRunsInOrderWithOneWorker(t *testing.T) {
	p := NewPool(1, 16, nil)
	p.Start(context.Background())

	var mu sync.Mutex
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if err := p.Submit(func(ctx context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	p.Stop()

	if len(got) != 5 {
		t.Fatalf("expected 5 tasks run, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", got)
		}
	}
}

func TestSubmitWaitReturnsTaskError(t *testing.T) {
	p := NewPool(1, 4, nil)
	p.Start(context.Background())
	defer p.Stop()

	boom := errors.New("boom")
	err := p.SubmitWait(context.Background(), func(ctx context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1, nil)
	p.Start(context.Background())
	p.Stop()
	p.Stop()
	if err := p.Submit(func(ctx context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	p := NewPool(1, 1, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	p.Start(context.Background())
	defer func() {
		close(release)
		p.Stop()
	}()

	_ = p.Submit(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started
	_ = p.Submit(func(ctx context.Context) error { return nil })

	if err := p.Submit(func(ctx context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.SubmitWait(ctx, func(ctx context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline, got %v", err)
	}
}
