package usecase

import (
	"context"
	"time"
)

// Sleeper waits for d or until ctx is done. Tests inject a recording fake.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the real Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
