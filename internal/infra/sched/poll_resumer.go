package sched

import (
	"context"
	"time"

	"genmedia-studio/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Resumer re-tracks unfinished tasks and reports how many loops it started.
type Resumer interface {
	ResumePending(ctx context.Context) int
}

// PollResumer periodically restarts polling for non-terminal tasks that
// have no active loop, e.g. after a reload brought in remote records or a
// loop exited on shutdown of a previous run.
type PollResumer struct {
	uc       Resumer
	interval time.Duration
	log      *zerolog.Logger
}

func NewPollResumer(uc Resumer, interval time.Duration, logger *zerolog.Logger) *PollResumer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PollResumer{uc: uc, interval: interval, log: logging.Component(logger, "PollResumer")}
}

// Start blocks until ctx is done.
func (w *PollResumer) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PollResumer) tick(ctx context.Context) {
	if n := w.uc.ResumePending(ctx); n > 0 {
		w.log.Debug().Int("resumed", n).Msg("poll loops restarted")
	}
}
