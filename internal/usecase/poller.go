package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/infra/logging"
	"genmedia-studio/internal/infra/metrics"

	"github.com/rs/zerolog"
)

type PollerConfig struct {
	Interval          time.Duration // steady cadence while QUEUED/RUNNING
	MaxNetworkRetries int           // retries after the first network failure
	BackoffBase       time.Duration // delay = BackoffBase * 2^(attempt-1)
	ResultAttempts    int
	ResultDelay       time.Duration
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.MaxNetworkRetries <= 0 {
		c.MaxNetworkRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.ResultAttempts <= 0 {
		c.ResultAttempts = 10
	}
	if c.ResultDelay <= 0 {
		c.ResultDelay = 3 * time.Second
	}
	return c
}

// Poller drives each tracked task to a terminal state. At most one loop
// runs per task; a loop ends when its task turns terminal or leaves the store.
type Poller struct {
	ctx      context.Context
	api      adapter.JobAPI
	store    *TaskStore
	previews *PreviewDeriver
	notifier adapter.Notifier
	cfg      PollerConfig
	sleep    Sleeper
	log      *zerolog.Logger

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

// NewPoller binds loops to ctx; cancelling it stops every loop.
func NewPoller(ctx context.Context, api adapter.JobAPI, store *TaskStore, previews *PreviewDeriver, notifier adapter.Notifier, cfg PollerConfig, sleep Sleeper, logger *zerolog.Logger) *Poller {
	if sleep == nil {
		sleep = ContextSleep
	}
	return &Poller{
		ctx:      ctx,
		api:      api,
		store:    store,
		previews: previews,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		sleep:    sleep,
		log:      logging.Component(logger, "Poller"),
		active:   map[string]struct{}{},
	}
}

// Track starts a loop for id unless one is running or the task is
// missing or terminal. It reports whether a loop was started.
func (p *Poller) Track(id string) bool {
	t, ok := p.store.Get(id)
	if !ok || t.IsTerminal() || p.ctx.Err() != nil {
		return false
	}
	p.mu.Lock()
	if _, running := p.active[id]; running {
		p.mu.Unlock()
		return false
	}
	p.active[id] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer p.untrack(id)
		p.run(logging.WithTaskID(p.ctx, id), id)
	}()
	return true
}

func (p *Poller) untrack(id string) {
	p.mu.Lock()
	delete(p.active, id)
	p.mu.Unlock()
}

func (p *Poller) IsTracking(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[id]
	return ok
}

func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Wait blocks until every loop has returned.
func (p *Poller) Wait() { p.wg.Wait() }

// backoff is BackoffBase * 2^(attempt-1).
func (p *Poller) backoff(attempt int) time.Duration {
	return p.cfg.BackoffBase << (attempt - 1)
}

func (p *Poller) run(ctx context.Context, id string) {
	log := logging.With(ctx, p.log)
	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}
		t, ok := p.store.Get(id)
		if !ok || t.IsTerminal() {
			log.Debug().Msg("stop polling")
			return
		}

		q, err := p.api.QueryJob(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !domain.IsRetryable(err) {
				metrics.IncPoll("api_error")
				p.fail(ctx, id, err.Error())
				return
			}
			failures++
			metrics.IncPoll("network_error")
			if failures > p.cfg.MaxNetworkRetries {
				p.fail(ctx, id, fmt.Sprintf("network interrupted, gave up after %d retries: %v", p.cfg.MaxNetworkRetries, err))
				return
			}
			metrics.IncPollRetry()
			delay := p.backoff(failures)
			log.Warn().Err(err).Int("attempt", failures).Dur("delay", delay).Msg("status query failed, retrying")
			p.store.Update(ctx, id, func(t model.Task) model.Task { return t.Apply(model.Retrying{Attempt: failures}) })
			if p.sleep(ctx, delay) != nil {
				return
			}
			continue
		}
		failures = 0

		switch q.Status {
		case model.StatusSuccess:
			metrics.IncPoll("success")
			if q.FirstURL() != "" {
				p.succeed(ctx, id, q)
				return
			}
			p.fetchResult(ctx, id)
			return
		case model.StatusFailed:
			metrics.IncPoll("failed")
			p.fail(ctx, id, failureReason(q))
			return
		case model.StatusQueued:
			metrics.IncPoll("queued")
			p.store.Update(ctx, id, func(t model.Task) model.Task { return t.Apply(model.Queued{}) })
		case model.StatusRunning:
			metrics.IncPoll("running")
			p.store.Update(ctx, id, func(t model.Task) model.Task { return t.Apply(model.Running{}) })
		default:
			// Only QUEUED and RUNNING keep the loop alive.
			metrics.IncPoll("unexpected")
			p.fail(ctx, id, fmt.Sprintf("unexpected status %q", q.Status))
			return
		}
		if p.sleep(ctx, p.cfg.Interval) != nil {
			return
		}
	}
}

// fetchResult re-queries a job that reported SUCCESS without results.
func (p *Poller) fetchResult(ctx context.Context, id string) {
	log := logging.With(ctx, p.log)
	p.store.Update(ctx, id, func(t model.Task) model.Task { return t.Apply(model.FetchingResult{}) })

	for attempt := 1; attempt <= p.cfg.ResultAttempts; attempt++ {
		if p.sleep(ctx, p.cfg.ResultDelay) != nil {
			return
		}
		if !p.store.Has(id) {
			return
		}
		q, err := p.api.QueryJob(ctx, id)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil && !domain.IsRetryable(err):
			p.fail(ctx, id, err.Error())
			return
		case err != nil:
			log.Debug().Err(err).Int("attempt", attempt).Msg("result query failed")
		case q.Status == model.StatusFailed:
			p.fail(ctx, id, failureReason(q))
			return
		case q.Status == model.StatusSuccess && q.FirstURL() != "":
			p.succeed(ctx, id, q)
			return
		}
		metrics.IncPoll("fetching")
		p.store.Update(ctx, id, func(t model.Task) model.Task { return t.Apply(model.FetchingResult{Attempt: attempt}) })
	}
	p.fail(ctx, id, fmt.Sprintf("result not available after %d attempts", p.cfg.ResultAttempts))
}

func (p *Poller) succeed(ctx context.Context, id string, q adapter.JobQuery) {
	t, ok := p.store.Get(id)
	if !ok {
		return
	}
	url := q.FirstURL()
	outputType := ""
	if len(q.Results) > 0 {
		outputType = q.Results[0].OutputType
	}
	preview := p.previews.Derive(ctx, t.Kind, url, outputType)

	done, ok := p.store.Update(ctx, id, func(t model.Task) model.Task {
		t = t.Apply(model.Succeeded{ResultURL: url, Usage: q.Usage})
		t.PreviewURL = preview
		return t
	})
	if !ok {
		return
	}
	metrics.IncTerminal(string(done.Kind), done.Status)
	logging.With(ctx, p.log).Info().Str("result_url", url).Msg("task succeeded")
	p.notify(ctx, adapter.Notice{TaskID: id, Level: adapter.NoticeSuccess, Text: "generation finished"})
}

func (p *Poller) fail(ctx context.Context, id, reason string) {
	done, ok := p.store.Update(ctx, id, func(t model.Task) model.Task { return t.Apply(model.Failed{Reason: reason}) })
	if !ok {
		return
	}
	metrics.IncTerminal(string(done.Kind), done.Status)
	logging.With(ctx, p.log).Warn().Str("reason", reason).Msg("task failed")
	p.notify(ctx, adapter.Notice{TaskID: id, Level: adapter.NoticeError, Text: "generation failed: " + reason})
}

func (p *Poller) notify(ctx context.Context, n adapter.Notice) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, n); err != nil {
		p.log.Debug().Err(err).Str("task_id", n.TaskID).Msg("notify failed")
	}
}

func failureReason(q adapter.JobQuery) string {
	if q.FailureReason != "" {
		return q.FailureReason
	}
	return "remote job failed"
}
