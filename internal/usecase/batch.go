package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/infra/logging"
	"genmedia-studio/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// JobCreator creates and registers a single task.
type JobCreator interface {
	CreateTask(ctx context.Context, kind model.Kind, params model.GenerationParams) (model.Task, error)
}

type BatchRequest struct {
	Kind   model.Kind             `json:"kind"`
	Params model.GenerationParams `json:"params"`
	Size   int                    `json:"size"`
}

type BatchStatus struct {
	InProgress bool      `json:"inProgress"`
	Kind       string    `json:"kind,omitempty"`
	Size       int       `json:"size"`
	Dispatched int       `json:"dispatched"`
	Completed  int       `json:"completed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	TaskIDs    []string  `json:"taskIds,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
}

// BatchScheduler dispatches the items of one batch, item i no earlier than
// start + i*stagger. Creation runs concurrently with later items; only one
// batch may be in progress.
type BatchScheduler struct {
	ctx     context.Context
	creator JobCreator
	stagger time.Duration
	maxSize int
	now     func() time.Time
	sleep   Sleeper
	log     *zerolog.Logger

	generating atomic.Bool
	wg         sync.WaitGroup

	mu     sync.Mutex
	status BatchStatus
}

func NewBatchScheduler(ctx context.Context, creator JobCreator, stagger time.Duration, maxSize int, sleep Sleeper, logger *zerolog.Logger) *BatchScheduler {
	if maxSize <= 0 || maxSize > model.MaxBatchSize {
		maxSize = model.MaxBatchSize
	}
	if sleep == nil {
		sleep = ContextSleep
	}
	return &BatchScheduler{
		ctx:     ctx,
		creator: creator,
		stagger: stagger,
		maxSize: maxSize,
		now:     time.Now,
		sleep:   sleep,
		log:     logging.Component(logger, "BatchScheduler"),
	}
}

// Submit validates req and starts dispatching it in the background.
func (b *BatchScheduler) Submit(req BatchRequest) (BatchStatus, error) {
	if !req.Kind.Valid() {
		return BatchStatus{}, domain.Validationf("unknown task kind %q", req.Kind)
	}
	if req.Size < 1 || req.Size > b.maxSize {
		return BatchStatus{}, domain.Validationf("batch size must be between 1 and %d", b.maxSize)
	}
	req.Params = req.Params.WithDefaults(req.Kind)
	if err := req.Params.Validate(req.Kind); err != nil {
		return BatchStatus{}, err
	}
	if !b.generating.CompareAndSwap(false, true) {
		return b.Status(), domain.ErrBatchInProgress
	}

	start := b.now()
	b.mu.Lock()
	b.status = BatchStatus{InProgress: true, Kind: string(req.Kind), Size: req.Size, StartedAt: start}
	st := b.snapshotLocked()
	b.mu.Unlock()
	metrics.SetBatchInFlight(true)
	b.log.Info().Str("kind", string(req.Kind)).Int("size", req.Size).Msg("batch started")

	b.wg.Add(1)
	go b.process(req, start)
	return st, nil
}

func (b *BatchScheduler) process(req BatchRequest, start time.Time) {
	defer b.wg.Done()
	for i := 0; i < req.Size; i++ {
		due := start.Add(time.Duration(i) * b.stagger)
		if wait := due.Sub(b.now()); wait > 0 {
			if b.sleep(b.ctx, wait) != nil {
				b.abandon(req.Size - i)
				return
			}
		}
		if b.ctx.Err() != nil {
			b.abandon(req.Size - i)
			return
		}
		b.mu.Lock()
		b.status.Dispatched++
		b.mu.Unlock()

		b.wg.Add(1)
		go func(params model.GenerationParams) {
			defer b.wg.Done()
			t, err := b.creator.CreateTask(b.ctx, req.Kind, params)
			b.complete(t.TaskID, err)
		}(req.Params.Copy())
	}
}

// abandon counts n undispatched items as completed.
func (b *BatchScheduler) abandon(n int) {
	for i := 0; i < n; i++ {
		b.complete("", context.Canceled)
	}
}

func (b *BatchScheduler) complete(taskID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Completed++
	if err != nil {
		b.status.Failed++
	} else {
		b.status.Succeeded++
		b.status.TaskIDs = append(b.status.TaskIDs, taskID)
	}
	if b.status.Completed == b.status.Size {
		b.status.InProgress = false
		b.generating.Store(false)
		metrics.SetBatchInFlight(false)
		b.log.Info().
			Int("succeeded", b.status.Succeeded).
			Int("failed", b.status.Failed).
			Msg("batch finished")
	}
}

func (b *BatchScheduler) Status() BatchStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *BatchScheduler) snapshotLocked() BatchStatus {
	st := b.status
	st.TaskIDs = append([]string(nil), b.status.TaskIDs...)
	return st
}

func (b *BatchScheduler) InProgress() bool { return b.generating.Load() }

// Wait blocks until every dispatched item has completed.
func (b *BatchScheduler) Wait() { b.wg.Wait() }
