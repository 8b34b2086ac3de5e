package usecase

import (
	"context"
	"time"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/infra/logging"
	"genmedia-studio/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var (
	_ TaskUseCase = (*taskUC)(nil)
	_ JobCreator  = (*taskUC)(nil)
)

type TaskUseCase interface {
	CreateTask(ctx context.Context, kind model.Kind, params model.GenerationParams) (model.Task, error)
	UploadMedia(ctx context.Context, files ...adapter.MediaFile) ([]string, error)
	List(ctx context.Context) []model.Task
	Get(ctx context.Context, id string) (model.Task, error)
	Delete(ctx context.Context, id string) error
	Clone(ctx context.Context, id string) (model.Draft, error)
	// ResumePending re-tracks non-terminal tasks without a running loop.
	ResumePending(ctx context.Context) int
}

type taskUC struct {
	api      adapter.JobAPI
	store    *TaskStore
	poller   *Poller
	notifier adapter.Notifier
	now      func() time.Time
	log      *zerolog.Logger
}

func NewTaskUseCase(api adapter.JobAPI, store *TaskStore, poller *Poller, notifier adapter.Notifier, logger *zerolog.Logger) *taskUC {
	return &taskUC{
		api:      api,
		store:    store,
		poller:   poller,
		notifier: notifier,
		now:      time.Now,
		log:      logging.Component(logger, "TaskUseCase"),
	}
}

// CreateTask submits one job, stores the task and starts polling it.
func (u *taskUC) CreateTask(ctx context.Context, kind model.Kind, params model.GenerationParams) (model.Task, error) {
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "TaskUseCase.CreateTask")()

	params = params.WithDefaults(kind)
	if err := params.Validate(kind); err != nil {
		return model.Task{}, err
	}
	job, err := u.api.CreateJob(ctx, kind, params)
	metrics.IncJobCreated(string(kind), err == nil)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("create job failed")
		u.notify(ctx, adapter.Notice{Level: adapter.NoticeError, Text: "task creation failed: " + err.Error()})
		return model.Task{}, err
	}

	t, err := model.NewTask(job.JobID, kind, params, job.Status, u.now())
	if err != nil {
		return model.Task{}, err
	}
	added, err := u.store.Add(ctx, *t)
	if err != nil {
		log.Error().Err(err).Str("task_id", t.TaskID).Msg("task stored in memory only")
	}
	if !added {
		existing, _ := u.store.Get(t.TaskID)
		return existing, nil
	}
	log.Info().Str("task_id", t.TaskID).Str("kind", string(kind)).Msg("task created")
	u.notify(ctx, adapter.Notice{TaskID: t.TaskID, Level: adapter.NoticeInfo, Text: "task created"})
	u.poller.Track(t.TaskID)
	return *t, nil
}

func (u *taskUC) UploadMedia(ctx context.Context, files ...adapter.MediaFile) ([]string, error) {
	if len(files) > model.MaxEditImages {
		return nil, domain.Validationf("at most %d images are allowed", model.MaxEditImages)
	}
	return u.api.UploadMedia(ctx, files...)
}

func (u *taskUC) List(ctx context.Context) []model.Task { return u.store.List() }

func (u *taskUC) Get(ctx context.Context, id string) (model.Task, error) {
	t, ok := u.store.Get(id)
	if !ok {
		return model.Task{}, domain.ErrNotFound
	}
	return t, nil
}

func (u *taskUC) Delete(ctx context.Context, id string) error {
	return u.store.Delete(ctx, id)
}

func (u *taskUC) Clone(ctx context.Context, id string) (model.Draft, error) {
	t, err := u.Get(ctx, id)
	if err != nil {
		return model.Draft{}, err
	}
	return t.Clone(), nil
}

func (u *taskUC) ResumePending(ctx context.Context) int {
	n := 0
	for _, t := range u.store.List() {
		if !t.IsTerminal() && u.poller.Track(t.TaskID) {
			n++
		}
	}
	if n > 0 {
		u.log.Info().Int("resumed", n).Msg("resumed polling")
	}
	return n
}

func (u *taskUC) notify(ctx context.Context, n adapter.Notice) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, n); err != nil {
		u.log.Debug().Err(err).Msg("notify failed")
	}
}
