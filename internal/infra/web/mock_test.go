//go:build !integration

package web

import (
	"context"
	"io"
	"sync"
	"time"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/usecase"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- fakeState ----

type fakeState struct {
	mu       sync.Mutex
	key      string
	settings model.Settings
}

var _ usecase.AppStateUseCase = (*fakeState)(nil)

func (f *fakeState) Load(ctx context.Context) error { return nil }
func (f *fakeState) Credential(ctx context.Context) (string, error) {
	if f.key == "" {
		return "", domain.ErrCredentialMissing
	}
	return f.key, nil
}
func (f *fakeState) HasCredential() bool { return f.key != "" }
func (f *fakeState) SetCredential(ctx context.Context, key string) error {
	if err := model.ValidateCredential(key); err != nil {
		return err
	}
	f.key = key
	return nil
}
func (f *fakeState) Settings() model.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}
func (f *fakeState) SetSettings(ctx context.Context, s model.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	f.settings = s
	f.mu.Unlock()
	return nil
}
func (f *fakeState) OnSettings(fn func(model.Settings)) {}

// ---- fakeTasks ----

type fakeTasks struct {
	mu       sync.Mutex
	tasks    map[string]model.Task
	createFn func(kind model.Kind, p model.GenerationParams) (model.Task, error)
	uploaded []string
}

var _ usecase.TaskUseCase = (*fakeTasks)(nil)

func newFakeTasks() *fakeTasks { return &fakeTasks{tasks: map[string]model.Task{}} }

func (f *fakeTasks) CreateTask(ctx context.Context, kind model.Kind, p model.GenerationParams) (model.Task, error) {
	if f.createFn != nil {
		return f.createFn(kind, p)
	}
	t, err := model.NewTask("new-1", kind, p, model.StatusQueued, time.Now())
	if err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	f.tasks[t.TaskID] = *t
	f.mu.Unlock()
	return *t, nil
}

func (f *fakeTasks) UploadMedia(ctx context.Context, files ...adapter.MediaFile) ([]string, error) {
	out := make([]string, 0, len(files))
	for _, file := range files {
		b, _ := io.ReadAll(file.Data)
		f.uploaded = append(f.uploaded, string(b))
		out = append(out, "https://cdn.example/"+file.Name)
	}
	return out, nil
}

func (f *fakeTasks) List(ctx context.Context) []model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out
}

func (f *fakeTasks) Get(ctx context.Context, id string) (model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return model.Task{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeTasks) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTasks) Clone(ctx context.Context, id string) (model.Draft, error) {
	t, err := f.Get(ctx, id)
	if err != nil {
		return model.Draft{}, err
	}
	return t.Clone(), nil
}

func (f *fakeTasks) ResumePending(ctx context.Context) int { return 0 }

// ---- fakeBatches ----

type fakeBatches struct {
	busy bool
	last usecase.BatchRequest
}

func (f *fakeBatches) Submit(req usecase.BatchRequest) (usecase.BatchStatus, error) {
	if f.busy {
		return usecase.BatchStatus{InProgress: true, Size: 3, Dispatched: 1}, domain.ErrBatchInProgress
	}
	if req.Size < 1 || req.Size > model.MaxBatchSize {
		return usecase.BatchStatus{}, domain.Validationf("batch size must be between 1 and %d", model.MaxBatchSize)
	}
	f.last = req
	return usecase.BatchStatus{InProgress: true, Size: req.Size}, nil
}

func (f *fakeBatches) Status() usecase.BatchStatus { return usecase.BatchStatus{Size: 2, Completed: 2} }

// ---- fakeSync ----

type fakeSync struct {
	raw  string
	kind model.Kind
}

func (f *fakeSync) ImportByIDs(ctx context.Context, raw string, kind model.Kind) (usecase.ImportResult, error) {
	f.raw, f.kind = raw, kind
	ids := usecase.ParseTaskIDs(raw)
	if len(ids) == 0 {
		return usecase.ImportResult{}, domain.Validationf("no task ids given")
	}
	return usecase.ImportResult{Succeeded: ids, Skipped: []string{}, Failed: []usecase.ImportFailure{}}, nil
}

func (f *fakeSync) Export() model.ExportDocument {
	return model.ExportDocument{
		Tasks:      []model.Task{{TaskID: "a", Kind: model.KindTextToVideo, Status: model.StatusSuccess}},
		ExportTime: "2025-03-01T12:00:00Z",
		Version:    model.ExportVersion,
	}
}

// ---- fakePrompts ----

type fakePrompts struct {
	saved []model.SavedPrompt
}

var _ usecase.PromptUseCase = (*fakePrompts)(nil)

func (f *fakePrompts) Load(ctx context.Context) error                 { return nil }
func (f *fakePrompts) Reload(ctx context.Context) error               { return nil }
func (f *fakePrompts) List(ctx context.Context) []model.SavedPrompt { return f.saved }
func (f *fakePrompts) Save(ctx context.Context, name string, kind model.Kind, p model.GenerationParams) (model.SavedPrompt, error) {
	sp, err := model.NewSavedPrompt(name, kind, p, time.Now())
	if err != nil {
		return model.SavedPrompt{}, err
	}
	f.saved = append(f.saved, *sp)
	return *sp, nil
}
func (f *fakePrompts) Delete(ctx context.Context, id string) error {
	for i, p := range f.saved {
		if p.ID == id {
			f.saved = append(f.saved[:i], f.saved[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// ---- fakeLimiter ----

type fakeLimiter struct {
	allowed int
	calls   int
	key     string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.calls++
	f.key = key
	return f.calls <= f.allowed, nil
}
