package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/repository"
	"genmedia-studio/internal/infra/logging"

	"github.com/rs/zerolog"
)

// TaskStore is the in-memory task collection, most recent first. Every
// change rewrites the whole collection locally and mirrors the single
// changed record remotely.
type TaskStore struct {
	local       repository.LocalStore
	mirror      *RemoteMirror
	reloadLimit int
	log         *zerolog.Logger

	mu      sync.RWMutex
	tasks   []model.Task
	deleted map[string]struct{} // removal in progress
}

func NewTaskStore(local repository.LocalStore, mirror *RemoteMirror, reloadLimit int, logger *zerolog.Logger) *TaskStore {
	if reloadLimit <= 0 {
		reloadLimit = 100
	}
	return &TaskStore{
		local:       local,
		mirror:      mirror,
		reloadLimit: reloadLimit,
		log:         logging.Component(logger, "TaskStore"),
		deleted:     map[string]struct{}{},
	}
}

// collectionFor picks the remote collection for a task kind.
func collectionFor(kind model.Kind) string {
	if kind == model.KindImageToImage {
		return repository.CollectionEditTasks
	}
	return repository.CollectionVideoTasks
}

// Load replaces the in-memory collection with the locally persisted one.
func (s *TaskStore) Load(ctx context.Context) error {
	raw, err := s.local.Get(ctx, repository.KeyTasks)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var tasks []model.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return fmt.Errorf("%w: decode tasks: %v", domain.ErrPersistence, err)
	}
	s.mu.Lock()
	s.tasks = dedupe(tasks)
	sortNewestFirst(s.tasks)
	s.mu.Unlock()
	s.log.Info().Int("tasks", len(tasks)).Msg("tasks loaded")
	return nil
}

func (s *TaskStore) List() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if _, gone := s.deleted[t.TaskID]; !gone {
			out = append(out, t)
		}
	}
	return out
}

func (s *TaskStore) Get(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, gone := s.deleted[id]; gone {
		return model.Task{}, false
	}
	i := s.indexOf(id)
	if i < 0 {
		return model.Task{}, false
	}
	return s.tasks[i], true
}

// Has reports whether id is stored and not being deleted.
func (s *TaskStore) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Add stores t unless a record with the same id exists. It reports
// whether t was inserted.
func (s *TaskStore) Add(ctx context.Context, t model.Task) (bool, error) {
	s.mu.Lock()
	if s.indexOf(t.TaskID) >= 0 {
		s.mu.Unlock()
		return false, nil
	}
	i := sort.Search(len(s.tasks), func(i int) bool { return !s.tasks[i].CreatedAt.After(t.CreatedAt) })
	s.tasks = append(s.tasks, model.Task{})
	copy(s.tasks[i+1:], s.tasks[i:])
	s.tasks[i] = t
	err := s.persistLocked(ctx)
	s.mirrorTask(t)
	s.mu.Unlock()
	return true, err
}

// Update applies fn to the stored task. Missing or deleted tasks are left
// alone and reported with ok=false.
func (s *TaskStore) Update(ctx context.Context, id string, fn func(model.Task) model.Task) (model.Task, bool) {
	s.mu.Lock()
	if _, gone := s.deleted[id]; gone {
		s.mu.Unlock()
		return model.Task{}, false
	}
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, false
	}
	next := fn(s.tasks[i])
	next.TaskID, next.CreatedAt = s.tasks[i].TaskID, s.tasks[i].CreatedAt
	s.tasks[i] = next
	if err := s.persistLocked(ctx); err != nil {
		s.log.Error().Err(err).Str("task_id", id).Msg("local persist failed")
	}
	// queued under mu so the remote sees updates in order
	s.mirrorTask(next)
	s.mu.Unlock()
	return next, true
}

// Delete removes the task from local storage, then from the remote
// collection, and only then from memory. Polling stops because Has turns
// false as soon as removal starts.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, gone := s.deleted[id]; gone {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	kind := s.tasks[i].Kind
	s.deleted[id] = struct{}{}
	err := s.persistLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		s.mu.Lock()
		delete(s.deleted, id)
		s.mu.Unlock()
		return err
	}

	s.mirror.Delete(ctx, collectionFor(kind), id)

	s.mu.Lock()
	if j := s.indexOf(id); j >= 0 {
		s.tasks = append(s.tasks[:j], s.tasks[j+1:]...)
	}
	delete(s.deleted, id)
	s.mu.Unlock()
	s.log.Info().Str("task_id", id).Msg("task deleted")
	return nil
}

// Reload merges the newest remote records into memory. Remote records come
// first and the first occurrence of an id wins, except that a terminal local
// record is never replaced by a non-terminal remote one.
func (s *TaskStore) Reload(ctx context.Context) error {
	if !s.mirror.Enabled() {
		return nil
	}
	var remote []model.Task
	for _, c := range []string{repository.CollectionVideoTasks, repository.CollectionEditTasks} {
		docs, err := s.mirror.Fetch(ctx, c, s.reloadLimit)
		if err != nil {
			s.log.Warn().Err(err).Str("collection", c).Msg("remote fetch failed, keeping local state")
			return nil
		}
		for _, d := range docs {
			var t model.Task
			if err := json.Unmarshal(d.Body, &t); err != nil || t.TaskID == "" {
				s.log.Warn().Str("collection", c).Str("key", d.Key).Msg("skipping unreadable remote task")
				continue
			}
			remote = append(remote, t)
		}
	}
	sortNewestFirst(remote)

	s.mu.Lock()
	local := make(map[string]model.Task, len(s.tasks))
	for _, t := range s.tasks {
		local[t.TaskID] = t
	}
	merged := make([]model.Task, 0, len(remote)+len(s.tasks))
	seen := make(map[string]struct{}, cap(merged))
	add := func(t model.Task) {
		if _, dup := seen[t.TaskID]; dup {
			return
		}
		if _, gone := s.deleted[t.TaskID]; gone {
			return
		}
		seen[t.TaskID] = struct{}{}
		merged = append(merged, t)
	}
	for _, r := range remote {
		if l, ok := local[r.TaskID]; ok && l.IsTerminal() && !r.IsTerminal() {
			add(l)
			continue
		}
		add(r)
	}
	for _, t := range s.tasks {
		add(t)
	}
	sortNewestFirst(merged)
	s.tasks = merged
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.log.Info().Int("remote", len(remote)).Int("tasks", len(merged)).Msg("tasks reloaded")
	return err
}

// persistLocked writes the collection minus pending deletions. Caller holds mu.
func (s *TaskStore) persistLocked(ctx context.Context) error {
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if _, gone := s.deleted[t.TaskID]; !gone {
			out = append(out, t)
		}
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("%w: encode tasks: %v", domain.ErrPersistence, err)
	}
	return s.local.Set(ctx, repository.KeyTasks, raw)
}

func (s *TaskStore) mirrorTask(t model.Task) {
	body, err := json.Marshal(t)
	if err != nil {
		s.log.Warn().Err(err).Str("task_id", t.TaskID).Msg("encode for mirror failed")
		return
	}
	s.mirror.Upsert(collectionFor(t.Kind), t.TaskID, t.CreatedAt, body)
}

func (s *TaskStore) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].TaskID == id {
			return i
		}
	}
	return -1
}

func dedupe(tasks []model.Task) []model.Task {
	seen := make(map[string]struct{}, len(tasks))
	out := tasks[:0]
	for _, t := range tasks {
		if _, dup := seen[t.TaskID]; dup || t.TaskID == "" {
			continue
		}
		seen[t.TaskID] = struct{}{}
		out = append(out, t)
	}
	return out
}

func sortNewestFirst(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
}
