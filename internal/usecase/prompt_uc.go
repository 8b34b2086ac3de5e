package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/repository"
	"genmedia-studio/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ PromptUseCase = (*promptUC)(nil)

type PromptUseCase interface {
	Load(ctx context.Context) error
	Reload(ctx context.Context) error
	List(ctx context.Context) []model.SavedPrompt
	Save(ctx context.Context, name string, kind model.Kind, params model.GenerationParams) (model.SavedPrompt, error)
	Delete(ctx context.Context, id string) error
}

// promptUC keeps saved presets newest first, persisted like the tasks.
type promptUC struct {
	local       repository.LocalStore
	mirror      *RemoteMirror
	reloadLimit int
	now         func() time.Time
	log         *zerolog.Logger

	mu      sync.Mutex
	prompts []model.SavedPrompt
}

func NewPromptUseCase(local repository.LocalStore, mirror *RemoteMirror, reloadLimit int, logger *zerolog.Logger) *promptUC {
	if reloadLimit <= 0 {
		reloadLimit = 100
	}
	return &promptUC{
		local:       local,
		mirror:      mirror,
		reloadLimit: reloadLimit,
		now:         time.Now,
		log:         logging.Component(logger, "PromptUseCase"),
	}
}

func (u *promptUC) Load(ctx context.Context) error {
	raw, err := u.local.Get(ctx, repository.KeySavedPrompts)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var ps []model.SavedPrompt
	if err := json.Unmarshal(raw, &ps); err != nil {
		return fmt.Errorf("%w: decode prompts: %v", domain.ErrPersistence, err)
	}
	u.mu.Lock()
	u.prompts = ps
	u.mu.Unlock()
	return nil
}

// Reload puts remote presets first and appends local-only ones.
func (u *promptUC) Reload(ctx context.Context) error {
	if !u.mirror.Enabled() {
		return nil
	}
	docs, err := u.mirror.Fetch(ctx, repository.CollectionSavedPrompts, u.reloadLimit)
	if err != nil {
		u.log.Warn().Err(err).Msg("remote prompts unavailable, keeping local state")
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	seen := map[string]struct{}{}
	merged := make([]model.SavedPrompt, 0, len(docs)+len(u.prompts))
	for _, d := range docs {
		var p model.SavedPrompt
		if json.Unmarshal(d.Body, &p) != nil || p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		merged = append(merged, p)
	}
	for _, p := range u.prompts {
		if _, dup := seen[p.ID]; !dup {
			seen[p.ID] = struct{}{}
			merged = append(merged, p)
		}
	}
	u.prompts = merged
	return u.persistLocked(ctx)
}

func (u *promptUC) List(ctx context.Context) []model.SavedPrompt {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]model.SavedPrompt(nil), u.prompts...)
}

func (u *promptUC) Save(ctx context.Context, name string, kind model.Kind, params model.GenerationParams) (model.SavedPrompt, error) {
	if !kind.Valid() {
		return model.SavedPrompt{}, domain.Validationf("unknown task kind %q", kind)
	}
	p, err := model.NewSavedPrompt(name, kind, params, u.now())
	if err != nil {
		return model.SavedPrompt{}, err
	}
	u.mu.Lock()
	prev := u.prompts
	u.prompts = append([]model.SavedPrompt{*p}, prev...)
	if err := u.persistLocked(ctx); err != nil {
		u.prompts = prev
		u.mu.Unlock()
		return model.SavedPrompt{}, err
	}
	u.mirrorLocked(*p)
	u.mu.Unlock()
	logging.With(ctx, u.log).Info().Str("prompt_id", p.ID).Msg("prompt saved")
	return *p, nil
}

func (u *promptUC) Delete(ctx context.Context, id string) error {
	u.mu.Lock()
	i := -1
	for j := range u.prompts {
		if u.prompts[j].ID == id {
			i = j
			break
		}
	}
	if i < 0 {
		u.mu.Unlock()
		return domain.ErrNotFound
	}
	// Build a fresh slice so prev stays intact for the rollback.
	prev := u.prompts
	next := make([]model.SavedPrompt, 0, len(prev)-1)
	next = append(next, prev[:i]...)
	u.prompts = append(next, prev[i+1:]...)
	if err := u.persistLocked(ctx); err != nil {
		u.prompts = prev
		u.mu.Unlock()
		return err
	}
	u.mu.Unlock()
	u.mirror.Delete(ctx, repository.CollectionSavedPrompts, id)
	return nil
}

func (u *promptUC) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(u.prompts)
	if err != nil {
		return fmt.Errorf("%w: encode prompts: %v", domain.ErrPersistence, err)
	}
	return u.local.Set(ctx, repository.KeySavedPrompts, raw)
}

func (u *promptUC) mirrorLocked(p model.SavedPrompt) {
	body, err := json.Marshal(p)
	if err != nil {
		return
	}
	u.mirror.Upsert(repository.CollectionSavedPrompts, p.ID, p.CreatedAt, body)
}
