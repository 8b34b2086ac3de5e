package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/domain/ports/repository"
	"genmedia-studio/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ AppStateUseCase = (*appStateUC)(nil)

// AppStateUseCase owns the credential and user settings.
type AppStateUseCase interface {
	Load(ctx context.Context) error
	Credential(ctx context.Context) (string, error)
	HasCredential() bool
	SetCredential(ctx context.Context, key string) error
	Settings() model.Settings
	SetSettings(ctx context.Context, s model.Settings) error
	// OnSettings registers fn to run after every settings change.
	OnSettings(fn func(model.Settings))
}

type appStateUC struct {
	local    repository.LocalStore
	cipher   adapter.SecretCipher
	deviceID string
	fallback string
	log      *zerolog.Logger

	mu         sync.RWMutex
	credential string
	settings   model.Settings
	hooks      []func(model.Settings)
}

// NewAppStateUseCase builds the state holder. fallbackKey (from config or
// the environment) is used until a credential is stored on the device.
func NewAppStateUseCase(local repository.LocalStore, cipher adapter.SecretCipher, deviceID, fallbackKey string, logger *zerolog.Logger) *appStateUC {
	return &appStateUC{
		local:    local,
		cipher:   cipher,
		deviceID: deviceID,
		fallback: strings.TrimSpace(fallbackKey),
		log:      logging.Component(logger, "AppState"),
		settings: model.DefaultSettings(),
	}
}

func (a *appStateUC) Load(ctx context.Context) error {
	defer logging.TraceDuration(a.log, "AppState.Load")()

	cred, err := a.loadCredential(ctx)
	if err != nil {
		return err
	}
	settings, err := a.loadSettings(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.credential = cred
	a.settings = settings
	hooks := append([]func(model.Settings){}, a.hooks...)
	a.mu.Unlock()

	for _, fn := range hooks {
		fn(settings)
	}
	a.log.Info().
		Bool("credential", cred != "").
		Int("max_concurrent", settings.MaxConcurrent).
		Msg("state loaded")
	return nil
}

func (a *appStateUC) loadCredential(ctx context.Context) (string, error) {
	raw, err := a.local.Get(ctx, repository.KeyCredential)
	if errors.Is(err, domain.ErrNotFound) {
		return a.fallback, nil
	}
	if err != nil {
		return "", err
	}
	key, err := a.cipher.Open(string(raw), a.deviceID)
	if err != nil {
		a.log.Warn().Err(err).Msg("stored credential unreadable, falling back")
		return a.fallback, nil
	}
	return key, nil
}

func (a *appStateUC) loadSettings(ctx context.Context) (model.Settings, error) {
	raw, err := a.local.Get(ctx, repository.KeySettings)
	if errors.Is(err, domain.ErrNotFound) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, err
	}
	s := model.DefaultSettings()
	if err := json.Unmarshal(raw, &s); err != nil || s.Validate() != nil {
		a.log.Warn().Msg("stored settings invalid, using defaults")
		return model.DefaultSettings(), nil
	}
	return s, nil
}

// Credential implements the job API's credential source.
func (a *appStateUC) Credential(ctx context.Context) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.credential == "" {
		return "", domain.ErrCredentialMissing
	}
	return a.credential, nil
}

func (a *appStateUC) HasCredential() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.credential != ""
}

func (a *appStateUC) SetCredential(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if err := model.ValidateCredential(key); err != nil {
		return err
	}
	sealed, err := a.cipher.Seal(key, a.deviceID)
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}
	if err := a.local.Set(ctx, repository.KeyCredential, []byte(sealed)); err != nil {
		return err
	}
	a.mu.Lock()
	a.credential = key
	a.mu.Unlock()
	a.log.Info().Str("api_key", logging.Redact(key)).Msg("credential updated")
	return nil
}

func (a *appStateUC) Settings() model.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

func (a *appStateUC) SetSettings(ctx context.Context, s model.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := a.local.Set(ctx, repository.KeySettings, raw); err != nil {
		return err
	}
	a.mu.Lock()
	a.settings = s
	hooks := append([]func(model.Settings){}, a.hooks...)
	a.mu.Unlock()
	for _, fn := range hooks {
		fn(s)
	}
	return nil
}

func (a *appStateUC) OnSettings(fn func(model.Settings)) {
	a.mu.Lock()
	a.hooks = append(a.hooks, fn)
	a.mu.Unlock()
}
