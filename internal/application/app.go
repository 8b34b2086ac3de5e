package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"genmedia-studio/internal/config"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/domain/ports/repository"
	"genmedia-studio/internal/infra/adapters/jobapi"
	"genmedia-studio/internal/infra/adapters/notify"
	"genmedia-studio/internal/infra/adapters/telegram"
	"genmedia-studio/internal/infra/db/mongo"
	"genmedia-studio/internal/infra/db/postgres"
	"genmedia-studio/internal/infra/identity"
	"genmedia-studio/internal/infra/logging"
	"genmedia-studio/internal/infra/media"
	"genmedia-studio/internal/infra/redis"
	"genmedia-studio/internal/infra/sched"
	"genmedia-studio/internal/infra/security"
	"genmedia-studio/internal/infra/web"
	"genmedia-studio/internal/infra/worker"
	"genmedia-studio/internal/usecase"

	"github.com/rs/zerolog"
)

// mirrorQueue bounds the pending remote writes.
const mirrorQueue = 256

// Infra holds the external connections the application runs on.
type Infra struct {
	Redis redis.RedisClient
	// Docs is the remote document store; nil disables mirroring.
	Docs repository.DocumentStore
	// JobAPI overrides the REST client, mainly for tests.
	JobAPI      adapter.JobAPI
	Thumbnailer adapter.Thumbnailer
	Notifiers   []adapter.Notifier
}

// App wires the use cases to their adapters and owns their lifecycle.
type App struct {
	cfg      *config.Config
	log      *zerolog.Logger
	deviceID string

	runCtx context.Context
	cancel context.CancelFunc

	pool    *worker.Pool
	limited *jobapi.Limited
	store   *usecase.TaskStore
	poller  *usecase.Poller
	resumer *sched.PollResumer

	State   usecase.AppStateUseCase
	Tasks   usecase.TaskUseCase
	Batches *usecase.BatchScheduler
	Sync    *usecase.Reconciler
	Prompts usecase.PromptUseCase

	server  *web.Server
	http    *http.Server
	closers []func()
}

// New connects Redis and the configured remote backend, then assembles the app.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	l := logging.Component(logger, "App")
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// ---- Redis ----
	rdb, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	closers = append(closers, func() { _ = rdb.Close() })

	// ---- Remote store ----
	var docs repository.DocumentStore
	switch cfg.Remote.Backend {
	case "mongo":
		client, err := mongo.Connect(ctx, cfg.Remote.MongoURI, cfg.Remote.Timeout)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
		store := mongo.NewDocumentStore(client, cfg.Remote.MongoDatabase)
		if err := store.EnsureIndexes(ctx, repository.CollectionVideoTasks, repository.CollectionEditTasks, repository.CollectionSavedPrompts); err != nil {
			closeAll()
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		docs = store
	case "postgres":
		pool, err := postgres.NewPgxPool(ctx, cfg.Remote.PostgresURL, cfg.Remote.Timeout)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, pool.Close)
		store := postgres.NewDocumentStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		statsCtx, stop := context.WithCancel(context.Background())
		go postgres.ReportPoolStats(statsCtx, pool, 30*time.Second)
		closers = append(closers, stop)
		docs = store
	default:
		l.Info().Msg("remote store disabled")
	}

	// ---- Notifications ----
	var extra []adapter.Notifier
	if tg := cfg.Notify.Telegram; tg.Token != "" && tg.ChatID != 0 {
		n, err := telegram.NewNotifier(tg.Token, tg.ChatID, logger)
		if err != nil {
			l.Warn().Err(err).Msg("telegram notifier unavailable")
		} else {
			extra = append(extra, n)
		}
	}

	app, err := Assemble(ctx, cfg, Infra{Redis: rdb, Docs: docs, Notifiers: extra}, logger)
	if err != nil {
		closeAll()
		return nil, err
	}
	app.closers = closers
	return app, nil
}

// Assemble builds every component on top of infra without starting anything.
func Assemble(ctx context.Context, cfg *config.Config, infra Infra, logger *zerolog.Logger) (*App, error) {
	l := logging.Component(logger, "App")
	local := redis.NewLocalStore(infra.Redis, cfg.Redis.Prefix)

	// ---- Identity & secrets ----
	deviceID, err := identity.NewDeviceIdentity(local, cfg.Identity.Secret, cfg.Identity.TTL, logger).Ensure(ctx)
	if err != nil {
		return nil, fmt.Errorf("device identity: %w", err)
	}
	cipher, err := security.NewCipher(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	state := usecase.NewAppStateUseCase(local, cipher, deviceID, cfg.API.APIKey, logger)

	// ---- Job API ----
	api := infra.JobAPI
	switch {
	case api != nil:
	case cfg.Runtime.Dev && cfg.API.APIKey == "":
		l.Warn().Msg("dev mode without api key, using offline job api")
		api = jobapi.NewNoop()
	default:
		api = jobapi.NewClient(jobapi.Config{
			BaseURL:            cfg.API.BaseURL,
			CreateTimeout:      cfg.API.CreateTimeout,
			QueryTimeout:       cfg.API.QueryTimeout,
			UploadTimeout:      cfg.API.UploadTimeout,
			BatchUploadTimeout: cfg.API.BatchUploadTimeout,
			Endpoints:          cfg.API.Endpoints,
			UploadPath:         cfg.API.UploadPath,
		}, state, nil, logger)
	}
	limited := jobapi.NewLimited(api, cfg.API.MaxConcurrent)
	state.OnSettings(func(s model.Settings) { limited.SetLimit(s.MaxConcurrent) })

	// ---- Stores ----
	pool := worker.NewPool(1, mirrorQueue, logging.Component(logger, "MirrorPool"))
	mirror := usecase.NewRemoteMirror(infra.Docs, deviceID, pool, cfg.Remote.Timeout, logger)
	store := usecase.NewTaskStore(local, mirror, cfg.Remote.ReloadLimit, logger)

	thumbs := infra.Thumbnailer
	if thumbs == nil {
		if cfg.Thumbnail.Enabled {
			thumbs = media.NewFFmpegThumbnailer(cfg.Thumbnail.FFmpegPath, 0, logger)
		} else {
			thumbs = media.NoopThumbnailer{}
		}
	}
	previews := usecase.NewPreviewDeriver(thumbs, logger)
	notifier := append(notify.Fanout{notify.NewLogNotifier(logger)}, infra.Notifiers...)

	// ---- Use cases ----
	runCtx, cancel := context.WithCancel(context.Background())
	poller := usecase.NewPoller(runCtx, limited, store, previews, notifier, usecase.PollerConfig{
		Interval:          cfg.Poller.Interval,
		MaxNetworkRetries: cfg.Poller.MaxNetworkRetries,
		ResultAttempts:    cfg.Poller.ResultAttempts,
		ResultDelay:       cfg.Poller.ResultDelay,
	}, nil, logger)
	tasks := usecase.NewTaskUseCase(limited, store, poller, notifier, logger)
	batches := usecase.NewBatchScheduler(runCtx, tasks, cfg.Batch.Stagger, cfg.Batch.MaxSize, nil, logger)
	sync := usecase.NewReconciler(limited, store, poller, previews, logger)
	prompts := usecase.NewPromptUseCase(local, mirror, cfg.Remote.ReloadLimit, logger)

	// ---- HTTP ----
	server := web.NewServer(web.Deps{
		State:   state,
		Tasks:   tasks,
		Batches: batches,
		Sync:    sync,
		Prompts: prompts,
		Limiter: redis.NewRateLimiter(infra.Redis, cfg.Redis.Prefix),
	}, web.Options{
		DeviceID:       deviceID,
		AccessKey:      cfg.HTTP.AccessKey,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		BatchLimit:     cfg.HTTP.BatchRateLimit,
		BatchWindow:    cfg.HTTP.BatchRateWindow,
	}, logger)

	l.Info().Str("device_id", deviceID).Str("remote", cfg.Remote.Backend).Msg("application assembled")
	return &App{
		cfg:      cfg,
		log:      l,
		deviceID: deviceID,
		runCtx:   runCtx,
		cancel:   cancel,
		pool:     pool,
		limited:  limited,
		store:    store,
		poller:   poller,
		resumer:  sched.NewPollResumer(tasks, cfg.Poller.ResumeInterval, logger),
		State:    state,
		Tasks:    tasks,
		Batches:  batches,
		Sync:     sync,
		Prompts:  prompts,
		server:   server,
	}, nil
}

func (a *App) DeviceID() string { return a.deviceID }

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler { return a.server.Router() }

// Open loads persisted state and merges the remote copy. Unfinished tasks
// are left untouched, so one-shot tools can read them without polling.
// A failing remote never stops startup.
func (a *App) Open(ctx context.Context) error {
	defer logging.TraceDuration(a.log, "App.Open")()
	a.pool.Start(a.runCtx)

	if err := a.State.Load(ctx); err != nil {
		return fmt.Errorf("load app state: %w", err)
	}
	a.limited.SetLimit(a.State.Settings().MaxConcurrent)

	if err := a.store.Load(ctx); err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	if err := a.Prompts.Load(ctx); err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	if err := a.store.Reload(ctx); err != nil {
		a.log.Warn().Err(err).Msg("task reload failed, using local copy")
	}
	if err := a.Prompts.Reload(ctx); err != nil {
		a.log.Warn().Err(err).Msg("prompt reload failed, using local copy")
	}
	a.log.Info().Int("tasks", len(a.store.List())).Msg("state loaded")
	return nil
}

// Start opens the app and resumes polling for unfinished tasks.
func (a *App) Start(ctx context.Context) error {
	if err := a.Open(ctx); err != nil {
		return err
	}
	n := a.Tasks.ResumePending(a.runCtx)
	a.log.Info().Int("resumed", n).Msg("polling resumed")
	go a.resumer.Start(a.runCtx)
	return nil
}

// Serve starts the HTTP listener in the background.
func (a *App) Serve() {
	a.http = a.server.HTTPServer(fmt.Sprintf(":%d", a.cfg.HTTP.Port))
	go func() {
		a.log.Info().Str("addr", a.http.Addr).Msg("http listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("http server error")
		}
	}()
}

// Close stops the listener, the poll loops and the batch in flight, drains
// pending remote writes and releases connections.
func (a *App) Close(ctx context.Context) {
	if a.http != nil {
		if err := a.http.Shutdown(ctx); err != nil {
			a.log.Warn().Err(err).Msg("http shutdown")
		}
	}
	a.cancel()
	a.Batches.Wait()
	a.poller.Wait()
	a.pool.Stop()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.log.Info().Msg("application stopped")
}
