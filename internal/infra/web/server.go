package web

import (
	"context"
	"net/http"
	"time"

	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/infra/logging"
	"genmedia-studio/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// BatchService runs one batch at a time.
type BatchService interface {
	Submit(req usecase.BatchRequest) (usecase.BatchStatus, error)
	Status() usecase.BatchStatus
}

type ImportExport interface {
	ImportByIDs(ctx context.Context, raw string, kind model.Kind) (usecase.ImportResult, error)
	Export() model.ExportDocument
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Deps are the use cases served over HTTP.
type Deps struct {
	State   usecase.AppStateUseCase
	Tasks   usecase.TaskUseCase
	Batches BatchService
	Sync    ImportExport
	Prompts usecase.PromptUseCase
	Limiter RateLimiter // optional
}

type Options struct {
	DeviceID       string
	AccessKey      string
	RequestTimeout time.Duration
	BatchLimit     int
	BatchWindow    time.Duration
}

type Server struct {
	deps Deps
	opts Options
	log  *zerolog.Logger
	now  func() time.Time
}

func NewServer(deps Deps, opts Options, logger *zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}
	if opts.BatchWindow <= 0 {
		opts.BatchWindow = time.Minute
	}
	return &Server{deps: deps, opts: opts, log: logging.Component(logger, "HTTP"), now: time.Now}
}

// Router builds the full handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(s.opts.DeviceID),
		RequestLog(s.log),
		Recover(s.log),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AccessKey(s.opts.AccessKey), Timeout(s.opts.RequestTimeout))

		r.Get("/credential", s.getCredential)
		r.Put("/credential", s.putCredential)
		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.putSettings)

		r.Post("/media", s.uploadMedia)

		r.Get("/tasks", s.listTasks)
		r.Post("/tasks", s.createTask)
		r.Get("/tasks/{id}", s.getTask)
		r.Delete("/tasks/{id}", s.deleteTask)
		r.Post("/tasks/{id}/clone", s.cloneTask)

		r.Post("/batches", s.submitBatch)
		r.Get("/batches/status", s.batchStatus)

		r.Post("/import", s.importTasks)
		r.Get("/export", s.exportTasks)

		r.Get("/prompts", s.listPrompts)
		r.Post("/prompts", s.savePrompt)
		r.Delete("/prompts/{id}", s.deletePrompt)
	})
	return r
}

// HTTPServer wraps the router in a server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
