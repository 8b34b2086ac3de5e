package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/infra/logging"
	"genmedia-studio/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// ImportedPrompt fills the prompt of imported tasks the remote did not echo.
const ImportedPrompt = "imported task"

type ImportFailure struct {
	TaskID string `json:"taskId"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Succeeded []string        `json:"succeeded"`
	Skipped   []string        `json:"skipped"`
	Failed    []ImportFailure `json:"failed"`
}

// ParseTaskIDs splits raw on whitespace and commas (ASCII or fullwidth) and
// drops repeats, keeping first-seen order.
func ParseTaskIDs(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '，'
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Reconciler imports externally known jobs into the store and exports the
// collection.
type Reconciler struct {
	api      adapter.JobAPI
	store    *TaskStore
	poller   *Poller
	previews *PreviewDeriver
	now      func() time.Time
	log      *zerolog.Logger
}

func NewReconciler(api adapter.JobAPI, store *TaskStore, poller *Poller, previews *PreviewDeriver, logger *zerolog.Logger) *Reconciler {
	return &Reconciler{
		api:      api,
		store:    store,
		poller:   poller,
		previews: previews,
		now:      time.Now,
		log:      logging.Component(logger, "Reconciler"),
	}
}

// ImportByIDs queries every id not yet stored once and records what the
// remote reports. Per-id errors are collected; the call itself only fails
// when nothing could be parsed. An empty kind is inferred from the result
// as image-to-image for image output and text-to-video otherwise; queries
// carry no kind, so image-to-video needs an explicit kind.
func (r *Reconciler) ImportByIDs(ctx context.Context, raw string, kind model.Kind) (ImportResult, error) {
	log := logging.With(ctx, r.log)
	defer logging.TraceDuration(log, "Reconciler.ImportByIDs")()

	if kind != "" && !kind.Valid() {
		return ImportResult{}, domain.Validationf("unknown task kind %q", kind)
	}
	ids := ParseTaskIDs(raw)
	if len(ids) == 0 {
		return ImportResult{}, domain.Validationf("no task ids given")
	}

	res := ImportResult{Succeeded: []string{}, Skipped: []string{}, Failed: []ImportFailure{}}
	for _, id := range ids {
		if ctx.Err() != nil {
			res.Failed = append(res.Failed, ImportFailure{TaskID: id, Reason: ctx.Err().Error()})
			continue
		}
		if r.store.Has(id) {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		if err := r.importOne(ctx, id, kind); err != nil {
			log.Warn().Err(err).Str("task_id", id).Msg("import failed")
			res.Failed = append(res.Failed, ImportFailure{TaskID: id, Reason: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}

	metrics.AddImports("succeeded", len(res.Succeeded))
	metrics.AddImports("skipped", len(res.Skipped))
	metrics.AddImports("failed", len(res.Failed))
	log.Info().
		Int("succeeded", len(res.Succeeded)).
		Int("skipped", len(res.Skipped)).
		Int("failed", len(res.Failed)).
		Msg("import finished")
	return res, nil
}

func (r *Reconciler) importOne(ctx context.Context, id string, kind model.Kind) error {
	q, err := r.api.QueryJob(ctx, id)
	if err != nil {
		return err
	}
	url := q.FirstURL()
	outputType := ""
	if len(q.Results) > 0 {
		outputType = q.Results[0].OutputType
	}
	if kind == "" {
		kind = model.KindTextToVideo
		if url != "" && isImageOutput(outputType, url) {
			kind = model.KindImageToImage
		}
	}
	prompt := strings.TrimSpace(q.Prompt)
	if prompt == "" {
		prompt = ImportedPrompt
	}

	t, err := model.NewTask(id, kind, model.GenerationParams{Prompt: prompt}, q.Status, r.now())
	if err != nil {
		return err
	}
	task := *t
	switch {
	case q.Status == model.StatusSuccess && url != "":
		task = task.Apply(model.Succeeded{ResultURL: url, Usage: q.Usage})
		task.PreviewURL = r.previews.Derive(ctx, kind, url, outputType)
	case q.Status == model.StatusFailed:
		task = task.Apply(model.Failed{Reason: failureReason(q)})
	}

	added, err := r.store.Add(ctx, task)
	if err != nil {
		return err
	}
	if !added {
		return errors.New("task already present")
	}
	if !task.IsTerminal() {
		r.poller.Track(id)
	}
	return nil
}

// Export snapshots the collection. It never mutates the store.
func (r *Reconciler) Export() model.ExportDocument {
	return model.ExportDocument{
		Tasks:      r.store.List(),
		ExportTime: r.now().UTC().Format(time.RFC3339Nano),
		Version:    model.ExportVersion,
	}
}

// ExportAll returns Export as indented JSON.
func (r *Reconciler) ExportAll() ([]byte, error) {
	return json.MarshalIndent(r.Export(), "", "  ")
}
