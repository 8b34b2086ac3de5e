package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/infra/logging"
	"genmedia-studio/internal/infra/redis"
	"genmedia-studio/internal/usecase"

	"github.com/go-chi/chi/v5"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 1 << 20
	maxUploadBody = 64 << 20
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the domain error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownJobID):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBatchInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransientServer):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	return nil
}

// ---- credential & settings ----

func (s *Server) getCredential(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"configured": s.deps.State.HasCredential()})
}

func (s *Server) putCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.State.SetCredential(r.Context(), req.APIKey); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.State.Settings())
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	next := s.deps.State.Settings()
	if err := decodeJSON(r, &next); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.State.SetSettings(r.Context(), next); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

// ---- media ----

func (s *Server) uploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		s.writeError(w, r, domain.Validationf("invalid multipart body: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		s.writeError(w, r, domain.Validationf("no file parts"))
		return
	}
	files := make([]adapter.MediaFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, r, domain.Validationf("open %s: %v", fh.Filename, err))
			return
		}
		defer f.Close()
		files = append(files, adapter.MediaFile{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: f})
	}
	urls, err := s.deps.Tasks.UploadMedia(r.Context(), files...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"urls": urls})
}

// ---- tasks ----

type taskRequest struct {
	Kind model.Kind `json:"kind"`
	model.GenerationParams
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Tasks.List(r.Context()))
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, err := model.ParseKind(string(req.Kind))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.deps.Tasks.CreateTask(r.Context(), kind, req.GenerationParams)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Tasks.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cloneTask(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Tasks.Clone(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ---- batches ----

type batchRequest struct {
	taskRequest
	Size int `json:"size"`
}

func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, err := model.ParseKind(string(req.Kind))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Limiter != nil && s.opts.BatchLimit > 0 {
		ok, err := s.deps.Limiter.Allow(r.Context(), redis.BatchSubmitKey(s.opts.DeviceID), s.opts.BatchLimit, s.opts.BatchWindow)
		if err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(s.opts.BatchWindow.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many batches, slow down"})
			return
		}
	}
	st, err := s.deps.Batches.Submit(usecase.BatchRequest{Kind: kind, Params: req.GenerationParams, Size: req.Size})
	if err != nil {
		if errors.Is(err, domain.ErrBatchInProgress) {
			writeJSON(w, http.StatusConflict, struct {
				errorBody
				Status usecase.BatchStatus `json:"status"`
			}{errorBody{err.Error()}, st})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (s *Server) batchStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Batches.Status())
}

// ---- import / export ----

// importTasks takes ids in the body and an optional ?kind=. Without it the
// kind is inferred, which labels image-to-video jobs as text-to-video.
func (s *Server) importTasks(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
	if err != nil {
		s.writeError(w, r, domain.Validationf("read body: %v", err))
		return
	}
	var kind model.Kind
	if k := strings.TrimSpace(r.URL.Query().Get("kind")); k != "" {
		if kind, err = model.ParseKind(k); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	res, err := s.deps.Sync.ImportByIDs(r.Context(), string(body), kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) exportTasks(w http.ResponseWriter, r *http.Request) {
	doc := s.deps.Sync.Export()
	name := fmt.Sprintf("tasks-export-%s.json", s.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(doc)
}

// ---- prompts ----

func (s *Server) listPrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Prompts.List(r.Context()))
}

func (s *Server) savePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		taskRequest
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, err := model.ParseKind(string(req.Kind))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.deps.Prompts.Save(r.Context(), req.Name, kind, req.GenerationParams)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) deletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Prompts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
