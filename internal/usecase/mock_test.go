//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/domain/ports/repository"
	"genmedia-studio/internal/infra/worker"
	"genmedia-studio/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func networkErr(msg string) error { return fmt.Errorf("%w: %s", domain.ErrNetwork, msg) }

// =============================
// Repositories
// =============================

// ---- memLocalStore ----

type memLocalStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	SetErr  error
	setKeys []string
}

var _ repository.LocalStore = (*memLocalStore)(nil)

func newMemLocalStore() *memLocalStore { return &memLocalStore{data: map[string][]byte{}} }

func (m *memLocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memLocalStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.data[key] = append([]byte(nil), value...)
	m.setKeys = append(m.setKeys, key)
	return nil
}

func (m *memLocalStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// ---- memDocStore ----

type memDocStore struct {
	mu      sync.Mutex
	seq     int
	cols    map[string]map[string]repository.Document
	FindErr error
	ops     []string
}

var _ repository.DocumentStore = (*memDocStore)(nil)

func newMemDocStore() *memDocStore {
	return &memDocStore{cols: map[string]map[string]repository.Document{}}
}

func (m *memDocStore) Find(ctx context.Context, collection string, q repository.DocumentQuery) ([]repository.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	var out []repository.Document
	for _, d := range m.cols[collection] {
		if q.Owner != "" && d.Owner != q.Owner {
			continue
		}
		if q.AppID != "" && d.AppID != q.AppID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if q.NewestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memDocStore) Insert(ctx context.Context, collection string, doc repository.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	doc.Key = fmt.Sprintf("k%04d", m.seq)
	if m.cols[collection] == nil {
		m.cols[collection] = map[string]repository.Document{}
	}
	m.cols[collection][doc.Key] = doc
	m.ops = append(m.ops, "insert:"+doc.AppID)
	return doc.Key, nil
}

func (m *memDocStore) Update(ctx context.Context, collection, key string, doc repository.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cols[collection][key]; !ok {
		return domain.ErrNotFound
	}
	doc.Key = key
	m.cols[collection][key] = doc
	m.ops = append(m.ops, "update:"+doc.AppID)
	return nil
}

func (m *memDocStore) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.cols[collection][key]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.cols[collection], key)
	m.ops = append(m.ops, "delete:"+d.AppID)
	return nil
}

func (m *memDocStore) count(collection, appID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.cols[collection] {
		if d.AppID == appID {
			n++
		}
	}
	return n
}

// =============================
// Adapters
// =============================

// ---- stubJobAPI ----

type queryReply struct {
	q   adapter.JobQuery
	err error
}

// stubJobAPI replays scripted query replies per job id. The last reply
// repeats once the script runs out.
type stubJobAPI struct {
	mu        sync.Mutex
	seq       int
	CreateErr error
	created   []model.Kind
	scripts   map[string][]queryReply
	queries   map[string]int
}

var _ adapter.JobAPI = (*stubJobAPI)(nil)

func newStubJobAPI() *stubJobAPI {
	return &stubJobAPI{scripts: map[string][]queryReply{}, queries: map[string]int{}}
}

func (s *stubJobAPI) script(id string, replies ...queryReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[id] = append(s.scripts[id], replies...)
}

func (s *stubJobAPI) CreateJob(ctx context.Context, kind model.Kind, params model.GenerationParams) (adapter.CreatedJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return adapter.CreatedJob{}, s.CreateErr
	}
	s.seq++
	s.created = append(s.created, kind)
	return adapter.CreatedJob{JobID: fmt.Sprintf("job-%d", s.seq), Status: model.StatusQueued}, nil
}

func (s *stubJobAPI) QueryJob(ctx context.Context, jobID string) (adapter.JobQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.queries[jobID]
	s.queries[jobID] = n + 1
	script := s.scripts[jobID]
	if len(script) == 0 {
		return adapter.JobQuery{}, &domain.APIError{Kind: domain.ErrUnknownJobID, Status: 404, Message: "task not found"}
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	r := script[n]
	r.q.JobID = jobID
	return r.q, r.err
}

func (s *stubJobAPI) UploadMedia(ctx context.Context, files ...adapter.MediaFile) ([]string, error) {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = "https://cdn.example/" + f.Name
	}
	return out, nil
}

func (s *stubJobAPI) queryCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[id]
}

func succeeded(url string) queryReply {
	return queryReply{q: adapter.JobQuery{
		Status:  model.StatusSuccess,
		Results: []adapter.JobResult{{URL: url, OutputType: "mp4"}},
		Usage:   &model.Usage{ConsumeCoins: "12", TaskCostTime: "81"},
	}}
}

func status(s string) queryReply { return queryReply{q: adapter.JobQuery{Status: s}} }

func failing(err error) queryReply { return queryReply{err: err} }

// ---- recordingNotifier ----

type recordingNotifier struct {
	mu      sync.Mutex
	notices []adapter.Notice
}

func (r *recordingNotifier) Notify(ctx context.Context, n adapter.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

func (r *recordingNotifier) levels() []adapter.NoticeLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]adapter.NoticeLevel, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Level
	}
	return out
}

// ---- stubThumbnailer ----

type stubThumbnailer struct{ err error }

func (s stubThumbnailer) Thumbnail(ctx context.Context, videoURL string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "data:image/jpeg;base64,AAAA", nil
}

// ---- recordingSleeper ----

// recordingSleeper returns at once and remembers every requested delay.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// =============================
// Fixtures
// =============================

type harness struct {
	local    *memLocalStore
	docs     *memDocStore
	api      *stubJobAPI
	notifier *recordingNotifier
	sleeper  *recordingSleeper
	pool     *worker.Pool
	mirror   *usecase.RemoteMirror
	store    *usecase.TaskStore
	previews *usecase.PreviewDeriver
	poller   *usecase.Poller
}

// newHarness wires the task pipeline over in-memory fakes. The remote
// mirror is enabled when withRemote is set.
func newHarness(t *testing.T, withRemote bool) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	logger := newTestLogger()

	h := &harness{
		local:    newMemLocalStore(),
		docs:     newMemDocStore(),
		api:      newStubJobAPI(),
		notifier: &recordingNotifier{},
		sleeper:  &recordingSleeper{},
	}
	var docs repository.DocumentStore
	if withRemote {
		docs = h.docs
		h.pool = worker.NewPool(1, 256, logger)
		h.pool.Start(ctx)
	}
	h.mirror = usecase.NewRemoteMirror(docs, "device-1", h.pool, time.Second, logger)
	h.store = usecase.NewTaskStore(h.local, h.mirror, 100, logger)
	h.previews = usecase.NewPreviewDeriver(stubThumbnailer{}, logger)
	h.poller = usecase.NewPoller(ctx, h.api, h.store, h.previews, h.notifier, usecase.PollerConfig{}, h.sleeper.Sleep, logger)

	t.Cleanup(func() {
		cancel()
		h.poller.Wait()
		if h.pool != nil {
			h.pool.Stop()
		}
	})
	return h
}

// flush waits for queued mirror writes.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	if h.pool == nil {
		return
	}
	if err := h.pool.SubmitWait(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("flush mirror: %v", err)
	}
}

func videoTask(id string, created time.Time) model.Task {
	t, _ := model.NewTask(id, model.KindTextToVideo, model.GenerationParams{Prompt: "a quiet harbor at dawn", Duration: "10", AspectRatio: "9:16"}, model.StatusQueued, created)
	return *t
}

// newPollerWithSleep replaces the harness poller with one using sleep.
func newPollerWithSleep(t *testing.T, h *harness, sleep usecase.Sleeper) *usecase.Poller {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	p := usecase.NewPoller(ctx, h.api, h.store, h.previews, h.notifier, usecase.PollerConfig{}, sleep, newTestLogger())
	t.Cleanup(func() {
		cancel()
		p.Wait()
	})
	return p
}
