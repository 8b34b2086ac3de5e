package usecase

import (
	"context"
	"errors"
	"time"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/ports/repository"
	"genmedia-studio/internal/infra/logging"
	"genmedia-studio/internal/infra/metrics"
	"genmedia-studio/internal/infra/worker"

	"github.com/rs/zerolog"
)

// RemoteMirror copies single records to the per-device remote collections.
// Writes run one at a time in submission order. Failures are logged and
// swallowed; they never reach the caller.
type RemoteMirror struct {
	docs    repository.DocumentStore
	owner   string
	pool    *worker.Pool
	timeout time.Duration
	log     *zerolog.Logger
}

// NewRemoteMirror returns a mirror writing through pool. A nil docs store
// yields a disabled mirror whose operations do nothing.
func NewRemoteMirror(docs repository.DocumentStore, owner string, pool *worker.Pool, timeout time.Duration, logger *zerolog.Logger) *RemoteMirror {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteMirror{docs: docs, owner: owner, pool: pool, timeout: timeout, log: logging.Component(logger, "RemoteMirror")}
}

func (m *RemoteMirror) Enabled() bool { return m != nil && m.docs != nil && m.pool != nil }

// Upsert schedules an update of the document holding appID, or an insert
// when none exists. It does not wait.
func (m *RemoteMirror) Upsert(collection, appID string, createdAt time.Time, body []byte) {
	if !m.Enabled() {
		return
	}
	doc := repository.Document{Owner: m.owner, AppID: appID, CreatedAt: createdAt, Body: body}
	err := m.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		err := m.upsert(ctx, collection, doc)
		metrics.IncRemoteSync(collection, "upsert", err)
		if err != nil {
			m.log.Warn().Err(err).Str("collection", collection).Str("app_id", appID).Msg("remote upsert failed")
		}
		return nil
	})
	if err != nil {
		metrics.IncRemoteSync(collection, "upsert", err)
		m.log.Warn().Err(err).Str("collection", collection).Str("app_id", appID).Msg("remote upsert dropped")
	}
}

func (m *RemoteMirror) upsert(ctx context.Context, collection string, doc repository.Document) error {
	found, err := m.docs.Find(ctx, collection, repository.DocumentQuery{Owner: m.owner, AppID: doc.AppID, Limit: 1})
	if err != nil {
		return err
	}
	if len(found) > 0 {
		err = m.docs.Update(ctx, collection, found[0].Key, doc)
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	_, err = m.docs.Insert(ctx, collection, doc)
	return err
}

// Delete removes every document holding appID and waits for it, after any
// writes queued before it.
func (m *RemoteMirror) Delete(ctx context.Context, collection, appID string) {
	if !m.Enabled() {
		return
	}
	err := m.pool.SubmitWait(ctx, func(poolCtx context.Context) error {
		ctx, cancel := context.WithTimeout(poolCtx, m.timeout)
		defer cancel()
		found, err := m.docs.Find(ctx, collection, repository.DocumentQuery{Owner: m.owner, AppID: appID})
		if err != nil {
			return err
		}
		for _, d := range found {
			if err := m.docs.Delete(ctx, collection, d.Key); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}
		return nil
	})
	metrics.IncRemoteSync(collection, "delete", err)
	if err != nil {
		m.log.Warn().Err(err).Str("collection", collection).Str("app_id", appID).Msg("remote delete failed")
	}
}

// Fetch returns the newest documents of collection, at most limit.
func (m *RemoteMirror) Fetch(ctx context.Context, collection string, limit int) ([]repository.Document, error) {
	if !m.Enabled() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	docs, err := m.docs.Find(ctx, collection, repository.DocumentQuery{Owner: m.owner, Limit: limit, NewestFirst: true})
	metrics.IncRemoteSync(collection, "fetch", err)
	return docs, err
}
