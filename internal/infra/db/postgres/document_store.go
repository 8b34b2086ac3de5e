package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/ports/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

var _ repository.DocumentStore = (*DocumentStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS remote_documents (
    key         UUID PRIMARY KEY,
    collection  TEXT        NOT NULL,
    owner       TEXT        NOT NULL,
    app_id      TEXT        NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    body        JSONB       NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS remote_documents_owner_idx
    ON remote_documents (collection, owner, created_at DESC);
CREATE INDEX IF NOT EXISTS remote_documents_app_idx
    ON remote_documents (collection, owner, app_id);`

// DocumentStore keeps every collection in one jsonb table.
type DocumentStore struct {
	db dbtx
}

func NewDocumentStore(db dbtx) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	if _, err := execSQL(ctx, s.db, schema); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *DocumentStore) Find(ctx context.Context, collection string, q repository.DocumentQuery) ([]repository.Document, error) {
	var (
		sb   strings.Builder
		args = []interface{}{collection, q.Owner}
	)
	sb.WriteString(`
SELECT key::text, owner, app_id, created_at, body
  FROM remote_documents
 WHERE collection = $1 AND owner = $2`)
	if q.AppID != "" {
		args = append(args, q.AppID)
		fmt.Fprintf(&sb, " AND app_id = $%d", len(args))
	}
	if q.NewestFirst {
		sb.WriteString(" ORDER BY created_at DESC")
	} else {
		sb.WriteString(" ORDER BY created_at ASC")
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: find %s: %v", domain.ErrPersistence, collection, err)
	}
	defer rows.Close()

	var out []repository.Document
	for rows.Next() {
		var d repository.Document
		if err := rows.Scan(&d.Key, &d.Owner, &d.AppID, &d.CreatedAt, &d.Body); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", domain.ErrPersistence, collection, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows %s: %v", domain.ErrPersistence, collection, err)
	}
	return out, nil
}

func (s *DocumentStore) Insert(ctx context.Context, collection string, doc repository.Document) (string, error) {
	const q = `
INSERT INTO remote_documents (key, collection, owner, app_id, created_at, body)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING key::text`
	key := uuid.NewString()
	var got string
	if err := pickRow(ctx, s.db, q, key, collection, doc.Owner, doc.AppID, doc.CreatedAt.UTC(), doc.Body).Scan(&got); err != nil {
		return "", fmt.Errorf("%w: insert %s: %v", domain.ErrPersistence, collection, err)
	}
	return got, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, key string, doc repository.Document) error {
	const q = `
UPDATE remote_documents
   SET body = $3, created_at = $4, updated_at = now()
 WHERE collection = $1 AND key = $2`
	if _, err := uuid.Parse(key); err != nil {
		return domain.ErrNotFound
	}
	tag, err := execSQL(ctx, s.db, q, collection, key, doc.Body, doc.CreatedAt.UTC())
	return affected(tag, err, "update", collection)
}

func (s *DocumentStore) Delete(ctx context.Context, collection, key string) error {
	const q = `DELETE FROM remote_documents WHERE collection = $1 AND key = $2`
	if _, err := uuid.Parse(key); err != nil {
		return domain.ErrNotFound
	}
	tag, err := execSQL(ctx, s.db, q, collection, key)
	return affected(tag, err, "delete", collection)
}

func affected(tag pgconn.CommandTag, err error, op, collection string) error {
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && tag.RowsAffected() == 0) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrPersistence, op, collection, err)
	}
	return nil
}
