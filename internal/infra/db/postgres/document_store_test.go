//go:build integration

package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/ports/repository"
)

func TestDocumentStore(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	s := NewDocumentStore(testPool)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		_, err := s.Insert(ctx, repository.CollectionVideoTasks, repository.Document{
			Owner: "dev-1", AppID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Body: []byte(`{"taskId":"` + id + `"}`),
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	_, _ = s.Insert(ctx, repository.CollectionVideoTasks, repository.Document{
		Owner: "dev-2", AppID: "z", CreatedAt: base, Body: []byte(`{}`),
	})

	t.Run("find newest first with limit", func(t *testing.T) {
		docs, err := s.Find(ctx, repository.CollectionVideoTasks, repository.DocumentQuery{Owner: "dev-1", Limit: 2, NewestFirst: true})
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 2 || docs[0].AppID != "c" || docs[1].AppID != "b" {
			t.Fatalf("unexpected docs %+v", docs)
		}
	})

	t.Run("update by key", func(t *testing.T) {
		docs, _ := s.Find(ctx, repository.CollectionVideoTasks, repository.DocumentQuery{Owner: "dev-1", AppID: "a"})
		if len(docs) != 1 {
			t.Fatalf("expected one doc, got %d", len(docs))
		}
		d := docs[0]
		d.Body = []byte(`{"taskId":"a","status":"SUCCESS"}`)
		if err := s.Update(ctx, repository.CollectionVideoTasks, d.Key, d); err != nil {
			t.Fatal(err)
		}
		again, _ := s.Find(ctx, repository.CollectionVideoTasks, repository.DocumentQuery{Owner: "dev-1", AppID: "a"})
		if len(again) != 1 || !strings.Contains(string(again[0].Body), "SUCCESS") {
			t.Errorf("update not applied: %s", again[0].Body)
		}
	})

	t.Run("delete and missing", func(t *testing.T) {
		docs, _ := s.Find(ctx, repository.CollectionVideoTasks, repository.DocumentQuery{Owner: "dev-1", AppID: "b"})
		if err := s.Delete(ctx, repository.CollectionVideoTasks, docs[0].Key); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(ctx, repository.CollectionVideoTasks, docs[0].Key); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
