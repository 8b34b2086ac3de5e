//go:build integration

package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/ports/repository"
)

func TestDocumentStoreIntegration(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Disconnect(ctx)

	dbName := "genmedia_test_" + time.Now().Format("150405")
	s := NewDocumentStore(client, dbName)
	defer client.Database(dbName).Drop(ctx)

	if err := s.EnsureIndexes(ctx, repository.CollectionEditTasks); err != nil {
		t.Fatal(err)
	}
	key, err := s.Insert(ctx, repository.CollectionEditTasks, repository.Document{
		Owner: "dev", AppID: "e-1", CreatedAt: time.Now(), Body: []byte(`{"taskId":"e-1"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	docs, err := s.Find(ctx, repository.CollectionEditTasks, repository.DocumentQuery{Owner: "dev", AppID: "e-1"})
	if err != nil || len(docs) != 1 || docs[0].Key != key {
		t.Fatalf("unexpected find %+v %v", docs, err)
	}
	if err := s.Update(ctx, repository.CollectionEditTasks, key, repository.Document{Body: []byte(`{"taskId":"e-1","status":"SUCCESS"}`), CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, repository.CollectionEditTasks, key); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, repository.CollectionEditTasks, key); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
