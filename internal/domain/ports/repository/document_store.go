package repository

import (
	"context"
	"time"
)

// Remote collections mirrored from the device.
const (
	CollectionVideoTasks   = "video_tasks"
	CollectionEditTasks    = "edit_tasks"
	CollectionSavedPrompts = "saved_prompts"
)

// Document is one record of a remote collection.
// Body is the record's JSON encoding; AppID is the record's own id.
type Document struct {
	Key       string
	Owner     string
	AppID     string
	CreatedAt time.Time
	Body      []byte
}

type DocumentQuery struct {
	Owner       string
	AppID       string
	Limit       int
	NewestFirst bool
}

// DocumentStore is the port for the remote document database.
type DocumentStore interface {
	Find(ctx context.Context, collection string, q DocumentQuery) ([]Document, error)
	// Insert returns the store-assigned key.
	Insert(ctx context.Context, collection string, doc Document) (string, error)
	Update(ctx context.Context, collection, key string, doc Document) error
	Delete(ctx context.Context, collection, key string) error
}
