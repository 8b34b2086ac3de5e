package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/ports/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repository.DocumentStore = (*DocumentStore)(nil)

// record is the stored shape; the body stays a queryable sub-document.
type record struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Owner     string             `bson:"owner"`
	AppID     string             `bson:"app_id"`
	CreatedAt time.Time          `bson:"created_at"`
	Body      bson.M             `bson:"body"`
}

// DocumentStore maps each collection onto a mongo collection of the same name.
type DocumentStore struct {
	db *mongo.Database
}

func NewDocumentStore(client *mongo.Client, database string) *DocumentStore {
	return &DocumentStore{db: client.Database(database)}
}

// EnsureIndexes creates the owner/created_at and owner/app_id indexes.
func (s *DocumentStore) EnsureIndexes(ctx context.Context, collections ...string) error {
	for _, c := range collections {
		_, err := s.db.Collection(c).Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "app_id", Value: 1}}},
		})
		if err != nil {
			return fmt.Errorf("%w: index %s: %v", domain.ErrPersistence, c, err)
		}
	}
	return nil
}

func (s *DocumentStore) Find(ctx context.Context, collection string, q repository.DocumentQuery) ([]repository.Document, error) {
	filter := bson.M{"owner": q.Owner}
	if q.AppID != "" {
		filter["app_id"] = q.AppID
	}
	dir := 1
	if q.NewestFirst {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: dir}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find %s: %v", domain.ErrPersistence, collection, err)
	}
	var recs []record
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrPersistence, collection, err)
	}

	out := make([]repository.Document, 0, len(recs))
	for _, r := range recs {
		body, err := fromBSON(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: body %s/%s: %v", domain.ErrPersistence, collection, r.AppID, err)
		}
		out = append(out, repository.Document{
			Key:       r.ID.Hex(),
			Owner:     r.Owner,
			AppID:     r.AppID,
			CreatedAt: r.CreatedAt,
			Body:      body,
		})
	}
	return out, nil
}

func (s *DocumentStore) Insert(ctx context.Context, collection string, doc repository.Document) (string, error) {
	body, err := toBSON(doc.Body)
	if err != nil {
		return "", fmt.Errorf("%w: body: %v", domain.ErrValidation, err)
	}
	res, err := s.db.Collection(collection).InsertOne(ctx, record{
		Owner:     doc.Owner,
		AppID:     doc.AppID,
		CreatedAt: doc.CreatedAt.UTC(),
		Body:      body,
	})
	if err != nil {
		return "", fmt.Errorf("%w: insert %s: %v", domain.ErrPersistence, collection, err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Sprint(res.InsertedID), nil
	}
	return id.Hex(), nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, key string, doc repository.Document) error {
	id, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return domain.ErrNotFound
	}
	body, err := toBSON(doc.Body)
	if err != nil {
		return fmt.Errorf("%w: body: %v", domain.ErrValidation, err)
	}
	res, err := s.db.Collection(collection).UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"body":       body,
		"created_at": doc.CreatedAt.UTC(),
	}})
	if err != nil {
		return fmt.Errorf("%w: update %s: %v", domain.ErrPersistence, collection, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, key string) error {
	id, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return domain.ErrNotFound
	}
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && res.DeletedCount == 0) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrPersistence, collection, err)
	}
	return nil
}

// toBSON converts a JSON body into a sub-document.
func toBSON(body []byte) (bson.M, error) {
	var m bson.M
	if err := bson.UnmarshalExtJSON(body, false, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// fromBSON renders a sub-document back to plain JSON.
func fromBSON(m bson.M) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return bson.MarshalExtJSON(m, false, false)
}
