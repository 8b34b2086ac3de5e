package redis

import (
	"context"
	"errors"
	"fmt"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.LocalStore = (*LocalStore)(nil)

// LocalStore keeps the device's durable state in Redis without expiry.
type LocalStore struct {
	client RedisClient
	prefix string
}

func NewLocalStore(client RedisClient, prefix string) *LocalStore {
	return &LocalStore{client: client, prefix: prefix}
}

func (s *LocalStore) key(k string) string {
	return fmt.Sprintf("%s:local:%s", s.prefix, k)
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(key))
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrPersistence, key, err)
	}
	return []byte(v), nil
}

func (s *LocalStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrPersistence, key, err)
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)); err != nil {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrPersistence, key, err)
	}
	return nil
}
