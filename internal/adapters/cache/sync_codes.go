package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lcollard/mergepace/internal/core/services"
)

var _ services.CodeStore = (*RedisCodeStore)(nil)

// RedisCodeStore keeps uploaded sync bundles under their short codes. Expiry
// is delegated to Redis TTLs, so expired codes disappear without a sweeper.
type RedisCodeStore struct {
	client *redis.Client
}

func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func (s *RedisCodeStore) key(code string) string {
	return fmt.Sprintf("synccode:%s", code)
}

func (s *RedisCodeStore) Save(ctx context.Context, code string, payload []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(code), payload, ttl).Err(); err != nil {
		return fmt.Errorf("code store: save %s: %w", code, err)
	}
	return nil
}

func (s *RedisCodeStore) Load(ctx context.Context, code string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, services.ErrSyncCodeNotFound
		}
		return nil, fmt.Errorf("code store: load %s: %w", code, err)
	}
	return payload, nil
}

func (s *RedisCodeStore) Delete(ctx context.Context, code string) error {
	if err := s.client.Del(ctx, s.key(code)).Err(); err != nil {
		return fmt.Errorf("code store: delete %s: %w", code, err)
	}
	return nil
}
