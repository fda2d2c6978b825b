package artifact

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps compiled documents in Redis, one key per identifier.
// Documents live until deleted; a browser restart that repopulates the rule
// store simply overwrites them.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed artifact store.
func NewRedisStore(addr, password string, db int, prefix string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if prefix == "" {
		prefix = "shield:artifact:"
	}
	return &RedisStore{client: rdb, prefix: prefix}
}

func (s *RedisStore) key(identifier string) string {
	return s.prefix + identifier
}

func (s *RedisStore) Put(ctx context.Context, identifier string, data []byte) error {
	if identifier == "" {
		return fmt.Errorf("empty artifact identifier")
	}
	if err := s.client.Set(ctx, s.key(identifier), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, identifier string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(identifier)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("artifact not found: %s", identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed for %s: %w", identifier, err)
	}
	return data, nil
}

func (s *RedisStore) Exists(ctx context.Context, identifier string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(identifier)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed for %s: %w", identifier, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("redis delete failed for %s: %w", identifier, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
