package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL bounds how long an idle browser session survives in
// Redis before it is evicted.
const DefaultSessionTTL = 24 * time.Hour

// RedisProvider keeps session state in Redis, for deployments where more
// than one portal instance serves the same browsers.  Keys are namespaced
// as portal:sess:<sid>:<key>.
type RedisProvider struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProvider creates a RedisProvider over client.  A zero ttl means
// DefaultSessionTTL.
func NewRedisProvider(client *redis.Client, ttl time.Duration) (*RedisProvider, error) {
	const op = "session.NewRedisProvider"
	if client == nil {
		return nil, fmt.Errorf("%s: redis client is nil: %w", op, ErrInvalidParameter)
	}
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisProvider{client: client, ttl: ttl}, nil
}

// Open returns the store for sid.
func (p *RedisProvider) Open(sid string) Store {
	return &redisStore{client: p.client, prefix: "portal:sess:" + sid + ":", ttl: p.ttl}
}

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	const op = "session.redisStore.Get"
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	switch {
	case err == redis.Nil:
		return "", ErrNoRecord
	case err != nil:
		return "", fmt.Errorf("%s: %v: %w", op, err, ErrStorage)
	}
	return v, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	const op = "session.redisStore.Set"
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, ErrStorage)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	const op = "session.redisStore.Delete"
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, ErrStorage)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	const op = "session.redisStore.Clear"
	keys, err := s.client.Keys(ctx, s.prefix+"*").Result()
	if err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, ErrStorage)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%s: %v: %w", op, err, ErrStorage)
	}
	return nil
}

func (s *redisStore) Keys(ctx context.Context) ([]string, error) {
	const op = "session.redisStore.Keys"
	keys, err := s.client.Keys(ctx, s.prefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrStorage)
	}
	stripped := make([]string, 0, len(keys))
	for _, k := range keys {
		stripped = append(stripped, k[len(s.prefix):])
	}
	return stripped, nil
}
