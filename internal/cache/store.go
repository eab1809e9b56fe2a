package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantaleap/analytics-gateway/internal/config"
)

// ErrKeyNotFound is returned by Store.Get when the key does not exist.
var ErrKeyNotFound = errors.New("cache: key not found")

// Store is the narrow surface the Manager needs from the backing cache
// store. The production binding is redis; tests run against miniredis or a
// fake implementing the same interface.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	Info(ctx context.Context, section string) (string, error)
	DBSize(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore binds the Store interface to a shared go-redis client. The
// client is safe for concurrent command issuance across goroutines.
func NewRedisStore(cfg config.RedisConfig) Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	return val, err
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return s.client.Del(ctx, keys...).Result()
}

func (s *redisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.client.Keys(ctx, pattern).Result()
}

func (s *redisStore) Info(ctx context.Context, section string) (string, error) {
	return s.client.Info(ctx, section).Result()
}

func (s *redisStore) DBSize(ctx context.Context) (int64, error) {
	return s.client.DBSize(ctx).Result()
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
