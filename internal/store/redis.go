package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore holds the shared Redis client. Redis carries the volatile side
// of the service: live per-campaign send counters and the operator retry
// queue. Everything durable lives in Postgres.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects using a redis:// URL and verifies the connection with a
// ping before handing the client out.
func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying client for the counter store and the retry
// queue, which speak raw Redis commands.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
