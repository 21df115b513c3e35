package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robofleet/change-request-bot/pkg/config"
)

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Names caches resolved Slack display names. A nil *Names is a valid
// pass-through (cache disabled).
type Names struct {
	client *redis.Client
	ttl    time.Duration
}

// NewNames wraps a Redis client as a display-name cache.
func NewNames(client *redis.Client, ttl time.Duration) *Names {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Names{client: client, ttl: ttl}
}

// Get returns the cached display name for a user ID, or false on a miss.
func (n *Names) Get(ctx context.Context, userID string) (string, bool) {
	if n == nil {
		return "", false
	}
	val, err := n.client.Get(ctx, nameKey(userID)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores a resolved display name. Errors other than cancellation are
// swallowed: the cache is best-effort.
func (n *Names) Set(ctx context.Context, userID, name string) error {
	if n == nil {
		return nil
	}
	err := n.client.Set(ctx, nameKey(userID), name, n.ttl).Err()
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	return nil
}

func nameKey(userID string) string {
	return "names:" + userID
}
