package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultLocaleTTL = 7 * 24 * time.Hour

// LocaleCache keeps each user's chosen locale under user:<id>:locale.
type LocaleCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewLocaleCache(client *goredis.Client, ttl time.Duration) *LocaleCache {
	if ttl <= 0 {
		ttl = defaultLocaleTTL
	}
	return &LocaleCache{client: client, ttl: ttl}
}

// Get returns "" without error on a cache miss.
func (c *LocaleCache) Get(ctx context.Context, userID int64) (string, error) {
	value, err := c.client.Get(ctx, Key("user", userID, "locale")).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cached locale: %w", err)
	}
	return value, nil
}

func (c *LocaleCache) Set(ctx context.Context, userID int64, locale string) error {
	if err := c.client.Set(ctx, Key("user", userID, "locale"), locale, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache locale: %w", err)
	}
	return nil
}
