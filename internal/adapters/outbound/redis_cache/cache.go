package redis_cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CMCFame/parseteamsapifb/internal/core/fixtures"
)

const (
	DefaultPrefix = "fixtures:date:"
	pingTimeout   = 5 * time.Second
)

// FixtureCache stores per-date fixture lists in Redis so that several
// processes (CLI runs, the HTTP server) share provider responses.
// Satisfies fixtures.Persistent.
type FixtureCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration // 0 keeps entries forever
}

// Open parses a redis:// URL and checks the connection.
func Open(url, prefix string, ttl time.Duration) (*FixtureCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return New(client, prefix, ttl), nil
}

func New(client redis.UniversalClient, prefix string, ttl time.Duration) *FixtureCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &FixtureCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *FixtureCache) key(date string) string {
	return c.prefix + date
}

func (c *FixtureCache) Get(ctx context.Context, date string) ([]fixtures.Fixture, bool, error) {
	data, err := c.client.Get(ctx, c.key(date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", date, err)
	}
	var list []fixtures.Fixture
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, false, fmt.Errorf("decode cached fixtures %s: %w", date, err)
	}
	return list, true, nil
}

func (c *FixtureCache) Set(ctx context.Context, date string, list []fixtures.Fixture) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode fixtures %s: %w", date, err)
	}
	if err := c.client.Set(ctx, c.key(date), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", date, err)
	}
	return nil
}

func (c *FixtureCache) Close() error {
	return c.client.Close()
}
