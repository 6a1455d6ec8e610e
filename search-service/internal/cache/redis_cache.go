package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/search-service/internal/config"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

// entryVersion is bumped whenever the cached response layout changes.
// Entries written under another version read as misses.
const entryVersion = 1

type entry struct {
	Version  int                    `json:"v"`
	StoredAt time.Time              `json:"stored_at"`
	Response *domain.SearchResponse `json:"response"`
}

// RedisSearchCache keeps aggregated search responses in Redis, one
// string key per normalized request.
type RedisSearchCache struct {
	client redis.UniversalClient
}

// NewRedisSearchCache dials Redis and verifies the connection.
func NewRedisSearchCache(cfg config.RedisConfig) (*RedisSearchCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("search cache: ping %s: %w", cfg.Address, err)
	}

	return NewRedisSearchCacheWithClient(client), nil
}

// NewRedisSearchCacheWithClient wraps an existing client.
func NewRedisSearchCacheWithClient(client redis.UniversalClient) *RedisSearchCache {
	return &RedisSearchCache{client: client}
}

// Get returns ErrCacheMiss for absent, stale-layout or unreadable entries.
// Unreadable entries are evicted so the next search repopulates them.
func (c *RedisSearchCache) Get(ctx context.Context, key string) (*domain.SearchResponse, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("search cache: get: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Version != entryVersion || e.Response == nil {
		l := pkglog.Ctx(ctx)
		l.Debug().Str("key", key).Msg("search cache: discarding unreadable entry")
		c.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}
	return e.Response, nil
}

// Set stores result under key. A non-positive ttl stores nothing, so
// entries never outlive the configured freshness window.
func (c *RedisSearchCache) Set(ctx context.Context, key string, result *domain.SearchResponse, ttl time.Duration) error {
	if ttl <= 0 || result == nil {
		return nil
	}
	data, err := json.Marshal(entry{Version: entryVersion, StoredAt: time.Now().UTC(), Response: result})
	if err != nil {
		return fmt.Errorf("search cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("search cache: set: %w", err)
	}
	return nil
}

func (c *RedisSearchCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("search cache: delete: %w", err)
	}
	return nil
}

func (c *RedisSearchCache) Close() error {
	return c.client.Close()
}

var _ SearchCache = (*RedisSearchCache)(nil)
