package cache

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

// NoopCache always misses. It is used when caching is disabled.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*domain.SearchResponse, error) {
	return nil, ErrCacheMiss
}

func (NoopCache) Set(context.Context, string, *domain.SearchResponse, time.Duration) error {
	return nil
}

func (NoopCache) Delete(context.Context, string) error { return nil }

func (NoopCache) Close() error { return nil }

var _ SearchCache = NoopCache{}
