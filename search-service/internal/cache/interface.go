package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// SearchCache defines the interface for caching search results.
type SearchCache interface {
	Get(ctx context.Context, key string) (*domain.SearchResponse, error)
	Set(ctx context.Context, key string, result *domain.SearchResponse, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// BuildKey creates a cache key from a normalized request.
// Results depend on the actor, so the actor id is part of the key.
// The query goes last so separators inside it cannot collide with other fields.
func BuildKey(prefix string, req *domain.SearchRequest) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%t:%d:%d:%s",
		prefix, req.ActorID, req.Scope, req.SortBy, req.DateRange, req.Verified,
		req.Limit, req.Offset, req.Query)
}
