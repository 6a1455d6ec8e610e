package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

func TestBuildKey_SeparatesActors(t *testing.T) {
	req := &domain.SearchRequest{
		Query:     "go: lang",
		Scope:     domain.ScopeUsers,
		SortBy:    domain.SortDate,
		DateRange: domain.DateRangeWeek,
		Verified:  true,
		Limit:     20,
		Offset:    40,
		ActorID:   "actor-1",
	}
	assert.Equal(t, "search:actor-1:users:date:week:true:20:40:go: lang", BuildKey("search", req))

	other := *req
	other.ActorID = "actor-2"
	assert.NotEqual(t, BuildKey("search", req), BuildKey("search", &other))
}

func TestNoopCache_AlwaysMisses(t *testing.T) {
	c := NoopCache{}
	ctx := context.Background()
	assert.NoError(t, c.Set(ctx, "k", &domain.SearchResponse{}, 0))
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.Close())
}
