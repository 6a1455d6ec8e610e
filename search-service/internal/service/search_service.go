package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/search-service/internal/cache"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
	"github.com/weiawesome/wes-io-live/search-service/internal/query"
	"github.com/weiawesome/wes-io-live/search-service/internal/repository"
)

// Providers groups the per-entity search backends.
type Providers struct {
	Users         repository.UserProvider
	Posts         repository.PostProvider
	Conversations repository.ConversationProvider
}

// CacheOptions configures response caching.
type CacheOptions struct {
	Prefix string
	TTL    time.Duration
}

const defaultSearchTimeout = 10 * time.Second

// SearchOption customizes the search service.
type SearchOption func(*searchServiceImpl)

// WithSearchTimeout bounds one shared provider round. Non-positive values keep the default.
func WithSearchTimeout(d time.Duration) SearchOption {
	return func(s *searchServiceImpl) {
		if d > 0 {
			s.timeout = d
		}
	}
}

type searchServiceImpl struct {
	providers Providers
	cache     cache.SearchCache
	cacheOpts CacheOptions
	recorder  EventRecorder
	timeout   time.Duration
	now       func() time.Time
	sf        singleflight.Group
}

// NewSearchService creates a new search service.
func NewSearchService(providers Providers, searchCache cache.SearchCache, cacheOpts CacheOptions, recorder EventRecorder, opts ...SearchOption) SearchService {
	if searchCache == nil {
		searchCache = cache.NoopCache{}
	}
	s := &searchServiceImpl{
		providers: providers,
		cache:     searchCache,
		cacheOpts: cacheOpts,
		recorder:  recorder,
		timeout:   defaultSearchTimeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs req and records it in the owner's history once it succeeded.
// Cached responses count as successful searches.
// Identical concurrent requests share one provider round. That round runs
// detached from any single caller, bounded by the service timeout; a caller
// whose ctx ends stops waiting without failing the others.
func (s *searchServiceImpl) Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResponse, error) {
	if req.ActorID == "" {
		return nil, domain.ErrUnauthenticated
	}

	cacheKey := cache.BuildKey(s.cacheOpts.Prefix, req)

	ch := s.sf.DoChan(cacheKey, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		// Try cache
		cached, err := s.cache.Get(shared, cacheKey)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l := log.Ctx(shared)
			l.Warn().Err(err).Msg("cache get error")
		}

		resp, err := s.execute(shared, req)
		if err != nil {
			return nil, err
		}

		// Async write cache
		s.asyncCacheSet(shared, cacheKey, resp)

		return resp, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	resp := res.Val.(*domain.SearchResponse)
	s.recorder.SearchCompleted(ctx, req, resp.Results.Len(), s.now())
	return resp, nil
}

func (s *searchServiceImpl) execute(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResponse, error) {
	cutoff, hasCutoff := query.Cutoff(req.DateRange, s.now())

	var (
		results domain.Results
		total   int
	)

	switch req.Scope {
	case domain.ScopeUsers:
		users, n, err := s.searchUsers(ctx, req, cutoff, hasCutoff, req.Limit, req.Offset)
		if err != nil {
			return nil, err
		}
		results.Items, total = domain.UserItems(users), n

	case domain.ScopePosts:
		posts, n, err := s.searchPosts(ctx, req, cutoff, hasCutoff, req.Limit, req.Offset)
		if err != nil {
			return nil, err
		}
		results.Items, total = domain.PostItems(posts), n

	case domain.ScopeConversations:
		convs, n, err := s.searchConversations(ctx, req, cutoff, hasCutoff, req.Limit, req.Offset)
		if err != nil {
			return nil, err
		}
		results.Items, total = domain.ConversationItems(convs), n

	default:
		bundle, err := s.searchAll(ctx, req, cutoff, hasCutoff)
		if err != nil {
			return nil, err
		}
		// Total counts only the returned slices, not every match.
		results.Bundle, total = bundle, bundle.Len()
	}

	return &domain.SearchResponse{
		Query:      req.Query,
		Type:       req.Scope,
		SortBy:     req.SortBy,
		DateRange:  req.DateRange,
		Verified:   req.Verified,
		Results:    results,
		Pagination: domain.NewPagination(req.Limit, req.Offset, total),
	}, nil
}

// perProviderLimit splits an ALL-scope limit across the three providers.
func perProviderLimit(limit int) int {
	return (limit + 2) / 3
}

// searchAll queries every provider concurrently at offset 0.
// Any provider failure fails the whole aggregate.
func (s *searchServiceImpl) searchAll(ctx context.Context, req *domain.SearchRequest, cutoff time.Time, hasCutoff bool) (*domain.ResultBundle, error) {
	per := perProviderLimit(req.Limit)
	bundle := &domain.ResultBundle{}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		bundle.Users, _, err = s.searchUsers(gCtx, req, cutoff, hasCutoff, per, 0)
		return err
	})

	g.Go(func() error {
		var err error
		bundle.Posts, _, err = s.searchPosts(gCtx, req, cutoff, hasCutoff, per, 0)
		return err
	})

	g.Go(func() error {
		var err error
		bundle.Conversations, _, err = s.searchConversations(gCtx, req, cutoff, hasCutoff, per, 0)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (s *searchServiceImpl) searchUsers(ctx context.Context, req *domain.SearchRequest, cutoff time.Time, hasCutoff bool, limit, offset int) ([]domain.UserSummary, int, error) {
	c := repository.NewUserCriteria(req.Query, req.ActorID).
		Verified(req.Verified).
		CreatedSince(cutoff, hasCutoff).
		OrderBy(req.SortBy).
		Page(limit, offset)

	users, total, err := s.providers.Users.Search(ctx, c)
	if err != nil {
		return nil, 0, s.providerFailed(ctx, domain.EntityUser, err)
	}
	return users, total, nil
}

func (s *searchServiceImpl) searchPosts(ctx context.Context, req *domain.SearchRequest, cutoff time.Time, hasCutoff bool, limit, offset int) ([]domain.PostSummary, int, error) {
	c := repository.NewPostCriteria(req.Query, req.ActorID).
		CreatedSince(cutoff, hasCutoff).
		OrderBy(req.SortBy).
		Page(limit, offset)

	posts, total, err := s.providers.Posts.Search(ctx, c)
	if err != nil {
		return nil, 0, s.providerFailed(ctx, domain.EntityPost, err)
	}
	return posts, total, nil
}

func (s *searchServiceImpl) searchConversations(ctx context.Context, req *domain.SearchRequest, cutoff time.Time, hasCutoff bool, limit, offset int) ([]domain.ConversationSummary, int, error) {
	c := repository.NewConversationCriteria(req.Query, req.ActorID).
		CreatedSince(cutoff, hasCutoff).
		Page(limit, offset)

	convs, total, err := s.providers.Conversations.Search(ctx, c)
	if err != nil {
		return nil, 0, s.providerFailed(ctx, domain.EntityConversation, err)
	}
	return convs, total, nil
}

func (s *searchServiceImpl) providerFailed(ctx context.Context, provider domain.EntityType, err error) error {
	l := log.Ctx(ctx)
	l.Error().Err(err).Str(log.FieldProvider, string(provider)).Msg("search provider failed")
	return &domain.AggregateProviderError{Provider: provider, Err: err}
}

func (s *searchServiceImpl) asyncCacheSet(ctx context.Context, key string, resp *domain.SearchResponse) {
	if s.cacheOpts.TTL <= 0 {
		return
	}
	detached := log.Detached(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, 2*time.Second)
		defer cancel()

		if err := s.cache.Set(ctx, key, resp, s.cacheOpts.TTL); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str("key", key).Msg("cache set error")
		}
	}()
}
