package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/weiawesome/wes-io-live/search-service/internal/audit"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
	"github.com/weiawesome/wes-io-live/search-service/internal/repository"
)

type savedSearchServiceImpl struct {
	repo     repository.SavedSearchRepository
	recorder EventRecorder
	now      func() time.Time
	newID    func() string
}

// NewSavedSearchService creates a new saved search service.
func NewSavedSearchService(repo repository.SavedSearchRepository, recorder EventRecorder) SavedSearchService {
	return &savedSearchServiceImpl{
		repo:     repo,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

func (s *savedSearchServiceImpl) List(ctx context.Context, q domain.SavedSearchQuery) (*domain.SavedSearchPage, error) {
	if q.OwnerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	q.Limit, q.Offset = clampPage(q.Limit, q.Offset, domain.DefaultSavedPageSize, domain.MaxSavedPageSize)

	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.SavedSearch{}
	}

	return &domain.SavedSearchPage{
		Items:      items,
		Pagination: domain.NewPagination(q.Limit, q.Offset, int(total)),
	}, nil
}

func (s *savedSearchServiceImpl) Create(ctx context.Context, ownerID string, req domain.CreateSavedSearchRequest) (*domain.SavedSearch, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	verr := &domain.ValidationError{}
	name := validateName(verr, req.Name)
	q := validateQuery(verr, req.Query)
	scope, err := domain.ParseScope(req.Type)
	if err != nil {
		verr.Add("type", err.Error())
	}
	filters := parseFilters(verr, req.Filters)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	saved := &domain.SavedSearch{
		ID:            s.newID(),
		OwnerID:       ownerID,
		Name:          name,
		Query:         q,
		Scope:         scope,
		Filters:       filters,
		Notifications: req.Notifications,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, saved); err != nil {
		return nil, err
	}

	audit.LogWithDetail(ctx, audit.ActionSavedSearchCreate, ownerID, saved.ID, saved.Name, "saved search created")
	return saved, nil
}

func (s *savedSearchServiceImpl) Update(ctx context.Context, ownerID string, req domain.UpdateSavedSearchRequest) (*domain.SavedSearch, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	verr := &domain.ValidationError{}
	patch := domain.SavedSearchPatch{
		Notifications: req.Notifications,
		Active:        req.Active,
	}
	if req.Name != nil {
		name := validateName(verr, *req.Name)
		patch.Name = &name
	}
	if req.Query != nil {
		q := validateQuery(verr, *req.Query)
		patch.Query = &q
	}
	if req.Type != nil {
		scope, err := domain.ParseScope(*req.Type)
		if err != nil {
			verr.Add("type", err.Error())
		}
		patch.Scope = &scope
	}
	if req.Filters != nil {
		filters := parseFilters(verr, req.Filters)
		patch.Filters = &filters
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	// Nothing to change: no write, updated_at stays as it was.
	if patch.Empty() {
		return s.repo.Get(ctx, ownerID, req.ID)
	}

	saved, err := s.repo.Update(ctx, ownerID, req.ID, patch, s.now())
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionSavedSearchUpdate, ownerID, saved.ID, "saved search updated")
	return saved, nil
}

func (s *savedSearchServiceImpl) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return domain.ErrUnauthenticated
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	audit.Log(ctx, audit.ActionSavedSearchDelete, ownerID, id, "saved search deleted")
	return nil
}

// Use loads a saved search and records its usage in the background.
// The returned value does not yet reflect the increment.
func (s *savedSearchServiceImpl) Use(ctx context.Context, ownerID, id string) (*domain.SavedSearch, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	saved, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	s.recorder.SavedSearchUsed(ctx, ownerID, saved.ID, s.now())
	audit.Log(ctx, audit.ActionSavedSearchUse, ownerID, saved.ID, "saved search used")
	return saved, nil
}

func validateName(verr *domain.ValidationError, raw string) string {
	name := strings.TrimSpace(raw)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		verr.Add("name", "must not be empty")
	case n > domain.MaxSavedNameLength:
		verr.Add("name", "must be at most 100 characters")
	}
	return name
}

func validateQuery(verr *domain.ValidationError, raw string) string {
	q := strings.TrimSpace(raw)
	switch n := utf8.RuneCountInString(q); {
	case n == 0:
		verr.Add("query", "must not be empty")
	case n > domain.MaxQueryLength:
		verr.Add("query", "must be at most 200 characters")
	}
	return q
}

func parseFilters(verr *domain.ValidationError, in *domain.FiltersInput) domain.Filters {
	f := domain.Filters{SortBy: domain.SortRelevance, DateRange: domain.DateRangeAll}
	if in == nil {
		return f
	}
	var err error
	if f.SortBy, err = domain.ParseSortBy(in.SortBy); err != nil {
		verr.Add("filters.sort_by", err.Error())
	}
	if f.DateRange, err = domain.ParseDateRange(in.DateRange); err != nil {
		verr.Add("filters.date_range", err.Error())
	}
	f.Verified = in.Verified
	return f
}
