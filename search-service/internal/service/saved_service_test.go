package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

type memSavedRepo struct {
	items   map[string]*domain.SavedSearch
	patches []domain.SavedSearchPatch
	listed  []domain.SavedSearchQuery
}

func newMemSavedRepo() *memSavedRepo {
	return &memSavedRepo{items: map[string]*domain.SavedSearch{}}
}

func (r *memSavedRepo) Create(_ context.Context, s *domain.SavedSearch) error {
	for _, existing := range r.items {
		if existing.OwnerID == s.OwnerID && existing.Name == s.Name {
			return domain.ErrConflict
		}
	}
	cp := *s
	r.items[s.ID] = &cp
	return nil
}

func (r *memSavedRepo) List(_ context.Context, q domain.SavedSearchQuery) ([]domain.SavedSearch, int64, error) {
	r.listed = append(r.listed, q)
	return nil, 0, nil
}

func (r *memSavedRepo) Get(_ context.Context, ownerID, id string) (*domain.SavedSearch, error) {
	s, ok := r.items[id]
	if !ok || s.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSavedRepo) Update(ctx context.Context, ownerID, id string, patch domain.SavedSearchPatch, now time.Time) (*domain.SavedSearch, error) {
	r.patches = append(r.patches, patch)
	s, err := r.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.Active != nil {
		s.Active = *patch.Active
	}
	s.UpdatedAt = now
	r.items[id] = s
	return s, nil
}

func (r *memSavedRepo) Delete(_ context.Context, ownerID, id string) error {
	s, ok := r.items[id]
	if !ok || s.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memSavedRepo) IncrementUsage(context.Context, string, string, time.Time) error {
	return nil
}

func newSavedService(repo *memSavedRepo, rec *fakeRecorder) *savedSearchServiceImpl {
	svc := NewSavedSearchService(repo, rec).(*savedSearchServiceImpl)
	n := 0
	svc.newID = func() string {
		n++
		return "s-" + string(rune('0'+n))
	}
	svc.now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestSavedSearch_CreateInitializesDefaults(t *testing.T) {
	svc := newSavedService(newMemSavedRepo(), &fakeRecorder{})

	saved, err := svc.Create(context.Background(), "owner-1", domain.CreateSavedSearchRequest{
		Name:  "  Gophers  ",
		Query: "golang",
		Type:  "POSTS",
		Filters: &domain.FiltersInput{
			SortBy:    "date",
			DateRange: "month",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "s-1", saved.ID)
	assert.Equal(t, "Gophers", saved.Name)
	assert.Equal(t, domain.ScopePosts, saved.Scope)
	assert.Equal(t, domain.Filters{SortBy: domain.SortDate, DateRange: domain.DateRangeMonth}, saved.Filters)
	assert.True(t, saved.Active)
	assert.Zero(t, saved.UseCount)
	assert.Nil(t, saved.LastUsed)
}

func TestSavedSearch_CreateCollectsFieldErrors(t *testing.T) {
	svc := newSavedService(newMemSavedRepo(), &fakeRecorder{})

	_, err := svc.Create(context.Background(), "owner-1", domain.CreateSavedSearchRequest{
		Name:    strings.Repeat("n", 101),
		Query:   "   ",
		Type:    "boards",
		Filters: &domain.FiltersInput{SortBy: "newest"},
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"name", "query", "type", "filters.sort_by"}, fields)
}

func TestSavedSearch_NameAtLimitAccepted(t *testing.T) {
	svc := newSavedService(newMemSavedRepo(), &fakeRecorder{})

	_, err := svc.Create(context.Background(), "owner-1", domain.CreateSavedSearchRequest{
		Name:  strings.Repeat("é", 100),
		Query: "q",
	})
	assert.NoError(t, err)
}

func TestSavedSearch_UpdateBuildsPartialPatch(t *testing.T) {
	repo := newMemSavedRepo()
	svc := newSavedService(repo, &fakeRecorder{})
	ctx := context.Background()

	_, err := svc.Create(ctx, "owner-1", domain.CreateSavedSearchRequest{Name: "a", Query: "q"})
	require.NoError(t, err)

	inactive := false
	saved, err := svc.Update(ctx, "owner-1", domain.UpdateSavedSearchRequest{ID: "s-1", Active: &inactive})
	require.NoError(t, err)
	assert.False(t, saved.Active)
	assert.Equal(t, "a", saved.Name)

	require.Len(t, repo.patches, 1)
	p := repo.patches[0]
	assert.Nil(t, p.Name)
	assert.Nil(t, p.Query)
	assert.Nil(t, p.Scope)
	assert.Nil(t, p.Filters)
	require.NotNil(t, p.Active)
	assert.False(t, *p.Active)
}

func TestSavedSearch_UpdateWithNoFieldsWritesNothing(t *testing.T) {
	repo := newMemSavedRepo()
	svc := newSavedService(repo, &fakeRecorder{})
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-1", domain.CreateSavedSearchRequest{Name: "a", Query: "q"})
	require.NoError(t, err)

	svc.now = func() time.Time { return created.UpdatedAt.Add(time.Hour) }
	saved, err := svc.Update(ctx, "owner-1", domain.UpdateSavedSearchRequest{ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, "a", saved.Name)
	assert.True(t, created.UpdatedAt.Equal(saved.UpdatedAt))
	assert.Empty(t, repo.patches)

	_, err = svc.Update(ctx, "owner-1", domain.UpdateSavedSearchRequest{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSavedSearch_UpdateRejectsEmptyName(t *testing.T) {
	repo := newMemSavedRepo()
	svc := newSavedService(repo, &fakeRecorder{})

	empty := " "
	_, err := svc.Update(context.Background(), "owner-1", domain.UpdateSavedSearchRequest{ID: "s-1", Name: &empty})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, repo.patches)
}

func TestSavedSearch_UseRecordsUsage(t *testing.T) {
	repo := newMemSavedRepo()
	rec := &fakeRecorder{}
	svc := newSavedService(repo, rec)
	ctx := context.Background()

	_, err := svc.Create(ctx, "owner-1", domain.CreateSavedSearchRequest{Name: "a", Query: "q"})
	require.NoError(t, err)

	saved, err := svc.Use(ctx, "owner-1", "s-1")
	require.NoError(t, err)
	assert.Equal(t, "q", saved.Query)
	assert.Equal(t, []string{"s-1"}, rec.used)

	_, err = svc.Use(ctx, "owner-2", "s-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, rec.used, 1)
}

func TestSavedSearch_ListClampsPage(t *testing.T) {
	repo := newMemSavedRepo()
	svc := newSavedService(repo, &fakeRecorder{})

	page, err := svc.List(context.Background(), domain.SavedSearchQuery{OwnerID: "owner-1", Limit: 500, Offset: -3})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)

	require.Len(t, repo.listed, 1)
	assert.Equal(t, domain.MaxSavedPageSize, repo.listed[0].Limit)
	assert.Equal(t, 0, repo.listed[0].Offset)
}

func TestSavedSearch_RequiresOwner(t *testing.T) {
	svc := newSavedService(newMemSavedRepo(), &fakeRecorder{})

	_, err := svc.Create(context.Background(), "", domain.CreateSavedSearchRequest{Name: "a", Query: "q"})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.ErrorIs(t, svc.Delete(context.Background(), "", "s-1"), domain.ErrUnauthenticated)
}
