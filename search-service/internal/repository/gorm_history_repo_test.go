package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

func historyEntry(id, owner string, scope domain.Scope, at time.Time) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:        id,
		OwnerID:   owner,
		Query:     "q " + id,
		Scope:     scope,
		Filters:   domain.Filters{SortBy: domain.SortRelevance, DateRange: domain.DateRangeAll},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func historyIDs(entries []domain.HistoryEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func TestGormHistoryRepository_FavoritesFirstThenRecent(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Create(ctx, historyEntry(fmt.Sprintf("h-%d", i), "owner", domain.ScopeAll, epoch.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Create(ctx, historyEntry("h-other", "someone-else", domain.ScopeAll, epoch)))

	entries, total, err := repo.List(ctx, domain.HistoryQuery{OwnerID: "owner", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, []string{"h-3", "h-2", "h-1", "h-0"}, historyIDs(entries))

	fav := true
	updated, err := repo.SetFavorite(ctx, "owner", "h-0", &fav, epoch.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, updated.Favorite)

	entries, _, err = repo.List(ctx, domain.HistoryQuery{OwnerID: "owner", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, []string{"h-0", "h-3", "h-2", "h-1"}, historyIDs(entries))
}

func TestGormHistoryRepository_ToggleWhenFavoriteAbsent(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, historyEntry("h-1", "owner", domain.ScopeUsers, epoch)))

	e, err := repo.SetFavorite(ctx, "owner", "h-1", nil, epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, e.Favorite)
	assert.True(t, epoch.Add(time.Minute).Equal(e.UpdatedAt))

	e, err = repo.SetFavorite(ctx, "owner", "h-1", nil, epoch.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, e.Favorite)

	_, err = repo.SetFavorite(ctx, "intruder", "h-1", nil, epoch)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGormHistoryRepository_ScopeFilterAndPaging(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, historyEntry("h-u1", "owner", domain.ScopeUsers, epoch)))
	require.NoError(t, repo.Create(ctx, historyEntry("h-p1", "owner", domain.ScopePosts, epoch.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, historyEntry("h-u2", "owner", domain.ScopeUsers, epoch.Add(2*time.Minute))))

	scope := domain.ScopeUsers
	entries, total, err := repo.List(ctx, domain.HistoryQuery{OwnerID: "owner", Scope: &scope, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []string{"h-u1"}, historyIDs(entries))
}

func TestGormHistoryRepository_DeleteAll(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		require.NoError(t, repo.Create(ctx, historyEntry(fmt.Sprintf("h-%d", i), "owner", domain.ScopeAll, epoch)))
	}
	require.NoError(t, repo.Create(ctx, historyEntry("h-keep", "other", domain.ScopeAll, epoch)))

	n, err := repo.DeleteAll(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	entries, total, err := repo.List(ctx, domain.HistoryQuery{OwnerID: "owner", Limit: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)

	_, total, err = repo.List(ctx, domain.HistoryQuery{OwnerID: "other", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestGormHistoryRepository_DeleteIsOwnerScoped(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormHistoryRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, historyEntry("h-1", "owner", domain.ScopeAll, epoch)))

	assert.ErrorIs(t, repo.Delete(ctx, "intruder", "h-1"), domain.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "owner", "h-1"))
	assert.ErrorIs(t, repo.Delete(ctx, "owner", "h-1"), domain.ErrNotFound)
}
