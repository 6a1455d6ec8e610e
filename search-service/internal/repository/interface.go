package repository

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

// UserProvider searches user profiles.
// It returns one page of summaries and the number of rows the criteria match.
type UserProvider interface {
	Search(ctx context.Context, c *UserCriteria) ([]domain.UserSummary, int, error)
}

// PostProvider searches posts visible to the actor.
type PostProvider interface {
	Search(ctx context.Context, c *PostCriteria) ([]domain.PostSummary, int, error)
}

// ConversationProvider searches conversations the actor participates in.
type ConversationProvider interface {
	Search(ctx context.Context, c *ConversationCriteria) ([]domain.ConversationSummary, int, error)
}

// FollowRepository reads active follow relationships.
type FollowRepository interface {
	BatchIsFollowing(ctx context.Context, followerID string, targetIDs []string) (map[string]bool, error)
	FollowingIDs(ctx context.Context, followerID string) ([]string, error)
}

// HistoryRepository persists search history entries.
type HistoryRepository interface {
	Create(ctx context.Context, entry *domain.HistoryEntry) error
	List(ctx context.Context, q domain.HistoryQuery) ([]domain.HistoryEntry, int64, error)
	SetFavorite(ctx context.Context, ownerID, id string, favorite *bool, now time.Time) (*domain.HistoryEntry, error)
	Delete(ctx context.Context, ownerID, id string) error
	DeleteAll(ctx context.Context, ownerID string) (int64, error)
}

// SavedSearchRepository persists saved searches.
type SavedSearchRepository interface {
	Create(ctx context.Context, s *domain.SavedSearch) error
	List(ctx context.Context, q domain.SavedSearchQuery) ([]domain.SavedSearch, int64, error)
	Get(ctx context.Context, ownerID, id string) (*domain.SavedSearch, error)
	Update(ctx context.Context, ownerID, id string, patch domain.SavedSearchPatch, now time.Time) (*domain.SavedSearch, error)
	Delete(ctx context.Context, ownerID, id string) error
	IncrementUsage(ctx context.Context, ownerID, id string, usedAt time.Time) error
}
