package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

// SearchService defines the interface for search business logic.
type SearchService interface {
	Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResponse, error)
}

// HistoryService manages an owner's search history.
type HistoryService interface {
	List(ctx context.Context, q domain.HistoryQuery) (*domain.HistoryPage, error)
	Update(ctx context.Context, ownerID string, req domain.UpdateHistoryRequest) (*domain.HistoryEntry, error)
	Delete(ctx context.Context, ownerID, id string) error
	DeleteAll(ctx context.Context, ownerID string) (int64, error)
}

// SavedSearchService manages an owner's saved searches.
type SavedSearchService interface {
	List(ctx context.Context, q domain.SavedSearchQuery) (*domain.SavedSearchPage, error)
	Create(ctx context.Context, ownerID string, req domain.CreateSavedSearchRequest) (*domain.SavedSearch, error)
	Update(ctx context.Context, ownerID string, req domain.UpdateSavedSearchRequest) (*domain.SavedSearch, error)
	Delete(ctx context.Context, ownerID, id string) error
	Use(ctx context.Context, ownerID, id string) (*domain.SavedSearch, error)
}

// EventRecorder receives bookkeeping events. Implementations must not block.
type EventRecorder interface {
	SearchCompleted(ctx context.Context, req *domain.SearchRequest, resultsCount int, at time.Time)
	SavedSearchUsed(ctx context.Context, ownerID, savedSearchID string, at time.Time)
}
