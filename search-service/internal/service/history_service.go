package service

import (
	"context"
	"strconv"
	"time"

	"github.com/weiawesome/wes-io-live/search-service/internal/audit"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
	"github.com/weiawesome/wes-io-live/search-service/internal/repository"
)

type historyServiceImpl struct {
	repo repository.HistoryRepository
	now  func() time.Time
}

// NewHistoryService creates a new history service.
func NewHistoryService(repo repository.HistoryRepository) HistoryService {
	return &historyServiceImpl{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *historyServiceImpl) List(ctx context.Context, q domain.HistoryQuery) (*domain.HistoryPage, error) {
	if q.OwnerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	q.Limit, q.Offset = clampPage(q.Limit, q.Offset, domain.DefaultHistoryLimit, domain.MaxHistoryLimit)

	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.HistoryEntry{}
	}

	return &domain.HistoryPage{
		Items:      items,
		Pagination: domain.NewPagination(q.Limit, q.Offset, int(total)),
	}, nil
}

func (s *historyServiceImpl) Update(ctx context.Context, ownerID string, req domain.UpdateHistoryRequest) (*domain.HistoryEntry, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	entry, err := s.repo.SetFavorite(ctx, ownerID, req.ID, req.Favorite, s.now())
	if err != nil {
		return nil, err
	}

	audit.LogWithDetail(ctx, audit.ActionHistoryFavorite, ownerID, entry.ID,
		"favorite="+strconv.FormatBool(entry.Favorite), "history entry updated")
	return entry, nil
}

func (s *historyServiceImpl) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return domain.ErrUnauthenticated
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	audit.Log(ctx, audit.ActionHistoryDelete, ownerID, id, "history entry deleted")
	return nil
}

func (s *historyServiceImpl) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	if ownerID == "" {
		return 0, domain.ErrUnauthenticated
	}
	n, err := s.repo.DeleteAll(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	audit.LogWithDetail(ctx, audit.ActionHistoryClear, ownerID, ownerID,
		"deleted="+strconv.FormatInt(n, 10), "search history cleared")
	return n, nil
}

// clampPage applies the default for a non-positive limit and caps it at max.
func clampPage(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
