package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

// GormHistoryRepository implements HistoryRepository using GORM.
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a new GORM-backed history repository.
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// Create inserts a history entry. Zero timestamps are filled by gorm.
func (r *GormHistoryRepository) Create(ctx context.Context, entry *domain.HistoryEntry) error {
	model := domain.HistoryToModel(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create history entry: %w", err)
	}
	entry.CreatedAt = model.CreatedAt
	entry.UpdatedAt = model.UpdatedAt
	return nil
}

// List returns favorites first, then the most recently touched entries.
func (r *GormHistoryRepository) List(ctx context.Context, q domain.HistoryQuery) ([]domain.HistoryEntry, int64, error) {
	base := func() *gorm.DB {
		db := r.db.WithContext(ctx).Model(&domain.SearchHistoryModel{}).Where("owner_id = ?", q.OwnerID)
		if q.Scope != nil {
			db = db.Where("scope = ?", string(*q.Scope))
		}
		return db
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	var models []domain.SearchHistoryModel
	err := base().
		Order("favorite DESC").
		Order("updated_at DESC").
		Order("created_at DESC").
		Order("id DESC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}

	entries := make([]domain.HistoryEntry, len(models))
	for i := range models {
		entries[i] = models[i].ToDomain()
	}
	return entries, total, nil
}

// SetFavorite sets the favorite flag, or toggles it when favorite is nil.
func (r *GormHistoryRepository) SetFavorite(ctx context.Context, ownerID, id string, favorite *bool, now time.Time) (*domain.HistoryEntry, error) {
	var model domain.SearchHistoryModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
			return err
		}

		next := !model.Favorite
		if favorite != nil {
			next = *favorite
		}

		if err := tx.Model(&model).Updates(map[string]interface{}{
			"favorite":   next,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		model.Favorite = next
		model.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update history entry: %w", err)
	}

	entry := model.ToDomain()
	return &entry, nil
}

// Delete removes one entry of the owner.
func (r *GormHistoryRepository) Delete(ctx context.Context, ownerID, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&domain.SearchHistoryModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete history entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteAll removes every entry of the owner and reports how many were removed.
func (r *GormHistoryRepository) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&domain.SearchHistoryModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear history: %w", result.Error)
	}
	return result.RowsAffected, nil
}

var _ HistoryRepository = (*GormHistoryRepository)(nil)
