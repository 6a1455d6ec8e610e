package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

// isUniqueViolation reports whether err is a unique-constraint violation.
// GORM v1.25+ wraps these as gorm.ErrDuplicatedKey when TranslateError is on.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// GormSavedSearchRepository implements SavedSearchRepository using GORM.
type GormSavedSearchRepository struct {
	db    *gorm.DB
	quota int
}

// NewGormSavedSearchRepository creates a new GORM-backed saved search repository.
func NewGormSavedSearchRepository(db *gorm.DB) *GormSavedSearchRepository {
	return &GormSavedSearchRepository{db: db, quota: domain.MaxSavedSearches}
}

// Create inserts s after checking the owner's quota and name uniqueness.
// Active and inactive entries both count toward the quota.
func (r *GormSavedSearchRepository) Create(ctx context.Context, s *domain.SavedSearch) error {
	model := domain.SavedSearchToModel(s)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, s.OwnerID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&domain.SavedSearchModel{}).
			Where("owner_id = ?", s.OwnerID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(r.quota) {
			return domain.ErrQuotaExceeded
		}

		taken, err := nameTaken(tx, s.OwnerID, s.Name, "")
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrConflict
		}

		return tx.Create(model).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) || errors.Is(err, domain.ErrConflict) {
			return err
		}
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("failed to create saved search: %w", err)
	}

	s.CreatedAt = model.CreatedAt
	s.UpdatedAt = model.UpdatedAt
	return nil
}

// List returns the owner's saved searches, most recently changed first.
func (r *GormSavedSearchRepository) List(ctx context.Context, q domain.SavedSearchQuery) ([]domain.SavedSearch, int64, error) {
	base := func() *gorm.DB {
		db := r.db.WithContext(ctx).Model(&domain.SavedSearchModel{}).Where("owner_id = ?", q.OwnerID)
		if q.Active != nil {
			db = db.Where("active = ?", *q.Active)
		}
		return db
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count saved searches: %w", err)
	}

	var models []domain.SavedSearchModel
	err := base().
		Order("updated_at DESC").
		Order("created_at DESC").
		Order("id ASC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list saved searches: %w", err)
	}

	out := make([]domain.SavedSearch, len(models))
	for i := range models {
		out[i] = models[i].ToDomain()
	}
	return out, total, nil
}

// Get returns one saved search of the owner.
func (r *GormSavedSearchRepository) Get(ctx context.Context, ownerID, id string) (*domain.SavedSearch, error) {
	var model domain.SavedSearchModel
	err := r.db.WithContext(ctx).First(&model, "id = ? AND owner_id = ?", id, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get saved search: %w", err)
	}
	s := model.ToDomain()
	return &s, nil
}

// Update applies the non-nil fields of patch and bumps updated_at.
// A rename is rejected when another entry of the owner already has the name.
func (r *GormSavedSearchRepository) Update(ctx context.Context, ownerID, id string, patch domain.SavedSearchPatch, now time.Time) (*domain.SavedSearch, error) {
	var model domain.SavedSearchModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"updated_at": now}
		if patch.Name != nil && *patch.Name != model.Name {
			taken, err := nameTaken(tx, ownerID, *patch.Name, id)
			if err != nil {
				return err
			}
			if taken {
				return domain.ErrConflict
			}
			updates["name"] = *patch.Name
		}
		if patch.Query != nil {
			updates["query"] = *patch.Query
		}
		if patch.Scope != nil {
			updates["scope"] = string(*patch.Scope)
		}
		if patch.Filters != nil {
			updates["sort_by"] = string(patch.Filters.SortBy)
			updates["date_range"] = string(patch.Filters.DateRange)
			updates["verified"] = patch.Filters.Verified
		}
		if patch.Notifications != nil {
			updates["notifications"] = *patch.Notifications
		}
		if patch.Active != nil {
			updates["active"] = *patch.Active
		}

		if err := tx.Model(&domain.SavedSearchModel{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&model, "id = ? AND owner_id = ?", id, ownerID).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, domain.ErrNotFound
		case errors.Is(err, domain.ErrConflict), isUniqueViolation(err):
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("failed to update saved search: %w", err)
	}

	s := model.ToDomain()
	return &s, nil
}

// Delete removes one saved search of the owner.
func (r *GormSavedSearchRepository) Delete(ctx context.Context, ownerID, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&domain.SavedSearchModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete saved search: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// IncrementUsage bumps use_count and sets last_used_at without touching updated_at.
func (r *GormSavedSearchRepository) IncrementUsage(ctx context.Context, ownerID, id string, usedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.SavedSearchModel{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		UpdateColumns(map[string]interface{}{
			"use_count":    gorm.Expr("use_count + ?", 1),
			"last_used_at": usedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record saved search usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// lockOwner holds a per-owner lock until tx ends so concurrent creates
// count the owner's rows one at a time. Postgres takes an advisory lock;
// mysql locks the owner's index range, which also blocks inserts into it.
// sqlite already admits a single writer.
func lockOwner(tx *gorm.DB, ownerID string) *gorm.DB {
	switch tx.Dialector.Name() {
	case "postgres":
		return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", ownerID)
	case "mysql":
		var ids []string
		return tx.Model(&domain.SavedSearchModel{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ?", ownerID).
			Pluck("id", &ids)
	}
	return tx
}

func nameTaken(tx *gorm.DB, ownerID, name, excludeID string) (bool, error) {
	q := tx.Model(&domain.SavedSearchModel{}).Where("owner_id = ? AND name = ?", ownerID, name)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ SavedSearchRepository = (*GormSavedSearchRepository)(nil)
