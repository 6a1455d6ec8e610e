package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

// GormFollowRepository implements FollowRepository using GORM.
// Soft-deleted rows are unfollows and never count.
type GormFollowRepository struct {
	db *gorm.DB
}

// NewGormFollowRepository creates a new GORM-backed follow repository.
func NewGormFollowRepository(db *gorm.DB) *GormFollowRepository {
	return &GormFollowRepository{db: db}
}

// BatchIsFollowing checks if followerID follows each of the targetIDs.
func (r *GormFollowRepository) BatchIsFollowing(ctx context.Context, followerID string, targetIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		result[id] = false
	}

	if len(targetIDs) == 0 || followerID == "" {
		return result, nil
	}

	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.FollowModel{}).
		Where("follower_id = ? AND following_id IN ?", followerID, targetIDs).
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to batch check follows: %w", err)
	}

	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// FollowingIDs returns every user followerID actively follows.
func (r *GormFollowRepository) FollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.FollowModel{}).
		Where("follower_id = ?", followerID).
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}
	return ids, nil
}

var _ FollowRepository = (*GormFollowRepository)(nil)
