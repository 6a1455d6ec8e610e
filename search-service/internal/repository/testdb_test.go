package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-live/pkg/database"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

var epoch = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

// newTestDB opens a private in-memory sqlite database with every table migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: "file:" + name + "?mode=memory&cache=shared",
		LogLevel: "silent",
	})
	require.NoError(t, err)

	models := append(domain.ReadModels(), domain.OwnedModels()...)
	require.NoError(t, database.AutoMigrate(db, models...))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seed(t *testing.T, db *gorm.DB, rows ...interface{}) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, db.Omit(clause.Associations).Create(row).Error)
	}
}

func user(id, name, username string, verified bool, followers int64, created time.Time) *domain.UserModel {
	return &domain.UserModel{
		ID:            id,
		Name:          name,
		Username:      username,
		Verified:      verified,
		FollowerCount: followers,
		CreatedAt:     created,
	}
}
