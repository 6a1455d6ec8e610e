package domain

import (
	"time"

	"gorm.io/gorm"
)

// UserModel is the read-side projection of the users table.
type UserModel struct {
	ID            string    `gorm:"type:varchar(36);primaryKey"`
	Name          string    `gorm:"type:varchar(100);not null"`
	Username      string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	Bio           string    `gorm:"type:varchar(500)"`
	AvatarURL     string    `gorm:"column:avatar_url;type:varchar(500)"`
	Verified      bool      `gorm:"not null;default:false;index"`
	FollowerCount int64     `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
}

func (UserModel) TableName() string { return "users" }

// ToSummary projects the row without follow state.
func (m *UserModel) ToSummary() UserSummary {
	return UserSummary{
		ID:            m.ID,
		Name:          m.Name,
		Username:      m.Username,
		Bio:           m.Bio,
		AvatarURL:     m.AvatarURL,
		Verified:      m.Verified,
		FollowerCount: m.FollowerCount,
		CreatedAt:     m.CreatedAt,
	}
}

// FollowModel is the GORM model for the follows table. Unfollows are soft deletes.
type FollowModel struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"`
	FollowerID  string         `gorm:"column:follower_id;type:varchar(36);not null;index:idx_follow_pair"`
	FollowingID string         `gorm:"column:following_id;type:varchar(36);not null;index:idx_follow_pair"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (FollowModel) TableName() string { return "follows" }

// Post visibility values.
const (
	VisibilityPublic    = "public"
	VisibilityFollowers = "followers"
	VisibilityPrivate   = "private"
)

// PostModel is the read-side projection of the posts table.
type PostModel struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	AuthorID     string    `gorm:"type:varchar(36);not null;index"`
	Title        string    `gorm:"type:varchar(200)"`
	Content      string    `gorm:"type:text;not null"`
	Visibility   string    `gorm:"type:varchar(16);not null;default:public"`
	LikeCount    int64     `gorm:"not null;default:0"`
	CommentCount int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`

	Author UserModel `gorm:"foreignKey:AuthorID;references:ID"`
}

func (PostModel) TableName() string { return "posts" }

// ConversationModel is the read-side projection of the conversations table.
type ConversationModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Title     string    `gorm:"type:varchar(200)"`
	IsGroup   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index"`
}

func (ConversationModel) TableName() string { return "conversations" }

// ConversationParticipantModel links users to conversations.
type ConversationParticipantModel struct {
	ConversationID string     `gorm:"type:varchar(36);primaryKey"`
	UserID         string     `gorm:"type:varchar(36);primaryKey;index"`
	LastReadAt     *time.Time `gorm:"column:last_read_at"`
	JoinedAt       time.Time  `gorm:"autoCreateTime"`

	User UserModel `gorm:"foreignKey:UserID;references:ID"`
}

func (ConversationParticipantModel) TableName() string { return "conversation_participants" }

// MessageModel is the read-side projection of the messages table.
type MessageModel struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	ConversationID string    `gorm:"type:varchar(36);not null;index"`
	SenderID       string    `gorm:"type:varchar(36);not null"`
	Content        string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
}

func (MessageModel) TableName() string { return "messages" }

// SearchHistoryModel is the GORM model for the search_history table.
type SearchHistoryModel struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	OwnerID      string    `gorm:"type:varchar(36);not null;index"`
	Query        string    `gorm:"type:varchar(200);not null"`
	Scope        string    `gorm:"type:varchar(16);not null"`
	SortBy       string    `gorm:"type:varchar(16);not null"`
	DateRange    string    `gorm:"type:varchar(16);not null"`
	Verified     bool      `gorm:"not null;default:false"`
	ResultsCount int       `gorm:"not null;default:0"`
	Favorite     bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (SearchHistoryModel) TableName() string { return "search_history" }

// ToDomain converts the row to a HistoryEntry.
func (m *SearchHistoryModel) ToDomain() HistoryEntry {
	return HistoryEntry{
		ID:      m.ID,
		OwnerID: m.OwnerID,
		Query:   m.Query,
		Scope:   Scope(m.Scope),
		Filters: Filters{
			SortBy:    SortBy(m.SortBy),
			DateRange: DateRange(m.DateRange),
			Verified:  m.Verified,
		},
		ResultsCount: m.ResultsCount,
		Favorite:     m.Favorite,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// HistoryToModel converts a HistoryEntry to its row.
func HistoryToModel(e *HistoryEntry) *SearchHistoryModel {
	return &SearchHistoryModel{
		ID:           e.ID,
		OwnerID:      e.OwnerID,
		Query:        e.Query,
		Scope:        string(e.Scope),
		SortBy:       string(e.Filters.SortBy),
		DateRange:    string(e.Filters.DateRange),
		Verified:     e.Filters.Verified,
		ResultsCount: e.ResultsCount,
		Favorite:     e.Favorite,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// SavedSearchModel is the GORM model for the saved_searches table.
type SavedSearchModel struct {
	ID            string     `gorm:"type:varchar(36);primaryKey"`
	OwnerID       string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_saved_owner_name"`
	Name          string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_saved_owner_name"`
	Query         string     `gorm:"type:varchar(200);not null"`
	Scope         string     `gorm:"type:varchar(16);not null"`
	SortBy        string     `gorm:"type:varchar(16);not null"`
	DateRange     string     `gorm:"type:varchar(16);not null"`
	Verified      bool       `gorm:"not null;default:false"`
	Notifications bool       `gorm:"not null;default:false"`
	Active        bool       `gorm:"not null"`
	LastUsedAt    *time.Time `gorm:"column:last_used_at"`
	UseCount      int64      `gorm:"not null;default:0"`
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime"`
}

func (SavedSearchModel) TableName() string { return "saved_searches" }

// ToDomain converts the row to a SavedSearch.
func (m *SavedSearchModel) ToDomain() SavedSearch {
	return SavedSearch{
		ID:      m.ID,
		OwnerID: m.OwnerID,
		Name:    m.Name,
		Query:   m.Query,
		Scope:   Scope(m.Scope),
		Filters: Filters{
			SortBy:    SortBy(m.SortBy),
			DateRange: DateRange(m.DateRange),
			Verified:  m.Verified,
		},
		Notifications: m.Notifications,
		Active:        m.Active,
		LastUsed:      m.LastUsedAt,
		UseCount:      m.UseCount,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// SavedSearchToModel converts a SavedSearch to its row.
func SavedSearchToModel(s *SavedSearch) *SavedSearchModel {
	return &SavedSearchModel{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		Name:          s.Name,
		Query:         s.Query,
		Scope:         string(s.Scope),
		SortBy:        string(s.Filters.SortBy),
		DateRange:     string(s.Filters.DateRange),
		Verified:      s.Filters.Verified,
		Notifications: s.Notifications,
		Active:        s.Active,
		LastUsedAt:    s.LastUsed,
		UseCount:      s.UseCount,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// ReadModels lists the read-side tables. Only tests and local sqlite setups migrate them.
func ReadModels() []interface{} {
	return []interface{}{
		&UserModel{},
		&FollowModel{},
		&PostModel{},
		&ConversationModel{},
		&ConversationParticipantModel{},
		&MessageModel{},
	}
}

// OwnedModels lists the tables this service writes.
func OwnedModels() []interface{} {
	return []interface{}{
		&SearchHistoryModel{},
		&SavedSearchModel{},
	}
}
