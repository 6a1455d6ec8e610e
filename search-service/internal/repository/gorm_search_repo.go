package repository

import (
	"context"
	"fmt"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

// PostContentLimit is the number of runes of post content kept in summaries.
const PostContentLimit = 200

const ellipsis = "..."

// TruncateContent cuts s to PostContentLimit runes and marks the cut.
func TruncateContent(s string) string {
	if utf8.RuneCountInString(s) <= PostContentLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:PostContentLimit]) + ellipsis
}

// GormUserProvider implements UserProvider over the users table.
type GormUserProvider struct {
	db      *gorm.DB
	follows FollowRepository
}

// NewGormUserProvider creates a database-backed user provider.
func NewGormUserProvider(db *gorm.DB, follows FollowRepository) *GormUserProvider {
	return &GormUserProvider{db: db, follows: follows}
}

func (p *GormUserProvider) Search(ctx context.Context, c *UserCriteria) ([]domain.UserSummary, int, error) {
	base := func() *gorm.DB {
		return p.db.WithContext(ctx).Model(&domain.UserModel{}).Scopes(c.Where)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	if total == 0 {
		return []domain.UserSummary{}, 0, nil
	}

	var models []domain.UserModel
	if err := c.page.apply(applyOrder(base(), c.OrderColumns())).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search users: %w", err)
	}

	users := make([]domain.UserSummary, len(models))
	ids := make([]string, len(models))
	for i := range models {
		users[i] = models[i].ToSummary()
		ids[i] = models[i].ID
	}

	following, err := p.follows.BatchIsFollowing(ctx, c.ActorID, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range users {
		users[i].IsFollowing = following[users[i].ID]
	}

	return users, int(total), nil
}

// GormPostProvider implements PostProvider over the posts table.
type GormPostProvider struct {
	db *gorm.DB
}

// NewGormPostProvider creates a database-backed post provider.
func NewGormPostProvider(db *gorm.DB) *GormPostProvider {
	return &GormPostProvider{db: db}
}

func (p *GormPostProvider) Search(ctx context.Context, c *PostCriteria) ([]domain.PostSummary, int, error) {
	base := func() *gorm.DB {
		return p.db.WithContext(ctx).Model(&domain.PostModel{}).Scopes(c.Where)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}
	if total == 0 {
		return []domain.PostSummary{}, 0, nil
	}

	var models []domain.PostModel
	err := c.page.apply(applyOrder(base(), c.OrderColumns())).
		Preload("Author").
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search posts: %w", err)
	}

	posts := make([]domain.PostSummary, len(models))
	for i, m := range models {
		posts[i] = domain.PostSummary{
			ID:           m.ID,
			Title:        m.Title,
			Content:      TruncateContent(m.Content),
			Visibility:   m.Visibility,
			LikeCount:    m.LikeCount,
			CommentCount: m.CommentCount,
			Author: domain.AuthorSummary{
				ID:        m.AuthorID,
				Name:      m.Author.Name,
				Username:  m.Author.Username,
				AvatarURL: m.Author.AvatarURL,
				Verified:  m.Author.Verified,
			},
			CreatedAt: m.CreatedAt,
		}
	}
	return posts, int(total), nil
}

// GormConversationProvider implements ConversationProvider.
type GormConversationProvider struct {
	db *gorm.DB
}

// NewGormConversationProvider creates a database-backed conversation provider.
func NewGormConversationProvider(db *gorm.DB) *GormConversationProvider {
	return &GormConversationProvider{db: db}
}

type conversationCount struct {
	ConversationID string
	N              int64
}

func (p *GormConversationProvider) Search(ctx context.Context, c *ConversationCriteria) ([]domain.ConversationSummary, int, error) {
	base := func() *gorm.DB {
		return p.db.WithContext(ctx).Model(&domain.ConversationModel{}).Scopes(c.Where)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	if total == 0 {
		return []domain.ConversationSummary{}, 0, nil
	}

	var models []domain.ConversationModel
	if err := c.page.apply(applyOrder(base(), c.OrderColumns())).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search conversations: %w", err)
	}
	if len(models) == 0 {
		return []domain.ConversationSummary{}, int(total), nil
	}

	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}

	participants, err := p.participants(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	messages, err := p.messageCounts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	unread, err := p.unreadCounts(ctx, ids, c.ActorID)
	if err != nil {
		return nil, 0, err
	}

	convs := make([]domain.ConversationSummary, len(models))
	for i, m := range models {
		parts := participants[m.ID]
		if parts == nil {
			parts = []domain.ParticipantSummary{}
		}
		convs[i] = domain.ConversationSummary{
			ID:           m.ID,
			Title:        m.Title,
			IsGroup:      m.IsGroup,
			Participants: parts,
			MessageCount: messages[m.ID],
			UnreadCount:  unread[m.ID],
			CreatedAt:    m.CreatedAt,
			UpdatedAt:    m.UpdatedAt,
		}
	}
	return convs, int(total), nil
}

func (p *GormConversationProvider) participants(ctx context.Context, ids []string) (map[string][]domain.ParticipantSummary, error) {
	var rows []domain.ConversationParticipantModel
	err := p.db.WithContext(ctx).
		Where("conversation_id IN ?", ids).
		Order("joined_at ASC").Order("user_id ASC").
		Preload("User").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	out := make(map[string][]domain.ParticipantSummary, len(ids))
	for _, r := range rows {
		out[r.ConversationID] = append(out[r.ConversationID], domain.ParticipantSummary{
			ID:        r.UserID,
			Name:      r.User.Name,
			Username:  r.User.Username,
			AvatarURL: r.User.AvatarURL,
		})
	}
	return out, nil
}

func (p *GormConversationProvider) messageCounts(ctx context.Context, ids []string) (map[string]int64, error) {
	var rows []conversationCount
	err := p.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Select("conversation_id, COUNT(*) AS n").
		Where("conversation_id IN ?", ids).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	return countMap(rows), nil
}

// unreadCounts counts messages from other senders newer than the actor's last read mark.
func (p *GormConversationProvider) unreadCounts(ctx context.Context, ids []string, actorID string) (map[string]int64, error) {
	var rows []conversationCount
	err := p.db.WithContext(ctx).Table("messages AS m").
		Select("m.conversation_id AS conversation_id, COUNT(*) AS n").
		Joins("JOIN conversation_participants cp ON cp.conversation_id = m.conversation_id AND cp.user_id = ?", actorID).
		Where("m.conversation_id IN ?", ids).
		Where("m.sender_id <> ?", actorID).
		Where("(cp.last_read_at IS NULL OR m.created_at > cp.last_read_at)").
		Group("m.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return countMap(rows), nil
}

func countMap(rows []conversationCount) map[string]int64 {
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.ConversationID] = r.N
	}
	return out
}

var (
	_ UserProvider         = (*GormUserProvider)(nil)
	_ PostProvider         = (*GormPostProvider)(nil)
	_ ConversationProvider = (*GormConversationProvider)(nil)
)
