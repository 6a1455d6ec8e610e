package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

// likeEscaper escapes LIKE wildcards with '!' so the term matches literally.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern builds a case-insensitive substring pattern for term.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

// contains returns a LOWER(col) LIKE predicate usable with containsPattern.
func contains(col string) string {
	return "LOWER(" + col + ") LIKE ? ESCAPE '!'"
}

// page holds the pagination shared by every criteria type.
type page struct {
	Limit  int
	Offset int
}

func (p page) apply(db *gorm.DB) *gorm.DB {
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	return db
}

// UserCriteria selects users by substring over name, username and bio.
// The actor is always excluded.
type UserCriteria struct {
	Term         string
	ActorID      string
	VerifiedOnly bool
	Since        *time.Time
	SortBy       domain.SortBy
	page
}

// NewUserCriteria starts a user search for term on behalf of actorID.
func NewUserCriteria(term, actorID string) *UserCriteria {
	return &UserCriteria{Term: term, ActorID: actorID, SortBy: domain.SortRelevance}
}

// Verified restricts results to verified users when on is true.
func (c *UserCriteria) Verified(on bool) *UserCriteria {
	c.VerifiedOnly = on
	return c
}

// CreatedSince applies a createdAt lower bound when ok is true.
func (c *UserCriteria) CreatedSince(t time.Time, ok bool) *UserCriteria {
	if ok {
		c.Since = &t
	}
	return c
}

// OrderBy selects the ordering policy.
func (c *UserCriteria) OrderBy(s domain.SortBy) *UserCriteria {
	c.SortBy = s
	return c
}

// Page sets limit and offset.
func (c *UserCriteria) Page(limit, offset int) *UserCriteria {
	c.page = page{Limit: limit, Offset: offset}
	return c
}

// Where is the gorm scope holding the filter predicate.
func (c *UserCriteria) Where(db *gorm.DB) *gorm.DB {
	p := containsPattern(c.Term)
	db = db.Where("("+contains("users.name")+" OR "+contains("users.username")+" OR "+contains("users.bio")+")", p, p, p)
	if c.ActorID != "" {
		db = db.Where("users.id <> ?", c.ActorID)
	}
	if c.VerifiedOnly {
		db = db.Where("users.verified = ?", true)
	}
	if c.Since != nil {
		db = db.Where("users.created_at >= ?", *c.Since)
	}
	return db
}

// OrderColumns returns the ordering chain for the policy, id last.
func (c *UserCriteria) OrderColumns() []string {
	switch c.SortBy {
	case domain.SortDate:
		return []string{"users.created_at DESC", "users.id ASC"}
	case domain.SortPopularity:
		return []string{"users.follower_count DESC", "users.created_at DESC", "users.id ASC"}
	default:
		return []string{"users.verified DESC", "users.follower_count DESC", "users.created_at DESC", "users.id ASC"}
	}
}

// PostCriteria selects posts visible to the actor by substring over content and title.
type PostCriteria struct {
	Term    string
	ActorID string
	Since   *time.Time
	SortBy  domain.SortBy
	page
}

// NewPostCriteria starts a post search for term on behalf of actorID.
func NewPostCriteria(term, actorID string) *PostCriteria {
	return &PostCriteria{Term: term, ActorID: actorID, SortBy: domain.SortRelevance}
}

// CreatedSince applies a createdAt lower bound when ok is true.
func (c *PostCriteria) CreatedSince(t time.Time, ok bool) *PostCriteria {
	if ok {
		c.Since = &t
	}
	return c
}

// OrderBy selects the ordering policy.
func (c *PostCriteria) OrderBy(s domain.SortBy) *PostCriteria {
	c.SortBy = s
	return c
}

// Page sets limit and offset.
func (c *PostCriteria) Page(limit, offset int) *PostCriteria {
	c.page = page{Limit: limit, Offset: offset}
	return c
}

// Where is the gorm scope holding the match and visibility predicates.
func (c *PostCriteria) Where(db *gorm.DB) *gorm.DB {
	p := containsPattern(c.Term)
	db = db.Where("("+contains("posts.content")+" OR "+contains("posts.title")+")", p, p)
	db = db.Where(
		"(posts.visibility = ? OR posts.author_id = ? OR (posts.visibility = ? AND posts.author_id IN (SELECT following_id FROM follows WHERE follower_id = ? AND deleted_at IS NULL)))",
		domain.VisibilityPublic, c.ActorID, domain.VisibilityFollowers, c.ActorID,
	)
	if c.Since != nil {
		db = db.Where("posts.created_at >= ?", *c.Since)
	}
	return db
}

// OrderColumns returns the ordering chain for the policy, id last.
func (c *PostCriteria) OrderColumns() []string {
	switch c.SortBy {
	case domain.SortDate:
		return []string{"posts.created_at DESC", "posts.id ASC"}
	case domain.SortPopularity:
		return []string{"posts.like_count DESC", "posts.created_at DESC", "posts.id ASC"}
	default:
		return []string{"posts.like_count DESC", "posts.comment_count DESC", "posts.created_at DESC", "posts.id ASC"}
	}
}

// ConversationCriteria selects the actor's conversations by title or participant name.
// Ordering is fixed to most recently updated.
type ConversationCriteria struct {
	Term    string
	ActorID string
	Since   *time.Time
	page
}

// NewConversationCriteria starts a conversation search for term on behalf of actorID.
func NewConversationCriteria(term, actorID string) *ConversationCriteria {
	return &ConversationCriteria{Term: term, ActorID: actorID}
}

// CreatedSince applies a createdAt lower bound when ok is true.
func (c *ConversationCriteria) CreatedSince(t time.Time, ok bool) *ConversationCriteria {
	if ok {
		c.Since = &t
	}
	return c
}

// Page sets limit and offset.
func (c *ConversationCriteria) Page(limit, offset int) *ConversationCriteria {
	c.page = page{Limit: limit, Offset: offset}
	return c
}

// Where is the gorm scope holding the membership and match predicates.
func (c *ConversationCriteria) Where(db *gorm.DB) *gorm.DB {
	p := containsPattern(c.Term)
	db = db.Where("conversations.id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = ?)", c.ActorID)
	db = db.Where(
		"("+contains("conversations.title")+" OR conversations.id IN (SELECT cp.conversation_id FROM conversation_participants cp JOIN users u ON u.id = cp.user_id WHERE "+
			contains("u.name")+" OR "+contains("u.username")+"))",
		p, p, p,
	)
	if c.Since != nil {
		db = db.Where("conversations.created_at >= ?", *c.Since)
	}
	return db
}

// OrderColumns returns the fixed ordering chain.
func (c *ConversationCriteria) OrderColumns() []string {
	return []string{"conversations.updated_at DESC", "conversations.id ASC"}
}

func applyOrder(db *gorm.DB, cols []string) *gorm.DB {
	for _, col := range cols {
		db = db.Order(col)
	}
	return db
}
