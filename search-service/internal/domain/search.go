package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Scope selects which entity types a search covers.
type Scope string

const (
	ScopeAll           Scope = "all"
	ScopeUsers         Scope = "users"
	ScopePosts         Scope = "posts"
	ScopeConversations Scope = "conversations"
)

// SortBy selects the provider ordering policy.
type SortBy string

const (
	SortRelevance  SortBy = "relevance"
	SortDate       SortBy = "date"
	SortPopularity SortBy = "popularity"
)

// DateRange is a relative createdAt window.
type DateRange string

const (
	DateRangeAll   DateRange = "all"
	DateRangeDay   DateRange = "day"
	DateRangeWeek  DateRange = "week"
	DateRangeMonth DateRange = "month"
	DateRangeYear  DateRange = "year"
)

// Request limits.
const (
	DefaultLimit   = 20
	MaxLimit       = 50
	MaxQueryLength = 200
)

// ParseScope parses a scope name case-insensitively. Empty means ScopeAll.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeUsers:
		return ScopeUsers, nil
	case ScopePosts:
		return ScopePosts, nil
	case ScopeConversations:
		return ScopeConversations, nil
	}
	return "", fmt.Errorf("must be one of all, users, posts, conversations")
}

// ParseSortBy parses a sort policy name case-insensitively. Empty means SortRelevance.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortRelevance:
		return SortRelevance, nil
	case SortDate:
		return SortDate, nil
	case SortPopularity:
		return SortPopularity, nil
	}
	return "", fmt.Errorf("must be one of relevance, date, popularity")
}

// ParseDateRange parses a date range name case-insensitively. Empty means DateRangeAll.
func ParseDateRange(s string) (DateRange, error) {
	switch DateRange(strings.ToLower(strings.TrimSpace(s))) {
	case "", DateRangeAll:
		return DateRangeAll, nil
	case DateRangeDay:
		return DateRangeDay, nil
	case DateRangeWeek:
		return DateRangeWeek, nil
	case DateRangeMonth:
		return DateRangeMonth, nil
	case DateRangeYear:
		return DateRangeYear, nil
	}
	return "", fmt.Errorf("must be one of all, day, week, month, year")
}

// Filters is the filter snapshot stored with history entries and saved searches.
type Filters struct {
	SortBy    SortBy    `json:"sort_by"`
	DateRange DateRange `json:"date_range"`
	Verified  bool      `json:"verified"`
}

// SearchRequest is a normalized search request.
type SearchRequest struct {
	Query     string
	Scope     Scope
	SortBy    SortBy
	DateRange DateRange
	Verified  bool
	Limit     int
	Offset    int
	ActorID   string
}

// Filters returns the request's filter snapshot.
func (r *SearchRequest) Filters() Filters {
	return Filters{SortBy: r.SortBy, DateRange: r.DateRange, Verified: r.Verified}
}

// EntityType tags a SearchResultItem.
type EntityType string

const (
	EntityUser         EntityType = "user"
	EntityPost         EntityType = "post"
	EntityConversation EntityType = "conversation"
)

// UserSummary is the user projection returned by searches.
type UserSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Username      string    `json:"username"`
	Bio           string    `json:"bio,omitempty"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	Verified      bool      `json:"verified"`
	FollowerCount int64     `json:"follower_count"`
	IsFollowing   bool      `json:"is_following"`
	CreatedAt     time.Time `json:"created_at"`
}

// AuthorSummary is the compact author projection attached to posts.
type AuthorSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Verified  bool   `json:"verified"`
}

// PostSummary is the post projection returned by searches.
type PostSummary struct {
	ID           string        `json:"id"`
	Title        string        `json:"title,omitempty"`
	Content      string        `json:"content"`
	Visibility   string        `json:"visibility"`
	LikeCount    int64         `json:"like_count"`
	CommentCount int64         `json:"comment_count"`
	Author       AuthorSummary `json:"author"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ParticipantSummary is a conversation participant.
type ParticipantSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ConversationSummary is the conversation projection returned by searches.
type ConversationSummary struct {
	ID           string               `json:"id"`
	Title        string               `json:"title,omitempty"`
	IsGroup      bool                 `json:"is_group"`
	Participants []ParticipantSummary `json:"participants"`
	MessageCount int64                `json:"message_count"`
	UnreadCount  int64                `json:"unread_count"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// SearchResultItem is a tagged union over the three summaries.
// Exactly one of User, Post, Conversation is set, matching Type.
type SearchResultItem struct {
	Type         EntityType           `json:"type"`
	User         *UserSummary         `json:"user,omitempty"`
	Post         *PostSummary         `json:"post,omitempty"`
	Conversation *ConversationSummary `json:"conversation,omitempty"`
}

// ID returns the wrapped entity id.
func (i SearchResultItem) ID() string {
	switch {
	case i.User != nil:
		return i.User.ID
	case i.Post != nil:
		return i.Post.ID
	case i.Conversation != nil:
		return i.Conversation.ID
	}
	return ""
}

// UserItems wraps user summaries as result items.
func UserItems(users []UserSummary) []SearchResultItem {
	items := make([]SearchResultItem, len(users))
	for i := range users {
		items[i] = SearchResultItem{Type: EntityUser, User: &users[i]}
	}
	return items
}

// PostItems wraps post summaries as result items.
func PostItems(posts []PostSummary) []SearchResultItem {
	items := make([]SearchResultItem, len(posts))
	for i := range posts {
		items[i] = SearchResultItem{Type: EntityPost, Post: &posts[i]}
	}
	return items
}

// ConversationItems wraps conversation summaries as result items.
func ConversationItems(convs []ConversationSummary) []SearchResultItem {
	items := make([]SearchResultItem, len(convs))
	for i := range convs {
		items[i] = SearchResultItem{Type: EntityConversation, Conversation: &convs[i]}
	}
	return items
}

// ResultBundle is the ALL-scope payload.
type ResultBundle struct {
	Users         []UserSummary         `json:"users"`
	Posts         []PostSummary         `json:"posts"`
	Conversations []ConversationSummary `json:"conversations"`
}

// Len returns the number of items across all three lists.
func (b *ResultBundle) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Users) + len(b.Posts) + len(b.Conversations)
}

// Results is either a flat item list (single scope) or a bundle (ALL).
// It encodes as a JSON array or object respectively.
type Results struct {
	Items  []SearchResultItem
	Bundle *ResultBundle
}

// Len returns the number of items held.
func (r Results) Len() int {
	if r.Bundle != nil {
		return r.Bundle.Len()
	}
	return len(r.Items)
}

// MarshalJSON implements json.Marshaler.
func (r Results) MarshalJSON() ([]byte, error) {
	if r.Bundle != nil {
		return json.Marshal(r.Bundle)
	}
	if r.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Items)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Results) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = Results{}
		return nil
	}
	if trimmed[0] == '{' {
		var b ResultBundle
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*r = Results{Bundle: &b}
		return nil
	}
	var items []SearchResultItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	*r = Results{Items: items}
	return nil
}

// Pagination is the pagination envelope of a search response.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// NewPagination computes hasMore uniformly as offset+limit < total.
func NewPagination(limit, offset, total int) Pagination {
	return Pagination{
		Limit:   limit,
		Offset:  offset,
		Total:   total,
		HasMore: offset+limit < total,
	}
}

// SearchResponse is the search endpoint payload.
type SearchResponse struct {
	Query      string     `json:"query"`
	Type       Scope      `json:"type"`
	SortBy     SortBy     `json:"sort_by"`
	DateRange  DateRange  `json:"date_range"`
	Verified   bool       `json:"verified"`
	Results    Results    `json:"results"`
	Pagination Pagination `json:"pagination"`
}
