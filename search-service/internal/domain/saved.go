package domain

import "time"

// Saved search limits.
const (
	MaxSavedSearches     = 50
	MaxSavedNameLength   = 100
	DefaultSavedPageSize = 20
	MaxSavedPageSize     = 50
)

// SavedSearch is a named, persisted search of an owner.
type SavedSearch struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Name          string     `json:"name"`
	Query         string     `json:"query"`
	Scope         Scope      `json:"type"`
	Filters       Filters    `json:"filters"`
	Notifications bool       `json:"notifications"`
	Active        bool       `json:"active"`
	LastUsed      *time.Time `json:"last_used,omitempty"`
	UseCount      int64      `json:"use_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SavedSearchQuery selects a page of an owner's saved searches.
// A nil Active lists both active and inactive entries.
type SavedSearchQuery struct {
	OwnerID string
	Active  *bool
	Limit   int
	Offset  int
}

// SavedSearchPage is a page of saved searches.
type SavedSearchPage struct {
	Items      []SavedSearch `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// FiltersInput is the loosely typed filter object accepted by write endpoints.
type FiltersInput struct {
	SortBy    string `json:"sort_by"`
	DateRange string `json:"date_range"`
	Verified  bool   `json:"verified"`
}

// CreateSavedSearchRequest is the body of a saved-search create.
type CreateSavedSearchRequest struct {
	Name          string        `json:"name" binding:"required"`
	Query         string        `json:"query" binding:"required"`
	Type          string        `json:"type"`
	Filters       *FiltersInput `json:"filters"`
	Notifications bool          `json:"notifications"`
}

// UpdateSavedSearchRequest patches the fields that are present.
type UpdateSavedSearchRequest struct {
	ID            string        `json:"id" binding:"required"`
	Name          *string       `json:"name"`
	Query         *string       `json:"query"`
	Type          *string       `json:"type"`
	Filters       *FiltersInput `json:"filters"`
	Notifications *bool         `json:"notifications"`
	Active        *bool         `json:"active"`
}

// SavedSearchPatch is a validated partial update. Nil fields are left untouched.
type SavedSearchPatch struct {
	Name          *string
	Query         *string
	Scope         *Scope
	Filters       *Filters
	Notifications *bool
	Active        *bool
}

// Empty reports whether the patch changes nothing.
func (p SavedSearchPatch) Empty() bool {
	return p.Name == nil && p.Query == nil && p.Scope == nil &&
		p.Filters == nil && p.Notifications == nil && p.Active == nil
}
