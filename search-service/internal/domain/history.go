package domain

import "time"

// History limits.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 50
)

// HistoryEntry is one recorded search of an owner.
type HistoryEntry struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Query        string    `json:"query"`
	Scope        Scope     `json:"type"`
	Filters      Filters   `json:"filters"`
	ResultsCount int       `json:"results_count"`
	Favorite     bool      `json:"favorite"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HistoryQuery selects a page of an owner's history.
// A nil Scope lists every scope.
type HistoryQuery struct {
	OwnerID string
	Scope   *Scope
	Limit   int
	Offset  int
}

// HistoryPage is a page of history entries.
type HistoryPage struct {
	Items      []HistoryEntry `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

// UpdateHistoryRequest sets or toggles the favorite flag.
// An absent Favorite toggles the current value.
type UpdateHistoryRequest struct {
	ID       string `json:"id" binding:"required"`
	Favorite *bool  `json:"favorite"`
}

// DeleteHistoryResult reports how many entries a delete removed.
type DeleteHistoryResult struct {
	DeletedCount int64 `json:"deleted_count"`
}
