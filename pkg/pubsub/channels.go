package pubsub

import (
	"fmt"
	"strings"
	"time"
)

// Bookkeeping channels. The owner travels as Event.Key and in the payload,
// never in the channel name.
// The kafka driver maps "{prefix}:{event}" to topic "{prefix}-{event}"
// and partitions by Event.Key.
const (
	ChannelSearchCompleted = "search:completed"
	ChannelSavedSearchUsed = "search:saved_used"
)

// Event types.
const (
	EventSearchCompleted = "search_completed"
	EventSavedSearchUsed = "saved_search_used"
)

// Route is a parsed channel name.
type Route struct {
	Prefix string
	Event  string
}

// ParseChannel splits a {prefix}:{event} channel.
func ParseChannel(channel string) (Route, error) {
	prefix, event, ok := strings.Cut(channel, ":")
	if !ok || prefix == "" || event == "" || strings.ContainsAny(event, ":*?[") || strings.ContainsAny(prefix, "*?[") {
		return Route{}, fmt.Errorf("pubsub: invalid channel %q", channel)
	}
	return Route{Prefix: prefix, Event: event}, nil
}

// Topic is the kafka topic carrying the route's events.
//
//	search:saved_used -> search-saved-used
func (r Route) Topic() string {
	return r.Prefix + "-" + strings.ReplaceAll(r.Event, "_", "-")
}

// SearchTopics lists the kafka topics backing the search channels.
func SearchTopics() []string {
	return []string{"search-completed", "search-saved-used"}
}

// SearchFilters is the filter snapshot carried by search events.
type SearchFilters struct {
	SortBy    string `json:"sort_by"`
	DateRange string `json:"date_range"`
	Verified  bool   `json:"verified"`
}

// SearchCompletedPayload is published after a search succeeded.
type SearchCompletedPayload struct {
	OwnerID      string        `json:"owner_id"`
	Query        string        `json:"query"`
	Scope        string        `json:"scope"`
	Filters      SearchFilters `json:"filters"`
	ResultsCount int           `json:"results_count"`
	ExecutedAt   time.Time     `json:"executed_at"`
}

// SavedSearchUsedPayload is published when a saved search is loaded.
type SavedSearchUsedPayload struct {
	OwnerID       string    `json:"owner_id"`
	SavedSearchID string    `json:"saved_search_id"`
	UsedAt        time.Time `json:"used_at"`
}
