// Package client drives searches from an interactive front end.
package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

// DefaultDelay is the debounce interval applied to input changes.
const DefaultDelay = 500 * time.Millisecond

// ErrLoadMoreUnavailable is returned when LoadMore is called before a search
// settled or when the last response reported no more results.
var ErrLoadMoreUnavailable = errors.New("load more unavailable")

// State is the controller's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateSearching
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateSearching:
		return "searching"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Params is the search the controller issues.
type Params struct {
	Query     string
	Scope     domain.Scope
	SortBy    domain.SortBy
	DateRange domain.DateRange
	Verified  bool
	Limit     int
	Offset    int
}

// Transport executes one search call.
type Transport interface {
	Search(ctx context.Context, p Params) (*domain.SearchResponse, error)
}

// Snapshot is a copy of the controller's observable state.
type Snapshot struct {
	State      State
	Params     Params
	Results    domain.Results
	Pagination domain.Pagination
	Err        error
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithDelay sets the debounce interval.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) { c.delay = d }
}

// WithListener registers a callback invoked after every state change.
func WithListener(fn func(Snapshot)) Option {
	return func(c *Controller) { c.listener = fn }
}

// Controller is a debounced search state machine.
// At most one debounce timer is live at a time.
type Controller struct {
	transport Transport
	sched     Scheduler
	delay     time.Duration
	listener  func(Snapshot)

	mu         sync.Mutex
	auto       bool
	params     Params
	last       Params
	state      State
	results    domain.Results
	pagination domain.Pagination
	err        error
	timer      Timer
	gen        uint64
}

// NewController creates a controller with auto-search enabled.
func NewController(transport Transport, opts ...Option) *Controller {
	c := &Controller{
		transport: transport,
		sched:     realScheduler{},
		delay:     DefaultDelay,
		auto:      true,
		params: Params{
			Scope:     domain.ScopeAll,
			SortBy:    domain.SortRelevance,
			DateRange: domain.DateRangeAll,
			Limit:     domain.DefaultLimit,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:      c.state,
		Params:     c.params,
		Results:    c.results,
		Pagination: c.pagination,
		Err:        c.err,
	}
}

// SetAutoSearch toggles debounced searching on input changes.
// Turning it off cancels a pending timer.
func (c *Controller) SetAutoSearch(on bool) {
	c.mu.Lock()
	c.auto = on
	if !on && c.state == StateDebouncing {
		c.stopTimerLocked()
		c.state = StateIdle
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// SetQuery updates the query. An empty query clears results and returns to Idle.
func (c *Controller) SetQuery(q string) {
	c.change(func(p *Params) { p.Query = q })
}

// SetScope updates the scope.
func (c *Controller) SetScope(s domain.Scope) {
	c.change(func(p *Params) { p.Scope = s })
}

// SetFilters updates sort, date range and the verified flag.
func (c *Controller) SetFilters(f domain.Filters) {
	c.change(func(p *Params) {
		p.SortBy = f.SortBy
		p.DateRange = f.DateRange
		p.Verified = f.Verified
	})
}

// SetLimit updates the page size used by new searches.
func (c *Controller) SetLimit(limit int) {
	c.change(func(p *Params) { p.Limit = limit })
}

func (c *Controller) change(apply func(*Params)) {
	c.mu.Lock()
	apply(&c.params)
	c.params.Offset = 0

	if trimmed(c.params.Query) == "" {
		c.stopTimerLocked()
		c.gen++
		c.state = StateIdle
		c.results = domain.Results{}
		c.pagination = domain.Pagination{}
		c.err = nil
	} else if c.auto {
		c.stopTimerLocked()
		c.gen++
		gen := c.gen
		c.state = StateDebouncing
		c.timer = c.sched.AfterFunc(c.delay, func() { c.fire(gen) })
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	c.Search(context.Background())
}

// Search issues a search for the current parameters immediately, cancelling
// any pending debounce. The call itself is never cancelled by later input.
func (c *Controller) Search(ctx context.Context) {
	c.mu.Lock()
	if trimmed(c.params.Query) == "" {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	p := c.params
	p.Offset = 0
	c.last = p
	c.state = StateSearching
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	resp, err := c.transport.Search(ctx, p)

	c.mu.Lock()
	if trimmed(c.params.Query) == "" {
		// Cleared while in flight.
		c.mu.Unlock()
		return
	}
	if err != nil {
		l := log.Ctx(ctx)
		l.Debug().Err(err).Str(log.FieldQuery, p.Query).Msg("search call failed")
		c.settleLocked(StateError)
		c.err = err
	} else {
		c.settleLocked(StateSuccess)
		c.err = nil
		c.results = resp.Results
		c.pagination = resp.Pagination
	}
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// LoadMore fetches the next page and appends it to the held results.
// For ALL the aggregate is re-issued at a larger limit and only unseen
// items are appended per entity type. Once that limit reaches
// domain.MaxLimit, or a re-issue adds nothing, ALL is exhausted.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	settled := c.state == StateSuccess || c.state == StateError
	capped := c.last.Scope == domain.ScopeAll && c.pagination.Limit >= domain.MaxLimit
	if !settled || !c.pagination.HasMore || capped {
		c.mu.Unlock()
		return ErrLoadMoreUnavailable
	}

	p := c.last
	if p.Scope == domain.ScopeAll {
		p.Offset = 0
		p.Limit = c.pagination.Limit + c.last.Limit
		if p.Limit > domain.MaxLimit {
			p.Limit = domain.MaxLimit
		}
	} else {
		p.Offset = c.pagination.Offset + c.pagination.Limit
		p.Limit = c.pagination.Limit
	}
	c.state = StateSearching
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	resp, err := c.transport.Search(ctx, p)

	c.mu.Lock()
	if trimmed(c.params.Query) == "" {
		c.mu.Unlock()
		return err
	}
	if err != nil {
		c.settleLocked(StateError)
		c.err = err
		snap = c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return err
	}

	c.pagination = resp.Pagination
	if p.Scope == domain.ScopeAll {
		before := c.results.Bundle.Len()
		c.results.Bundle = mergeBundle(c.results.Bundle, resp.Results.Bundle)
		if c.results.Bundle.Len() == before || p.Limit >= domain.MaxLimit {
			c.pagination.HasMore = false
		}
	} else {
		c.results.Items = append(c.results.Items, resp.Results.Items...)
	}
	c.settleLocked(StateSuccess)
	c.err = nil
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// mergeBundle appends the items of next that held does not contain yet.
func mergeBundle(held, next *domain.ResultBundle) *domain.ResultBundle {
	if held == nil {
		held = &domain.ResultBundle{}
	}
	if next == nil {
		return held
	}
	out := &domain.ResultBundle{
		Users:         append([]domain.UserSummary(nil), held.Users...),
		Posts:         append([]domain.PostSummary(nil), held.Posts...),
		Conversations: append([]domain.ConversationSummary(nil), held.Conversations...),
	}

	seen := make(map[string]bool)
	for _, u := range out.Users {
		seen[u.ID] = true
	}
	for _, u := range next.Users {
		if !seen[u.ID] {
			out.Users = append(out.Users, u)
		}
	}

	seen = make(map[string]bool)
	for _, p := range out.Posts {
		seen[p.ID] = true
	}
	for _, p := range next.Posts {
		if !seen[p.ID] {
			out.Posts = append(out.Posts, p)
		}
	}

	seen = make(map[string]bool)
	for _, cv := range out.Conversations {
		seen[cv.ID] = true
	}
	for _, cv := range next.Conversations {
		if !seen[cv.ID] {
			out.Conversations = append(out.Conversations, cv)
		}
	}
	return out
}

// settleLocked records the outcome of a call unless a newer debounce is pending.
func (c *Controller) settleLocked(s State) {
	if c.timer != nil {
		c.state = StateDebouncing
		return
	}
	c.state = s
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) notify(s Snapshot) {
	if c.listener != nil {
		c.listener(s)
	}
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
