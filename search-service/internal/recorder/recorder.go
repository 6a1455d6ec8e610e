// Package recorder persists search bookkeeping off the request path.
// The Recorder turns completed searches and saved-search loads into bus events;
// the Worker consumes them and writes history rows and usage counters.
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/pubsub"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
)

const (
	defaultQueueSize      = 1024
	defaultPublishTimeout = 2 * time.Second
)

// Config tunes the recorder queue.
type Config struct {
	QueueSize      int
	PublishTimeout time.Duration
}

type queued struct {
	channel string
	event   *pubsub.Event
	logger  zerolog.Logger
}

// Recorder enqueues bookkeeping events without ever blocking the caller.
// A full queue drops the event with a warning.
type Recorder struct {
	bus            pubsub.Publisher
	publishTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	doneCh chan struct{}
}

// New creates a Recorder publishing to bus. Call Start to run the dispatcher.
func New(bus pubsub.Publisher, cfg Config) *Recorder {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Recorder{
		bus:            bus,
		publishTimeout: timeout,
		queue:          make(chan queued, size),
		doneCh:         make(chan struct{}),
	}
}

// Start launches the dispatcher goroutine.
func (r *Recorder) Start() {
	go r.run()
}

// Close stops accepting events and returns once the queue has drained.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.doneCh
}

// SearchCompleted records a successful search. resultsCount is the number of items returned.
func (r *Recorder) SearchCompleted(ctx context.Context, req *domain.SearchRequest, resultsCount int, at time.Time) {
	payload := pubsub.SearchCompletedPayload{
		OwnerID: req.ActorID,
		Query:   req.Query,
		Scope:   string(req.Scope),
		Filters: pubsub.SearchFilters{
			SortBy:    string(req.SortBy),
			DateRange: string(req.DateRange),
			Verified:  req.Verified,
		},
		ResultsCount: resultsCount,
		ExecutedAt:   at.UTC(),
	}
	r.enqueue(ctx, pubsub.ChannelSearchCompleted, pubsub.EventSearchCompleted, req.ActorID, payload)
}

// SavedSearchUsed records that ownerID loaded a saved search.
func (r *Recorder) SavedSearchUsed(ctx context.Context, ownerID, savedSearchID string, at time.Time) {
	payload := pubsub.SavedSearchUsedPayload{
		OwnerID:       ownerID,
		SavedSearchID: savedSearchID,
		UsedAt:        at.UTC(),
	}
	r.enqueue(ctx, pubsub.ChannelSavedSearchUsed, pubsub.EventSavedSearchUsed, ownerID, payload)
}

func (r *Recorder) enqueue(ctx context.Context, channel, eventType, key string, payload interface{}) {
	l := pkglog.Ctx(ctx)

	event, err := pubsub.NewEvent(eventType, key, payload)
	if err != nil {
		l.Warn().Err(err).Str(pkglog.FieldEventType, eventType).Msg("recorder: failed to build event")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		l.Warn().Str(pkglog.FieldEventType, eventType).Msg("recorder: closed, event dropped")
		return
	}

	select {
	case r.queue <- queued{channel: channel, event: event, logger: l}:
	default:
		l.Warn().
			Str(pkglog.FieldEventType, eventType).
			Int("queue_size", cap(r.queue)).
			Msg("recorder: queue full, event dropped")
	}
}

func (r *Recorder) run() {
	defer close(r.doneCh)

	for q := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.publishTimeout)
		if err := r.bus.Publish(ctx, q.channel, q.event); err != nil {
			q.logger.Warn().Err(err).
				Str(pkglog.FieldChannel, q.channel).
				Str(pkglog.FieldEventType, q.event.Type).
				Msg("recorder: publish failed")
		}
		cancel()
	}
}
