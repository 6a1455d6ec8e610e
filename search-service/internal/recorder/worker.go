package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/pubsub"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
	"github.com/weiawesome/wes-io-live/search-service/internal/repository"
)

const defaultWriteTimeout = 5 * time.Second

// Worker consumes bookkeeping events and writes them to the record store.
// Write failures are logged and never retried.
type Worker struct {
	bus          pubsub.Subscriber
	history      repository.HistoryRepository
	saved        repository.SavedSearchRepository
	writeTimeout time.Duration
	newID        func() string

	wg     sync.WaitGroup
	doneCh chan struct{}
}

// NewWorker creates a Worker. A non-positive writeTimeout uses the default.
func NewWorker(bus pubsub.Subscriber, history repository.HistoryRepository, saved repository.SavedSearchRepository, writeTimeout time.Duration) *Worker {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Worker{
		bus:          bus,
		history:      history,
		saved:        saved,
		writeTimeout: writeTimeout,
		newID:        func() string { return uuid.New().String() },
		doneCh:       make(chan struct{}),
	}
}

// Start subscribes to the bookkeeping channels and consumes until ctx ends.
func (w *Worker) Start(ctx context.Context) error {
	channels := []string{pubsub.ChannelSearchCompleted, pubsub.ChannelSavedSearchUsed}

	streams := make([]<-chan *pubsub.Event, 0, len(channels))
	for _, name := range channels {
		ch, err := w.bus.Subscribe(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", name, err)
		}
		streams = append(streams, ch)
	}

	l := pkglog.L()
	l.Info().Strs("channels", channels).Msg("recorder worker started")

	for _, ch := range streams {
		w.wg.Add(1)
		go w.consume(ctx, ch)
	}
	go func() {
		w.wg.Wait()
		close(w.doneCh)
	}()
	return nil
}

// Done returns a channel that is closed when every consume loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Worker) consume(ctx context.Context, ch <-chan *pubsub.Event) {
	defer w.wg.Done()
	l := pkglog.L()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := w.Handle(context.WithoutCancel(ctx), ev); err != nil {
				l.Warn().Err(err).
					Str(pkglog.FieldEventType, ev.Type).
					Str(pkglog.FieldEventID, ev.ID).
					Str(pkglog.FieldUserID, ev.Key).
					Msg("recorder: persistence warning")
			}
		}
	}
}

// Handle applies one event.
func (w *Worker) Handle(ctx context.Context, ev *pubsub.Event) error {
	ctx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	defer cancel()

	switch ev.Type {
	case pubsub.EventSearchCompleted:
		var p pubsub.SearchCompletedPayload
		if err := ev.UnmarshalPayload(&p); err != nil {
			return fmt.Errorf("invalid search_completed payload: %w", err)
		}
		entry := &domain.HistoryEntry{
			ID:      w.newID(),
			OwnerID: p.OwnerID,
			Query:   p.Query,
			Scope:   domain.Scope(p.Scope),
			Filters: domain.Filters{
				SortBy:    domain.SortBy(p.Filters.SortBy),
				DateRange: domain.DateRange(p.Filters.DateRange),
				Verified:  p.Filters.Verified,
			},
			ResultsCount: p.ResultsCount,
			CreatedAt:    p.ExecutedAt,
			UpdatedAt:    p.ExecutedAt,
		}
		return w.history.Create(ctx, entry)

	case pubsub.EventSavedSearchUsed:
		var p pubsub.SavedSearchUsedPayload
		if err := ev.UnmarshalPayload(&p); err != nil {
			return fmt.Errorf("invalid saved_search_used payload: %w", err)
		}
		err := w.saved.IncrementUsage(ctx, p.OwnerID, p.SavedSearchID, p.UsedAt)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("saved search %s gone before usage was recorded: %w", p.SavedSearchID, err)
		}
		return err

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}
