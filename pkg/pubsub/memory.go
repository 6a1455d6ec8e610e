package pubsub

import (
	"context"
	"errors"
	"sync"

	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
)

// ErrClosed is returned when using a closed in-process bus.
var ErrClosed = errors.New("pubsub closed")

const defaultMemoryBuffer = 256

type memorySubscription struct {
	ch     chan *Event
	cancel context.CancelFunc
	once   sync.Once
}

func (s *memorySubscription) close() {
	s.once.Do(func() {
		s.cancel()
		close(s.ch)
	})
}

// MemoryPubSub is an in-process PubSub for single-instance deployments and tests.
// Delivery is best-effort: a full subscriber buffer drops the event, like the
// redis and kafka drivers do.
type MemoryPubSub struct {
	buffer        int
	subscriptions map[string]*memorySubscription
	closed        bool
	mu            sync.RWMutex
}

// NewMemoryPubSub creates an in-process bus with the given per-subscriber buffer.
func NewMemoryPubSub(buffer int) *MemoryPubSub {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryPubSub{
		buffer:        buffer,
		subscriptions: make(map[string]*memorySubscription),
	}
}

// Publish delivers the event to the channel's subscriber, if any.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if err := event.validate(); err != nil {
		return err
	}

	sub, ok := m.subscriptions[channel]
	if !ok {
		return nil
	}
	select {
	case sub.ch <- event:
	case <-ctx.Done():
		return ctx.Err()
	default:
		l := pkglog.L()
		l.Warn().
			Str(pkglog.FieldChannel, channel).
			Str(pkglog.FieldEventType, event.Type).
			Msg("memory pubsub: subscriber full, event dropped")
	}
	return nil
}

// Subscribe replaces any earlier subscription to channel.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	if existing, ok := m.subscriptions[channel]; ok {
		existing.close()
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySubscription{
		ch:     make(chan *Event, m.buffer),
		cancel: cancel,
	}
	m.subscriptions[channel] = sub

	go func() {
		<-subCtx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if current, ok := m.subscriptions[channel]; ok && current == sub {
			delete(m.subscriptions, channel)
		}
		sub.close()
	}()

	return sub.ch, nil
}

// Unsubscribe removes the channel subscription.
func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subscriptions[channel]; ok {
		delete(m.subscriptions, channel)
		sub.close()
	}
	return nil
}

// Close closes every subscription.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, sub := range m.subscriptions {
		sub.close()
		delete(m.subscriptions, key)
	}
	m.closed = true
	return nil
}
