package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
)

const redisSubscriberBuffer = 100

type redisSubscription struct {
	sub    *redis.PubSub
	cancel context.CancelFunc
}

// RedisPubSub carries search events over Redis PUBLISH/SUBSCRIBE.
// Delivery is at-most-once: events published while no worker listens are lost.
type RedisPubSub struct {
	client        redis.UniversalClient
	subscriptions map[string]*redisSubscription
	mu            sync.Mutex
}

// NewRedisPubSub dials Redis and verifies the connection.
func NewRedisPubSub(cfg RedisConfig) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pubsub: ping redis %s: %w", cfg.Address, err)
	}

	return NewRedisPubSubWithClient(client), nil
}

// NewRedisPubSubWithClient wraps an existing client.
func NewRedisPubSubWithClient(client redis.UniversalClient) *RedisPubSub {
	return &RedisPubSub{
		client:        client,
		subscriptions: make(map[string]*redisSubscription),
	}
}

// Publish sends the event on channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	if err := event.validate(); err != nil {
		return err
	}
	if _, err := ParseChannel(channel); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pubsub: encode event: %w", err)
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe replaces any earlier subscription to channel.
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	if _, err := ParseChannel(channel); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.subscriptions[channel]; ok {
		existing.cancel()
		existing.sub.Close()
		delete(r.subscriptions, channel)
	}

	sub := r.client.Subscribe(ctx, channel)
	// Receive blocks until redis confirms the subscription, so events
	// published right after this call are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("pubsub: subscribe %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	r.subscriptions[channel] = &redisSubscription{sub: sub, cancel: cancel}

	eventCh := make(chan *Event, redisSubscriberBuffer)
	go r.forward(subCtx, sub, eventCh)
	return eventCh, nil
}

func (r *RedisPubSub) Unsubscribe(ctx context.Context, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subscriptions[channel]
	if !ok {
		return nil
	}
	delete(r.subscriptions, channel)
	s.cancel()
	return s.sub.Close()
}

func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, s := range r.subscriptions {
		s.cancel()
		s.sub.Close()
		delete(r.subscriptions, key)
	}
	return r.client.Close()
}

// forward decodes messages into eventCh until ctx ends or the
// subscription closes. A full eventCh drops the message.
func (r *RedisPubSub) forward(ctx context.Context, sub *redis.PubSub, eventCh chan<- *Event) {
	defer close(eventCh)
	l := pkglog.L()

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				l.Warn().Err(err).Str(pkglog.FieldChannel, msg.Channel).Msg("redis pubsub: undecodable event skipped")
				continue
			}

			select {
			case eventCh <- &event:
			case <-ctx.Done():
				return
			default:
				l.Warn().
					Str(pkglog.FieldChannel, msg.Channel).
					Str(pkglog.FieldEventType, event.Type).
					Msg("redis pubsub: subscriber full, event dropped")
			}
		}
	}
}
