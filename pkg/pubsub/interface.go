package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidEvent is returned by drivers asked to publish an event without
// a type or partition key.
var ErrInvalidEvent = errors.New("pubsub: event needs a type and a key")

// Event is one bookkeeping message on the bus. Key partitions the stream
// and is always the owning actor id for search events.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent encodes payload and stamps the event with a fresh id.
func NewEvent(eventType, key string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Key:       key,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (e *Event) validate() error {
	if e == nil || e.Type == "" || e.Key == "" {
		return ErrInvalidEvent
	}
	return nil
}

// UnmarshalPayload decodes the payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber streams events until ctx ends or the subscription is removed.
// Channels returned here are closed by the driver.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
}

type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
