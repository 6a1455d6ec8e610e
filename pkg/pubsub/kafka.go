package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
)

const (
	defaultKafkaGroup      = "search-recorder"
	defaultKafkaPartitions = 4
	kafkaPollTimeout       = 500 * time.Millisecond
	kafkaFlushTimeoutMs    = 5000
	kafkaSubscriberBuffer  = 100
)

// kafkaSubscription owns its consumer: only the polling goroutine touches
// it, and closes it on exit. done is closed once that has happened.
type kafkaSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *kafkaSubscription) stop() {
	s.cancel()
	<-s.done
}

// KafkaPubSub maps each channel onto one topic, keyed by owner id so an
// owner's events stay ordered within a partition. Subscribers share the
// configured group and split partitions between them.
type KafkaPubSub struct {
	producer      *kafka.Producer
	subscriptions map[string]*kafkaSubscription
	config        KafkaConfig
	mu            sync.Mutex
	reportsDone   chan struct{}
}

// NewKafkaPubSub creates the producer and makes sure the search topics exist.
func NewKafkaPubSub(cfg KafkaConfig) (*KafkaPubSub, error) {
	if cfg.Brokers == "" {
		return nil, errors.New("pubsub: kafka brokers not configured")
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = SearchTopics()
	}
	if cfg.GroupID == "" {
		cfg.GroupID = defaultKafkaGroup
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = defaultKafkaPartitions
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"enable.idempotence": true,
		"linger.ms":          5,
		"compression.type":   "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub: kafka producer: %w", err)
	}

	k := &KafkaPubSub{
		producer:      p,
		subscriptions: make(map[string]*kafkaSubscription),
		config:        cfg,
		reportsDone:   make(chan struct{}),
	}
	go k.watchDeliveries()

	if err := k.createTopics(); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Strs("topics", cfg.Topics).Msg("kafka pubsub: topic setup skipped")
	}
	return k, nil
}

// createTopics is idempotent: topics that already exist are not an error.
func (k *KafkaPubSub) createTopics() error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	specs := make([]kafka.TopicSpecification, len(k.config.Topics))
	for i, topic := range k.config.Topics {
		specs[i] = kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     k.config.Partitions,
			ReplicationFactor: 1,
		}
	}

	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return err
	}

	var failed []string
	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError, kafka.ErrTopicAlreadyExists:
		default:
			failed = append(failed, r.Topic+": "+r.Error.String())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("create topics: %s", strings.Join(failed, "; "))
	}
	return nil
}

// watchDeliveries drains producer reports; failed deliveries are only logged
// because history writes are best-effort.
func (k *KafkaPubSub) watchDeliveries() {
	defer close(k.reportsDone)
	l := pkglog.L()

	for e := range k.producer.Events() {
		msg, ok := e.(*kafka.Message)
		if !ok || msg.TopicPartition.Error == nil {
			continue
		}
		l.Warn().Err(msg.TopicPartition.Error).
			Str(pkglog.FieldEventType, headerValue(msg, "event_type")).
			Str(pkglog.FieldEventID, headerValue(msg, "event_id")).
			Msg("kafka pubsub: delivery failed")
	}
}

// Publish produces the event to the channel's topic, keyed by owner.
func (k *KafkaPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	if err := event.validate(); err != nil {
		return err
	}
	route, err := ParseChannel(channel)
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pubsub: encode event: %w", err)
	}
	topic := route.Topic()

	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(event.Key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("pubsub: produce to %s: %w", topic, err)
	}
	return nil
}

// Subscribe consumes the channel's topic from the earliest uncommitted offset.
func (k *KafkaPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	route, err := ParseChannel(channel)
	if err != nil {
		return nil, err
	}
	return k.consume(ctx, channel, route.Topic())
}

func (k *KafkaPubSub) consume(ctx context.Context, subKey, topic string) (<-chan *Event, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if existing, ok := k.subscriptions[subKey]; ok {
		delete(k.subscriptions, subKey)
		existing.stop()
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       k.config.Brokers,
		"group.id":                k.config.GroupID,
		"auto.offset.reset":       "earliest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub: kafka consumer: %w", err)
	}
	if err := c.Subscribe(topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("pubsub: subscribe %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{cancel: cancel, done: make(chan struct{})}
	k.subscriptions[subKey] = sub

	eventCh := make(chan *Event, kafkaSubscriberBuffer)
	go k.poll(subCtx, c, eventCh, sub.done)
	return eventCh, nil
}

// poll forwards decoded messages until ctx ends or kafka reports a fatal
// error. A full eventCh drops the message.
func (k *KafkaPubSub) poll(ctx context.Context, c *kafka.Consumer, eventCh chan<- *Event, done chan<- struct{}) {
	l := pkglog.L()
	defer close(done)
	defer close(eventCh)
	defer func() {
		if err := c.Close(); err != nil {
			l.Warn().Err(err).Msg("kafka pubsub: consumer close")
		}
	}()

	for ctx.Err() == nil {
		msg, err := c.ReadMessage(kafkaPollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) {
				if kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				l.Error().Err(kerr).Bool("fatal", kerr.IsFatal()).Msg("kafka pubsub: consumer error")
				if kerr.IsFatal() {
					return
				}
			}
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			l.Warn().Err(err).Str("topic", *msg.TopicPartition.Topic).Msg("kafka pubsub: undecodable event skipped")
			continue
		}

		select {
		case eventCh <- &event:
		case <-ctx.Done():
			return
		default:
			l.Warn().
				Str(pkglog.FieldEventType, event.Type).
				Str(pkglog.FieldEventID, event.ID).
				Msg("kafka pubsub: subscriber full, event dropped")
		}
	}
}

func (k *KafkaPubSub) Unsubscribe(ctx context.Context, channel string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if sub, ok := k.subscriptions[channel]; ok {
		delete(k.subscriptions, channel)
		sub.stop()
	}
	return nil
}

// Close stops every consumer, then flushes pending events before closing the producer.
func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for key, sub := range k.subscriptions {
		delete(k.subscriptions, key)
		sub.stop()
	}

	if left := k.producer.Flush(kafkaFlushTimeoutMs); left > 0 {
		l := pkglog.L()
		l.Warn().Int("pending", left).Msg("kafka pubsub: unflushed events lost on close")
	}
	k.producer.Close()
	<-k.reportsDone
	return nil
}

func headerValue(msg *kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
