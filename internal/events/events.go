// Package events publishes content change notifications.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ticsummit/ticsite/internal/config"
)

// Type is the kind of content change.
type Type string

const (
	Created   Type = "created"
	Updated   Type = "updated"
	Deleted   Type = "deleted"
	Published Type = "published"
)

// Event announces a change to one content item.
type Event struct {
	Type     Type      `json:"type"`
	Resource string    `json:"resource"`
	ID       uuid.UUID `json:"id"`
	Slug     string    `json:"slug,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher sends events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// New returns a Kafka publisher when brokers are configured and a log
// publisher otherwise.
func New(cfg config.EventsConfig, log *zap.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		return NewLogPublisher(log)
	}
	return NewKafkaPublisher(cfg.Brokers, cfg.Topic, log)
}

// Notify publishes e and logs failures. Content writes never fail because
// of a publish error.
func Notify(ctx context.Context, p Publisher, log *zap.Logger, e Event) {
	if p == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warn("failed to publish content event",
			zap.String("type", string(e.Type)),
			zap.String("resource", e.Resource),
			zap.String("id", e.ID.String()),
			zap.Error(err))
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by the item ID.
type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.ID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
			{Key: "resource", Value: []byte(e.Resource)},
		},
		Time: e.At,
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// LogPublisher writes events to the log.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Info("content event",
		zap.String("type", string(e.Type)),
		zap.String("resource", e.Resource),
		zap.String("id", e.ID.String()),
		zap.String("slug", e.Slug),
		zap.Time("at", e.At))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
