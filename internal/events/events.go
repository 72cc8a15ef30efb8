package events

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	OrderCreated = "order.created"
	OrderUpdated = "order.updated"
	OrderDeleted = "order.deleted"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event describes a change to an order.
type Event struct {
	Type       string    `json:"type"`
	OrderID    uuid.UUID `json:"orderId"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func New(eventType string, orderID uuid.UUID, payload any) Event {
	return Event{
		Type:       eventType,
		OrderID:    orderID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultPublishTimeout bounds one Publish call, retries included.
const DefaultPublishTimeout = 2 * time.Second

type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		timeout: DefaultPublishTimeout,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			MaxAttempts:            3,
			WriteTimeout:           DefaultPublishTimeout,
		},
	}
}

// Publish keys messages by order id so every event of one order lands on the
// same partition. It gives up after the publish timeout.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: failed to encode %s event: %w", e.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(e.OrderID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: failed to publish %s event: %w", e.Type, err)
	}

	log.Debug().Str("event", e.Type).Stringer("order_id", e.OrderID).Msg("events: event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
