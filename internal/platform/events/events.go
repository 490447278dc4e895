// Package events publishes chart lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// ChartEvent is emitted after a chart transition has been committed.
type ChartEvent struct {
	Type       string    `json:"type"`
	TenantID   uuid.UUID `json:"tenant_id"`
	ChartID    uuid.UUID `json:"chart_id"`
	Action     string    `json:"action"`
	From       string    `json:"from_status"`
	To         string    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	ActorID    uuid.UUID `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishChartEvent(ctx context.Context, evt ChartEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher writes to topic, keyed by chart id so events for one
// chart stay ordered on a single partition.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) PublishChartEvent(ctx context.Context, evt ChartEvent) error {
	if evt.Type == "" {
		evt.Type = "chart." + evt.Action
	}
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode chart event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.ChartID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
			{Key: "tenant_id", Value: []byte(evt.TenantID.String())},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write chart event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Noop is used when no brokers are configured.
type Noop struct{}

func (Noop) PublishChartEvent(context.Context, ChartEvent) error { return nil }
func (Noop) Close() error { return nil }
