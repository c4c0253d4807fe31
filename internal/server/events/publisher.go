// Package events publishes booking lifecycle events so downstream
// consumers (notification senders, audit trails) can follow mutations
// without polling. Publishing is best-effort: a broker outage never fails
// the booking operation that triggered the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"booker/pkg/logger"
	"booker/pkg/model"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TypeCreated = "booking.created"
	TypeUpdated = "booking.updated"
	TypeDeleted = "booking.deleted"

	headerEventID   = "event-id"
	headerEventType = "event-type"
	headerSource    = "source"
)

type Publisher interface {
	Publish(ctx context.Context, eventType string, booking model.Booking)
	Close() error
}

// envelope is the wire shape of a booking event.
type envelope struct {
	EventID    string        `json:"eventId"`
	EventType  string        `json:"eventType"`
	OccurredAt string        `json:"occurredAt"`
	Booking    model.Booking `json:"booking"`
}

// KafkaPublisher writes events to a single topic, partitioned by booking id
// so per-booking ordering holds.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *logger.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *logger.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		MaxAttempts:  3,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error("Kafka writer error", "detail", msg)
		}),
	}
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, booking model.Booking) {
	payload, err := json.Marshal(envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
		Booking:    booking,
	})
	if err != nil {
		p.log.Error("Cannot encode booking event", "type", eventType, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(booking.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerEventID, Value: []byte(uuid.NewString())},
			{Key: headerEventType, Value: []byte(eventType)},
			{Key: headerSource, Value: []byte("bookerd")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("Booking event not published", "type", eventType, "booking_id", booking.ID, "error", err)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops everything. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, model.Booking) {}
func (NopPublisher) Close() error                                   { return nil }
