package notifications

import (
	"context"
	"fmt"
	"roombook/pkg/kafka"
	"roombook/pkg/logger"
)

const (
	eventSource   = "roombook-reservations"
	schemaVersion = "1"

	// HeaderReservationStatus lets consumers route on the status without
	// decoding the payload.
	HeaderReservationStatus = "reservation-status"
)

type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// LogSink records notifications in the service log. It is used when no
// message broker is configured.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Send(_ context.Context, n Notification) error {
	s.log.Info("Notification",
		"event_id", n.EventID,
		"kind", n.Kind,
		"recipient_id", n.RecipientID,
		"reservation_id", n.ReservationID,
		"status", n.Status,
	)
	return nil
}

type publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaSink publishes notifications keyed by recipient, so one recipient's
// events stay ordered on a single partition.
type KafkaSink struct {
	producer   publisher
	maxRetries int
}

func NewKafkaSink(producer publisher, maxRetries int) *KafkaSink {
	return &KafkaSink{producer: producer, maxRetries: maxRetries}
}

func (s *KafkaSink) Send(ctx context.Context, n Notification) error {
	msg := kafka.NewMessage().
		WithKey(n.RecipientID).
		WithValue(n).
		WithEventID(n.EventID).
		WithEventType(string(n.Kind)).
		WithCorrelationID(n.ReservationID).
		WithSchemaVersion(schemaVersion).
		WithSource(eventSource).
		WithTimestamp(n.OccurredAt).
		WithHeader(HeaderReservationStatus, string(n.Status)).
		Build()

	var err error
	for attempt := 0; ; attempt++ {
		err = s.producer.Publish(ctx, msg)
		if !kafka.ShouldRetry(err, attempt, s.maxRetries) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s for reservation %s: %w", n.Kind, n.ReservationID, err)
	}
	return nil
}
