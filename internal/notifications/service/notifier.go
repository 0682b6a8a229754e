package service

import (
	"context"
	"time"

	"cowork/pkg/kafka"
	"cowork/pkg/logger"
	"cowork/pkg/model"
)

const (
	eventTypePrefix = "booking."
	schemaVersion   = "1"
	sourceName      = "cowork-bookings"
)

// Notifier delivers one notification event. Delivery is best-effort; the
// dispatcher retries failures.
type Notifier interface {
	Notify(ctx context.Context, event *model.NotificationEvent) error
}

// Publisher is the part of the kafka producer the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaNotifier publishes events to the notifications topic keyed by space,
// so a space's events stay ordered within a partition.
type KafkaNotifier struct {
	producer Publisher
}

func NewKafkaNotifier(producer Publisher) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

type payload struct {
	EventID   string `json:"event_id"`
	BookingID string `json:"booking_id"`
	SpaceID   string `json:"space_id"`
	Recipient string `json:"recipient,omitempty"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (n *KafkaNotifier) Notify(ctx context.Context, event *model.NotificationEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.SpaceID).
		WithValue(payload{
			EventID:   event.ID,
			BookingID: event.BookingID,
			SpaceID:   event.SpaceID,
			Recipient: event.Recipient,
			Outcome:   string(event.Outcome),
			Reason:    event.Reason,
			CreatedAt: event.CreatedAt.UTC().Format(time.RFC3339),
		}).
		WithEventID(event.ID).
		WithEventType(eventTypePrefix + string(event.Outcome)).
		WithSchemaVersion(schemaVersion).
		WithSource(sourceName).
		Build()
	if err != nil {
		return err
	}
	return n.producer.Publish(ctx, msg)
}

// LogNotifier writes events to the service log. Used when no broker is
// configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, event *model.NotificationEvent) error {
	n.log.Info("Booking notification",
		"event_id", event.ID,
		"booking_id", event.BookingID,
		"space_id", event.SpaceID,
		"recipient", event.Recipient,
		"outcome", event.Outcome,
		"reason", event.Reason,
	)
	return nil
}
