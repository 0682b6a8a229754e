package model

import "time"

type NotificationOutcome string

const (
	OutcomeConfirmed        NotificationOutcome = "confirmed"
	OutcomeAutoCancelled    NotificationOutcome = "auto_cancelled"
	OutcomeCancelled        NotificationOutcome = "cancelled"
	OutcomeConflictDetected NotificationOutcome = "conflict_detected"
)

type OutboxState string

const (
	OutboxPending    OutboxState = "pending"
	OutboxDispatched OutboxState = "dispatched"
	OutboxFailed     OutboxState = "failed"
)

type NotificationEvent struct {
	ID           string              `json:"id" bson:"_id"`
	BookingID    string              `json:"booking_id" bson:"booking_id"`
	SpaceID      string              `json:"space_id" bson:"space_id"`
	Recipient    string              `json:"recipient,omitempty" bson:"recipient,omitempty"`
	Outcome      NotificationOutcome `json:"outcome" bson:"outcome"`
	Reason       string              `json:"reason,omitempty" bson:"reason,omitempty"`
	State        OutboxState         `json:"state" bson:"state"`
	Attempts     int                 `json:"attempts" bson:"attempts"`
	LastError    string              `json:"last_error,omitempty" bson:"last_error,omitempty"`
	CreatedAt    time.Time           `json:"created_at" bson:"created_at"`
	DispatchedAt *time.Time          `json:"dispatched_at,omitempty" bson:"dispatched_at,omitempty"`
}
