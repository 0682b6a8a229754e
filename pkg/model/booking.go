package model

import (
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusConflict  BookingStatus = "conflict"
	StatusCheckedIn BookingStatus = "checked_in"
	StatusCheckout  BookingStatus = "checkout"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
)

var allStatuses = []BookingStatus{
	StatusPending,
	StatusConfirmed,
	StatusConflict,
	StatusCheckedIn,
	StatusCheckout,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

// transitions lists every allowed status change. Anything absent is rejected.
var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusConflict, StatusCancelled},
	StatusConfirmed: {StatusConflict, StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusConflict:  {StatusConfirmed, StatusCancelled},
	StatusCheckedIn: {StatusCheckout},
	StatusCheckout:  {StatusCompleted},
}

func AllStatuses() []BookingStatus {
	out := make([]BookingStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func ParseBookingStatus(s string) (BookingStatus, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s BookingStatus) String() string {
	return string(s)
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// IsActive reports whether the booking still occupies its interval.
func (s BookingStatus) IsActive() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// IsLive reports whether the status is covered by the no-overlap guarantee.
func (s BookingStatus) IsLive() bool {
	switch s {
	case StatusConfirmed, StatusCheckedIn, StatusCheckout, StatusCompleted:
		return true
	}
	return false
}

// IsDisplaceable reports whether conflict handling may move the booking to
// Conflict or Cancelled. Bookings already in progress or finished are fixed.
func (s BookingStatus) IsDisplaceable() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusConflict
}

type Party struct {
	UserID string `json:"user_id,omitempty" bson:"user_id,omitempty" validate:"omitempty,max=100"`
	Name   string `json:"name,omitempty" bson:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Email  string `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	Phone  string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
}

func (p Party) IsGuest() bool {
	return p.UserID == ""
}

type Booking struct {
	ID                 string        `json:"id" bson:"_id" validate:"omitempty,mongodb"`
	SpaceID            string        `json:"space_id" bson:"space_id" validate:"required,mongodb"`
	Party              Party         `json:"party" bson:"party"`
	StartTime          time.Time     `json:"start_time" bson:"start_time" validate:"required"`
	EndTime            time.Time     `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status             BookingStatus `json:"status" bson:"status" validate:"required,booking_status"`
	IsExternal         bool          `json:"is_external" bson:"is_external"`
	ExternalSourceURL  string        `json:"external_source_url,omitempty" bson:"external_source_url,omitempty" validate:"omitempty,url"`
	ExternalUID        string        `json:"external_uid,omitempty" bson:"external_uid,omitempty" validate:"omitempty,max=1024"`
	NotificationEmail  string        `json:"notification_email,omitempty" bson:"notification_email,omitempty" validate:"omitempty,email"`
	CancellationReason string        `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty" validate:"omitempty,max=500"`
	Version            int64         `json:"version" bson:"version"`
	CreatedAt          time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" bson:"updated_at"`
}

// Recipient is the contact address notifications for this booking go to.
func (b *Booking) Recipient() string {
	if b.NotificationEmail != "" {
		return b.NotificationEmail
	}
	return b.Party.Email
}

// BookingRequest is the body of a create booking call.
type BookingRequest struct {
	StartTime         time.Time `json:"start_time" validate:"required"`
	EndTime           time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Party             Party     `json:"party"`
	NotificationEmail string    `json:"notification_email,omitempty" validate:"omitempty,email"`
}

type ResolveAction string

const (
	ResolveConfirm ResolveAction = "confirm"
	ResolveCancel  ResolveAction = "cancel"
)

type ResolveRequest struct {
	Action           ResolveAction `json:"action" validate:"required,oneof=confirm cancel"`
	Reason           string        `json:"reason,omitempty" validate:"omitempty,max=500"`
	KnownConflictIDs []string      `json:"known_conflict_ids,omitempty" validate:"omitempty,dive,required"`
}

type StatusUpdateRequest struct {
	Status BookingStatus `json:"status" validate:"required,oneof=checked_in checkout completed no_show cancelled"`
	Reason string        `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// ConflictCluster is a transient group of bookings linked by pairwise overlaps.
type ConflictCluster struct {
	SpaceID  string     `json:"space_id"`
	Bookings []*Booking `json:"bookings"`
}

func (c ConflictCluster) IDs() []string {
	ids := make([]string, 0, len(c.Bookings))
	for _, b := range c.Bookings {
		ids = append(ids, b.ID)
	}
	return ids
}

type BookingFilter struct {
	Statuses []BookingStatus
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int64
}
