package model

import "time"

// Lease is an exclusive, expiring claim on a key. An expired lease can be
// taken over by any owner.
type Lease struct {
	Key        string    `json:"key" bson:"_id"`
	Owner      string    `json:"owner" bson:"owner"`
	AcquiredAt time.Time `json:"acquired_at" bson:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at" bson:"expires_at"`
}

func (l *Lease) ExpiredAt(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
