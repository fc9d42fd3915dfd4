package model

import "time"

// BookingLock is an advisory lock serializing local state changes for one booking.
// Expired locks are reclaimable and removed by a TTL index.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func BookingLockID(bookingID string) string {
	return "booking_lock_" + bookingID
}
