package model

import "time"

const (
	ListingAvailable   = "available"
	ListingBooked      = "booked"
	ListingUnavailable = "unavailable"
)

// Listing is the read-only view of a rentable property needed to price a booking.
type Listing struct {
	ID            string    `json:"id"`
	HostID        string    `json:"host_id"`
	Title         string    `json:"title"`
	PricePerNight Money     `json:"price_per_night"`
	MaxGuests     int       `json:"max_guests"`
	Status        string    `json:"status"`
	Available     bool      `json:"availability"`
	CreatedAt     time.Time `json:"created_at"`
}

func (l *Listing) Bookable() bool {
	return l.Available && l.Status == ListingAvailable
}
