package model

import (
	"time"
)

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"

	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"

	MethodCreditCard   = "credit_card"
	MethodPayPal       = "paypal"
	MethodBankTransfer = "bank_transfer"

	PolicyFlexible = "flexible"
	PolicyModerate = "moderate"
	PolicyStrict   = "strict"
)

type Booking struct {
	ID                 string           `json:"id"`
	ListingID          string           `json:"listing_id"`
	GuestID            string           `json:"guest_id"`
	GuestEmail         string           `json:"guest_email"`
	GuestPhone         string           `json:"guest_phone,omitempty"`
	Stay               DateRange        `json:"stay"`
	GuestCount         int              `json:"guest_count"`
	TotalPrice         Money            `json:"total_price"`
	BookingStatus      string           `json:"booking_status"`
	PaymentStatus      string           `json:"payment_status"`
	PaymentMethod      string           `json:"payment_method"`
	CancellationPolicy string           `json:"cancellation_policy"`
	SpecialRequests    string           `json:"special_requests,omitempty"`
	PaymentAttempts    int              `json:"payment_attempts"`
	Initiation         *InitiationClaim `json:"-"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// InitiationClaim marks a payment initiation that has reserved its tx_ref and
// is waiting on the gateway. At most one claim exists per booking.
type InitiationClaim struct {
	TxRef     string    `json:"tx_ref"`
	Method    string    `json:"payment_method"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *InitiationClaim) Active(now time.Time) bool {
	return c != nil && now.Before(c.ExpiresAt)
}

type BookingCreate struct {
	ListingID          string `json:"listing_id" validate:"required,mongodb"`
	StartDate          string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string `json:"end_date" validate:"required,datetime=2006-01-02"`
	GuestCount         int    `json:"guest_count" validate:"required,min=1,max=50"`
	PaymentMethod      string `json:"payment_method" validate:"omitempty,oneof=credit_card paypal bank_transfer"`
	CancellationPolicy string `json:"cancellation_policy" validate:"omitempty,oneof=flexible moderate strict"`
	SpecialRequests    string `json:"special_requests" validate:"omitempty,max=1000"`
	GuestPhone         string `json:"guest_phone" validate:"omitempty,max=32"`
}

func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentStatusPaid
}

func (b *Booking) IsCancelled() bool {
	return b.BookingStatus == BookingCancelled
}

func (b *Booking) OwnedBy(userID string) bool {
	return userID != "" && b.GuestID == userID
}
