// Package notifier delivers payment confirmations to the guest through a
// message transport. Delivery and retries belong to the transport.
package notifier

import (
	"context"
	"time"
)

const (
	BackendKafka = "kafka"
	BackendAsynq = "asynq"

	EventPaymentConfirmed = "payment.confirmed"
)

// Notifier is the notification port.
type Notifier interface {
	NotifyPaymentConfirmed(ctx context.Context, email string, bookingID string) error
}

type PaymentConfirmed struct {
	BookingID   string    `json:"booking_id"`
	Email       string    `json:"email"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
