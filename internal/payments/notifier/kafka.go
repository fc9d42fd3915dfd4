package notifier

import (
	"context"
	"fmt"
	"time"

	"rentpay/pkg/kafka"
)

const schemaVersion = "1"

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaNotifier publishes a payment.confirmed event keyed by booking ID, so
// events for one booking stay ordered on one partition.
type KafkaNotifier struct {
	publisher Publisher
	source    string
}

func NewKafkaNotifier(publisher Publisher, source string) *KafkaNotifier {
	return &KafkaNotifier{
		publisher: publisher,
		source:    source,
	}
}

func (n *KafkaNotifier) NotifyPaymentConfirmed(ctx context.Context, email string, bookingID string) error {
	msg, err := kafka.NewMessage().
		WithKey(bookingID).
		WithValue(PaymentConfirmed{
			BookingID:   bookingID,
			Email:       email,
			ConfirmedAt: time.Now().UTC(),
		}).
		WithEventType(EventPaymentConfirmed).
		WithSchemaVersion(schemaVersion).
		WithSource(n.source).
		Build()
	if err != nil {
		return fmt.Errorf("build payment confirmed event: %w", err)
	}

	return n.publisher.Publish(ctx, msg)
}
