package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypePaymentConfirmedEmail = "email:payment_confirmed"
	QueueNotifications        = "notifications"

	taskTimeout = 30 * time.Second
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqNotifier enqueues a confirmation email task on Redis; the worker
// fleet owns retries up to maxRetry.
type AsynqNotifier struct {
	client   Enqueuer
	maxRetry int
}

func NewAsynqNotifier(client Enqueuer, maxRetry int) *AsynqNotifier {
	return &AsynqNotifier{
		client:   client,
		maxRetry: maxRetry,
	}
}

func NewPaymentConfirmedTask(payload PaymentConfirmed, maxRetry int) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypePaymentConfirmedEmail, b)
	opts := []asynq.Option{
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(taskTimeout),
	}

	return task, opts, nil
}

func (n *AsynqNotifier) NotifyPaymentConfirmed(ctx context.Context, email string, bookingID string) error {
	task, opts, err := NewPaymentConfirmedTask(PaymentConfirmed{
		BookingID:   bookingID,
		Email:       email,
		ConfirmedAt: time.Now().UTC(),
	}, n.maxRetry)
	if err != nil {
		return fmt.Errorf("build payment confirmed task: %w", err)
	}

	if _, err := n.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypePaymentConfirmedEmail, err)
	}
	return nil
}
