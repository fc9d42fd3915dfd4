package notifier

import (
	"context"
	"sync"
	"time"

	"rentpay/pkg/logger"
	"rentpay/pkg/metrics"
)

// AsyncDispatcher runs each notification on its own goroutine with a bounded
// timeout. Failures are logged and counted, never retried here.
type AsyncDispatcher struct {
	notifier Notifier
	backend  string
	timeout  time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncDispatcher(notifier Notifier, backend string, timeout time.Duration, log *logger.Logger) *AsyncDispatcher {
	return &AsyncDispatcher{
		notifier: notifier,
		backend:  backend,
		timeout:  timeout,
		log:      log,
	}
}

func (d *AsyncDispatcher) Dispatch(email string, bookingID string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn("Notification dropped, dispatcher closed", "booking_id", bookingID)
		metrics.IncNotification(d.backend, "dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("Notification dispatch panicked", "booking_id", bookingID, "panic", r)
				metrics.IncNotification(d.backend, "failed")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.NotifyPaymentConfirmed(ctx, email, bookingID); err != nil {
			d.log.Error("Failed to dispatch payment confirmation",
				"booking_id", bookingID,
				"backend", d.backend,
				"error", err,
			)
			metrics.IncNotification(d.backend, "failed")
			return
		}

		d.log.Info("Payment confirmation dispatched", "booking_id", bookingID, "backend", d.backend)
		metrics.IncNotification(d.backend, "sent")
	}()
}

// Wait blocks until every dispatched notification has finished.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting work and waits for in-flight notifications.
func (d *AsyncDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
