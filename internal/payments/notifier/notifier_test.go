package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"rentpay/pkg/kafka"
	"rentpay/pkg/logger"

	"github.com/hibiken/asynq"
)

type mockPublisher struct {
	mu        sync.Mutex
	published []kafka.Message
	err       error
}

func (p *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

type mockEnqueuer struct {
	task *asynq.Task
	opts []asynq.Option
	err  error
}

func (e *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.task = task
	e.opts = opts
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueNotifications}, nil
}

type mockNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
	delay time.Duration
}

func (n *mockNotifier) NotifyPaymentConfirmed(ctx context.Context, email string, bookingID string) error {
	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, email+"|"+bookingID)
	return n.err
}

func TestKafkaNotifier_PublishesKeyedEvent(t *testing.T) {
	pub := &mockPublisher{}
	n := NewKafkaNotifier(pub, "rentpay")

	if err := n.NotifyPaymentConfirmed(context.Background(), "guest@example.com", "b1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.published))
	}

	msg := pub.published[0]
	if msg.Key != "b1" {
		t.Errorf("expected key b1, got %s", msg.Key)
	}
	if msg.GetEventType() != EventPaymentConfirmed {
		t.Errorf("expected event type %s, got %s", EventPaymentConfirmed, msg.GetEventType())
	}

	var event PaymentConfirmed
	if err := msg.DecodeValue(&event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.BookingID != "b1" || event.Email != "guest@example.com" {
		t.Errorf("unexpected payload %+v", event)
	}
}

func TestKafkaNotifier_PropagatesPublishError(t *testing.T) {
	n := NewKafkaNotifier(&mockPublisher{err: errors.New("broker down")}, "rentpay")
	if err := n.NotifyPaymentConfirmed(context.Background(), "guest@example.com", "b1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAsynqNotifier_EnqueuesTask(t *testing.T) {
	enq := &mockEnqueuer{}
	n := NewAsynqNotifier(enq, 5)

	if err := n.NotifyPaymentConfirmed(context.Background(), "guest@example.com", "b1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enq.task == nil || enq.task.Type() != TypePaymentConfirmedEmail {
		t.Fatalf("expected %s task", TypePaymentConfirmedEmail)
	}

	var payload PaymentConfirmed
	if err := json.Unmarshal(enq.task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.BookingID != "b1" || payload.Email != "guest@example.com" {
		t.Errorf("unexpected payload %+v", payload)
	}
	if len(enq.opts) == 0 {
		t.Error("expected queue and retry options")
	}
}

func TestAsynqNotifier_EnqueueError(t *testing.T) {
	n := NewAsynqNotifier(&mockEnqueuer{err: errors.New("redis: connection refused")}, 5)
	if err := n.NotifyPaymentConfirmed(context.Background(), "guest@example.com", "b1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAsyncDispatcher_DeliversWithoutBlocking(t *testing.T) {
	n := &mockNotifier{delay: 50 * time.Millisecond}
	d := NewAsyncDispatcher(n, BackendKafka, time.Second, logger.Discard())

	start := time.Now()
	d.Dispatch("guest@example.com", "b1")
	if time.Since(start) > 20*time.Millisecond {
		t.Error("Dispatch must not wait for delivery")
	}

	d.Wait()
	if len(n.calls) != 1 || n.calls[0] != "guest@example.com|b1" {
		t.Errorf("expected one delivery, got %v", n.calls)
	}
}

func TestAsyncDispatcher_FailureIsNotRetried(t *testing.T) {
	n := &mockNotifier{err: errors.New("broker down")}
	d := NewAsyncDispatcher(n, BackendKafka, time.Second, logger.Discard())

	d.Dispatch("guest@example.com", "b1")
	d.Wait()

	if len(n.calls) != 1 {
		t.Errorf("expected exactly one attempt, got %d", len(n.calls))
	}
}

func TestAsyncDispatcher_Timeout(t *testing.T) {
	n := &mockNotifier{delay: time.Second}
	d := NewAsyncDispatcher(n, BackendAsynq, 20*time.Millisecond, logger.Discard())

	start := time.Now()
	d.Dispatch("guest@example.com", "b1")
	d.Wait()

	if time.Since(start) > 500*time.Millisecond {
		t.Error("expected notification to be cut off by the dispatch timeout")
	}
}

func TestAsyncDispatcher_DropsAfterClose(t *testing.T) {
	n := &mockNotifier{}
	d := NewAsyncDispatcher(n, BackendKafka, time.Second, logger.Discard())

	d.Close()
	d.Dispatch("guest@example.com", "b1")
	d.Wait()

	if len(n.calls) != 0 {
		t.Errorf("expected no delivery after Close, got %v", n.calls)
	}
}
