package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
)

type mockWriter struct {
	mu       sync.Mutex
	writeErr error
	written  []kafka.Message
	closed   bool
}

func (w *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *mockWriter) Close() error {
	w.closed = true
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func buildMessage(t *testing.T) Message {
	t.Helper()
	msg, err := NewMessage().
		WithKey("booking-1").
		WithValue(map[string]string{"booking_id": "booking-1"}).
		WithEventType("payment.confirmed").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return msg
}

func TestPublish_WritesMessageWithHeaders(t *testing.T) {
	writer := &mockWriter{}
	p := newProducer(writer, nil, "payments.confirmed", "")

	if err := p.Publish(context.Background(), buildMessage(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(writer.written) != 1 {
		t.Fatalf("expected 1 message written, got %d", len(writer.written))
	}
	got := writer.written[0]
	if string(got.Key) != "booking-1" {
		t.Errorf("expected key booking-1, got %s", got.Key)
	}
	if headerValue(got, HeaderEventType) != "payment.confirmed" {
		t.Errorf("missing event type header")
	}
	if headerValue(got, HeaderEventID) == "" {
		t.Errorf("expected generated event id")
	}
}

func TestPublish_RejectsInvalidMessages(t *testing.T) {
	p := newProducer(&mockWriter{}, nil, "topic", "")

	if err := p.Publish(context.Background(), Message{Value: []byte("{}")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if err := p.Publish(context.Background(), Message{Key: "k"}); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("expected ErrEmptyValue, got %v", err)
	}
}

func TestPublish_MiddlewareOrder(t *testing.T) {
	p := newProducer(&mockWriter{}, nil, "topic", "")

	var order []string
	for _, name := range []string{"outer", "inner"} {
		name := name
		p.Use(func(ctx context.Context, msg Message, next func(ctx context.Context, msg Message) error) error {
			order = append(order, name+":before")
			err := next(ctx, msg)
			order = append(order, name+":after")
			return err
		})
	}

	if err := p.Publish(context.Background(), buildMessage(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"outer:before", "inner:before", "inner:after", "outer:after"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestPublish_FailureGoesToDLQ(t *testing.T) {
	writer := &mockWriter{writeErr: errors.New("dial tcp: connection refused")}
	dlq := &mockWriter{}
	p := newProducer(writer, dlq, "payments.confirmed", "dlq-payments.confirmed")

	msg := buildMessage(t)
	err := p.Publish(context.Background(), msg)
	if err == nil {
		t.Fatal("expected publish error")
	}

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected PublishError, got %T", err)
	}
	if !pubErr.IsTransient() {
		t.Errorf("connection refused should classify as transient")
	}

	if len(dlq.written) != 1 {
		t.Fatalf("expected 1 DLQ message, got %d", len(dlq.written))
	}
	if headerValue(dlq.written[0], HeaderOriginalTopic) != "payments.confirmed" {
		t.Errorf("DLQ message missing original topic header")
	}
	if _, ok := msg.Headers[HeaderDLQError]; ok {
		t.Errorf("DLQ headers must not leak into the caller's message")
	}
}

func TestPublish_AfterClose(t *testing.T) {
	writer := &mockWriter{}
	p := newProducer(writer, nil, "topic", "")

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !writer.closed {
		t.Error("expected writer to be closed")
	}
	if err := p.Publish(context.Background(), buildMessage(t)); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestBuild_ReportsEncodingError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if err == nil {
		t.Fatal("expected encoding error")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"deadline", context.DeadlineExceeded, ErrorTypeTransient},
		{"network", errors.New("write: broken pipe"), ErrorTypeTransient},
		{"empty key", ErrEmptyKey, ErrorTypePermanent},
		{"unrecognised", errors.New("unknown topic or partition"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
