package mongo

import (
	"context"
	"testing"
	"time"
)

func TestWithTimeout(t *testing.T) {
	t.Run("applies timeout", func(t *testing.T) {
		ctx, cancel := WithTimeout(context.Background(), time.Minute)
		defer cancel()

		deadline, ok := ctx.Deadline()
		if !ok {
			t.Fatal("expected a deadline")
		}
		if remaining := time.Until(deadline); remaining > time.Minute || remaining < 50*time.Second {
			t.Errorf("unexpected remaining time %s", remaining)
		}
	})

	t.Run("keeps earlier parent deadline", func(t *testing.T) {
		parent, parentCancel := context.WithTimeout(context.Background(), time.Second)
		defer parentCancel()
		parentDeadline, _ := parent.Deadline()

		ctx, cancel := WithTimeout(parent, time.Hour)
		defer cancel()

		deadline, _ := ctx.Deadline()
		if !deadline.Equal(parentDeadline) {
			t.Errorf("expected parent deadline %s, got %s", parentDeadline, deadline)
		}
	})

	t.Run("outside transaction", func(t *testing.T) {
		if InTransaction(context.Background()) {
			t.Error("background context must not report a transaction")
		}
	})
}
