// Package lock serializes local state changes per booking across service
// instances. Locks are held around short read-check-write sections only.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	bookingserrors "rentpay/internal/bookings/errors"
	"rentpay/internal/bookings/repository"
	"rentpay/pkg/logger"
	"rentpay/pkg/metrics"
	"rentpay/pkg/model"

	"github.com/google/uuid"
)

const (
	initialBackoff = 10 * time.Millisecond
	maxBackoff     = 200 * time.Millisecond
	releaseTimeout = 5 * time.Second
)

// Locker acquires the per-booking lock. The returned release func is safe to
// call more than once.
type Locker interface {
	Acquire(ctx context.Context, bookingID string) (release func(), err error)
}

type MongoLocker struct {
	repo repository.BookingLockRepository
	ttl  time.Duration
	wait time.Duration
	log  *logger.Logger
}

func NewMongoLocker(repo repository.BookingLockRepository, ttl, wait time.Duration, log *logger.Logger) *MongoLocker {
	return &MongoLocker{
		repo: repo,
		ttl:  ttl,
		wait: wait,
		log:  log,
	}
}

func (l *MongoLocker) Acquire(ctx context.Context, bookingID string) (func(), error) {
	lockID := model.BookingLockID(bookingID)
	owner := uuid.NewString()
	start := time.Now()
	deadline := start.Add(l.wait)
	backoff := initialBackoff

	for {
		now := time.Now()
		err := l.repo.Create(ctx, &model.BookingLock{
			ID:        lockID,
			Owner:     owner,
			ExpiresAt: now.Add(l.ttl),
		})
		if err == nil {
			metrics.BookingLockWait.Observe(time.Since(start).Seconds())
			return l.releaseFunc(lockID, owner), nil
		}
		if !errors.Is(err, bookingserrors.ErrLockHeld) {
			return nil, err
		}

		reclaimed, err := l.repo.DeleteExpired(ctx, lockID, now)
		if err != nil {
			return nil, err
		}
		if reclaimed {
			l.log.Warn("Reclaimed stale booking lock", "booking_id", bookingID)
			continue
		}

		if now.Add(backoff).After(deadline) {
			return nil, bookingserrors.ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (l *MongoLocker) releaseFunc(lockID, owner string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := l.repo.DeleteOwned(ctx, lockID, owner); err != nil {
				l.log.Warn("Failed to release booking lock", "lock_id", lockID, "error", err)
			}
		})
	}
}

// MemoryLocker is an in-process Locker for single-instance deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	wait  time.Duration
}

func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]chan struct{}),
		wait:  wait,
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, bookingID string) (func(), error) {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	for {
		l.mu.Lock()
		held, busy := l.locks[bookingID]
		if !busy {
			done := make(chan struct{})
			l.locks[bookingID] = done
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.locks, bookingID)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, bookingserrors.ErrLockTimeout
		}
	}
}
