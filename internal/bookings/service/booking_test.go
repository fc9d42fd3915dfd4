package service

import (
	"context"
	"errors"
	"testing"
	"time"

	bookingserrors "rentpay/internal/bookings/errors"
	"rentpay/internal/bookings/lock"
	"rentpay/internal/bookings/validator"
	"rentpay/pkg/config"
	mongotx "rentpay/pkg/db/mongo"
	apperrors "rentpay/pkg/errors"
	"rentpay/pkg/logger"
	"rentpay/pkg/model"
)

const (
	testListingID = "65f1a2b3c4d5e6f7a8b9c0d1"
	testBookingID = "65f1a2b3c4d5e6f7a8b9c0d2"
)

type mockBookingRepository struct {
	createFunc            func(ctx context.Context, booking *model.Booking) error
	findByIDFunc          func(ctx context.Context, id string) (*model.Booking, error)
	claimInitiationFunc   func(ctx context.Context, id string, expectedAttempts int, claim model.InitiationClaim, now time.Time) error
	releaseInitiationFunc func(ctx context.Context, id string, txRef string, now time.Time) error
	markPaidFunc          func(ctx context.Context, id string, now time.Time) error
	cancelFunc            func(ctx context.Context, id string, now time.Time) error
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, booking)
	}
	booking.ID = testBookingID
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) ClaimInitiation(ctx context.Context, id string, expectedAttempts int, claim model.InitiationClaim, now time.Time) error {
	if m.claimInitiationFunc != nil {
		return m.claimInitiationFunc(ctx, id, expectedAttempts, claim, now)
	}
	return nil
}

func (m *mockBookingRepository) ReleaseInitiation(ctx context.Context, id string, txRef string, now time.Time) error {
	if m.releaseInitiationFunc != nil {
		return m.releaseInitiationFunc(ctx, id, txRef, now)
	}
	return nil
}

func (m *mockBookingRepository) MarkPaid(ctx context.Context, id string, now time.Time) error {
	if m.markPaidFunc != nil {
		return m.markPaidFunc(ctx, id, now)
	}
	return nil
}

func (m *mockBookingRepository) Cancel(ctx context.Context, id string, now time.Time) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id, now)
	}
	return nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type mockListingRepository struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Listing, error)
}

func (m *mockListingRepository) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return availableListing(), nil
}

type mockPendingChecker struct {
	pending bool
	err     error
}

func (m *mockPendingChecker) HasPending(ctx context.Context, bookingID string) (bool, error) {
	return m.pending, m.err
}

func availableListing() *model.Listing {
	return &model.Listing{
		ID:            testListingID,
		HostID:        "host-1",
		PricePerNight: model.MustParseMoney("100", "ETB"),
		MaxGuests:     4,
		Status:        model.ListingAvailable,
		Available:     true,
	}
}

func guestBooking() *model.Booking {
	stay, _ := model.ParseDateRange("2027-05-01", "2027-05-04")
	return &model.Booking{
		ID:            testBookingID,
		ListingID:     testListingID,
		GuestID:       "guest-1",
		Stay:          stay,
		GuestCount:    2,
		TotalPrice:    model.MustParseMoney("300", "ETB"),
		BookingStatus: model.BookingPending,
		PaymentStatus: model.PaymentStatusPending,
		PaymentMethod: model.MethodCreditCard,
	}
}

func setupTestService(repo *mockBookingRepository, listings *mockListingRepository, payments *mockPendingChecker) BookingService {
	log := logger.New(logger.Config{
		Level:  "error",
		Format: "json",
	})
	cfg := &config.Config{Log: log}
	if listings == nil {
		listings = &mockListingRepository{}
	}
	if payments == nil {
		payments = &mockPendingChecker{}
	}
	return NewBookingService(repo, listings, payments, lock.NewMemoryLocker(time.Second), validator.NewBookingValidator(log), cfg)
}

var guest = model.Caller{UserID: "guest-1", Email: "guest@example.com"}

func TestCreate_DerivesTotalPrice(t *testing.T) {
	var stored *model.Booking
	repo := &mockBookingRepository{
		createFunc: func(ctx context.Context, b *model.Booking) error {
			stored = b
			b.ID = testBookingID
			return nil
		},
	}
	svc := setupTestService(repo, nil, nil)

	start := time.Now().UTC().AddDate(0, 1, 0)
	req := &model.BookingCreate{
		ListingID:  testListingID,
		StartDate:  start.Format(model.DateLayout),
		EndDate:    start.AddDate(0, 0, 3).Format(model.DateLayout),
		GuestCount: 2,
	}

	booking, err := svc.Create(context.Background(), guest, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil || booking.ID != testBookingID {
		t.Fatal("expected booking to be persisted")
	}
	if !booking.TotalPrice.Equal(model.MustParseMoney("300", "ETB")) {
		t.Errorf("expected total 300.00 ETB, got %s", booking.TotalPrice)
	}
	if booking.GuestID != guest.UserID || booking.GuestEmail != guest.Email {
		t.Errorf("expected guest identity from caller, got %s/%s", booking.GuestID, booking.GuestEmail)
	}
	if booking.BookingStatus != model.BookingPending || booking.PaymentStatus != model.PaymentStatusPending {
		t.Errorf("expected pending/pending, got %s/%s", booking.BookingStatus, booking.PaymentStatus)
	}
	if booking.PaymentMethod != model.MethodCreditCard || booking.CancellationPolicy != model.PolicyFlexible {
		t.Errorf("expected defaults applied, got %s/%s", booking.PaymentMethod, booking.CancellationPolicy)
	}
}

func TestCreate_SanitizesGuestInput(t *testing.T) {
	repo := &mockBookingRepository{
		createFunc: func(ctx context.Context, b *model.Booking) error { return nil },
	}
	svc := setupTestService(repo, nil, nil)

	start := time.Now().UTC().AddDate(0, 1, 0)
	booking, err := svc.Create(context.Background(), guest, &model.BookingCreate{
		ListingID:       testListingID,
		StartDate:       start.Format(model.DateLayout),
		EndDate:         start.AddDate(0, 0, 1).Format(model.DateLayout),
		GuestCount:      1,
		GuestPhone:      "0911 234 567",
		SpecialRequests: "  late\n\ncheck-in ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.GuestPhone != "+251911234567" {
		t.Errorf("expected E.164 phone, got %q", booking.GuestPhone)
	}
	if booking.SpecialRequests != "late check-in" {
		t.Errorf("expected normalized special requests, got %q", booking.SpecialRequests)
	}
}

func TestCreate_Errors(t *testing.T) {
	start := time.Now().UTC().AddDate(0, 1, 0)
	validReq := func() *model.BookingCreate {
		return &model.BookingCreate{
			ListingID:  testListingID,
			StartDate:  start.Format(model.DateLayout),
			EndDate:    start.AddDate(0, 0, 2).Format(model.DateLayout),
			GuestCount: 2,
		}
	}

	tests := []struct {
		name       string
		req        func() *model.BookingCreate
		listing    func(ctx context.Context, id string) (*model.Listing, error)
		createErr  error
		expectCode string
	}{
		{
			name:       "invalid request",
			req:        func() *model.BookingCreate { r := validReq(); r.GuestCount = 0; return r },
			expectCode: apperrors.CodeValidation,
		},
		{
			name: "listing missing",
			req:  validReq,
			listing: func(ctx context.Context, id string) (*model.Listing, error) {
				return nil, bookingserrors.ErrListingNotFound
			},
			expectCode: apperrors.CodeNotFound,
		},
		{
			name: "listing unavailable",
			req:  validReq,
			listing: func(ctx context.Context, id string) (*model.Listing, error) {
				l := availableListing()
				l.Available = false
				return l, nil
			},
			expectCode: apperrors.CodeInvalidState,
		},
		{
			name:       "over capacity",
			req:        func() *model.BookingCreate { r := validReq(); r.GuestCount = 5; return r },
			expectCode: apperrors.CodeValidation,
		},
		{
			name:       "invalid phone",
			req:        func() *model.BookingCreate { r := validReq(); r.GuestPhone = "12"; return r },
			expectCode: apperrors.CodeValidation,
		},
		{
			name:       "duplicate booking",
			req:        validReq,
			createErr:  bookingserrors.ErrDuplicate,
			expectCode: apperrors.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockBookingRepository{
				createFunc: func(ctx context.Context, b *model.Booking) error { return tt.createErr },
			}
			svc := setupTestService(repo, &mockListingRepository{findByIDFunc: tt.listing}, nil)

			_, err := svc.Create(context.Background(), guest, tt.req())
			appErr := apperrors.AsAppError(err)
			if err == nil || appErr.Code != tt.expectCode {
				t.Fatalf("expected %s, got %v", tt.expectCode, err)
			}
		})
	}
}

func TestGetByID_HidesForeignBookings(t *testing.T) {
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return guestBooking(), nil
		},
	}
	svc := setupTestService(repo, nil, nil)

	if _, err := svc.GetByID(context.Background(), guest, testBookingID); err != nil {
		t.Fatalf("owner should read booking: %v", err)
	}

	_, err := svc.GetByID(context.Background(), model.Caller{UserID: "intruder"}, testBookingID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected NotFound for non-owner, got %v", err)
	}
}

func TestGetByID_InvalidID(t *testing.T) {
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return nil, bookingserrors.ErrInvalidID
		},
	}
	svc := setupTestService(repo, nil, nil)

	_, err := svc.GetByID(context.Background(), guest, "xyz")
	if apperrors.AsAppError(err).Code != apperrors.CodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*model.Booking)
		pending    bool
		cancelErr  error
		expectCode string
	}{
		{name: "cancels pending booking"},
		{
			name:       "already cancelled",
			mutate:     func(b *model.Booking) { b.BookingStatus = model.BookingCancelled },
			expectCode: apperrors.CodeInvalidState,
		},
		{
			name: "paid booking",
			mutate: func(b *model.Booking) {
				b.PaymentStatus = model.PaymentStatusPaid
				b.BookingStatus = model.BookingConfirmed
			},
			expectCode: apperrors.CodeInvalidState,
		},
		{
			name: "initiation in flight",
			mutate: func(b *model.Booking) {
				b.Initiation = &model.InitiationClaim{TxRef: "t", ExpiresAt: time.Now().Add(time.Minute)}
			},
			expectCode: apperrors.CodeInvalidState,
		},
		{
			name: "expired initiation does not block",
			mutate: func(b *model.Booking) {
				b.Initiation = &model.InitiationClaim{TxRef: "t", ExpiresAt: time.Now().Add(-time.Minute)}
			},
		},
		{
			name:       "pending payment",
			pending:    true,
			expectCode: apperrors.CodeInvalidState,
		},
		{
			name:       "lost race",
			cancelErr:  bookingserrors.ErrStaleStatus,
			expectCode: apperrors.CodeInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cancelled := false
			repo := &mockBookingRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
					b := guestBooking()
					if tt.mutate != nil {
						tt.mutate(b)
					}
					return b, nil
				},
				cancelFunc: func(ctx context.Context, id string, now time.Time) error {
					cancelled = tt.cancelErr == nil
					return tt.cancelErr
				},
			}
			svc := setupTestService(repo, nil, &mockPendingChecker{pending: tt.pending})

			booking, err := svc.Cancel(context.Background(), guest, testBookingID)
			if tt.expectCode != "" {
				if apperrors.AsAppError(err).Code != tt.expectCode {
					t.Fatalf("expected %s, got %v", tt.expectCode, err)
				}
				if cancelled {
					t.Error("booking must not be cancelled")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !cancelled || booking.BookingStatus != model.BookingCancelled {
				t.Errorf("expected booking cancelled, got %s", booking.BookingStatus)
			}
		})
	}
}

func TestCancel_NonOwner(t *testing.T) {
	repo := &mockBookingRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Booking, error) {
			return guestBooking(), nil
		},
		cancelFunc: func(ctx context.Context, id string, now time.Time) error {
			t.Fatal("cancel must not run for a non-owner")
			return nil
		},
	}
	svc := setupTestService(repo, nil, nil)

	_, err := svc.Cancel(context.Background(), model.Caller{UserID: "intruder"}, testBookingID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}
