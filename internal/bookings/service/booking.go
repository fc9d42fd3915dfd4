package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "rentpay/internal/bookings/errors"
	"rentpay/internal/bookings/lock"
	"rentpay/internal/bookings/repository"
	"rentpay/internal/bookings/validator"
	"rentpay/pkg/config"
	apperrors "rentpay/pkg/errors"
	"rentpay/pkg/model"
	"rentpay/pkg/sanitizer"
)

type BookingService interface {
	Create(ctx context.Context, caller model.Caller, req *model.BookingCreate) (*model.Booking, error)
	GetByID(ctx context.Context, caller model.Caller, id string) (*model.Booking, error)
	Cancel(ctx context.Context, caller model.Caller, id string) (*model.Booking, error)
}

// PendingPaymentChecker reports whether a booking has a payment awaiting
// verification.
type PendingPaymentChecker interface {
	HasPending(ctx context.Context, bookingID string) (bool, error)
}

type bookingService struct {
	repo        repository.BookingRepository
	listingRepo repository.ListingRepository
	payments    PendingPaymentChecker
	locker      lock.Locker
	validator   *validator.BookingValidator
	cfg         *config.Config
	now         func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	listingRepo repository.ListingRepository,
	payments PendingPaymentChecker,
	locker lock.Locker,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:        repo,
		listingRepo: listingRepo,
		payments:    payments,
		locker:      locker,
		validator:   validator,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *bookingService) Create(ctx context.Context, caller model.Caller, req *model.BookingCreate) (*model.Booking, error) {
	stay, err := s.validator.ValidateCreate(req)
	if err != nil {
		s.cfg.Log.Warn("Booking validation failed", "user_id", caller.UserID, "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	listing, err := s.listingRepo.FindByID(ctx, req.ListingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrListingNotFound) {
			return nil, apperrors.NotFoundWithID("Listing", req.ListingID)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid listing ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve listing", err)
	}

	if !listing.Bookable() {
		return nil, apperrors.InvalidState("Listing is not available for booking")
	}
	if listing.MaxGuests > 0 && req.GuestCount > listing.MaxGuests {
		return nil, apperrors.Validation("Booking validation failed", map[string]any{
			"error": fmt.Sprintf("guest_count (%d) exceeds listing capacity (%d)", req.GuestCount, listing.MaxGuests),
		})
	}
	if !listing.PricePerNight.IsPositive() {
		return nil, apperrors.Internal("Listing has no valid nightly rate", nil)
	}

	phone := sanitizer.SanitizePhone(req.GuestPhone)
	if req.GuestPhone != "" && phone == "" {
		return nil, apperrors.Validation("Booking validation failed", map[string]any{
			"error": "guest_phone must be a valid phone number",
		})
	}

	booking := &model.Booking{
		ListingID:          listing.ID,
		GuestID:            caller.UserID,
		GuestEmail:         caller.Email,
		GuestPhone:         phone,
		Stay:               stay,
		GuestCount:         req.GuestCount,
		TotalPrice:         listing.PricePerNight.Times(stay.Nights()),
		BookingStatus:      model.BookingPending,
		PaymentStatus:      model.PaymentStatusPending,
		PaymentMethod:      req.PaymentMethod,
		CancellationPolicy: req.CancellationPolicy,
		SpecialRequests:    sanitizer.SanitizeFreeText(req.SpecialRequests),
	}
	s.applyDefaults(booking)

	if err := s.repo.Create(ctx, booking); err != nil {
		if errors.Is(err, bookingserrors.ErrDuplicate) {
			return nil, apperrors.Conflict("A booking for this listing and stay already exists")
		}
		s.cfg.Log.Error("Failed to create booking", "listing_id", listing.ID, "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking created successfully",
		"booking_id", booking.ID,
		"listing_id", booking.ListingID,
		"guest_id", booking.GuestID,
		"nights", stay.Nights(),
		"total_price", booking.TotalPrice.String(),
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, caller model.Caller, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	return s.loadOwned(ctx, caller, id)
}

// Cancel is refused while money may be moving: once paid, while an initiation
// is in flight, or while a payment awaits verification.
func (s *bookingService) Cancel(ctx context.Context, caller model.Caller, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	booking, err := s.loadOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case booking.IsCancelled():
		return nil, apperrors.InvalidState("Booking is already cancelled")
	case booking.IsPaid():
		return nil, apperrors.InvalidState("Paid bookings cannot be cancelled here")
	case booking.Initiation.Active(now):
		return nil, apperrors.InvalidState("A payment for this booking is being initiated")
	}

	pending, err := s.payments.HasPending(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to check pending payments", err)
	}
	if pending {
		return nil, apperrors.InvalidState("A payment for this booking is awaiting verification")
	}

	if err := s.repo.Cancel(ctx, id, now); err != nil {
		if errors.Is(err, bookingserrors.ErrStaleStatus) {
			return nil, apperrors.InvalidState("Booking changed while cancelling, retry")
		}
		return nil, apperrors.Internal("Failed to cancel booking", err)
	}

	booking.BookingStatus = model.BookingCancelled
	booking.UpdatedAt = now
	s.cfg.Log.Info("Booking cancelled", "booking_id", id, "guest_id", caller.UserID)
	return booking, nil
}

// --- Helpers ---

// loadOwned hides bookings owned by someone else behind NotFound.
func (s *bookingService) loadOwned(ctx context.Context, caller model.Caller, id string) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	if !booking.OwnedBy(caller.UserID) {
		s.cfg.Log.Warn("Booking access denied", "booking_id", id, "user_id", caller.UserID)
		return nil, apperrors.NotFoundWithID("Booking", id)
	}
	return booking, nil
}

func (s *bookingService) applyDefaults(b *model.Booking) {
	if b.PaymentMethod == "" {
		b.PaymentMethod = model.MethodCreditCard
	}
	if b.CancellationPolicy == "" {
		b.CancellationPolicy = model.PolicyFlexible
	}
}

func lockError(err error) error {
	if errors.Is(err, bookingserrors.ErrLockTimeout) {
		return apperrors.Conflict("Booking is busy with another request, retry shortly")
	}
	return apperrors.Internal("Failed to acquire booking lock", err)
}
