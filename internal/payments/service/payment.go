package service

import (
	"context"
	"errors"
	"sync"
	"time"

	bookingserrors "rentpay/internal/bookings/errors"
	"rentpay/internal/bookings/lock"
	bookingrepo "rentpay/internal/bookings/repository"
	paymentserrors "rentpay/internal/payments/errors"
	"rentpay/internal/payments/gateway"
	"rentpay/internal/payments/repository"
	"rentpay/internal/payments/validator"
	"rentpay/pkg/config"
	apperrors "rentpay/pkg/errors"
	"rentpay/pkg/metrics"
	"rentpay/pkg/model"
)

type PaymentService interface {
	InitiatePayment(ctx context.Context, caller model.Caller, req *model.InitiatePaymentRequest) (*model.InitiatePaymentResponse, error)
	VerifyPayment(ctx context.Context, caller model.Caller, txRef string) (*model.VerifyPaymentResponse, error)
	// ReconcileFromWebhook verifies on behalf of the payer after the gateway
	// origin has been authenticated.
	ReconcileFromWebhook(ctx context.Context, txRef string) (*model.VerifyPaymentResponse, error)
	ListByBooking(ctx context.Context, caller model.Caller, bookingID string, limit int, offset int64) ([]*model.Payment, int64, error)
}

// ConfirmationDispatcher hands a confirmation to the notifier without waiting.
type ConfirmationDispatcher interface {
	Dispatch(email string, bookingID string)
}

type paymentService struct {
	repo       repository.PaymentRepository
	bookings   bookingrepo.BookingRepository
	locker     lock.Locker
	gateway    gateway.Client
	dispatcher ConfirmationDispatcher
	validator  *validator.PaymentValidator
	cfg        *config.Config
	now        func() time.Time
}

func NewPaymentService(
	repo repository.PaymentRepository,
	bookings bookingrepo.BookingRepository,
	locker lock.Locker,
	gatewayClient gateway.Client,
	dispatcher ConfirmationDispatcher,
	validator *validator.PaymentValidator,
	cfg *config.Config,
) PaymentService {
	return &paymentService{
		repo:       repo,
		bookings:   bookings,
		locker:     locker,
		gateway:    gatewayClient,
		dispatcher: dispatcher,
		validator:  validator,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// initiation is the state reserved for one InitiatePayment call between the
// claim and the commit.
type initiation struct {
	booking *model.Booking
	claim   model.InitiationClaim
	payer   model.Caller
	amount  model.Money
}

var errAlreadyResolved = errors.New("payment resolved concurrently")

// InitiatePayment runs in three phases: claim the booking under its lock,
// call the gateway unlocked, then commit the Payment under the lock. Nothing
// is persisted unless the gateway acknowledged the transaction.
func (s *paymentService) InitiatePayment(ctx context.Context, caller model.Caller, req *model.InitiatePaymentRequest) (*model.InitiatePaymentResponse, error) {
	if err := s.validator.ValidateInitiate(req); err != nil {
		s.cfg.Log.Warn("Payment initiation validation failed", "user_id", caller.UserID, "error", err)
		return nil, apperrors.Validation("Payment initiation validation failed", map[string]any{"error": err.Error()})
	}

	// Timeouts bound every phase; a disconnecting caller must not abort
	// between the gateway acknowledgement and the commit.
	ctx = context.WithoutCancel(ctx)

	in, err := s.claim(ctx, caller, req)
	if err != nil {
		metrics.IncInitiation("refused")
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	result, err := s.gateway.Initialize(gwCtx, gateway.InitializeRequest{
		Amount:      in.amount,
		PayerEmail:  in.payer.Email,
		PayerPhone:  in.booking.GuestPhone,
		TxRef:       in.claim.TxRef,
		CallbackURL: s.cfg.PaymentCallbackURL,
		ReturnURL:   s.cfg.PaymentReturnURL,
	})
	cancel()
	if err != nil {
		s.releaseClaim(ctx, in)
		if gateway.IsRejected(err) {
			metrics.IncInitiation("rejected")
			s.cfg.Log.Warn("Payment initiation rejected by gateway", "booking_id", in.booking.ID, "tx_ref", in.claim.TxRef, "error", err)
			return nil, apperrors.PaymentRejected("Payment was rejected by the gateway", err)
		}
		metrics.IncInitiation("gateway_unavailable")
		s.cfg.Log.Warn("Payment gateway unavailable during initiation", "booking_id", in.booking.ID, "tx_ref", in.claim.TxRef, "error", err)
		return nil, apperrors.GatewayUnavailable(err)
	}

	payment, err := s.commit(ctx, in, result)
	if err != nil {
		metrics.IncInitiation("commit_failed")
		return nil, err
	}

	metrics.IncInitiation("created")
	s.cfg.Log.Info("Payment initiated",
		"booking_id", payment.BookingID,
		"tx_ref", payment.TxRef,
		"amount", payment.Amount.String(),
		"payment_method", payment.Method,
	)
	return &model.InitiatePaymentResponse{
		CheckoutURL: payment.CheckoutURL,
		TxRef:       payment.TxRef,
	}, nil
}

func (s *paymentService) claim(ctx context.Context, caller model.Caller, req *model.InitiatePaymentRequest) (*initiation, error) {
	release, err := s.locker.Acquire(ctx, req.BookingID)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	booking, err := s.ownedBooking(ctx, caller, req.BookingID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	method := req.PaymentMethod
	if method == "" {
		method = booking.PaymentMethod
	}
	if method == "" {
		method = model.MethodCreditCard
	}

	switch {
	case booking.IsPaid():
		return nil, apperrors.InvalidState("Booking is already paid")
	case booking.IsCancelled():
		return nil, apperrors.InvalidState("Booking is cancelled")
	case booking.Initiation.Active(now):
		return nil, apperrors.InvalidState("A payment initiation for this booking is already in progress")
	}

	pending, err := s.repo.FindPending(ctx, booking.ID, method)
	switch {
	case err == nil:
		return nil, apperrors.InvalidState("A pending payment already exists for this booking").
			WithDetails(map[string]any{"tx_ref": pending.TxRef})
	case !errors.Is(err, paymentserrors.ErrNotFound):
		return nil, apperrors.Internal("Failed to check pending payments", err)
	}

	payer := caller
	if payer.Email == "" {
		payer.Email = booking.GuestEmail
	}
	if payer.Email == "" {
		return nil, apperrors.InvalidInput("Payer email is required to initiate a payment")
	}

	amount := booking.TotalPrice
	if amount.Currency == "" {
		amount.Currency = s.cfg.DefaultCurrency
	}
	if !amount.IsPositive() {
		return nil, apperrors.Internal("Booking has no payable amount", nil)
	}

	claim := model.InitiationClaim{
		TxRef:     model.TxRefFor(booking.ID, caller.UserID, booking.PaymentAttempts+1),
		Method:    method,
		ExpiresAt: now.Add(s.cfg.InitiationClaimTTL),
	}
	if err := s.bookings.ClaimInitiation(ctx, booking.ID, booking.PaymentAttempts, claim, now); err != nil {
		if errors.Is(err, bookingserrors.ErrStaleStatus) {
			return nil, apperrors.InvalidState("Booking changed concurrently, retry the payment")
		}
		return nil, apperrors.Internal("Failed to reserve payment initiation", err)
	}

	s.cfg.Log.Debug("Payment initiation claimed", "booking_id", booking.ID, "tx_ref", claim.TxRef)
	return &initiation{booking: booking, claim: claim, payer: payer, amount: amount}, nil
}

func (s *paymentService) commit(ctx context.Context, in *initiation, result *gateway.InitializeResult) (*model.Payment, error) {
	release, err := s.locker.Acquire(ctx, in.booking.ID)
	if err != nil {
		s.cfg.Log.Warn("Gateway acknowledged but booking lock unavailable, claim left to expire",
			"booking_id", in.booking.ID,
			"tx_ref", in.claim.TxRef,
			"error", err,
		)
		return nil, lockError(err)
	}
	defer release()

	current, err := s.bookings.FindByID(ctx, in.booking.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to reload booking", err)
	}
	if current.IsPaid() || current.IsCancelled() {
		s.releaseClaim(ctx, in)
		return nil, apperrors.InvalidState("Booking was paid or cancelled while the payment was being initiated")
	}

	payment := &model.Payment{
		BookingID:   in.booking.ID,
		PayerID:     in.payer.UserID,
		PayerEmail:  in.payer.Email,
		TxRef:       in.claim.TxRef,
		ProviderRef: result.ProviderRef,
		CheckoutURL: result.CheckoutURL,
		Amount:      in.amount,
		Method:      in.claim.Method,
		Status:      model.PaymentPending,
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	claimLost := false
	err = s.repo.ExecuteTransaction(txCtx, func(txCtx context.Context) error {
		if err := s.bookings.ReleaseInitiation(txCtx, in.booking.ID, in.claim.TxRef, s.now()); err != nil {
			if errors.Is(err, bookingserrors.ErrClaimLost) {
				claimLost = true
				return apperrors.InvalidState("Payment initiation expired before it could be recorded, retry the payment")
			}
			return err
		}
		if err := s.repo.Create(txCtx, payment); err != nil {
			if errors.Is(err, paymentserrors.ErrDuplicatePayment) {
				return apperrors.InvalidState("A pending payment already exists for this booking")
			}
			return err
		}
		return nil
	})
	if err != nil {
		if !claimLost {
			s.releaseClaim(ctx, in)
		}
		s.cfg.Log.Error("Failed to record initiated payment",
			"booking_id", in.booking.ID,
			"tx_ref", in.claim.TxRef,
			"error", err,
		)
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Internal("Failed to record payment", err)
	}

	return payment, nil
}

// releaseClaim is best-effort; an unreleased claim expires on its own.
func (s *paymentService) releaseClaim(ctx context.Context, in *initiation) {
	if err := s.bookings.ReleaseInitiation(ctx, in.booking.ID, in.claim.TxRef, s.now()); err != nil && !errors.Is(err, bookingserrors.ErrClaimLost) {
		s.cfg.Log.Warn("Failed to release payment initiation claim",
			"booking_id", in.booking.ID,
			"tx_ref", in.claim.TxRef,
			"error", err,
		)
	}
}

func (s *paymentService) VerifyPayment(ctx context.Context, caller model.Caller, txRef string) (*model.VerifyPaymentResponse, error) {
	if err := s.validator.ValidateTxRef(txRef); err != nil {
		return nil, apperrors.InvalidInput("Invalid tx_ref")
	}

	payment, err := s.findPayment(ctx, txRef)
	if err != nil {
		return nil, err
	}
	if payment.PayerID != caller.UserID {
		s.cfg.Log.Warn("Payment access denied", "tx_ref", txRef, "user_id", caller.UserID)
		return nil, apperrors.NotFoundWithID("Payment", txRef)
	}

	return s.reconcile(context.WithoutCancel(ctx), payment)
}

func (s *paymentService) ReconcileFromWebhook(ctx context.Context, txRef string) (*model.VerifyPaymentResponse, error) {
	if err := s.validator.ValidateTxRef(txRef); err != nil {
		return nil, apperrors.InvalidInput("Invalid tx_ref")
	}

	payment, err := s.findPayment(ctx, txRef)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Reconciling payment from gateway webhook", "tx_ref", txRef, "booking_id", payment.BookingID)
	return s.reconcile(context.WithoutCancel(ctx), payment)
}

// reconcile never contacts the gateway for a terminal payment and never
// guesses a terminal state from an ambiguous answer.
func (s *paymentService) reconcile(ctx context.Context, payment *model.Payment) (*model.VerifyPaymentResponse, error) {
	if payment.IsTerminal() {
		metrics.IncReconciliation("already_terminal")
		return &model.VerifyPaymentResponse{TxRef: payment.TxRef, Status: payment.Status}, nil
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	status, err := s.gateway.Verify(gwCtx, payment.TxRef)
	cancel()
	if err != nil {
		metrics.IncReconciliation("indeterminate")
		s.cfg.Log.Warn("Payment verification indeterminate", "tx_ref", payment.TxRef, "error", err)
		return nil, apperrors.VerificationIndeterminate(payment.TxRef, err)
	}

	switch status {
	case gateway.StatusSuccess:
		return s.complete(ctx, payment)
	case gateway.StatusFailed:
		return s.fail(ctx, payment)
	default:
		metrics.IncReconciliation("indeterminate")
		s.cfg.Log.Warn("Gateway reported unknown payment status", "tx_ref", payment.TxRef)
		return nil, apperrors.VerificationIndeterminate(payment.TxRef, nil)
	}
}

// complete marks the Payment completed and the Booking paid in one
// transaction, then hands the confirmation to the dispatcher.
func (s *paymentService) complete(ctx context.Context, payment *model.Payment) (*model.VerifyPaymentResponse, error) {
	release, err := s.locker.Acquire(ctx, payment.BookingID)
	if err != nil {
		metrics.IncReconciliation("indeterminate")
		return nil, apperrors.VerificationIndeterminate(payment.TxRef, err)
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	now := s.now()
	err = s.repo.ExecuteTransaction(txCtx, func(txCtx context.Context) error {
		if err := s.repo.Transition(txCtx, payment.TxRef, model.PaymentPending, model.PaymentCompleted, now); err != nil {
			if errors.Is(err, paymentserrors.ErrStaleStatus) {
				return errAlreadyResolved
			}
			return err
		}
		if err := s.bookings.MarkPaid(txCtx, payment.BookingID, now); err != nil {
			if errors.Is(err, bookingserrors.ErrStaleStatus) {
				return apperrors.InternalInconsistency("Booking is already paid or cancelled; payment left pending for review", err)
			}
			return err
		}
		return nil
	})
	release()

	if errors.Is(err, errAlreadyResolved) {
		return s.currentStatus(ctx, payment.TxRef)
	}
	if err != nil {
		metrics.IncReconciliation("inconsistent")
		s.cfg.Log.Error("Failed to reconcile successful payment",
			"tx_ref", payment.TxRef,
			"booking_id", payment.BookingID,
			"error", err,
		)
		if errors.Is(err, apperrors.ErrInternalInconsistency) {
			return nil, err
		}
		return nil, apperrors.InternalInconsistency("Failed to record verified payment", err)
	}

	metrics.IncReconciliation("completed")
	s.cfg.Log.Info("Payment completed and booking confirmed",
		"tx_ref", payment.TxRef,
		"booking_id", payment.BookingID,
	)

	s.dispatcher.Dispatch(payment.PayerEmail, payment.BookingID)

	return &model.VerifyPaymentResponse{TxRef: payment.TxRef, Status: model.PaymentCompleted}, nil
}

// fail leaves the booking pending so the guest can retry.
func (s *paymentService) fail(ctx context.Context, payment *model.Payment) (*model.VerifyPaymentResponse, error) {
	release, err := s.locker.Acquire(ctx, payment.BookingID)
	if err != nil {
		metrics.IncReconciliation("indeterminate")
		return nil, apperrors.VerificationIndeterminate(payment.TxRef, err)
	}
	defer release()

	wCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	err = s.repo.Transition(wCtx, payment.TxRef, model.PaymentPending, model.PaymentFailed, s.now())
	if errors.Is(err, paymentserrors.ErrStaleStatus) {
		return s.currentStatus(ctx, payment.TxRef)
	}
	if err != nil {
		metrics.IncReconciliation("error")
		s.cfg.Log.Error("Failed to record failed payment", "tx_ref", payment.TxRef, "error", err)
		return nil, apperrors.Internal("Failed to record payment failure", err)
	}

	metrics.IncReconciliation("failed")
	s.cfg.Log.Info("Payment failed at gateway", "tx_ref", payment.TxRef, "booking_id", payment.BookingID)
	return &model.VerifyPaymentResponse{TxRef: payment.TxRef, Status: model.PaymentFailed}, nil
}

func (s *paymentService) currentStatus(ctx context.Context, txRef string) (*model.VerifyPaymentResponse, error) {
	payment, err := s.findPayment(ctx, txRef)
	if err != nil {
		return nil, err
	}
	metrics.IncReconciliation("already_terminal")
	return &model.VerifyPaymentResponse{TxRef: payment.TxRef, Status: payment.Status}, nil
}

func (s *paymentService) ListByBooking(ctx context.Context, caller model.Caller, bookingID string, limit int, offset int64) ([]*model.Payment, int64, error) {
	if _, err := s.ownedBooking(ctx, caller, bookingID); err != nil {
		return nil, 0, err
	}

	var count int64
	var payments []*model.Payment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByBooking(ctx, bookingID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count payments", "booking_id", bookingID, "error", errCount)
			errCount = apperrors.Internal("Failed to count payments", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		payments, errFind = s.repo.FindByBooking(ctx, bookingID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list payments", "booking_id", bookingID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve payments", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return payments, count, nil
}

// --- Helpers ---

func (s *paymentService) ownedBooking(ctx context.Context, caller model.Caller, bookingID string) (*model.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", bookingID)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	if !booking.OwnedBy(caller.UserID) {
		s.cfg.Log.Warn("Booking access denied", "booking_id", bookingID, "user_id", caller.UserID)
		return nil, apperrors.NotFoundWithID("Booking", bookingID)
	}
	return booking, nil
}

func (s *paymentService) findPayment(ctx context.Context, txRef string) (*model.Payment, error) {
	payment, err := s.repo.FindByTxRef(ctx, txRef)
	if err != nil {
		if errors.Is(err, paymentserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Payment", txRef)
		}
		return nil, apperrors.Internal("Failed to retrieve payment", err)
	}
	return payment, nil
}

func lockError(err error) error {
	if errors.Is(err, bookingserrors.ErrLockTimeout) {
		return apperrors.Conflict("Booking is busy with another request, retry shortly")
	}
	return apperrors.Internal("Failed to acquire booking lock", err)
}
