package service

import (
	"context"
	"sort"
	"sync"
	"time"

	bookingserrors "rentpay/internal/bookings/errors"
	paymentserrors "rentpay/internal/payments/errors"
	"rentpay/internal/payments/gateway"
	mongotx "rentpay/pkg/db/mongo"
	"rentpay/pkg/model"
)

// memStore backs both fake repositories so a transaction can roll back
// bookings and payments together.
type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	bookings map[string]model.Booking
	payments map[string]model.Payment
	seq      int
}

func newMemStore() *memStore {
	return &memStore{
		bookings: make(map[string]model.Booking),
		payments: make(map[string]model.Payment),
	}
}

type snapshot struct {
	bookings map[string]model.Booking
	payments map[string]model.Payment
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		bookings: make(map[string]model.Booking, len(s.bookings)),
		payments: make(map[string]model.Payment, len(s.payments)),
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = snap.bookings
	s.payments = snap.payments
}

func (s *memStore) transaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) booking(id string) model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memStore) updateBooking(id string, fn func(b *model.Booking)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookings[id]
	fn(&b)
	s.bookings[id] = b
}

func (s *memStore) paymentsFor(bookingID string) []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Payment
	for _, p := range s.payments {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- bookings ---

type fakeBookingRepo struct {
	store *memStore
}

func (r *fakeBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.bookings[booking.ID]; ok {
		return bookingserrors.ErrDuplicate
	}
	r.store.bookings[booking.ID] = *booking
	return nil
}

func (r *fakeBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b, ok := r.store.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if b.Initiation != nil {
		claim := *b.Initiation
		b.Initiation = &claim
	}
	return &b, nil
}

func (r *fakeBookingRepo) ClaimInitiation(ctx context.Context, id string, expectedAttempts int, claim model.InitiationClaim, now time.Time) error {
	return r.update(id, bookingserrors.ErrStaleStatus, func(b *model.Booking) bool {
		if b.PaymentAttempts != expectedAttempts || b.IsPaid() || b.IsCancelled() || b.Initiation.Active(now) {
			return false
		}
		b.Initiation = &claim
		b.PaymentAttempts++
		return true
	})
}

func (r *fakeBookingRepo) ReleaseInitiation(ctx context.Context, id string, txRef string, now time.Time) error {
	return r.update(id, bookingserrors.ErrClaimLost, func(b *model.Booking) bool {
		if b.Initiation == nil || b.Initiation.TxRef != txRef {
			return false
		}
		b.Initiation = nil
		return true
	})
}

func (r *fakeBookingRepo) MarkPaid(ctx context.Context, id string, now time.Time) error {
	return r.update(id, bookingserrors.ErrStaleStatus, func(b *model.Booking) bool {
		if b.IsPaid() || b.IsCancelled() {
			return false
		}
		b.PaymentStatus = model.PaymentStatusPaid
		b.BookingStatus = model.BookingConfirmed
		return true
	})
}

func (r *fakeBookingRepo) Cancel(ctx context.Context, id string, now time.Time) error {
	return r.update(id, bookingserrors.ErrStaleStatus, func(b *model.Booking) bool {
		if b.IsPaid() || b.IsCancelled() {
			return false
		}
		b.BookingStatus = model.BookingCancelled
		return true
	})
}

func (r *fakeBookingRepo) update(id string, staleErr error, fn func(b *model.Booking) bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b, ok := r.store.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if !fn(&b) {
		return staleErr
	}
	r.store.bookings[id] = b
	return nil
}

func (r *fakeBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.store.transaction(ctx, fn)
}

// --- payments ---

type fakePaymentRepo struct {
	store *memStore
}

func (r *fakePaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.payments[payment.TxRef]; ok {
		return paymentserrors.ErrDuplicatePayment
	}
	for _, p := range r.store.payments {
		if p.BookingID == payment.BookingID && p.Method == payment.Method && p.Status == model.PaymentPending {
			return paymentserrors.ErrDuplicatePayment
		}
	}
	r.store.seq++
	payment.ID = time.Unix(int64(r.store.seq), 0).UTC().Format("20060102150405")
	r.store.payments[payment.TxRef] = *payment
	return nil
}

func (r *fakePaymentRepo) FindByTxRef(ctx context.Context, txRef string) (*model.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.payments[txRef]
	if !ok {
		return nil, paymentserrors.ErrNotFound
	}
	return &p, nil
}

func (r *fakePaymentRepo) FindPending(ctx context.Context, bookingID string, method string) (*model.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.payments {
		if p.BookingID == bookingID && p.Method == method && p.Status == model.PaymentPending {
			return &p, nil
		}
	}
	return nil, paymentserrors.ErrNotFound
}

func (r *fakePaymentRepo) HasPending(ctx context.Context, bookingID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.payments {
		if p.BookingID == bookingID && p.Status == model.PaymentPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePaymentRepo) FindByBooking(ctx context.Context, bookingID string, limit int, offset int64) ([]*model.Payment, error) {
	all := r.store.paymentsFor(bookingID)
	var out []*model.Payment
	for i := len(all) - 1 - int(offset); i >= 0 && len(out) < limit; i-- {
		p := all[i]
		out = append(out, &p)
	}
	return out, nil
}

func (r *fakePaymentRepo) CountByBooking(ctx context.Context, bookingID string) (int64, error) {
	return int64(len(r.store.paymentsFor(bookingID))), nil
}

func (r *fakePaymentRepo) Transition(ctx context.Context, txRef string, from string, to string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.payments[txRef]
	if !ok {
		return paymentserrors.ErrNotFound
	}
	if p.Status != from {
		return paymentserrors.ErrStaleStatus
	}
	if err := p.CanTransitionTo(to); err != nil {
		return err
	}
	p.Status = to
	p.VerifiedAt = &at
	r.store.payments[txRef] = p
	return nil
}

func (r *fakePaymentRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.store.transaction(ctx, fn)
}

// --- gateway ---

type fakeGateway struct {
	mu sync.Mutex

	initCalls   int
	verifyCalls int
	lastInit    gateway.InitializeRequest

	initErr      error
	initDelay    time.Duration
	onInitialize func(req gateway.InitializeRequest)

	verifyStatus map[string]gateway.Status
	verifyErr    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{verifyStatus: make(map[string]gateway.Status)}
}

func (g *fakeGateway) Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	g.mu.Lock()
	g.initCalls++
	g.lastInit = req
	err, delay, hook := g.initErr, g.initDelay, g.onInitialize
	g.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if hook != nil {
		hook(req)
	}
	if err != nil {
		return nil, err
	}
	return &gateway.InitializeResult{
		CheckoutURL: "https://checkout.chapa.co/checkout/payment/" + req.TxRef,
		ProviderRef: "APx" + req.TxRef,
	}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, txRef string) (gateway.Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return gateway.StatusUnknown, g.verifyErr
	}
	status, ok := g.verifyStatus[txRef]
	if !ok {
		return gateway.StatusUnknown, nil
	}
	return status, nil
}

func (g *fakeGateway) setStatus(txRef string, status gateway.Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyStatus[txRef] = status
}

func (g *fakeGateway) calls() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initCalls, g.verifyCalls
}

// --- notifier ---

type sentNotification struct {
	email     string
	bookingID string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *fakeNotifier) NotifyPaymentConfirmed(ctx context.Context, email string, bookingID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{email: email, bookingID: bookingID})
	return n.err
}

func (n *fakeNotifier) notifications() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}
