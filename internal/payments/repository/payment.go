package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	paymentserrors "rentpay/internal/payments/errors"
	"rentpay/pkg/config"
	mongotx "rentpay/pkg/db/mongo"
	"rentpay/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Payments"
)

type PaymentRepository interface {
	// Create returns ErrDuplicatePayment when the tx_ref exists or a pending
	// payment already exists for the same booking and method.
	Create(ctx context.Context, payment *model.Payment) error
	FindByTxRef(ctx context.Context, txRef string) (*model.Payment, error)
	FindPending(ctx context.Context, bookingID string, method string) (*model.Payment, error)
	HasPending(ctx context.Context, bookingID string) (bool, error)
	FindByBooking(ctx context.Context, bookingID string, limit int, offset int64) ([]*model.Payment, error)
	CountByBooking(ctx context.Context, bookingID string) (int64, error)
	// Transition moves a payment from one status to another, failing with
	// ErrStaleStatus if it is no longer in from.
	Transition(ctx context.Context, txRef string, from string, to string, at time.Time) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoPaymentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoPaymentRepository(cfg *config.Config) PaymentRepository {
	return &mongoPaymentRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

type paymentDocument struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	BookingID   string               `bson:"booking_id"`
	PayerID     string               `bson:"payer_id"`
	PayerEmail  string               `bson:"payer_email"`
	TxRef       string               `bson:"tx_ref"`
	ProviderRef string               `bson:"provider_ref,omitempty"`
	CheckoutURL string               `bson:"checkout_url,omitempty"`
	Amount      primitive.Decimal128 `bson:"amount"`
	Currency    string               `bson:"currency"`
	Method      string               `bson:"payment_method"`
	Status      string               `bson:"status"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
	VerifiedAt  *time.Time           `bson:"verified_at,omitempty"`
}

func toPaymentDocument(p *model.Payment) (*paymentDocument, error) {
	amount, err := mongotx.ToDecimal128(p.Amount.Amount)
	if err != nil {
		return nil, err
	}
	return &paymentDocument{
		BookingID:   p.BookingID,
		PayerID:     p.PayerID,
		PayerEmail:  p.PayerEmail,
		TxRef:       p.TxRef,
		ProviderRef: p.ProviderRef,
		CheckoutURL: p.CheckoutURL,
		Amount:      amount,
		Currency:    p.Amount.Currency,
		Method:      p.Method,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		VerifiedAt:  p.VerifiedAt,
	}, nil
}

func (d *paymentDocument) toModel() (*model.Payment, error) {
	amount, err := mongotx.FromDecimal128(d.Amount)
	if err != nil {
		return nil, err
	}
	return &model.Payment{
		ID:          d.ID.Hex(),
		BookingID:   d.BookingID,
		PayerID:     d.PayerID,
		PayerEmail:  d.PayerEmail,
		TxRef:       d.TxRef,
		ProviderRef: d.ProviderRef,
		CheckoutURL: d.CheckoutURL,
		Amount:      model.NewMoney(amount, d.Currency),
		Method:      d.Method,
		Status:      d.Status,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		VerifiedAt:  d.VerifiedAt,
	}, nil
}

func (r *mongoPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	payment.CreatedAt = now
	payment.UpdatedAt = now

	doc, err := toPaymentDocument(payment)
	if err != nil {
		return fmt.Errorf("failed to encode payment: %w", err)
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return paymentserrors.ErrDuplicatePayment
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		payment.ID = oid.Hex()
	}
	return nil
}

func (r *mongoPaymentRepository) FindByTxRef(ctx context.Context, txRef string) (*model.Payment, error) {
	return r.findOne(ctx, bson.M{"tx_ref": txRef})
}

func (r *mongoPaymentRepository) FindPending(ctx context.Context, bookingID string, method string) (*model.Payment, error) {
	return r.findOne(ctx, bson.M{
		"booking_id":     bookingID,
		"payment_method": method,
		"status":         model.PaymentPending,
	})
}

func (r *mongoPaymentRepository) findOne(ctx context.Context, filter bson.M) (*model.Payment, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var doc paymentDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, paymentserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return doc.toModel()
}

func (r *mongoPaymentRepository) HasPending(ctx context.Context, bookingID string) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx,
		bson.M{"booking_id": bookingID, "status": model.PaymentPending},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("failed to count pending payments: %w", err)
	}
	return count > 0, nil
}

func (r *mongoPaymentRepository) FindByBooking(ctx context.Context, bookingID string, limit int, offset int64) ([]*model.Payment, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find payments: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []paymentDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}

	payments := make([]*model.Payment, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (r *mongoPaymentRepository) CountByBooking(ctx context.Context, bookingID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"booking_id": bookingID})
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

func (r *mongoPaymentRepository) Transition(ctx context.Context, txRef string, from string, to string, at time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	current := &model.Payment{Status: from}
	if err := current.CanTransitionTo(to); err != nil {
		return err
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"tx_ref": txRef, "status": from},
		bson.M{"$set": bson.M{
			"status":      to,
			"updated_at":  at,
			"verified_at": at,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"tx_ref": txRef})
	if err != nil {
		return fmt.Errorf("failed to check payment existence: %w", err)
	}
	if count == 0 {
		return paymentserrors.ErrNotFound
	}
	return paymentserrors.ErrStaleStatus
}

func (r *mongoPaymentRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
