package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "rentpay/internal/bookings/errors"
	"rentpay/pkg/config"
	mongotx "rentpay/pkg/db/mongo"
	"rentpay/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CollectionName = "Bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// ClaimInitiation records claim and advances payment_attempts, provided the
	// counter still equals expectedAttempts and no live claim exists.
	ClaimInitiation(ctx context.Context, id string, expectedAttempts int, claim model.InitiationClaim, now time.Time) error
	// ReleaseInitiation clears the claim only if it still carries txRef.
	ReleaseInitiation(ctx context.Context, id string, txRef string, now time.Time) error
	MarkPaid(ctx context.Context, id string, now time.Time) error
	Cancel(ctx context.Context, id string, now time.Time) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

type initiationDocument struct {
	TxRef     string    `bson:"tx_ref"`
	Method    string    `bson:"payment_method"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type bookingDocument struct {
	ID                 primitive.ObjectID   `bson:"_id,omitempty"`
	ListingID          string               `bson:"listing_id"`
	GuestID            string               `bson:"guest_id"`
	GuestEmail         string               `bson:"guest_email"`
	GuestPhone         string               `bson:"guest_phone,omitempty"`
	StartDate          time.Time            `bson:"start_date"`
	EndDate            time.Time            `bson:"end_date"`
	GuestCount         int                  `bson:"guest_count"`
	TotalPrice         primitive.Decimal128 `bson:"total_price"`
	Currency           string               `bson:"currency"`
	BookingStatus      string               `bson:"booking_status"`
	PaymentStatus      string               `bson:"payment_status"`
	PaymentMethod      string               `bson:"payment_method"`
	CancellationPolicy string               `bson:"cancellation_policy"`
	SpecialRequests    string               `bson:"special_requests,omitempty"`
	PaymentAttempts    int                  `bson:"payment_attempts"`
	Initiation         *initiationDocument  `bson:"initiation,omitempty"`
	CreatedAt          time.Time            `bson:"created_at"`
	UpdatedAt          time.Time            `bson:"updated_at"`
}

func toBookingDocument(b *model.Booking) (*bookingDocument, error) {
	total, err := mongotx.ToDecimal128(b.TotalPrice.Amount)
	if err != nil {
		return nil, err
	}
	doc := &bookingDocument{
		ListingID:          b.ListingID,
		GuestID:            b.GuestID,
		GuestEmail:         b.GuestEmail,
		GuestPhone:         b.GuestPhone,
		StartDate:          b.Stay.Start,
		EndDate:            b.Stay.End,
		GuestCount:         b.GuestCount,
		TotalPrice:         total,
		Currency:           b.TotalPrice.Currency,
		BookingStatus:      b.BookingStatus,
		PaymentStatus:      b.PaymentStatus,
		PaymentMethod:      b.PaymentMethod,
		CancellationPolicy: b.CancellationPolicy,
		SpecialRequests:    b.SpecialRequests,
		PaymentAttempts:    b.PaymentAttempts,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
	if b.Initiation != nil {
		doc.Initiation = &initiationDocument{
			TxRef:     b.Initiation.TxRef,
			Method:    b.Initiation.Method,
			ExpiresAt: b.Initiation.ExpiresAt,
		}
	}
	return doc, nil
}

func (d *bookingDocument) toModel() (*model.Booking, error) {
	total, err := mongotx.FromDecimal128(d.TotalPrice)
	if err != nil {
		return nil, err
	}
	b := &model.Booking{
		ID:                 d.ID.Hex(),
		ListingID:          d.ListingID,
		GuestID:            d.GuestID,
		GuestEmail:         d.GuestEmail,
		GuestPhone:         d.GuestPhone,
		Stay:               model.DateRange{Start: d.StartDate.UTC(), End: d.EndDate.UTC()},
		GuestCount:         d.GuestCount,
		TotalPrice:         model.NewMoney(total, d.Currency),
		BookingStatus:      d.BookingStatus,
		PaymentStatus:      d.PaymentStatus,
		PaymentMethod:      d.PaymentMethod,
		CancellationPolicy: d.CancellationPolicy,
		SpecialRequests:    d.SpecialRequests,
		PaymentAttempts:    d.PaymentAttempts,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if d.Initiation != nil {
		b.Initiation = &model.InitiationClaim{
			TxRef:     d.Initiation.TxRef,
			Method:    d.Initiation.Method,
			ExpiresAt: d.Initiation.ExpiresAt,
		}
	}
	return b, nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	doc, err := toBookingDocument(booking)
	if err != nil {
		return fmt.Errorf("failed to encode booking: %w", err)
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrDuplicate
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc bookingDocument
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return doc.toModel()
}

func (r *mongoBookingRepository) ClaimInitiation(ctx context.Context, id string, expectedAttempts int, claim model.InitiationClaim, now time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":              oid,
		"payment_attempts": expectedAttempts,
		"payment_status":   bson.M{"$ne": model.PaymentStatusPaid},
		"booking_status":   bson.M{"$ne": model.BookingCancelled},
		"$or": bson.A{
			bson.M{"initiation": bson.M{"$exists": false}},
			bson.M{"initiation": nil},
			bson.M{"initiation.expires_at": bson.M{"$lte": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"initiation": initiationDocument{
				TxRef:     claim.TxRef,
				Method:    claim.Method,
				ExpiresAt: claim.ExpiresAt,
			},
			"updated_at": now,
		},
		"$inc": bson.M{"payment_attempts": 1},
	}

	return r.conditionalUpdate(ctx, filter, update, bookingserrors.ErrStaleStatus)
}

func (r *mongoBookingRepository) ReleaseInitiation(ctx context.Context, id string, txRef string, now time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": oid, "initiation.tx_ref": txRef}
	update := bson.M{
		"$unset": bson.M{"initiation": ""},
		"$set":   bson.M{"updated_at": now},
	}

	return r.conditionalUpdate(ctx, filter, update, bookingserrors.ErrClaimLost)
}

func (r *mongoBookingRepository) MarkPaid(ctx context.Context, id string, now time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":            oid,
		"payment_status": bson.M{"$ne": model.PaymentStatusPaid},
		"booking_status": bson.M{"$ne": model.BookingCancelled},
	}
	update := bson.M{
		"$set": bson.M{
			"payment_status": model.PaymentStatusPaid,
			"booking_status": model.BookingConfirmed,
			"updated_at":     now,
		},
	}

	return r.conditionalUpdate(ctx, filter, update, bookingserrors.ErrStaleStatus)
}

func (r *mongoBookingRepository) Cancel(ctx context.Context, id string, now time.Time) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":            oid,
		"payment_status": bson.M{"$ne": model.PaymentStatusPaid},
		"booking_status": bson.M{"$ne": model.BookingCancelled},
	}
	update := bson.M{
		"$set": bson.M{
			"booking_status": model.BookingCancelled,
			"updated_at":     now,
		},
	}

	return r.conditionalUpdate(ctx, filter, update, bookingserrors.ErrStaleStatus)
}

// conditionalUpdate distinguishes a missing booking from a guard that no
// longer holds, returning staleErr for the latter.
func (r *mongoBookingRepository) conditionalUpdate(ctx context.Context, filter bson.M, update bson.M, staleErr error) error {
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": filter["_id"]})
	if err != nil {
		return fmt.Errorf("failed to check booking existence: %w", err)
	}
	if count == 0 {
		return bookingserrors.ErrNotFound
	}
	return staleErr
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
