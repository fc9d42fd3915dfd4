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

const ListingsCollectionName = "Listings"

// ListingRepository is read-only; listings are owned by the catalogue service.
type ListingRepository interface {
	FindByID(ctx context.Context, id string) (*model.Listing, error)
}

type mongoListingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoListingRepository(cfg *config.Config) ListingRepository {
	return &mongoListingRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(ListingsCollectionName),
	}
}

type listingDocument struct {
	ID            primitive.ObjectID   `bson:"_id"`
	HostID        string               `bson:"host_id"`
	Title         string               `bson:"title"`
	PricePerNight primitive.Decimal128 `bson:"price_per_night"`
	Currency      string               `bson:"currency"`
	MaxGuests     int                  `bson:"max_guests"`
	Status        string               `bson:"status"`
	Available     bool                 `bson:"availability"`
	CreatedAt     time.Time            `bson:"created_at"`
}

func (r *mongoListingRepository) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var doc listingDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}

	price, err := mongotx.FromDecimal128(doc.PricePerNight)
	if err != nil {
		return nil, err
	}

	return &model.Listing{
		ID:            doc.ID.Hex(),
		HostID:        doc.HostID,
		Title:         doc.Title,
		PricePerNight: model.NewMoney(price, doc.Currency),
		MaxGuests:     doc.MaxGuests,
		Status:        doc.Status,
		Available:     doc.Available,
		CreatedAt:     doc.CreatedAt,
	}, nil
}
