package mongo

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ToDecimal128 stores an exact amount as BSON decimal128.
func ToDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	dec, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d.String(), err)
	}
	return dec, nil
}

func FromDecimal128(dec primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(dec.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert decimal128 %s: %w", dec.String(), err)
	}
	return d, nil
}
