package validators

import "go.mongodb.org/mongo-driver/bson"

var ListingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"host_id", "price_per_night", "currency", "max_guests", "status", "availability"},
		"properties": bson.M{
			"host_id":         bson.M{"bsonType": "string"},
			"title":           bson.M{"bsonType": "string", "maxLength": 200},
			"price_per_night": bson.M{"bsonType": "decimal"},
			"currency":        bson.M{"bsonType": "string", "minLength": 3, "maxLength": 3},
			"max_guests":      bson.M{"bsonType": "int", "minimum": 1},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"available", "booked", "unavailable"},
			},
			"availability": bson.M{"bsonType": "bool"},
		},
	},
}

var BookingLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner", "expires_at"},
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"owner":      bson.M{"bsonType": "string"},
			"expires_at": bson.M{"bsonType": "date"},
		},
	},
}
