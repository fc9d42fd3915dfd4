package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"listing_id",
			"guest_id",
			"start_date",
			"end_date",
			"guest_count",
			"total_price",
			"currency",
			"booking_status",
			"payment_status",
			"payment_attempts",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"listing_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"guest_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"guest_email": bson.M{
				"bsonType":  "string",
				"maxLength": 254,
			},

			"start_date": bson.M{
				"bsonType": "date",
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"guest_count": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  50,
			},

			"total_price": bson.M{
				"bsonType": "decimal",
			},

			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},

			"booking_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"confirmed",
					"cancelled",
				},
			},

			"payment_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"paid",
					"failed",
				},
			},

			"payment_method": bson.M{
				"bsonType": "string",
				"enum": []string{
					"credit_card",
					"paypal",
					"bank_transfer",
				},
			},

			"cancellation_policy": bson.M{
				"bsonType": "string",
				"enum": []string{
					"flexible",
					"moderate",
					"strict",
				},
			},

			"payment_attempts": bson.M{
				"bsonType": "int",
				"minimum":  0,
			},

			"initiation": bson.M{
				"bsonType": "object",
				"required": []string{"tx_ref", "expires_at"},
				"properties": bson.M{
					"tx_ref":     bson.M{"bsonType": "string"},
					"expires_at": bson.M{"bsonType": "date"},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
