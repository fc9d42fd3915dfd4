package validators

import "go.mongodb.org/mongo-driver/bson"

var PaymentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"booking_id",
			"payer_id",
			"tx_ref",
			"amount",
			"currency",
			"payment_method",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"payer_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"tx_ref": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 255,
			},

			"amount": bson.M{
				"bsonType": "decimal",
			},

			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},

			"payment_method": bson.M{
				"bsonType": "string",
				"enum": []string{
					"credit_card",
					"paypal",
					"bank_transfer",
				},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"completed",
					"failed",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"verified_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
