package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"space_id",
			"start_time",
			"end_time",
			"status",
			"is_external",
			"version",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"space_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"party": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"user_id": bson.M{"bsonType": "string"},
					"name":    bson.M{"bsonType": "string", "maxLength": 100},
					"email":   bson.M{"bsonType": "string"},
					"phone":   bson.M{"bsonType": "string", "pattern": `^\+[1-9][0-9]{1,14}$`},
				},
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"confirmed",
					"conflict",
					"checked_in",
					"checkout",
					"completed",
					"cancelled",
					"no_show",
				},
			},

			"is_external": bson.M{
				"bsonType": "bool",
			},

			"external_source_url": bson.M{
				"bsonType":  "string",
				"maxLength": 2048,
			},

			"external_uid": bson.M{
				"bsonType":  "string",
				"maxLength": 1024,
			},

			"notification_email": bson.M{
				"bsonType": "string",
			},

			"cancellation_reason": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
