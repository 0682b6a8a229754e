package validators

import "go.mongodb.org/mongo-driver/bson"

var NotificationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"booking_id",
			"space_id",
			"outcome",
			"state",
			"attempts",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"space_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"outcome": bson.M{
				"bsonType": "string",
				"enum":     []string{"confirmed", "auto_cancelled", "cancelled", "conflict_detected"},
			},

			"state": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "dispatched", "failed"},
			},

			"attempts": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"dispatched_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
