package validators

import "go.mongodb.org/mongo-driver/bson"

var SpaceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"buffer_minutes",
			"cleaning_duration_minutes",
			"sync",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"time_zone": bson.M{
				"bsonType": "string",
			},

			"buffer_minutes": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  720,
			},

			"cleaning_duration_minutes": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  720,
			},

			"sync": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"import_urls": bson.M{
						"bsonType": []string{"array", "null"},
						"maxItems": 20,
						"items":    bson.M{"bsonType": "string"},
					},
					"auto_sync_enabled": bson.M{
						"bsonType": "bool",
					},
					"sync_interval_minutes": bson.M{
						"bsonType": []string{"int", "long"},
						"minimum":  0,
						"maximum":  10080,
					},
					"state": bson.M{
						"bsonType": "object",
						"properties": bson.M{
							"status": bson.M{
								"bsonType": "string",
								"enum":     []string{"", "idle", "syncing", "error"},
							},
						},
					},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
