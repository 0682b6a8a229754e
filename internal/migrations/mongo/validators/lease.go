package validators

import "go.mongodb.org/mongo-driver/bson"

var LeaseValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"owner", "acquired_at", "expires_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string", "minLength": 1},
			"owner":       bson.M{"bsonType": "string", "minLength": 1},
			"acquired_at": bson.M{"bsonType": "date"},
			"expires_at":  bson.M{"bsonType": "date"},
		},
	},
}
