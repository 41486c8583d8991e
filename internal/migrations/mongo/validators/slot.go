package validators

import "go.mongodb.org/mongo-driver/bson"

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"start_time",
			"end_time",
			"reserved",
			"version",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"reserved": bson.M{
				"bsonType": "bool",
			},

			"version": bson.M{
				"bsonType": []string{"long", "int"},
				"minimum":  0,
			},
		},
	},
	"$expr": bson.M{
		"$gt": []string{"$end_time", "$start_time"},
	},
}
