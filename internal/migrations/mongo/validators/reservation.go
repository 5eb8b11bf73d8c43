package validators

import "go.mongodb.org/mongo-driver/bson"

var objectIDHex = bson.M{
	"bsonType": "string",
	"pattern":  "^[0-9a-f]{24}$",
}

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"requester_id",
			"requester_org_id",
			"resource_id",
			"resource_org_id",
			"start_time",
			"end_time",
			"status",
			"is_active",
			"purpose",
			"attendee_count",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"requester_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"requester_org_id": bson.M{
				"bsonType": "string",
			},

			"resource_id": objectIDHex,

			"resource_org_id": bson.M{
				"bsonType": "string",
			},

			"approver_id": bson.M{
				"bsonType": "string",
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
					"PENDING",
					"APPROVED",
					"REJECTED",
					"CANCELLED",
					"COMPLETED",
				},
			},

			"is_active": bson.M{
				"bsonType": "bool",
			},

			"purpose": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 200,
			},

			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"attendee_count": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  500,
			},

			"recurrence": bson.M{
				"bsonType": "object",
				"required": []string{"pattern", "end_date"},
				"properties": bson.M{
					"pattern": bson.M{
						"bsonType": "string",
						"pattern":  "^(DAILY|WEEKLY|CUSTOM)",
					},
					"end_date": bson.M{
						"bsonType": "date",
					},
				},
			},

			"series_id": bson.M{
				"bsonType": "string",
			},

			"rejection_reason": bson.M{
				"bsonType": "string",
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
