package migrations

import (
	"context"

	"go-concord/internal/diplomacy/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func init() {
	Register(Migration{
		Version:     "002_create_treaties_indexes",
		Description: "Create open slot uniqueness and lookup indexes for treaties",
		Up:          up002,
		Down:        down002,
	})
}

func up002(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection(models.TreatyCollection), []mongo.IndexModel{
		{
			// open_slot is only set while a treaty is proposed or active, which
			// makes this the one-open-treaty-per-pair barrier
			Keys: bson.D{{Key: "open_slot", Value: 1}},
			Options: options.Index().
				SetName("open_slot_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"open_slot": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "proposing_team", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("proposing_team_status"),
		},
		{
			Keys:    bson.D{{Key: "target_team", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("target_team_status"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("status_expires_at"),
		},
	})
}

func down002(ctx context.Context, db *mongo.Database) error {
	return dropIndexes(ctx, db.Collection(models.TreatyCollection),
		"open_slot_unique", "proposing_team_status", "target_team_status", "status_expires_at")
}
