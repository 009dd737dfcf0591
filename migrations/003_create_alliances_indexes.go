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
		Version:     "003_create_alliances_indexes",
		Description: "Create membership and expiry indexes for diplomatic_alliances",
		Up:          up003,
		Down:        down003,
	})
}

func up003(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection(models.AllianceCollection), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "members", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("members_status"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("status_expires_at"),
		},
	})
}

func down003(ctx context.Context, db *mongo.Database) error {
	return dropIndexes(ctx, db.Collection(models.AllianceCollection), "members_status", "status_expires_at")
}
