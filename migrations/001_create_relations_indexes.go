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
		Version:     "001_create_relations_indexes",
		Description: "Create team lookup indexes for diplomatic_relations",
		Up:          up001,
		Down:        down001,
	})
}

// Relations are keyed by the canonical pair, so only the per-team lookups need indexes
func up001(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection(models.RelationCollection), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "team_a", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("team_a_status"),
		},
		{
			Keys:    bson.D{{Key: "team_b", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("team_b_status"),
		},
	})
}

func down001(ctx context.Context, db *mongo.Database) error {
	return dropIndexes(ctx, db.Collection(models.RelationCollection), "team_a_status", "team_b_status")
}
