package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// isIndexExistsError checks if error is due to index already existing
func isIndexExistsError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "already exists") ||
		strings.Contains(errStr, "IndexKeySpecsConflict") ||
		strings.Contains(errStr, "IndexOptionsConflict")
}

// createIndexes builds every index in models, tolerating ones that already exist
func createIndexes(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	for _, model := range models {
		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil && !isIndexExistsError(err) {
			return fmt.Errorf("failed to create index on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// dropIndexes removes the named indexes, ignoring ones that are already gone
func dropIndexes(ctx context.Context, coll *mongo.Collection, names ...string) error {
	for _, name := range names {
		if _, err := coll.Indexes().DropOne(ctx, name); err != nil && !strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("failed to drop index %s on %s: %w", name, coll.Name(), err)
		}
	}
	return nil
}
