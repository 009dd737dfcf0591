package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Migration is the record stored for every applied migration
type Migration struct {
	Version     string    `bson:"version"`
	Description string    `bson:"description"`
	AppliedAt   time.Time `bson:"applied_at"`
}

// MigrationFunc defines a migration function signature
type MigrationFunc func(ctx context.Context, db *mongo.Database) error

// RegisteredMigration holds migration metadata and functions
type RegisteredMigration struct {
	Version     string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc // optional
}

// StatusEntry reports whether a registered migration has been applied
type StatusEntry struct {
	Version     string
	Description string
	AppliedAt   *time.Time
}

// Runner applies registered migrations in version order. Index builds are not
// transactional in MongoDB, so every Up must be safe to re-run.
type Runner struct {
	db         *mongo.Database
	collection *mongo.Collection
	migrations []RegisteredMigration
}

func NewRunner(db *mongo.Database) *Runner {
	return &Runner{
		db:         db,
		collection: db.Collection("_migrations"),
	}
}

func (r *Runner) Register(migration RegisteredMigration) {
	r.migrations = append(r.migrations, migration)
	sort.SliceStable(r.migrations, func(i, j int) bool {
		return r.migrations[i].Version < r.migrations[j].Version
	})
}

// Run executes all pending migrations and returns the versions it applied
func (r *Runner) Run(ctx context.Context) ([]string, error) {
	if _, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("failed to create migrations index: %w", err)
	}

	applied, err := r.appliedSet(ctx)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, migration := range r.migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}

		slog.InfoContext(ctx, "Running migration", "version", migration.Version, "description", migration.Description)
		if err := migration.Up(ctx, r.db); err != nil {
			return ran, fmt.Errorf("migration %s failed: %w", migration.Version, err)
		}

		record := Migration{
			Version:     migration.Version,
			Description: migration.Description,
			AppliedAt:   time.Now().UTC(),
		}
		if _, err := r.collection.InsertOne(ctx, record); err != nil {
			return ran, fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}
		ran = append(ran, migration.Version)
	}

	return ran, nil
}

// Rollback reverts the last n applied migrations that have a Down function
func (r *Runner) Rollback(ctx context.Context, steps int) error {
	applied, err := r.appliedList(ctx)
	if err != nil {
		return err
	}
	if steps > len(applied) {
		steps = len(applied)
	}

	byVersion := make(map[string]RegisteredMigration, len(r.migrations))
	for _, m := range r.migrations {
		byVersion[m.Version] = m
	}

	for i := len(applied) - 1; i >= len(applied)-steps; i-- {
		version := applied[i].Version
		migration, ok := byVersion[version]
		if !ok {
			return fmt.Errorf("migration %s is applied but not registered", version)
		}
		if migration.Down == nil {
			slog.WarnContext(ctx, "Migration has no rollback, skipping", "version", version)
			continue
		}
		if err := migration.Down(ctx, r.db); err != nil {
			return fmt.Errorf("rollback %s failed: %w", version, err)
		}
		if _, err := r.collection.DeleteOne(ctx, bson.M{"version": version}); err != nil {
			return fmt.Errorf("failed to remove migration record %s: %w", version, err)
		}
		slog.InfoContext(ctx, "Rolled back migration", "version", version)
	}
	return nil
}

// Status lists every registered migration with its applied time, if any
func (r *Runner) Status(ctx context.Context) ([]StatusEntry, error) {
	applied, err := r.appliedSet(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]StatusEntry, 0, len(r.migrations))
	for _, m := range r.migrations {
		entry := StatusEntry{Version: m.Version, Description: m.Description}
		if rec, ok := applied[m.Version]; ok {
			at := rec.AppliedAt
			entry.AppliedAt = &at
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *Runner) appliedList(ctx context.Context) ([]Migration, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	defer cursor.Close(ctx)

	var applied []Migration
	if err := cursor.All(ctx, &applied); err != nil {
		return nil, fmt.Errorf("failed to decode applied migrations: %w", err)
	}
	return applied, nil
}

func (r *Runner) appliedSet(ctx context.Context) (map[string]Migration, error) {
	list, err := r.appliedList(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]Migration, len(list))
	for _, m := range list {
		set[m.Version] = m
	}
	return set, nil
}
