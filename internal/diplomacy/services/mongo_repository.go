package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-concord/internal/diplomacy/models"
	"go-concord/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository stores diplomacy state in MongoDB
type MongoRepository struct {
	mongodb   *database.MongoDB
	relations *mongo.Collection
	treaties  *mongo.Collection
	alliances *mongo.Collection
}

// NewMongoRepository creates a repository over the diplomacy collections
func NewMongoRepository(mongodb *database.MongoDB) *MongoRepository {
	return &MongoRepository{
		mongodb:   mongodb,
		relations: mongodb.Collection(models.RelationCollection),
		treaties:  mongodb.Collection(models.TreatyCollection),
		alliances: mongodb.Collection(models.AllianceCollection),
	}
}

func (r *MongoRepository) HealthCheck(ctx context.Context) error {
	return r.mongodb.HealthCheck(ctx)
}

// InTx runs fn inside a multi-document transaction. The deployment must be a
// replica set or sharded cluster. WithTransaction may call fn more than once
// on transient errors.
func (r *MongoRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := r.mongodb.Client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// GetRelation loads the relation for a pair key
func (r *MongoRepository) GetRelation(ctx context.Context, key models.PairKey) (*models.Relation, error) {
	var rel models.Relation
	if err := r.relations.FindOne(ctx, bson.M{"_id": key}).Decode(&rel); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load relation %s: %w", key, err)
	}
	return &rel, nil
}

// ListRelations returns every stored relation involving team
func (r *MongoRepository) ListRelations(ctx context.Context, team string) ([]*models.Relation, error) {
	filter := bson.M{"$or": []bson.M{{"team_a": team}, {"team_b": team}}}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.relations.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations for %s: %w", team, err)
	}
	defer cursor.Close(ctx)

	var out []*models.Relation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode relations: %w", err)
	}
	return out, nil
}

// SaveRelation inserts or version-checked replaces the relation
func (r *MongoRepository) SaveRelation(ctx context.Context, rel *models.Relation) error {
	return saveVersioned(ctx, r.relations, rel.PairKey, &rel.Version, &rel.UpdatedAt, rel)
}

func (r *MongoRepository) GetTreaty(ctx context.Context, id string) (*models.Treaty, error) {
	return findOne[models.Treaty](ctx, r.treaties, bson.M{"_id": id}, "treaty "+id)
}

// FindOpenTreaty returns the proposed or active treaty holding the pair slot
func (r *MongoRepository) FindOpenTreaty(ctx context.Context, key models.PairKey) (*models.Treaty, error) {
	return findOne[models.Treaty](ctx, r.treaties, bson.M{"open_slot": key}, "open treaty for "+string(key))
}

func (r *MongoRepository) ListTreaties(ctx context.Context, team string, statuses []models.TreatyStatus) ([]*models.Treaty, error) {
	filter := bson.M{"$or": []bson.M{{"proposing_team": team}, {"target_team": team}}}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	opts := options.Find().SetSort(bson.D{{Key: "proposed_at", Value: 1}})
	return findMany[models.Treaty](ctx, r.treaties, filter, opts, "treaties")
}

// ListExpiredTreaties returns active treaties whose expiry is at or before now
func (r *MongoRepository) ListExpiredTreaties(ctx context.Context, now time.Time) ([]*models.Treaty, error) {
	filter := bson.M{
		"status":     models.TreatyActive,
		"expires_at": bson.M{"$lte": now},
	}
	return findMany[models.Treaty](ctx, r.treaties, filter, options.Find(), "expired treaties")
}

// InsertTreaty stores a new treaty; a duplicate open slot maps to ErrOpenSlotTaken
func (r *MongoRepository) InsertTreaty(ctx context.Context, t *models.Treaty) error {
	doc := t.Clone()
	doc.Version = 1
	doc.UpdatedAt = time.Now().UTC()

	if _, err := r.treaties.InsertOne(ctx, doc); err != nil {
		return treatyWriteErr(err, fmt.Sprintf("failed to insert treaty %s", t.ID))
	}
	t.Version, t.UpdatedAt = doc.Version, doc.UpdatedAt
	return nil
}

func (r *MongoRepository) UpdateTreaty(ctx context.Context, t *models.Treaty) error {
	err := saveVersioned(ctx, r.treaties, t.ID, &t.Version, &t.UpdatedAt, t)
	if mongo.IsDuplicateKeyError(err) {
		return ErrOpenSlotTaken
	}
	return err
}

func (r *MongoRepository) GetAlliance(ctx context.Context, id string) (*models.Alliance, error) {
	return findOne[models.Alliance](ctx, r.alliances, bson.M{"_id": id}, "alliance "+id)
}

func (r *MongoRepository) ListAlliances(ctx context.Context, team string, includeDissolved bool) ([]*models.Alliance, error) {
	filter := bson.M{"members": team}
	if !includeDissolved {
		filter["status"] = models.AllianceActive
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findMany[models.Alliance](ctx, r.alliances, filter, opts, "alliances")
}

func (r *MongoRepository) ListExpiredAlliances(ctx context.Context, now time.Time) ([]*models.Alliance, error) {
	filter := bson.M{
		"status":     models.AllianceActive,
		"expires_at": bson.M{"$lte": now},
	}
	return findMany[models.Alliance](ctx, r.alliances, filter, options.Find(), "expired alliances")
}

func (r *MongoRepository) InsertAlliance(ctx context.Context, a *models.Alliance) error {
	doc := a.Clone()
	doc.Version = 1
	doc.UpdatedAt = time.Now().UTC()

	if _, err := r.alliances.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert alliance %s: %w", a.ID, err)
	}
	a.Version, a.UpdatedAt = doc.Version, doc.UpdatedAt
	return nil
}

func (r *MongoRepository) UpdateAlliance(ctx context.Context, a *models.Alliance) error {
	return saveVersioned(ctx, r.alliances, a.ID, &a.Version, &a.UpdatedAt, a)
}

// saveVersioned writes doc under the optimistic version protocol. version and
// updatedAt point into doc and are only advanced once the write succeeded.
func saveVersioned(ctx context.Context, coll *mongo.Collection, id any, version *int64, updatedAt *time.Time, doc any) error {
	prevVersion, prevUpdated := *version, *updatedAt
	*version = prevVersion + 1
	*updatedAt = time.Now().UTC()

	var err error
	if prevVersion == 0 {
		_, err = coll.InsertOne(ctx, doc)
		err = insertErr(err)
	} else {
		var res *mongo.UpdateResult
		res, err = coll.ReplaceOne(ctx, bson.M{"_id": id, "version": prevVersion}, doc)
		err = replaceErr(res, err)
	}

	if err != nil {
		*version, *updatedAt = prevVersion, prevUpdated
		if errors.Is(err, ErrStaleWrite) || mongo.IsDuplicateKeyError(err) {
			return err
		}
		return fmt.Errorf("failed to save %s %v: %w", coll.Name(), id, err)
	}
	return nil
}

// insertErr maps the result of a first-version insert. Documents created
// through saveVersioned have no unique index besides _id, so a duplicate key
// means another writer created the record first.
func insertErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrStaleWrite
	}
	return err
}

// replaceErr maps the result of a version-guarded replace
func replaceErr(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return err
	}
	if res == nil || res.MatchedCount == 0 {
		return ErrStaleWrite
	}
	return nil
}

// treatyWriteErr maps a duplicate key on the open_slot index to ErrOpenSlotTaken
func treatyWriteErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrOpenSlotTaken
	}
	return fmt.Errorf("%s: %w", what, err)
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, what string) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to load %s: %w", what, err)
	}
	return &out, nil
}

func findMany[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions, what string) ([]*T, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer cursor.Close(ctx)

	var out []*T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return out, nil
}
