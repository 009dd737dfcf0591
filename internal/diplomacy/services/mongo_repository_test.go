package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go-concord/internal/diplomacy/models"
	"go-concord/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func duplicateKeyErr() error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error collection: concord.treaties index: open_slot_unique",
	}}}
}

func TestMongoWriteErrorMapping(t *testing.T) {
	otherWrite := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 121, Message: "Document failed validation"}}}
	network := errors.New("connection reset")

	t.Run("insert", func(t *testing.T) {
		tests := []struct {
			name  string
			err   error
			stale bool
		}{
			{name: "success"},
			{name: "duplicate id means another writer created it", err: duplicateKeyErr(), stale: true},
			{name: "wrapped duplicate id", err: fmt.Errorf("insert: %w", duplicateKeyErr()), stale: true},
			{name: "other write error passes through", err: otherWrite},
			{name: "network error passes through", err: network},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := insertErr(tt.err)
				if tt.stale {
					assert.ErrorIs(t, got, ErrStaleWrite)
					return
				}
				assert.Equal(t, tt.err, got)
			})
		}
	})

	t.Run("replace", func(t *testing.T) {
		tests := []struct {
			name string
			res  *mongo.UpdateResult
			err  error
			want error
		}{
			{name: "matched", res: &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}},
			{name: "version moved on", res: &mongo.UpdateResult{MatchedCount: 0}, want: ErrStaleWrite},
			{name: "no result", want: ErrStaleWrite},
			{name: "driver error wins", err: network, want: network},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := replaceErr(tt.res, tt.err)
				if tt.want == nil {
					assert.NoError(t, got)
					return
				}
				assert.ErrorIs(t, got, tt.want)
			})
		}
	})

	t.Run("treaty insert", func(t *testing.T) {
		tests := []struct {
			name    string
			err     error
			want    error
			wantMsg string
		}{
			{name: "success"},
			{name: "open slot taken", err: duplicateKeyErr(), want: ErrOpenSlotTaken},
			{name: "other error is wrapped", err: network, want: network, wantMsg: "failed to insert treaty t1"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := treatyWriteErr(tt.err, "failed to insert treaty t1")
				if tt.want == nil {
					assert.NoError(t, got)
					return
				}
				assert.ErrorIs(t, got, tt.want)
				if tt.wantMsg != "" {
					assert.Contains(t, got.Error(), tt.wantMsg)
				}
			})
		}
	})
}

// newMongoTestRepository connects to MONGODB_URI and works in a throwaway
// database with the open slot index in place
func newMongoTestRepository(t *testing.T) *MongoRepository {
	t.Helper()
	if os.Getenv("MONGODB_URI") == "" {
		t.Skip("MONGODB_URI not set")
	}

	ctx := context.Background()
	db, err := database.NewMongoDB(ctx, "concord")
	require.NoError(t, err)

	name := "concord_test_" + uuid.New().String()[:8]
	db.Database = db.Client.Database(name)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Database.Drop(ctx)
		_ = db.Close(ctx)
	})

	_, err = db.Collection(models.TreatyCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "open_slot", Value: 1}},
		Options: options.Index().
			SetName("open_slot_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"open_slot": bson.M{"$exists": true}}),
	})
	require.NoError(t, err)

	return NewMongoRepository(db)
}

func TestMongoRepositoryStorageErrors(t *testing.T) {
	repo := newMongoTestRepository(t)
	ctx := context.Background()
	key := models.NewPairKey("red", "blue")

	newTreaty := func() *models.Treaty {
		slot := key
		return &models.Treaty{ID: uuid.New().String(), PairKey: key, ProposingTeam: "red", TargetTeam: "blue", Status: models.TreatyProposed, OpenSlot: &slot, ProposedAt: time.Now().UTC()}
	}

	t.Run("second open treaty for a pair", func(t *testing.T) {
		first := newTreaty()
		require.NoError(t, repo.InsertTreaty(ctx, first))
		assert.ErrorIs(t, repo.InsertTreaty(ctx, newTreaty()), ErrOpenSlotTaken)

		first.Status = models.TreatyRejected
		first.OpenSlot = nil
		require.NoError(t, repo.UpdateTreaty(ctx, first))
		require.NoError(t, repo.InsertTreaty(ctx, newTreaty()))
	})

	t.Run("stale relation version", func(t *testing.T) {
		rel := models.NeutralRelation("red", "green")
		rel.Status = models.RelationHostile
		require.NoError(t, repo.SaveRelation(ctx, rel))

		again := models.NeutralRelation("red", "green")
		assert.ErrorIs(t, repo.SaveRelation(ctx, again), ErrStaleWrite)

		first, err := repo.GetRelation(ctx, rel.PairKey)
		require.NoError(t, err)
		second, err := repo.GetRelation(ctx, rel.PairKey)
		require.NoError(t, err)

		first.Status = models.RelationWar
		require.NoError(t, repo.SaveRelation(ctx, first))
		second.Status = models.RelationNeutral
		assert.ErrorIs(t, repo.SaveRelation(ctx, second), ErrStaleWrite)
		assert.Equal(t, int64(1), second.Version)
	})
}
