package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-concord/internal/diplomacy/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRelationWrite = errors.New("relation write failed")

// failingRepository fails a set number of relation writes before delegating
type failingRepository struct {
	*MemoryRepository

	mu       sync.Mutex
	failures int
}

func (r *failingRepository) failRelationWrites(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = n
}

func (r *failingRepository) SaveRelation(ctx context.Context, rel *models.Relation) error {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return errRelationWrite
	}
	r.mu.Unlock()
	return r.MemoryRepository.SaveRelation(ctx, rel)
}

func newFailingFixture(t *testing.T) (*fixture, *failingRepository) {
	t.Helper()
	f := newFixture(t)
	repo := &failingRepository{MemoryRepository: f.repo}
	f.svc = NewService(repo, f.locker, f.events, f.gate, Config{
		Policy:       DefaultPolicy(),
		WriteTimeout: time.Second,
		Now:          f.clock.now,
	})
	return f, repo
}

type pairState struct {
	treaty      models.TreatyStatus
	relation    models.RelationStatus
	holdsTreaty bool
}

func TestFailedRelationWriteRollsBackTransition(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, f *fixture) *models.Treaty
		act    func(f *fixture, treaty *models.Treaty) error
		before pairState
		after  pairState
	}{
		{
			name: "accept defense treaty",
			setup: func(t *testing.T, f *fixture) *models.Treaty {
				return f.propose(t, "red", "blue", models.TreatyDefense, 0)
			},
			act: func(f *fixture, treaty *models.Treaty) error {
				_, err := f.svc.Treaties.Accept(context.Background(), officer("blue"), treaty.ID, "blue")
				return err
			},
			before: pairState{treaty: models.TreatyProposed, relation: models.RelationNeutral},
			after:  pairState{treaty: models.TreatyActive, relation: models.RelationAlly, holdsTreaty: true},
		},
		{
			name: "war cancels active defense treaty",
			setup: func(t *testing.T, f *fixture) *models.Treaty {
				return f.accept(t, f.propose(t, "red", "blue", models.TreatyDefense, 0))
			},
			act: func(f *fixture, treaty *models.Treaty) error {
				_, err := f.svc.Relations.DeclareWar(context.Background(), officer("red"), "red", "blue")
				return err
			},
			before: pairState{treaty: models.TreatyActive, relation: models.RelationAlly, holdsTreaty: true},
			after:  pairState{treaty: models.TreatyCancelled, relation: models.RelationWar},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, repo := newFailingFixture(t)
			treaty := tt.setup(t, f)
			f.events.reset()

			assertPair := func(want pairState) {
				t.Helper()
				stored, err := f.svc.Treaties.GetTreaty(context.Background(), treaty.ID)
				require.NoError(t, err)
				assert.Equal(t, want.treaty, stored.Status)

				rel := f.relation(t, "red", "blue")
				assert.Equal(t, want.relation, rel.Status)
				if want.holdsTreaty {
					assert.Equal(t, treaty.ID, rel.ActiveTreatyID)
				} else {
					assert.Empty(t, rel.ActiveTreatyID)
				}
			}

			repo.failRelationWrites(1)
			assert.ErrorIs(t, tt.act(f, treaty), errRelationWrite)
			assertPair(tt.before)
			assert.Empty(t, f.events.all())

			require.NoError(t, tt.act(f, treaty))
			assertPair(tt.after)

			changed := f.events.ofType(models.EventRelationChanged)
			require.Len(t, changed, 1)
			assert.Equal(t, tt.before.relation, changed[0].Relation.Old)
			assert.Equal(t, tt.after.relation, changed[0].Relation.New)

			resolved := f.events.ofType(models.EventTreatyResolved)
			require.Len(t, resolved, 1)
			assert.Equal(t, tt.after.treaty, resolved[0].Treaty.Status)
		})
	}
}

func TestMemoryRepositoryTransaction(t *testing.T) {
	key := models.NewPairKey("red", "blue")
	errAbort := errors.New("abort")

	newTreaty := func(id string) *models.Treaty {
		slot := key
		return &models.Treaty{ID: id, PairKey: key, ProposingTeam: "red", TargetTeam: "blue", Status: models.TreatyProposed, OpenSlot: &slot, ProposedAt: time.Now()}
	}

	tests := []struct {
		name      string
		fail      bool
		wantErr   error
		committed bool
	}{
		{name: "commits when fn succeeds", committed: true},
		{name: "rolls back when fn fails", fail: true, wantErr: errAbort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMemoryRepository()
			ctx := context.Background()

			existing := &models.Alliance{ID: "al", Members: []string{"red", "blue"}, Status: models.AllianceActive}
			require.NoError(t, repo.InsertAlliance(ctx, existing))

			err := repo.InTx(ctx, func(ctx context.Context) error {
				require.NoError(t, repo.InsertTreaty(ctx, newTreaty("t1")))

				rel := models.NeutralRelation("red", "blue")
				rel.Status = models.RelationHostile
				require.NoError(t, repo.SaveRelation(ctx, rel))

				// a nested transaction joins the outer one
				require.NoError(t, repo.InTx(ctx, func(ctx context.Context) error {
					a, err := repo.GetAlliance(ctx, "al")
					require.NoError(t, err)
					a.Members = []string{"red", "blue", "green"}
					return repo.UpdateAlliance(ctx, a)
				}))

				if tt.fail {
					return errAbort
				}
				return nil
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			alliance, err := repo.GetAlliance(ctx, "al")
			require.NoError(t, err)
			_, relErr := repo.GetRelation(ctx, key)
			_, treatyErr := repo.GetTreaty(ctx, "t1")
			_, slotErr := repo.FindOpenTreaty(ctx, key)

			if tt.committed {
				assert.NoError(t, relErr)
				assert.NoError(t, treatyErr)
				assert.NoError(t, slotErr)
				assert.Equal(t, []string{"red", "blue", "green"}, alliance.Members)
				assert.Equal(t, int64(2), alliance.Version)
				return
			}

			assert.ErrorIs(t, relErr, ErrRecordNotFound)
			assert.ErrorIs(t, treatyErr, ErrRecordNotFound)
			assert.ErrorIs(t, slotErr, ErrRecordNotFound)
			assert.Equal(t, []string{"red", "blue"}, alliance.Members)
			assert.Equal(t, int64(1), alliance.Version)
			require.NoError(t, repo.InsertTreaty(ctx, newTreaty("t2")))
		})
	}
}
