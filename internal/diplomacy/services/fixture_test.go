package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-concord/internal/diplomacy/models"
	"go-concord/pkg/permissions"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingNotifier) Notify(ctx context.Context, event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) all() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Event(nil), r.events...)
}

func (r *recordingNotifier) ofType(t models.EventType) []models.Event {
	var out []models.Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingNotifier) types() []models.EventType {
	var out []models.EventType
	for _, e := range r.all() {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc    *Service
	repo   *MemoryRepository
	locker *LocalLocker
	events *recordingNotifier
	clock  *fakeClock
	gate   *permissions.TeamGate
}

var fixtureTeams = []string{"red", "blue", "green", "A", "B", "C", "D"}

func officer(team string) string { return team + "-officer" }
func member(team string) string  { return team + "-member" }

func newFixture(t *testing.T, tweak ...func(*Policy)) *fixture {
	t.Helper()

	policy := DefaultPolicy()
	for _, fn := range tweak {
		fn(&policy)
	}

	gate, err := permissions.NewTeamGate()
	require.NoError(t, err)

	ctx := context.Background()
	for _, team := range fixtureTeams {
		require.NoError(t, gate.AssignRole(ctx, officer(team), team, permissions.RoleOfficer))
		require.NoError(t, gate.AssignRole(ctx, member(team), team, permissions.RoleMember))
	}

	f := &fixture{
		repo:   NewMemoryRepository(),
		locker: NewLocalLocker(),
		events: &recordingNotifier{},
		clock:  &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		gate:   gate,
	}
	f.svc = NewService(f.repo, f.locker, f.events, gate, Config{
		Policy:       policy,
		WriteTimeout: time.Second,
		Now:          f.clock.now,
	})
	return f
}

func (f *fixture) propose(t *testing.T, from, to string, typ models.TreatyType, duration time.Duration) *models.Treaty {
	t.Helper()
	treaty, err := f.svc.Treaties.Propose(context.Background(), officer(from), ProposeTreatyRequest{
		ProposingTeam: from,
		TargetTeam:    to,
		Type:          typ,
		Terms:         []string{"free passage"},
		Duration:      duration,
	})
	require.NoError(t, err)
	return treaty
}

func (f *fixture) accept(t *testing.T, treaty *models.Treaty) *models.Treaty {
	t.Helper()
	accepted, err := f.svc.Treaties.Accept(context.Background(), officer(treaty.TargetTeam), treaty.ID, treaty.TargetTeam)
	require.NoError(t, err)
	return accepted
}

func (f *fixture) war(t *testing.T, from, to string) {
	t.Helper()
	_, err := f.svc.Relations.DeclareWar(context.Background(), officer(from), from, to)
	require.NoError(t, err)
}

func (f *fixture) relation(t *testing.T, a, b string) *models.Relation {
	t.Helper()
	rel, err := f.svc.Relations.GetRelation(context.Background(), a, b)
	require.NoError(t, err)
	return rel
}
