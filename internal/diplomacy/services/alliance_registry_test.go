package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"go-concord/internal/diplomacy/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createAlliance(f *fixture, founder string, typ models.AllianceType, members []string, duration time.Duration) (*models.Alliance, error) {
	return f.svc.Alliances.Create(context.Background(), officer(founder), CreateAllianceRequest{
		FounderTeam: founder,
		Name:        "  Northern   Pact ",
		Type:        typ,
		Members:     members,
		Terms:       []string{"shared borders"},
		Duration:    duration,
	})
}

func TestCreateAllianceIncludesFounder(t *testing.T) {
	f := newFixture(t)

	alliance, err := createAlliance(f, "A", models.AllianceTrade, []string{"B", "A", "C", "B"}, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, alliance.Members)
	assert.Equal(t, "Northern Pact", alliance.Name)
	assert.Equal(t, models.AllianceActive, alliance.Status)

	formed := f.events.ofType(models.EventAllianceFormed)
	require.Len(t, formed, 1)
	assert.Equal(t, alliance.ID, formed[0].Alliance.AllianceID)
}

func TestCreateAllianceRejectsMembersAtWar(t *testing.T) {
	f := newFixture(t)
	f.war(t, "A", "C")
	f.events.reset()

	_, err := createAlliance(f, "A", models.AllianceTrade, []string{"B", "C"}, 0)
	require.ErrorIs(t, err, models.ErrIncompatibleRelation)

	de, _ := models.AsDiplomacyError(err)
	assert.Equal(t, string(models.NewPairKey("A", "C")), de.Ref)

	for _, team := range []string{"A", "B", "C"} {
		alliances, err := f.svc.Alliances.ListForTeam(context.Background(), team, true)
		require.NoError(t, err)
		assert.Empty(t, alliances)
	}
	assert.Empty(t, f.events.all())
}

func TestCreateAllianceValidation(t *testing.T) {
	f := newFixture(t, func(p *Policy) { p.MaxAllianceMembers = 3 })
	ctx := context.Background()

	tests := []struct {
		name  string
		req   CreateAllianceRequest
		field string
	}{
		{name: "founder only", req: CreateAllianceRequest{FounderTeam: "A", Name: "Solo", Type: models.AllianceTrade, Members: []string{"A"}, Terms: []string{"x"}}, field: "members"},
		{name: "too many", req: CreateAllianceRequest{FounderTeam: "A", Name: "Big", Type: models.AllianceTrade, Members: []string{"B", "C", "D"}, Terms: []string{"x"}}, field: "members"},
		{name: "bad member id", req: CreateAllianceRequest{FounderTeam: "A", Name: "Bad", Type: models.AllianceTrade, Members: []string{"B/C"}, Terms: []string{"x"}}, field: "members"},
		{name: "blank name", req: CreateAllianceRequest{FounderTeam: "A", Name: "\u200b ", Type: models.AllianceTrade, Members: []string{"B"}, Terms: []string{"x"}}, field: "name"},
		{name: "long name", req: CreateAllianceRequest{FounderTeam: "A", Name: strings.Repeat("n", 81), Type: models.AllianceTrade, Members: []string{"B"}, Terms: []string{"x"}}, field: "name"},
		{name: "unknown type", req: CreateAllianceRequest{FounderTeam: "A", Name: "Odd", Type: "defense", Members: []string{"B"}, Terms: []string{"x"}}, field: "type"},
		{name: "no terms", req: CreateAllianceRequest{FounderTeam: "A", Name: "Empty", Type: models.AllianceTrade, Members: []string{"B"}}, field: "terms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Alliances.Create(ctx, officer("A"), tt.req)
			require.ErrorIs(t, err, models.ErrValidation)
			de, _ := models.AsDiplomacyError(err)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestJoinAlliance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alliance, err := createAlliance(f, "A", models.AllianceTrade, []string{"B"}, 0)
	require.NoError(t, err)

	_, err = f.svc.Alliances.Join(ctx, officer("B"), alliance.ID, "B")
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = f.svc.Alliances.Join(ctx, member("C"), alliance.ID, "C")
	assert.ErrorIs(t, err, models.ErrNotAuthorized)

	f.war(t, "C", "B")
	_, err = f.svc.Alliances.Join(ctx, officer("C"), alliance.ID, "C")
	assert.ErrorIs(t, err, models.ErrIncompatibleRelation)

	joined, err := f.svc.Alliances.Join(ctx, officer("D"), alliance.ID, "D")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D"}, joined.Members)

	changes := f.events.ofType(models.EventAllianceMembershipChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, models.MembershipJoined, changes[0].Membership.Change)
	assert.Equal(t, "D", changes[0].Membership.Team)

	_, err = f.svc.Alliances.Join(ctx, officer("C"), "missing", "C")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLeaveAllianceDissolvesBelowTwoMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alliance, err := createAlliance(f, "A", models.AllianceNonAggression, []string{"B", "C"}, 0)
	require.NoError(t, err)

	_, err = f.svc.Alliances.Leave(ctx, officer("D"), alliance.ID, "D")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	left, err := f.svc.Alliances.Leave(ctx, officer("C"), alliance.ID, "C")
	require.NoError(t, err)
	assert.Equal(t, models.AllianceActive, left.Status)
	assert.Len(t, f.events.ofType(models.EventAllianceMembershipChanged), 1)

	dissolved, err := f.svc.Alliances.Leave(ctx, officer("A"), alliance.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, models.AllianceDissolved, dissolved.Status)
	assert.Equal(t, models.DissolveInsufficientMembers, dissolved.DissolveReason)
	assert.Equal(t, []string{"B"}, dissolved.Members)

	events := f.events.ofType(models.EventAllianceDissolved)
	require.Len(t, events, 1)
	assert.Equal(t, models.DissolveInsufficientMembers, events[0].Alliance.Reason)
	assert.Equal(t, []string{"A"}, events[0].Alliance.Departed)
	assert.ElementsMatch(t, []string{"A", "B"}, events[0].Teams())

	_, err = f.svc.Alliances.Join(ctx, officer("C"), alliance.ID, "C")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	active, err := f.svc.Alliances.ListForTeam(ctx, "B", false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := f.svc.Alliances.ListForTeam(ctx, "B", true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOverlappingDefensePacts(t *testing.T) {
	tests := []struct {
		name    string
		allow   bool
		wantErr error
	}{
		{name: "allowed", allow: true},
		{name: "forbidden", allow: false, wantErr: models.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(p *Policy) { p.AllowOverlappingDefensePacts = tt.allow })
			ctx := context.Background()

			first, err := createAlliance(f, "A", models.AllianceMutualDefense, []string{"B"}, 0)
			require.NoError(t, err)

			_, createErr := createAlliance(f, "C", models.AllianceMutualDefense, []string{"B"}, 0)

			second, err := createAlliance(f, "C", models.AllianceMutualDefense, []string{"D"}, 0)
			require.NoError(t, err)
			_, joinErr := f.svc.Alliances.Join(ctx, officer("A"), second.ID, "A")

			if tt.wantErr == nil {
				assert.NoError(t, createErr)
				assert.NoError(t, joinErr)
				return
			}
			assert.ErrorIs(t, createErr, tt.wantErr)
			assert.ErrorIs(t, joinErr, tt.wantErr)

			de, _ := models.AsDiplomacyError(createErr)
			assert.Equal(t, first.ID, de.Ref)

			_, err = createAlliance(f, "A", models.AllianceTrade, []string{"B"}, 0)
			assert.NoError(t, err)
		})
	}
}

func TestSweepDissolvesExpiredAlliance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alliance, err := createAlliance(f, "A", models.AllianceTrade, []string{"B"}, 24*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, alliance.ExpiresAt)

	f.clock.advance(25 * time.Hour)
	result, err := f.svc.Sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AlliancesDissolved)

	got, err := f.svc.Alliances.GetAlliance(ctx, alliance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AllianceDissolved, got.Status)
	assert.Equal(t, models.DissolveExpired, got.DissolveReason)
	assert.Len(t, f.events.ofType(models.EventAllianceDissolved), 1)

	again, err := f.svc.Sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.AlliancesDissolved)
	assert.Len(t, f.events.ofType(models.EventAllianceDissolved), 1)
}

func TestExpiredAllianceDissolvesOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alliance, err := createAlliance(f, "A", models.AllianceTrade, []string{"B"}, time.Hour)
	require.NoError(t, err)
	f.clock.advance(2 * time.Hour)

	alliances, err := f.svc.Alliances.ListForTeam(ctx, "A", false)
	require.NoError(t, err)
	assert.Empty(t, alliances)

	got, err := f.svc.Alliances.GetAlliance(ctx, alliance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AllianceDissolved, got.Status)
	assert.Len(t, f.events.ofType(models.EventAllianceDissolved), 1)
}
