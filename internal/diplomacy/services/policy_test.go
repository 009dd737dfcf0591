package services

import (
	"testing"
	"time"

	"go-concord/internal/diplomacy/models"

	"github.com/stretchr/testify/assert"
)

func TestImpliedStatus(t *testing.T) {
	forcing := DefaultPolicy()
	lenient := DefaultPolicy()
	lenient.NonAggressionForcesNeutral = false

	tests := []struct {
		name    string
		policy  Policy
		typ     models.TreatyType
		current models.RelationStatus
		want    models.RelationStatus
	}{
		{"defense from neutral", forcing, models.TreatyDefense, models.RelationNeutral, models.RelationAlly},
		{"defense from hostile", forcing, models.TreatyDefense, models.RelationHostile, models.RelationAlly},
		{"trade from hostile", forcing, models.TreatyTrade, models.RelationHostile, models.RelationNeutral},
		{"non-aggression forcing", forcing, models.TreatyNonAggression, models.RelationHostile, models.RelationNeutral},
		{"non-aggression lenient", lenient, models.TreatyNonAggression, models.RelationHostile, models.RelationHostile},
		{"non-aggression lenient from neutral", lenient, models.TreatyNonAggression, models.RelationNeutral, models.RelationNeutral},
		{"peace from war", forcing, models.TreatyPeace, models.RelationWar, models.RelationNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.ImpliedStatus(tt.typ, tt.current))
		})
	}
}

func TestCanPropose(t *testing.T) {
	p := DefaultPolicy()

	assert.NoError(t, p.CanPropose(models.TreatyTrade, models.RelationNeutral))
	assert.NoError(t, p.CanPropose(models.TreatyDefense, models.RelationHostile))
	assert.NoError(t, p.CanPropose(models.TreatyPeace, models.RelationWar))
	assert.NoError(t, p.CanPropose(models.TreatyPeace, models.RelationHostile))
	assert.ErrorIs(t, p.CanPropose(models.TreatyPeace, models.RelationNeutral), models.ErrInvalidTransition)
	assert.ErrorIs(t, p.CanPropose(models.TreatyPeace, models.RelationAlly), models.ErrInvalidTransition)
	assert.ErrorIs(t, p.CanPropose(models.TreatyDefense, models.RelationWar), models.ErrInvalidTransition)
}

func TestPolicyFromEnv(t *testing.T) {
	t.Setenv("DIPLOMACY_MAX_TERMS", "5")
	t.Setenv("DIPLOMACY_MAX_TREATY_DURATION", "24h")
	t.Setenv("DIPLOMACY_ALLOW_OVERLAPPING_DEFENSE_PACTS", "false")

	p := PolicyFromEnv()
	assert.Equal(t, 5, p.MaxTerms)
	assert.Equal(t, 24*time.Hour, p.MaxTreatyDuration)
	assert.False(t, p.AllowOverlappingDefensePacts)
	assert.True(t, p.NonAggressionForcesNeutral)
	assert.Equal(t, 200, p.MaxTermLength)
}
