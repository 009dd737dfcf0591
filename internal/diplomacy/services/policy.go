package services

import (
	"time"

	"go-concord/internal/diplomacy/models"
	"go-concord/pkg/config"
)

// Policy holds the tunable rules of the diplomacy state machine
type Policy struct {
	MaxTerms                     int
	MaxTermLength                int
	MaxNameLength                int
	MaxAllianceMembers           int
	MaxTreatyDuration            time.Duration
	AllowOverlappingDefensePacts bool
	NonAggressionForcesNeutral   bool
}

// DefaultPolicy returns the built-in limits
func DefaultPolicy() Policy {
	return Policy{
		MaxTerms:                     20,
		MaxTermLength:                200,
		MaxNameLength:                80,
		MaxAllianceMembers:           16,
		MaxTreatyDuration:            90 * 24 * time.Hour,
		AllowOverlappingDefensePacts: true,
		NonAggressionForcesNeutral:   true,
	}
}

// PolicyFromEnv overlays DIPLOMACY_* environment variables on the defaults
func PolicyFromEnv() Policy {
	d := DefaultPolicy()
	return Policy{
		MaxTerms:                     config.GetIntEnv("DIPLOMACY_MAX_TERMS", d.MaxTerms),
		MaxTermLength:                config.GetIntEnv("DIPLOMACY_MAX_TERM_LENGTH", d.MaxTermLength),
		MaxNameLength:                config.GetIntEnv("DIPLOMACY_MAX_NAME_LENGTH", d.MaxNameLength),
		MaxAllianceMembers:           config.GetIntEnv("DIPLOMACY_MAX_ALLIANCE_MEMBERS", d.MaxAllianceMembers),
		MaxTreatyDuration:            config.GetDurationEnv("DIPLOMACY_MAX_TREATY_DURATION", d.MaxTreatyDuration),
		AllowOverlappingDefensePacts: config.GetBoolEnv("DIPLOMACY_ALLOW_OVERLAPPING_DEFENSE_PACTS", d.AllowOverlappingDefensePacts),
		NonAggressionForcesNeutral:   config.GetBoolEnv("DIPLOMACY_NON_AGGRESSION_FORCES_NEUTRAL", d.NonAggressionForcesNeutral),
	}
}

// ImpliedStatus returns the relation an accepted treaty of type t produces
// when the pair currently stands at current.
func (p Policy) ImpliedStatus(t models.TreatyType, current models.RelationStatus) models.RelationStatus {
	switch t {
	case models.TreatyDefense:
		return models.RelationAlly
	case models.TreatyNonAggression:
		if current == models.RelationHostile && !p.NonAggressionForcesNeutral {
			return models.RelationHostile
		}
		return models.RelationNeutral
	default:
		return models.RelationNeutral
	}
}

// CanPropose checks whether a treaty of type t may be proposed while the pair stands at current
func (p Policy) CanPropose(t models.TreatyType, current models.RelationStatus) error {
	if t == models.TreatyPeace {
		if current != models.RelationWar && current != models.RelationHostile {
			return models.InvalidTransition("peace can only be proposed between teams at war or hostile, pair is %s", current)
		}
		return nil
	}
	if current == models.RelationWar {
		return models.InvalidTransition("only a peace treaty can be proposed while at war")
	}
	return nil
}
