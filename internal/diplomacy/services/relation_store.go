package services

import (
	"context"
	"log/slog"

	"go-concord/internal/diplomacy/models"
	"go-concord/pkg/permissions"

	"go.opentelemetry.io/otel/attribute"
)

// RelationStore owns the single relation record of each team pair
type RelationStore struct {
	*core
}

// GetRelation returns the pair's relation, synthesizing neutral when none is stored
func (s *RelationStore) GetRelation(ctx context.Context, a, b string) (*models.Relation, error) {
	if err := validatePair(a, b); err != nil {
		return nil, err
	}
	return s.loadRelation(ctx, models.NewPairKey(a, b))
}

// ListRelations returns every stored relation involving team
func (s *RelationStore) ListRelations(ctx context.Context, team string) ([]*models.Relation, error) {
	if err := validateTeam("team_id", team); err != nil {
		return nil, err
	}
	return s.repo.ListRelations(ctx, team)
}

// SetRelation applies a direct status change requested on behalf of team.
// War is always allowed and cancels the pair's open treaty. Ally is only
// accepted with a cause naming the active defense treaty of the pair.
func (s *RelationStore) SetRelation(ctx context.Context, actor, team, target string, status models.RelationStatus, cause *models.Cause) (rel *models.Relation, err error) {
	ctx, span := s.startSpan(ctx, "SetRelation",
		attribute.String("team", team),
		attribute.String("target", target),
		attribute.String("status", string(status)))
	defer func() { endSpan(span, err) }()

	if err := validatePair(team, target); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, models.Validation("status", "unknown relation status %q", status)
	}
	if err := s.authorize(ctx, actor, team, permissions.ActionNegotiate); err != nil {
		return nil, err
	}

	key := models.NewPairKey(team, target)
	err = s.mutate(ctx, pairLockKey(key), func(ctx context.Context, emit func(models.Event)) error {
		current, err := s.loadRelation(ctx, key)
		if err != nil {
			return err
		}
		rel = current

		switch status {
		case models.RelationWar:
			return s.declareWarLocked(ctx, rel, actor, team, cause, emit)
		case models.RelationAlly:
			return s.allyLocked(ctx, rel, actor, cause, emit)
		default:
			return s.downgradeLocked(ctx, rel, status, actor, cause, emit)
		}
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// DeclareWar puts the pair at war
func (s *RelationStore) DeclareWar(ctx context.Context, actor, team, target string) (*models.Relation, error) {
	return s.SetRelation(ctx, actor, team, target, models.RelationWar, &models.Cause{Kind: models.CauseDeclaration, Ref: team})
}

// DeclareHostility marks a neutral pair hostile
func (s *RelationStore) DeclareHostility(ctx context.Context, actor, team, target string) (*models.Relation, error) {
	return s.SetRelation(ctx, actor, team, target, models.RelationHostile, &models.Cause{Kind: models.CauseDeclaration, Ref: team})
}

// Normalize returns a hostile pair to neutral
func (s *RelationStore) Normalize(ctx context.Context, actor, team, target string) (*models.Relation, error) {
	return s.SetRelation(ctx, actor, team, target, models.RelationNeutral, &models.Cause{Kind: models.CauseDeclaration, Ref: team})
}

func (s *RelationStore) declareWarLocked(ctx context.Context, rel *models.Relation, actor, team string, cause *models.Cause, emit func(models.Event)) error {
	if rel.Status == models.RelationWar {
		return nil
	}
	if cause == nil {
		cause = &models.Cause{Kind: models.CauseDeclaration, Ref: team}
	}

	open, err := s.openTreaty(ctx, rel.PairKey)
	if err != nil {
		return err
	}
	if open != nil {
		if err := s.closeTreaty(ctx, open, models.TreatyCancelled, actor, cause, emit); err != nil {
			return err
		}
	}

	slog.WarnContext(ctx, "War declared",
		"pair_key", rel.PairKey,
		"declared_by", team,
		"actor", actor,
		"previous_status", rel.Status,
		"cancelled_treaty", treatyIDOf(open))

	return s.transitionRelation(ctx, rel, models.RelationWar, "", actor, cause, emit)
}

func (s *RelationStore) allyLocked(ctx context.Context, rel *models.Relation, actor string, cause *models.Cause, emit func(models.Event)) error {
	if cause == nil || cause.Kind != models.CauseTreaty || cause.Ref == "" {
		return models.InvalidTransition("alliance status can only follow an accepted defense treaty")
	}

	t, err := s.repo.GetTreaty(ctx, cause.Ref)
	if err != nil {
		return storeErr(err, "treaty "+cause.Ref)
	}
	if t.PairKey != rel.PairKey || t.Status != models.TreatyActive || s.policy.ImpliedStatus(t.Type, rel.Status) != models.RelationAlly {
		return models.InvalidTransition("treaty %s does not make this pair allies", t.ID)
	}
	return s.transitionRelation(ctx, rel, models.RelationAlly, t.ID, actor, cause, emit)
}

func (s *RelationStore) downgradeLocked(ctx context.Context, rel *models.Relation, status models.RelationStatus, actor string, cause *models.Cause, emit func(models.Event)) error {
	if rel.Status == status {
		return nil
	}
	if rel.Status == models.RelationWar {
		return models.InvalidTransition("a pair at war can only return to %s through a peace treaty", status)
	}

	open, err := s.openTreaty(ctx, rel.PairKey)
	if err != nil {
		return err
	}
	if open != nil && open.Status == models.TreatyActive {
		return models.InvalidTransition("treaty %s is active for this pair, cancel it first", open.ID)
	}
	return s.transitionRelation(ctx, rel, status, "", actor, cause, emit)
}

func treatyIDOf(t *models.Treaty) string {
	if t == nil {
		return ""
	}
	return t.ID
}
