package services

import (
	"context"
	"errors"
	"time"

	"go-concord/internal/diplomacy/models"
	"go-concord/pkg/permissions"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// TreatyEngine drives the treaty lifecycle:
//
//	proposed -> active | rejected | cancelled
//	active   -> expired | cancelled
type TreatyEngine struct {
	*core
}

// ProposeTreatyRequest carries the intent of a proposing team
type ProposeTreatyRequest struct {
	ProposingTeam string
	TargetTeam    string
	Type          models.TreatyType
	Terms         []string
	Duration      time.Duration
}

// Propose opens a treaty between two teams. The pair may hold a single open
// treaty; a second proposal gets a Conflict carrying the existing treaty id.
func (e *TreatyEngine) Propose(ctx context.Context, actor string, req ProposeTreatyRequest) (treaty *models.Treaty, err error) {
	ctx, span := e.startSpan(ctx, "ProposeTreaty",
		attribute.String("proposing_team", req.ProposingTeam),
		attribute.String("target_team", req.TargetTeam),
		attribute.String("type", string(req.Type)))
	defer func() { endSpan(span, err) }()

	if err := validatePair(req.ProposingTeam, req.TargetTeam); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, models.Validation("type", "unknown treaty type %q", req.Type)
	}
	terms, err := e.sanitizer.Terms(req.Terms)
	if err != nil {
		return nil, err
	}
	if req.Duration < 0 || req.Duration > e.policy.MaxTreatyDuration {
		return nil, models.Validation("duration", "must be between 0 and %s", e.policy.MaxTreatyDuration)
	}
	if err := e.authorize(ctx, actor, req.ProposingTeam, permissions.ActionNegotiate); err != nil {
		return nil, err
	}

	key := models.NewPairKey(req.ProposingTeam, req.TargetTeam)
	err = e.mutate(ctx, pairLockKey(key), func(ctx context.Context, emit func(models.Event)) error {
		open, err := e.openTreaty(ctx, key)
		if err != nil {
			return err
		}
		if open != nil {
			return models.Conflict(open.ID, "treaty %s is already %s for this pair", open.ID, open.Status)
		}

		rel, err := e.loadRelation(ctx, key)
		if err != nil {
			return err
		}
		if err := e.policy.CanPropose(req.Type, rel.Status); err != nil {
			return err
		}

		now := e.now().UTC()
		slot := key
		t := &models.Treaty{
			ID:            uuid.New().String(),
			Type:          req.Type,
			ProposingTeam: req.ProposingTeam,
			TargetTeam:    req.TargetTeam,
			PairKey:       key,
			Terms:         terms,
			Status:        models.TreatyProposed,
			ProposedAt:    now,
			Duration:      req.Duration,
			OpenSlot:      &slot,
			History: []models.StatusChange{{
				To:    string(models.TreatyProposed),
				At:    now,
				Actor: actor,
			}},
		}

		if err := e.repo.InsertTreaty(ctx, t); err != nil {
			return err
		}
		emit(models.NewTreatyProposedEvent(t))
		treaty = t
		return nil
	})
	if errors.Is(err, ErrOpenSlotTaken) {
		// the failed insert aborted the transaction, so look up the winner outside it
		return nil, e.slotConflict(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	return treaty, nil
}

// slotConflict reports the treaty that won the pair slot
func (e *TreatyEngine) slotConflict(ctx context.Context, key models.PairKey) error {
	holder, err := e.openTreaty(ctx, key)
	if err != nil || holder == nil {
		return models.Conflict("", "another treaty was proposed for this pair")
	}
	return models.Conflict(holder.ID, "treaty %s is already %s for this pair", holder.ID, holder.Status)
}

// Accept activates a proposed treaty and applies its relation status
func (e *TreatyEngine) Accept(ctx context.Context, actor, treatyID, acting string) (treaty *models.Treaty, err error) {
	ctx, span := e.startSpan(ctx, "AcceptTreaty", attribute.String("treaty_id", treatyID), attribute.String("team", acting))
	defer func() { endSpan(span, err) }()

	return e.resolve(ctx, actor, treatyID, acting, func(ctx context.Context, t *models.Treaty, emit func(models.Event)) error {
		if acting != t.TargetTeam {
			return models.NotAuthorized("only the target team %s may accept treaty %s", t.TargetTeam, t.ID)
		}
		if t.Status != models.TreatyProposed {
			return models.InvalidTransition("treaty %s is %s, only proposed treaties can be accepted", t.ID, t.Status)
		}

		rel, err := e.loadRelation(ctx, t.PairKey)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		t.Status = models.TreatyActive
		t.AcceptedAt = &now
		if t.Duration > 0 {
			expires := now.Add(t.Duration)
			t.ExpiresAt = &expires
		}
		t.History = append(t.History, models.StatusChange{
			From:  string(models.TreatyProposed),
			To:    string(models.TreatyActive),
			At:    now,
			Actor: actor,
		})
		if err := e.repo.UpdateTreaty(ctx, t); err != nil {
			return storeErr(err, "treaty "+t.ID)
		}
		emit(models.NewTreatyResolvedEvent(t))

		next := e.policy.ImpliedStatus(t.Type, rel.Status)
		return e.transitionRelation(ctx, rel, next, t.ID, actor, models.TreatyCause(t.ID), emit)
	})
}

// Reject declines a proposed treaty; the relation is untouched
func (e *TreatyEngine) Reject(ctx context.Context, actor, treatyID, acting string) (treaty *models.Treaty, err error) {
	ctx, span := e.startSpan(ctx, "RejectTreaty", attribute.String("treaty_id", treatyID), attribute.String("team", acting))
	defer func() { endSpan(span, err) }()

	return e.resolve(ctx, actor, treatyID, acting, func(ctx context.Context, t *models.Treaty, emit func(models.Event)) error {
		if acting != t.TargetTeam {
			return models.NotAuthorized("only the target team %s may reject treaty %s", t.TargetTeam, t.ID)
		}
		if t.Status != models.TreatyProposed {
			return models.InvalidTransition("treaty %s is %s, only proposed treaties can be rejected", t.ID, t.Status)
		}
		return e.closeTreaty(ctx, t, models.TreatyRejected, actor, nil, emit)
	})
}

// Cancel ends an active treaty on behalf of either party, or withdraws a
// proposal on behalf of the proposing team
func (e *TreatyEngine) Cancel(ctx context.Context, actor, treatyID, acting string) (treaty *models.Treaty, err error) {
	ctx, span := e.startSpan(ctx, "CancelTreaty", attribute.String("treaty_id", treatyID), attribute.String("team", acting))
	defer func() { endSpan(span, err) }()

	return e.resolve(ctx, actor, treatyID, acting, func(ctx context.Context, t *models.Treaty, emit func(models.Event)) error {
		switch t.Status {
		case models.TreatyProposed:
			if acting != t.ProposingTeam {
				return models.InvalidTransition("treaty %s is still proposed, the target team must reject it", t.ID)
			}
			return e.closeTreaty(ctx, t, models.TreatyCancelled, actor, nil, emit)
		case models.TreatyActive:
			if err := e.closeTreaty(ctx, t, models.TreatyCancelled, actor, nil, emit); err != nil {
				return err
			}
			return e.revertAfterTreaty(ctx, t, actor, models.TreatyCause(t.ID), emit)
		}
		return models.InvalidTransition("treaty %s is already %s", t.ID, t.Status)
	})
}

// resolve loads the treaty, checks the acting team is a party the actor may
// speak for, then runs apply under the pair lock on a freshly read copy
func (e *TreatyEngine) resolve(ctx context.Context, actor, treatyID, acting string, apply func(context.Context, *models.Treaty, func(models.Event)) error) (*models.Treaty, error) {
	if err := validateTeam("team_id", acting); err != nil {
		return nil, err
	}
	t, err := e.repo.GetTreaty(ctx, treatyID)
	if err != nil {
		return nil, storeErr(err, "treaty "+treatyID)
	}
	if !t.Party(acting) {
		return nil, models.NotAuthorized("team %s is not a party to treaty %s", acting, treatyID)
	}
	if err := e.authorize(ctx, actor, acting, permissions.ActionNegotiate); err != nil {
		return nil, err
	}

	var out *models.Treaty
	err = e.mutate(ctx, pairLockKey(t.PairKey), func(ctx context.Context, emit func(models.Event)) error {
		fresh, err := e.repo.GetTreaty(ctx, treatyID)
		if err != nil {
			return storeErr(err, "treaty "+treatyID)
		}
		if fresh.ExpiredAt(e.now()) {
			if err := e.expireLocked(ctx, fresh, emit); err != nil {
				return err
			}
		}
		if err := apply(ctx, fresh, emit); err != nil {
			return err
		}
		out = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTreaty loads a treaty, expiring it first when its time has passed
func (e *TreatyEngine) GetTreaty(ctx context.Context, id string) (*models.Treaty, error) {
	t, err := e.repo.GetTreaty(ctx, id)
	if err != nil {
		return nil, storeErr(err, "treaty "+id)
	}
	if t.ExpiredAt(e.now()) {
		return e.Expire(ctx, id)
	}
	return t, nil
}

// ListTreaties returns the team's treaties, optionally filtered by status
func (e *TreatyEngine) ListTreaties(ctx context.Context, team string, statuses []models.TreatyStatus) ([]*models.Treaty, error) {
	if err := validateTeam("team_id", team); err != nil {
		return nil, err
	}
	for _, s := range statuses {
		if !s.Valid() {
			return nil, models.Validation("status", "unknown treaty status %q", s)
		}
	}

	treaties, err := e.repo.ListTreaties(ctx, team, statuses)
	if err != nil {
		return nil, err
	}

	want := statusSet(statuses)
	now := e.now()
	out := treaties[:0]
	for _, t := range treaties {
		if t.ExpiredAt(now) {
			expired, err := e.Expire(ctx, t.ID)
			if err != nil {
				return nil, err
			}
			t = expired
		}
		if want == nil || want[t.Status] {
			out = append(out, t)
		}
	}
	return out, nil
}

// Expire moves an active treaty past its expiry into expired. Calling it on a
// treaty that is not due is a no-op returning the stored treaty.
func (e *TreatyEngine) Expire(ctx context.Context, id string) (treaty *models.Treaty, err error) {
	ctx, span := e.startSpan(ctx, "ExpireTreaty", attribute.String("treaty_id", id))
	defer func() { endSpan(span, err) }()

	t, err := e.repo.GetTreaty(ctx, id)
	if err != nil {
		return nil, storeErr(err, "treaty "+id)
	}

	err = e.mutate(ctx, pairLockKey(t.PairKey), func(ctx context.Context, emit func(models.Event)) error {
		fresh, err := e.repo.GetTreaty(ctx, id)
		if err != nil {
			return storeErr(err, "treaty "+id)
		}
		treaty = fresh
		if !fresh.ExpiredAt(e.now()) {
			return nil
		}
		return e.expireLocked(ctx, fresh, emit)
	})
	if err != nil {
		return nil, err
	}
	return treaty, nil
}

func (e *TreatyEngine) expireLocked(ctx context.Context, t *models.Treaty, emit func(models.Event)) error {
	cause := &models.Cause{Kind: models.CauseSweep, Ref: t.ID}
	if err := e.closeTreaty(ctx, t, models.TreatyExpired, "", cause, emit); err != nil {
		return err
	}
	return e.revertAfterTreaty(ctx, t, "", models.TreatyCause(t.ID), emit)
}
