package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-concord/internal/diplomacy/models"
	"go-concord/pkg/permissions"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Gate answers whether a player may act for a team
type Gate interface {
	Allowed(ctx context.Context, playerID, teamID string, action permissions.Action) (bool, error)
}

// core carries the collaborators shared by the relation store, treaty engine
// and alliance registry
type core struct {
	repo         Repository
	locker       Locker
	notifier     Notifier
	gate         Gate
	policy       Policy
	sanitizer    *Sanitizer
	now          func() time.Time
	writeTimeout time.Duration
	tracer       trace.Tracer
}

func (c *core) authorize(ctx context.Context, actor, team string, action permissions.Action) error {
	ok, err := c.gate.Allowed(ctx, actor, team, action)
	if err != nil {
		return fmt.Errorf("permission check for team %s: %w", team, err)
	}
	if !ok {
		return models.NotAuthorized("player %q may not %s on behalf of team %s", actor, action, team)
	}
	return nil
}

// mutate runs fn while holding the lock for key. Lock acquisition honours ctx;
// fn itself runs on a context detached from the caller and bounded by the write
// timeout. The writes of fn form one repository transaction, and events passed
// to emit are published only when that transaction commits.
func (c *core) mutate(ctx context.Context, key string, fn func(ctx context.Context, emit func(models.Event)) error) error {
	unlock, err := c.locker.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()

	var events []models.Event
	err = c.repo.InTx(wctx, func(tctx context.Context) error {
		// the transaction may be retried
		events = events[:0]
		return fn(tctx, func(e models.Event) {
			if e.OccurredAt.IsZero() {
				e.OccurredAt = c.now().UTC()
			}
			events = append(events, e)
		})
	})
	if err != nil {
		return err
	}

	detached := context.WithoutCancel(ctx)
	for _, e := range events {
		c.notifier.Notify(detached, e)
	}
	return nil
}

func (c *core) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "diplomacy."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// loadRelation returns the stored relation or the implied neutral one
func (c *core) loadRelation(ctx context.Context, key models.PairKey) (*models.Relation, error) {
	rel, err := c.repo.GetRelation(ctx, key)
	if errors.Is(err, ErrRecordNotFound) {
		a, b := key.Teams()
		return models.NeutralRelation(a, b), nil
	}
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// openTreaty returns the proposed or active treaty holding the pair, or nil
func (c *core) openTreaty(ctx context.Context, key models.PairKey) (*models.Treaty, error) {
	t, err := c.repo.FindOpenTreaty(ctx, key)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	return t, err
}

// transitionRelation persists rel with the given status and active treaty,
// appending history and emitting RelationChanged when the status moves.
func (c *core) transitionRelation(ctx context.Context, rel *models.Relation, next models.RelationStatus, activeTreaty, actor string, cause *models.Cause, emit func(models.Event)) error {
	prev := rel.Status
	changed := prev != next

	if !changed && rel.ActiveTreatyID == activeTreaty {
		return nil
	}
	// an absent record already means neutral with no treaty
	if !rel.Persisted() && next == models.RelationNeutral && activeTreaty == "" {
		return nil
	}

	now := c.now().UTC()
	if changed || !rel.Persisted() {
		rel.EstablishedAt = now
	}
	rel.Status = next
	rel.ActiveTreatyID = activeTreaty
	if changed {
		rel.History = append(rel.History, models.StatusChange{
			From:  string(prev),
			To:    string(next),
			At:    now,
			Actor: actor,
			Cause: cause,
		})
	}

	if err := c.repo.SaveRelation(ctx, rel); err != nil {
		return storeErr(err, "relation "+string(rel.PairKey))
	}
	if changed {
		emit(models.NewRelationChangedEvent(prev, rel, actor, cause))
	}
	return nil
}

// closeTreaty moves an open treaty into a terminal status and frees its pair slot
func (c *core) closeTreaty(ctx context.Context, t *models.Treaty, status models.TreatyStatus, actor string, cause *models.Cause, emit func(models.Event)) error {
	now := c.now().UTC()
	prev := t.Status

	t.Status = status
	t.ResolvedAt = &now
	t.OpenSlot = nil
	t.History = append(t.History, models.StatusChange{
		From:  string(prev),
		To:    string(status),
		At:    now,
		Actor: actor,
		Cause: cause,
	})

	if err := c.repo.UpdateTreaty(ctx, t); err != nil {
		return storeErr(err, "treaty "+t.ID)
	}
	emit(models.NewTreatyResolvedEvent(t))
	return nil
}

// revertAfterTreaty returns the pair to neutral once its active treaty ends,
// leaving a war in place
func (c *core) revertAfterTreaty(ctx context.Context, t *models.Treaty, actor string, cause *models.Cause, emit func(models.Event)) error {
	rel, err := c.loadRelation(ctx, t.PairKey)
	if err != nil {
		return err
	}

	activeTreaty := rel.ActiveTreatyID
	if activeTreaty == t.ID {
		activeTreaty = ""
	}
	next := models.RelationNeutral
	if rel.Status == models.RelationWar {
		next = models.RelationWar
	}
	return c.transitionRelation(ctx, rel, next, activeTreaty, actor, cause, emit)
}

// storeErr maps repository sentinels onto domain errors
func storeErr(err error, what string) error {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return models.NotFound("%s not found", what)
	case errors.Is(err, ErrStaleWrite):
		return models.Conflict("", "%s was modified concurrently, retry", what)
	}
	return err
}

func newTracer() trace.Tracer {
	return otel.Tracer("go-concord/diplomacy")
}
