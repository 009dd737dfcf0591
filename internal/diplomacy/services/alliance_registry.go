package services

import (
	"context"
	"time"

	"go-concord/internal/diplomacy/models"
	"go-concord/pkg/permissions"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Alliance history kinds
const (
	historyFormed    = "formed"
	historyJoined    = "joined"
	historyLeft      = "left"
	historyDissolved = "dissolved"
)

// AllianceRegistry manages multi-party alliances and their membership
type AllianceRegistry struct {
	*core
}

// CreateAllianceRequest describes a new alliance; the founder is always a member
type CreateAllianceRequest struct {
	FounderTeam string
	Name        string
	Type        models.AllianceType
	Members     []string
	Terms       []string
	Duration    time.Duration
}

// Create forms an alliance immediately with the listed members
func (r *AllianceRegistry) Create(ctx context.Context, actor string, req CreateAllianceRequest) (alliance *models.Alliance, err error) {
	ctx, span := r.startSpan(ctx, "CreateAlliance",
		attribute.String("founder_team", req.FounderTeam),
		attribute.String("type", string(req.Type)))
	defer func() { endSpan(span, err) }()

	if err := validateTeam("team_id", req.FounderTeam); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, models.Validation("type", "unknown alliance type %q", req.Type)
	}
	name, err := r.sanitizer.Name(req.Name)
	if err != nil {
		return nil, err
	}
	terms, err := r.sanitizer.Terms(req.Terms)
	if err != nil {
		return nil, err
	}
	if req.Duration < 0 || req.Duration > r.policy.MaxTreatyDuration {
		return nil, models.Validation("duration", "must be between 0 and %s", r.policy.MaxTreatyDuration)
	}

	members, err := r.memberSet(req.FounderTeam, req.Members)
	if err != nil {
		return nil, err
	}
	if err := r.authorize(ctx, actor, req.FounderTeam, permissions.ActionNegotiate); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	err = r.mutate(ctx, allianceLockKey(id), func(ctx context.Context, emit func(models.Event)) error {
		for i := range members {
			for j := i + 1; j < len(members); j++ {
				if err := r.checkNotAtWar(ctx, members[i], members[j]); err != nil {
					return err
				}
			}
		}
		if req.Type == models.AllianceMutualDefense {
			for _, m := range members {
				if err := r.checkDefenseOverlap(ctx, m, ""); err != nil {
					return err
				}
			}
		}

		now := r.now().UTC()
		a := &models.Alliance{
			ID:          id,
			Name:        name,
			Type:        req.Type,
			FounderTeam: req.FounderTeam,
			Members:     members,
			Terms:       terms,
			Status:      models.AllianceActive,
			CreatedAt:   now,
			History: []models.StatusChange{{
				To:    historyFormed,
				At:    now,
				Actor: actor,
			}},
		}
		if req.Duration > 0 {
			expires := now.Add(req.Duration)
			a.ExpiresAt = &expires
		}

		if err := r.repo.InsertAlliance(ctx, a); err != nil {
			return storeErr(err, "alliance "+id)
		}
		emit(models.NewAllianceFormedEvent(a))
		alliance = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alliance, nil
}

// memberSet dedupes the founder and invited members, preserving order
func (r *AllianceRegistry) memberSet(founder string, invited []string) ([]string, error) {
	seen := map[string]bool{founder: true}
	members := []string{founder}
	for _, m := range invited {
		if err := validateTeam("members", m); err != nil {
			return nil, err
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		members = append(members, m)
	}

	if len(members) < 2 {
		return nil, models.Validation("members", "an alliance needs at least two teams")
	}
	if len(members) > r.policy.MaxAllianceMembers {
		return nil, models.Validation("members", "an alliance may have at most %d teams", r.policy.MaxAllianceMembers)
	}
	return members, nil
}

// checkNotAtWar is a point-in-time read; a war declared concurrently is accepted
func (r *AllianceRegistry) checkNotAtWar(ctx context.Context, a, b string) error {
	key := models.NewPairKey(a, b)
	rel, err := r.loadRelation(ctx, key)
	if err != nil {
		return err
	}
	if rel.Status == models.RelationWar {
		return models.IncompatibleRelation(key, "teams %s and %s are at war", a, b)
	}
	return nil
}

// checkDefenseOverlap enforces single mutual-defense membership when overlap is disabled
func (r *AllianceRegistry) checkDefenseOverlap(ctx context.Context, team, except string) error {
	if r.policy.AllowOverlappingDefensePacts {
		return nil
	}
	existing, err := r.repo.ListAlliances(ctx, team, false)
	if err != nil {
		return err
	}
	for _, a := range existing {
		if a.ID != except && a.Type == models.AllianceMutualDefense && !a.ExpiredAt(r.now()) {
			return models.Conflict(a.ID, "team %s already belongs to mutual-defense alliance %s", team, a.ID)
		}
	}
	return nil
}

// Join adds team to an active alliance
func (r *AllianceRegistry) Join(ctx context.Context, actor, allianceID, team string) (alliance *models.Alliance, err error) {
	ctx, span := r.startSpan(ctx, "JoinAlliance", attribute.String("alliance_id", allianceID), attribute.String("team", team))
	defer func() { endSpan(span, err) }()

	return r.update(ctx, actor, allianceID, team, func(ctx context.Context, a *models.Alliance, emit func(models.Event)) error {
		if a.HasMember(team) {
			return models.Conflict(a.ID, "team %s is already a member of alliance %s", team, a.ID)
		}
		if len(a.Members) >= r.policy.MaxAllianceMembers {
			return models.Conflict(a.ID, "alliance %s is full", a.ID)
		}
		for _, m := range a.Members {
			if err := r.checkNotAtWar(ctx, team, m); err != nil {
				return err
			}
		}
		if a.Type == models.AllianceMutualDefense {
			if err := r.checkDefenseOverlap(ctx, team, a.ID); err != nil {
				return err
			}
		}

		a.Members = append(a.Members, team)
		a.History = append(a.History, membershipEntry(historyJoined, team, actor, r.now()))
		if err := r.repo.UpdateAlliance(ctx, a); err != nil {
			return storeErr(err, "alliance "+a.ID)
		}
		emit(models.NewMembershipChangedEvent(a, team, models.MembershipJoined))
		return nil
	})
}

// Leave removes team; an alliance left with fewer than two members is dissolved
func (r *AllianceRegistry) Leave(ctx context.Context, actor, allianceID, team string) (alliance *models.Alliance, err error) {
	ctx, span := r.startSpan(ctx, "LeaveAlliance", attribute.String("alliance_id", allianceID), attribute.String("team", team))
	defer func() { endSpan(span, err) }()

	return r.update(ctx, actor, allianceID, team, func(ctx context.Context, a *models.Alliance, emit func(models.Event)) error {
		if !a.HasMember(team) {
			return models.InvalidTransition("team %s is not a member of alliance %s", team, a.ID)
		}

		remaining := make([]string, 0, len(a.Members)-1)
		for _, m := range a.Members {
			if m != team {
				remaining = append(remaining, m)
			}
		}
		a.Members = remaining
		a.History = append(a.History, membershipEntry(historyLeft, team, actor, r.now()))

		if len(remaining) < 2 {
			r.dissolve(a, models.DissolveInsufficientMembers, actor)
			if err := r.repo.UpdateAlliance(ctx, a); err != nil {
				return storeErr(err, "alliance "+a.ID)
			}
			emit(models.NewAllianceDissolvedEvent(a, team))
			return nil
		}

		if err := r.repo.UpdateAlliance(ctx, a); err != nil {
			return storeErr(err, "alliance "+a.ID)
		}
		emit(models.NewMembershipChangedEvent(a, team, models.MembershipLeft))
		return nil
	})
}

// update authorizes the acting team and applies fn to a fresh active alliance under its lock
func (r *AllianceRegistry) update(ctx context.Context, actor, allianceID, team string, fn func(context.Context, *models.Alliance, func(models.Event)) error) (*models.Alliance, error) {
	if err := validateTeam("team_id", team); err != nil {
		return nil, err
	}
	if err := r.authorize(ctx, actor, team, permissions.ActionNegotiate); err != nil {
		return nil, err
	}

	var out *models.Alliance
	err := r.mutate(ctx, allianceLockKey(allianceID), func(ctx context.Context, emit func(models.Event)) error {
		a, err := r.repo.GetAlliance(ctx, allianceID)
		if err != nil {
			return storeErr(err, "alliance "+allianceID)
		}
		if a.ExpiredAt(r.now()) {
			if err := r.expireLocked(ctx, a, emit); err != nil {
				return err
			}
		}
		if a.Status != models.AllianceActive {
			return models.InvalidTransition("alliance %s is %s", a.ID, a.Status)
		}
		if err := fn(ctx, a, emit); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetAlliance loads an alliance, dissolving it first when it has expired
func (r *AllianceRegistry) GetAlliance(ctx context.Context, id string) (*models.Alliance, error) {
	a, err := r.repo.GetAlliance(ctx, id)
	if err != nil {
		return nil, storeErr(err, "alliance "+id)
	}
	if a.ExpiredAt(r.now()) {
		return r.Expire(ctx, id)
	}
	return a, nil
}

// ListForTeam returns the alliances team belongs to
func (r *AllianceRegistry) ListForTeam(ctx context.Context, team string, includeDissolved bool) ([]*models.Alliance, error) {
	if err := validateTeam("team_id", team); err != nil {
		return nil, err
	}
	alliances, err := r.repo.ListAlliances(ctx, team, includeDissolved)
	if err != nil {
		return nil, err
	}

	now := r.now()
	out := alliances[:0]
	for _, a := range alliances {
		if a.ExpiredAt(now) {
			expired, err := r.Expire(ctx, a.ID)
			if err != nil {
				return nil, err
			}
			a = expired
		}
		if includeDissolved || a.Status == models.AllianceActive {
			out = append(out, a)
		}
	}
	return out, nil
}

// Expire dissolves an alliance whose expiry has passed; otherwise a no-op
func (r *AllianceRegistry) Expire(ctx context.Context, id string) (alliance *models.Alliance, err error) {
	ctx, span := r.startSpan(ctx, "ExpireAlliance", attribute.String("alliance_id", id))
	defer func() { endSpan(span, err) }()

	err = r.mutate(ctx, allianceLockKey(id), func(ctx context.Context, emit func(models.Event)) error {
		a, err := r.repo.GetAlliance(ctx, id)
		if err != nil {
			return storeErr(err, "alliance "+id)
		}
		alliance = a
		if !a.ExpiredAt(r.now()) {
			return nil
		}
		return r.expireLocked(ctx, a, emit)
	})
	if err != nil {
		return nil, err
	}
	return alliance, nil
}

func (r *AllianceRegistry) expireLocked(ctx context.Context, a *models.Alliance, emit func(models.Event)) error {
	r.dissolve(a, models.DissolveExpired, "")
	if err := r.repo.UpdateAlliance(ctx, a); err != nil {
		return storeErr(err, "alliance "+a.ID)
	}
	emit(models.NewAllianceDissolvedEvent(a))
	return nil
}

func (r *AllianceRegistry) dissolve(a *models.Alliance, reason models.DissolveReason, actor string) {
	now := r.now().UTC()
	a.Status = models.AllianceDissolved
	a.DissolvedAt = &now
	a.DissolveReason = reason
	a.History = append(a.History, models.StatusChange{
		From:  string(models.AllianceActive),
		To:    historyDissolved,
		At:    now,
		Actor: actor,
		Cause: &models.Cause{Kind: string(reason)},
	})
}

func membershipEntry(kind, team, actor string, at time.Time) models.StatusChange {
	return models.StatusChange{
		To:    kind,
		At:    at.UTC(),
		Actor: actor,
		Cause: &models.Cause{Kind: "team", Ref: team},
	}
}
