package dto

import (
	"time"

	"go-concord/internal/diplomacy/models"
)

// StatusChange is one entry of an entity's audit history
type StatusChange struct {
	From     string    `json:"from,omitempty" doc:"Previous state"`
	To       string    `json:"to" doc:"New state or membership change"`
	At       time.Time `json:"at" doc:"When the change happened" format:"date-time"`
	Actor    string    `json:"actor,omitempty" doc:"Player who caused the change"`
	Cause    string    `json:"cause,omitempty" doc:"What drove the change" example:"treaty"`
	CauseRef string    `json:"cause_ref,omitempty" doc:"ID of the entity that drove the change"`
}

// Relation represents the standing relation of a team pair
type Relation struct {
	PairKey        string         `json:"pair_key" example:"blue|red"`
	TeamA          string         `json:"team_a" example:"blue"`
	TeamB          string         `json:"team_b" example:"red"`
	Status         string         `json:"status" enum:"ally,neutral,hostile,war" example:"neutral"`
	EstablishedAt  *time.Time     `json:"established_at,omitempty" format:"date-time"`
	ActiveTreatyID string         `json:"active_treaty_id,omitempty"`
	Version        int64          `json:"version" doc:"Zero when no record is stored and the pair is implicitly neutral"`
	History        []StatusChange `json:"history,omitempty"`
}

// Treaty represents a bilateral agreement
type Treaty struct {
	ID            string         `json:"id"`
	Type          string         `json:"type" enum:"trade,defense,non-aggression,peace"`
	ProposingTeam string         `json:"proposing_team"`
	TargetTeam    string         `json:"target_team"`
	Terms         []string       `json:"terms"`
	Status        string         `json:"status" enum:"proposed,active,rejected,cancelled,expired"`
	ProposedAt    time.Time      `json:"proposed_at" format:"date-time"`
	AcceptedAt    *time.Time     `json:"accepted_at,omitempty" format:"date-time"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty" format:"date-time"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty" format:"date-time"`
	History       []StatusChange `json:"history,omitempty"`
}

// Alliance represents a multi-party alliance
type Alliance struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type" enum:"mutual-defense,trade,non-aggression"`
	FounderTeam    string         `json:"founder_team"`
	Members        []string       `json:"members"`
	Terms          []string       `json:"terms"`
	Status         string         `json:"status" enum:"active,dissolved"`
	CreatedAt      time.Time      `json:"created_at" format:"date-time"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty" format:"date-time"`
	DissolvedAt    *time.Time     `json:"dissolved_at,omitempty" format:"date-time"`
	DissolveReason string         `json:"dissolve_reason,omitempty"`
	History        []StatusChange `json:"history,omitempty"`
}

// RelationOutput represents a single relation response (Huma wrapper)
type RelationOutput struct {
	Body Relation `json:"body"`
}

// RelationListOutput represents the relations of a team
type RelationListOutput struct {
	Body []Relation `json:"body"`
}

// TreatyOutput represents a single treaty response
type TreatyOutput struct {
	Body Treaty `json:"body"`
}

// TreatyListOutput represents the treaties of a team
type TreatyListOutput struct {
	Body []Treaty `json:"body"`
}

// AllianceOutput represents a single alliance response
type AllianceOutput struct {
	Body Alliance `json:"body"`
}

// AllianceListOutput represents the alliances of a team
type AllianceListOutput struct {
	Body []Alliance `json:"body"`
}

// RosterEntry is the role set of one player within a team
type RosterEntry struct {
	TeamID   string   `json:"team_id"`
	PlayerID string   `json:"player_id"`
	Roles    []string `json:"roles"`
}

// RosterOutput represents a roster sync response
type RosterOutput struct {
	Body RosterEntry `json:"body"`
}

// SweepResult reports what a manual sweep changed
type SweepResult struct {
	StartedAt          time.Time `json:"started_at" format:"date-time"`
	FinishedAt         time.Time `json:"finished_at" format:"date-time"`
	TreatiesExpired    int       `json:"treaties_expired"`
	AlliancesDissolved int       `json:"alliances_dissolved"`
	Failures           int       `json:"failures"`
}

// SweepOutput represents a manual sweep response
type SweepOutput struct {
	Body SweepResult `json:"body"`
}

// DiplomacyStatus represents the health of the diplomacy module
type DiplomacyStatus struct {
	Module        string       `json:"module" example:"diplomacy"`
	Status        string       `json:"status" enum:"healthy,unhealthy" example:"healthy"`
	Message       string       `json:"message,omitempty"`
	EventsSent    int64        `json:"events_sent"`
	EventsDropped int64        `json:"events_dropped"`
	EventsPending int          `json:"events_pending"`
	LastSweep     *SweepResult `json:"last_sweep,omitempty"`
}

// StatusOutput represents the module status response
type StatusOutput struct {
	Body DiplomacyStatus `json:"body"`
}

func historyFromModel(in []models.StatusChange) []StatusChange {
	if len(in) == 0 {
		return nil
	}
	out := make([]StatusChange, 0, len(in))
	for _, h := range in {
		sc := StatusChange{From: h.From, To: h.To, At: h.At, Actor: h.Actor}
		if h.Cause != nil {
			sc.Cause, sc.CauseRef = h.Cause.Kind, h.Cause.Ref
		}
		out = append(out, sc)
	}
	return out
}

// RelationFromModel converts a stored or synthesized relation
func RelationFromModel(r *models.Relation) Relation {
	out := Relation{
		PairKey:        string(r.PairKey),
		TeamA:          r.TeamA,
		TeamB:          r.TeamB,
		Status:         string(r.Status),
		ActiveTreatyID: r.ActiveTreatyID,
		Version:        r.Version,
		History:        historyFromModel(r.History),
	}
	if !r.EstablishedAt.IsZero() {
		at := r.EstablishedAt
		out.EstablishedAt = &at
	}
	return out
}

func RelationsFromModels(in []*models.Relation) []Relation {
	out := make([]Relation, 0, len(in))
	for _, r := range in {
		out = append(out, RelationFromModel(r))
	}
	return out
}

func TreatyFromModel(t *models.Treaty) Treaty {
	return Treaty{
		ID:            t.ID,
		Type:          string(t.Type),
		ProposingTeam: t.ProposingTeam,
		TargetTeam:    t.TargetTeam,
		Terms:         t.Terms,
		Status:        string(t.Status),
		ProposedAt:    t.ProposedAt,
		AcceptedAt:    t.AcceptedAt,
		ResolvedAt:    t.ResolvedAt,
		ExpiresAt:     t.ExpiresAt,
		History:       historyFromModel(t.History),
	}
}

func TreatiesFromModels(in []*models.Treaty) []Treaty {
	out := make([]Treaty, 0, len(in))
	for _, t := range in {
		out = append(out, TreatyFromModel(t))
	}
	return out
}

func AllianceFromModel(a *models.Alliance) Alliance {
	return Alliance{
		ID:             a.ID,
		Name:           a.Name,
		Type:           string(a.Type),
		FounderTeam:    a.FounderTeam,
		Members:        a.Members,
		Terms:          a.Terms,
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
		ExpiresAt:      a.ExpiresAt,
		DissolvedAt:    a.DissolvedAt,
		DissolveReason: string(a.DissolveReason),
		History:        historyFromModel(a.History),
	}
}

func AlliancesFromModels(in []*models.Alliance) []Alliance {
	out := make([]Alliance, 0, len(in))
	for _, a := range in {
		out = append(out, AllianceFromModel(a))
	}
	return out
}
