package models

import "time"

// EventType names a domain event published after a committed transition
type EventType string

const (
	EventRelationChanged           EventType = "relation.changed"
	EventTreatyProposed            EventType = "treaty.proposed"
	EventTreatyResolved            EventType = "treaty.resolved"
	EventAllianceFormed            EventType = "alliance.formed"
	EventAllianceDissolved         EventType = "alliance.dissolved"
	EventAllianceMembershipChanged EventType = "alliance.membership_changed"
)

// Membership change directions
const (
	MembershipJoined = "joined"
	MembershipLeft   = "left"
)

// Event is the envelope delivered to event sinks. Exactly one payload field is set.
type Event struct {
	ID         string                   `json:"id"`
	Type       EventType                `json:"type"`
	OccurredAt time.Time                `json:"occurred_at"`
	Relation   *RelationChangedPayload  `json:"relation,omitempty"`
	Treaty     *TreatyPayload           `json:"treaty,omitempty"`
	Alliance   *AlliancePayload         `json:"alliance,omitempty"`
	Membership *MembershipChangePayload `json:"membership,omitempty"`
}

type RelationChangedPayload struct {
	PairKey PairKey        `json:"pair_key"`
	TeamA   string         `json:"team_a"`
	TeamB   string         `json:"team_b"`
	Old     RelationStatus `json:"old"`
	New     RelationStatus `json:"new"`
	Actor   string         `json:"actor,omitempty"`
	Cause   *Cause         `json:"cause,omitempty"`
}

type TreatyPayload struct {
	TreatyID      string       `json:"treaty_id"`
	Type          TreatyType   `json:"type"`
	ProposingTeam string       `json:"proposing_team"`
	TargetTeam    string       `json:"target_team"`
	Status        TreatyStatus `json:"status"`
	Terms         []string     `json:"terms,omitempty"`
}

type AlliancePayload struct {
	AllianceID string         `json:"alliance_id"`
	Name       string         `json:"name"`
	Type       AllianceType   `json:"type"`
	Members    []string       `json:"members"`
	Departed   []string       `json:"departed,omitempty"`
	Reason     DissolveReason `json:"reason,omitempty"`
}

type MembershipChangePayload struct {
	AllianceID string   `json:"alliance_id"`
	Team       string   `json:"team"`
	Change     string   `json:"change"`
	Members    []string `json:"members"`
}

// Teams lists every team the event concerns, for routing by subscribers
func (e Event) Teams() []string {
	switch {
	case e.Relation != nil:
		return []string{e.Relation.TeamA, e.Relation.TeamB}
	case e.Treaty != nil:
		return []string{e.Treaty.ProposingTeam, e.Treaty.TargetTeam}
	case e.Alliance != nil:
		teams := append([]string(nil), e.Alliance.Members...)
		return append(teams, e.Alliance.Departed...)
	case e.Membership != nil:
		teams := append([]string(nil), e.Membership.Members...)
		if e.Membership.Change == MembershipLeft {
			teams = append(teams, e.Membership.Team)
		}
		return teams
	}
	return nil
}

func NewRelationChangedEvent(before RelationStatus, after *Relation, actor string, cause *Cause) Event {
	return Event{
		Type: EventRelationChanged,
		Relation: &RelationChangedPayload{
			PairKey: after.PairKey,
			TeamA:   after.TeamA,
			TeamB:   after.TeamB,
			Old:     before,
			New:     after.Status,
			Actor:   actor,
			Cause:   cause,
		},
	}
}

func newTreatyPayload(t *Treaty) *TreatyPayload {
	return &TreatyPayload{
		TreatyID:      t.ID,
		Type:          t.Type,
		ProposingTeam: t.ProposingTeam,
		TargetTeam:    t.TargetTeam,
		Status:        t.Status,
		Terms:         append([]string(nil), t.Terms...),
	}
}

func NewTreatyProposedEvent(t *Treaty) Event {
	return Event{Type: EventTreatyProposed, Treaty: newTreatyPayload(t)}
}

func NewTreatyResolvedEvent(t *Treaty) Event {
	return Event{Type: EventTreatyResolved, Treaty: newTreatyPayload(t)}
}

func newAlliancePayload(a *Alliance) *AlliancePayload {
	return &AlliancePayload{
		AllianceID: a.ID,
		Name:       a.Name,
		Type:       a.Type,
		Members:    append([]string(nil), a.Members...),
		Reason:     a.DissolveReason,
	}
}

func NewAllianceFormedEvent(a *Alliance) Event {
	return Event{Type: EventAllianceFormed, Alliance: newAlliancePayload(a)}
}

// NewAllianceDissolvedEvent reports a dissolution. departed names teams that
// left in the same change and are no longer listed as members.
func NewAllianceDissolvedEvent(a *Alliance, departed ...string) Event {
	payload := newAlliancePayload(a)
	if len(departed) > 0 {
		payload.Departed = append([]string(nil), departed...)
	}
	return Event{Type: EventAllianceDissolved, Alliance: payload}
}

func NewMembershipChangedEvent(a *Alliance, team, change string) Event {
	return Event{
		Type: EventAllianceMembershipChanged,
		Membership: &MembershipChangePayload{
			AllianceID: a.ID,
			Team:       team,
			Change:     change,
			Members:    append([]string(nil), a.Members...),
		},
	}
}
