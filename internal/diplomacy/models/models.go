package models

import (
	"strings"
	"time"
)

// Collection names
const (
	RelationCollection = "diplomatic_relations"
	TreatyCollection   = "treaties"
	AllianceCollection = "diplomatic_alliances"
)

// RelationStatus is the standing bilateral status of a team pair
type RelationStatus string

const (
	RelationAlly    RelationStatus = "ally"
	RelationNeutral RelationStatus = "neutral"
	RelationHostile RelationStatus = "hostile"
	RelationWar     RelationStatus = "war"
)

func (s RelationStatus) Valid() bool {
	switch s {
	case RelationAlly, RelationNeutral, RelationHostile, RelationWar:
		return true
	}
	return false
}

// Cooperative reports whether the status can only be reached through a treaty
func (s RelationStatus) Cooperative() bool {
	return s == RelationAlly
}

// TreatyType identifies the kind of bilateral agreement
type TreatyType string

const (
	TreatyTrade         TreatyType = "trade"
	TreatyDefense       TreatyType = "defense"
	TreatyNonAggression TreatyType = "non-aggression"
	TreatyPeace         TreatyType = "peace"
)

func (t TreatyType) Valid() bool {
	switch t {
	case TreatyTrade, TreatyDefense, TreatyNonAggression, TreatyPeace:
		return true
	}
	return false
}

// TreatyStatus is a state of the treaty lifecycle
type TreatyStatus string

const (
	TreatyProposed  TreatyStatus = "proposed"
	TreatyActive    TreatyStatus = "active"
	TreatyRejected  TreatyStatus = "rejected"
	TreatyCancelled TreatyStatus = "cancelled"
	TreatyExpired   TreatyStatus = "expired"
)

func (s TreatyStatus) Valid() bool {
	switch s {
	case TreatyProposed, TreatyActive, TreatyRejected, TreatyCancelled, TreatyExpired:
		return true
	}
	return false
}

// Open reports whether the treaty still occupies its pair's slot
func (s TreatyStatus) Open() bool {
	return s == TreatyProposed || s == TreatyActive
}

// AllianceType identifies the kind of multi-party agreement
type AllianceType string

const (
	AllianceMutualDefense AllianceType = "mutual-defense"
	AllianceTrade         AllianceType = "trade"
	AllianceNonAggression AllianceType = "non-aggression"
)

func (t AllianceType) Valid() bool {
	switch t {
	case AllianceMutualDefense, AllianceTrade, AllianceNonAggression:
		return true
	}
	return false
}

// AllianceStatus is active until the alliance is dissolved
type AllianceStatus string

const (
	AllianceActive    AllianceStatus = "active"
	AllianceDissolved AllianceStatus = "dissolved"
)

// DissolveReason records why an alliance ended
type DissolveReason string

const (
	DissolveExpired             DissolveReason = "expired"
	DissolveInsufficientMembers DissolveReason = "insufficient-members"
)

// MaxTeamIDLength bounds team identifiers
const MaxTeamIDLength = 64

// ValidTeamID reports whether id is 1..64 characters of [A-Za-z0-9_.:-]
func ValidTeamID(id string) bool {
	if id == "" || len(id) > MaxTeamIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '.', c == ':', c == '-':
		default:
			return false
		}
	}
	return true
}

// PairKey is the canonical, order-independent key of a team pair
type PairKey string

// NewPairKey orders the two ids lexicographically so (a,b) and (b,a) agree
func NewPairKey(a, b string) PairKey {
	lo, hi := CanonicalPair(a, b)
	return PairKey(lo + "|" + hi)
}

// CanonicalPair returns the two team ids in storage order
func CanonicalPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// Teams splits the key back into its ordered team ids
func (k PairKey) Teams() (string, string) {
	a, b, _ := strings.Cut(string(k), "|")
	return a, b
}

// Cause explains what drove a transition
type Cause struct {
	Kind string `bson:"kind" json:"kind"`
	Ref  string `bson:"ref,omitempty" json:"ref,omitempty"`
}

// Cause kinds
const (
	CauseTreaty      = "treaty"
	CauseDeclaration = "declaration"
	CauseSweep       = "sweep"
)

// TreatyCause references a treaty as the reason for a relation change
func TreatyCause(treatyID string) *Cause {
	return &Cause{Kind: CauseTreaty, Ref: treatyID}
}

// StatusChange is one append-only audit entry
type StatusChange struct {
	From  string    `bson:"from,omitempty" json:"from,omitempty"`
	To    string    `bson:"to" json:"to"`
	At    time.Time `bson:"at" json:"at"`
	Actor string    `bson:"actor,omitempty" json:"actor,omitempty"`
	Cause *Cause    `bson:"cause,omitempty" json:"cause,omitempty"`
}

// Relation is the single standing relationship between two teams
type Relation struct {
	PairKey        PairKey        `bson:"_id" json:"pair_key"`
	TeamA          string         `bson:"team_a" json:"team_a"`
	TeamB          string         `bson:"team_b" json:"team_b"`
	Status         RelationStatus `bson:"status" json:"status"`
	EstablishedAt  time.Time      `bson:"established_at" json:"established_at"`
	ActiveTreatyID string         `bson:"active_treaty_id,omitempty" json:"active_treaty_id,omitempty"`
	History        []StatusChange `bson:"history,omitempty" json:"history,omitempty"`
	Version        int64          `bson:"version" json:"version"`
	UpdatedAt      time.Time      `bson:"updated_at" json:"updated_at"`
}

// NeutralRelation synthesizes the record implied by an absent pair
func NeutralRelation(a, b string) *Relation {
	lo, hi := CanonicalPair(a, b)
	return &Relation{
		PairKey: NewPairKey(a, b),
		TeamA:   lo,
		TeamB:   hi,
		Status:  RelationNeutral,
	}
}

// Persisted reports whether the record came from storage
func (r *Relation) Persisted() bool {
	return r.Version > 0
}

// Involves reports whether team is one side of the pair
func (r *Relation) Involves(team string) bool {
	return r.TeamA == team || r.TeamB == team
}

func (r *Relation) Clone() *Relation {
	if r == nil {
		return nil
	}
	c := *r
	c.History = append([]StatusChange(nil), r.History...)
	return &c
}

// Treaty is a proposed or resolved bilateral agreement
type Treaty struct {
	ID            string         `bson:"_id" json:"id"`
	Type          TreatyType     `bson:"type" json:"type"`
	ProposingTeam string         `bson:"proposing_team" json:"proposing_team"`
	TargetTeam    string         `bson:"target_team" json:"target_team"`
	PairKey       PairKey        `bson:"pair_key" json:"pair_key"`
	Terms         []string       `bson:"terms" json:"terms"`
	Status        TreatyStatus   `bson:"status" json:"status"`
	ProposedAt    time.Time      `bson:"proposed_at" json:"proposed_at"`
	AcceptedAt    *time.Time     `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	ResolvedAt    *time.Time     `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	Duration      time.Duration  `bson:"duration,omitempty" json:"duration,omitempty"`
	ExpiresAt     *time.Time     `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	OpenSlot      *PairKey       `bson:"open_slot,omitempty" json:"-"`
	History       []StatusChange `bson:"history,omitempty" json:"history,omitempty"`
	Version       int64          `bson:"version" json:"version"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updated_at"`
}

// Party reports whether team is the proposer or the target
func (t *Treaty) Party(team string) bool {
	return t.ProposingTeam == team || t.TargetTeam == team
}

// Counterparty returns the other side of the treaty
func (t *Treaty) Counterparty(team string) string {
	if team == t.ProposingTeam {
		return t.TargetTeam
	}
	return t.ProposingTeam
}

// ExpiredAt reports whether an active treaty's expiry has passed at now
func (t *Treaty) ExpiredAt(now time.Time) bool {
	return t.Status == TreatyActive && t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

func (t *Treaty) Clone() *Treaty {
	if t == nil {
		return nil
	}
	c := *t
	c.Terms = append([]string(nil), t.Terms...)
	c.History = append([]StatusChange(nil), t.History...)
	if t.AcceptedAt != nil {
		v := *t.AcceptedAt
		c.AcceptedAt = &v
	}
	if t.ResolvedAt != nil {
		v := *t.ResolvedAt
		c.ResolvedAt = &v
	}
	if t.ExpiresAt != nil {
		v := *t.ExpiresAt
		c.ExpiresAt = &v
	}
	if t.OpenSlot != nil {
		v := *t.OpenSlot
		c.OpenSlot = &v
	}
	return &c
}

// Alliance is a multi-party standing agreement
type Alliance struct {
	ID             string         `bson:"_id" json:"id"`
	Name           string         `bson:"name" json:"name"`
	Type           AllianceType   `bson:"type" json:"type"`
	FounderTeam    string         `bson:"founder_team" json:"founder_team"`
	Members        []string       `bson:"members" json:"members"`
	Terms          []string       `bson:"terms" json:"terms"`
	Status         AllianceStatus `bson:"status" json:"status"`
	CreatedAt      time.Time      `bson:"created_at" json:"created_at"`
	ExpiresAt      *time.Time     `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	DissolvedAt    *time.Time     `bson:"dissolved_at,omitempty" json:"dissolved_at,omitempty"`
	DissolveReason DissolveReason `bson:"dissolve_reason,omitempty" json:"dissolve_reason,omitempty"`
	History        []StatusChange `bson:"history,omitempty" json:"history,omitempty"`
	Version        int64          `bson:"version" json:"version"`
	UpdatedAt      time.Time      `bson:"updated_at" json:"updated_at"`
}

// HasMember reports whether team belongs to the alliance
func (a *Alliance) HasMember(team string) bool {
	for _, m := range a.Members {
		if m == team {
			return true
		}
	}
	return false
}

// ExpiredAt reports whether an active alliance's expiry has passed at now
func (a *Alliance) ExpiredAt(now time.Time) bool {
	return a.Status == AllianceActive && a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}

func (a *Alliance) Clone() *Alliance {
	if a == nil {
		return nil
	}
	c := *a
	c.Members = append([]string(nil), a.Members...)
	c.Terms = append([]string(nil), a.Terms...)
	c.History = append([]StatusChange(nil), a.History...)
	if a.ExpiresAt != nil {
		v := *a.ExpiresAt
		c.ExpiresAt = &v
	}
	if a.DissolvedAt != nil {
		v := *a.DissolvedAt
		c.DissolvedAt = &v
	}
	return &c
}
