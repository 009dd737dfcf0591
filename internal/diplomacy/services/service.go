package services

import (
	"context"
	"fmt"
	"time"

	"go-concord/internal/diplomacy/models"
	"go-concord/pkg/permissions"
)

// RosterGate is a Gate whose team roles can be managed
type RosterGate interface {
	Gate
	AssignRole(ctx context.Context, playerID, teamID string, role permissions.Role) error
	RemoveMember(ctx context.Context, playerID, teamID string) error
	RolesFor(playerID, teamID string) []permissions.Role
}

// Config tunes the diplomacy services
type Config struct {
	Policy       Policy
	WriteTimeout time.Duration
	// Now overrides the clock, mainly for tests
	Now func() time.Time
}

// Service bundles the diplomacy components behind one entry point
type Service struct {
	Relations *RelationStore
	Treaties  *TreatyEngine
	Alliances *AllianceRegistry
	Sweeper   *Sweeper

	repo     Repository
	gate     RosterGate
	notifier Notifier
	policy   Policy
}

// NewService wires the components over shared storage, locking and events
func NewService(repo Repository, locker Locker, notifier Notifier, gate RosterGate, cfg Config) *Service {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &core{
		repo:         repo,
		locker:       locker,
		notifier:     notifier,
		gate:         gate,
		policy:       cfg.Policy,
		sanitizer:    NewSanitizer(cfg.Policy),
		now:          cfg.Now,
		writeTimeout: cfg.WriteTimeout,
		tracer:       newTracer(),
	}

	treaties := &TreatyEngine{core: c}
	alliances := &AllianceRegistry{core: c}
	return &Service{
		Relations: &RelationStore{core: c},
		Treaties:  treaties,
		Alliances: alliances,
		Sweeper:   newSweeper(treaties, alliances),
		repo:      repo,
		gate:      gate,
		notifier:  notifier,
		policy:    cfg.Policy,
	}
}

// Policy returns the rules the service enforces
func (s *Service) Policy() Policy {
	return s.policy
}

// CanView succeeds when actor may view at least one of teams
func (s *Service) CanView(ctx context.Context, actor string, teams ...string) error {
	for _, team := range teams {
		ok, err := s.gate.Allowed(ctx, actor, team, permissions.ActionView)
		if err != nil {
			return fmt.Errorf("permission check for team %s: %w", team, err)
		}
		if ok {
			return nil
		}
	}
	return models.NotAuthorized("player %q is not a member of any team involved", actor)
}

// AssignRole syncs a player's role in a team from the team roster
func (s *Service) AssignRole(ctx context.Context, playerID, team string, role permissions.Role) error {
	if err := validateTeam("team_id", team); err != nil {
		return err
	}
	if playerID == "" {
		return models.Validation("player_id", "player id is required")
	}
	return s.gate.AssignRole(ctx, playerID, team, role)
}

// RemoveMember drops every role the player holds in team
func (s *Service) RemoveMember(ctx context.Context, playerID, team string) error {
	if err := validateTeam("team_id", team); err != nil {
		return err
	}
	return s.gate.RemoveMember(ctx, playerID, team)
}

// RolesFor lists the player's roles in team
func (s *Service) RolesFor(playerID, team string) []permissions.Role {
	return s.gate.RolesFor(playerID, team)
}

// StatusReport describes the health of the diplomacy service
type StatusReport struct {
	Healthy       bool
	StoreError    string
	EventsSent    int64
	EventsDropped int64
	EventsPending int
	LastSweep     *SweepResult
}

// Status probes storage and reports notifier and sweep counters
func (s *Service) Status(ctx context.Context) StatusReport {
	report := StatusReport{Healthy: true, LastSweep: s.Sweeper.LastRun()}
	if err := s.repo.HealthCheck(ctx); err != nil {
		report.Healthy = false
		report.StoreError = err.Error()
	}
	if n, ok := s.notifier.(*AsyncNotifier); ok {
		report.EventsSent = n.Sent()
		report.EventsDropped = n.Dropped()
		report.EventsPending = n.Pending()
	}
	return report
}
