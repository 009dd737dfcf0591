package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	mongodbadapter "github.com/casbin/mongodb-adapter/v3"
	"go.mongodb.org/mongo-driver/mongo"
)

// TeamRolesCollection stores the casbin policies backing the team gate
const TeamRolesCollection = "casbin_team_roles"

// Action is something an actor may do on behalf of a team
type Action string

const (
	ActionView      Action = "view"
	ActionNegotiate Action = "negotiate"
)

// Role mirrors the team-management roles
type Role string

const (
	RoleLeader  Role = "leader"
	RoleOfficer Role = "officer"
	RoleMember  Role = "member"
	RoleRecruit Role = "recruit"
)

// ParseRole accepts role names case-insensitively
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleLeader, RoleOfficer, RoleMember, RoleRecruit:
		return r, nil
	}
	return "", fmt.Errorf("unknown team role %q", s)
}

// RBAC with domains: the domain is the team id, so a role only applies inside
// the team that granted it.
const teamModel = `
[request_definition]
r = sub, dom, act

[policy_definition]
p = sub, dom, act

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub, r.dom) && (p.dom == "*" || p.dom == r.dom) && r.act == p.act
`

var rolePolicies = [][]string{
	{string(RoleLeader), "*", string(ActionNegotiate)},
	{string(RoleOfficer), "*", string(ActionNegotiate)},
	{string(RoleLeader), "*", string(ActionView)},
	{string(RoleOfficer), "*", string(ActionView)},
	{string(RoleMember), "*", string(ActionView)},
	{string(RoleRecruit), "*", string(ActionView)},
}

// TeamGate answers "may this player act for this team" from role assignments
type TeamGate struct {
	enforcer *casbin.SyncedEnforcer
}

// NewTeamGate builds a gate whose policies live only in memory
func NewTeamGate() (*TeamGate, error) {
	m, err := model.NewModelFromString(teamModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse team gate model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create team gate enforcer: %w", err)
	}
	gate := &TeamGate{enforcer: enforcer}
	if err := gate.ensureRolePolicies(); err != nil {
		return nil, err
	}
	return gate, nil
}

// NewMongoTeamGate builds a gate persisted through the casbin MongoDB adapter
func NewMongoTeamGate(client *mongo.Client, dbName string) (*TeamGate, error) {
	adapter, err := mongodbadapter.NewAdapterByDB(client, &mongodbadapter.AdapterConfig{
		DatabaseName:   dbName,
		CollectionName: TeamRolesCollection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin MongoDB adapter: %w", err)
	}

	m, err := model.NewModelFromString(teamModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse team gate model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create team gate enforcer: %w", err)
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load team gate policies: %w", err)
	}

	gate := &TeamGate{enforcer: enforcer}
	if err := gate.ensureRolePolicies(); err != nil {
		return nil, err
	}

	slog.Info("Team permission gate initialized", "adapter", "mongodb", "collection", TeamRolesCollection)
	return gate, nil
}

func (g *TeamGate) ensureRolePolicies() error {
	for _, p := range rolePolicies {
		if _, err := g.enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return fmt.Errorf("failed to seed role policy %v: %w", p, err)
		}
	}
	return nil
}

// Allowed reports whether playerID holds a role in teamID that grants action
func (g *TeamGate) Allowed(ctx context.Context, playerID, teamID string, action Action) (bool, error) {
	if playerID == "" || teamID == "" {
		return false, nil
	}
	ok, err := g.enforcer.Enforce(subject(playerID), teamID, string(action))
	if err != nil {
		return false, fmt.Errorf("team gate enforce failed: %w", err)
	}
	return ok, nil
}

// AssignRole replaces whatever role playerID held in teamID
func (g *TeamGate) AssignRole(ctx context.Context, playerID, teamID string, role Role) error {
	if _, err := g.enforcer.DeleteRolesForUserInDomain(subject(playerID), teamID); err != nil {
		return fmt.Errorf("failed to clear roles for %s in %s: %w", playerID, teamID, err)
	}
	if _, err := g.enforcer.AddRoleForUserInDomain(subject(playerID), string(role), teamID); err != nil {
		return fmt.Errorf("failed to assign %s to %s in %s: %w", role, playerID, teamID, err)
	}
	slog.InfoContext(ctx, "Team role assigned", "player_id", playerID, "team_id", teamID, "role", role)
	return nil
}

// RemoveMember drops every role playerID held in teamID
func (g *TeamGate) RemoveMember(ctx context.Context, playerID, teamID string) error {
	if _, err := g.enforcer.DeleteRolesForUserInDomain(subject(playerID), teamID); err != nil {
		return fmt.Errorf("failed to remove %s from %s: %w", playerID, teamID, err)
	}
	slog.InfoContext(ctx, "Team roles removed", "player_id", playerID, "team_id", teamID)
	return nil
}

// RolesFor lists the roles playerID holds in teamID
func (g *TeamGate) RolesFor(playerID, teamID string) []Role {
	names := g.enforcer.GetRolesForUserInDomain(subject(playerID), teamID)
	roles := make([]Role, 0, len(names))
	for _, n := range names {
		roles = append(roles, Role(n))
	}
	return roles
}

// subject namespaces player ids so they can never collide with role names
func subject(playerID string) string {
	return "player:" + playerID
}
