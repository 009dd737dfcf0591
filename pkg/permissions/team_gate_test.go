package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Officer ")
	require.NoError(t, err)
	assert.Equal(t, RoleOfficer, role)

	_, err = ParseRole("admiral")
	assert.Error(t, err)
}

func TestTeamGate_Allowed(t *testing.T) {
	ctx := context.Background()
	gate, err := NewTeamGate()
	require.NoError(t, err)

	require.NoError(t, gate.AssignRole(ctx, "alice", "red", RoleLeader))
	require.NoError(t, gate.AssignRole(ctx, "bob", "red", RoleOfficer))
	require.NoError(t, gate.AssignRole(ctx, "carol", "red", RoleMember))
	require.NoError(t, gate.AssignRole(ctx, "dave", "blue", RoleLeader))

	tests := []struct {
		name   string
		player string
		team   string
		action Action
		want   bool
	}{
		{name: "leader negotiates", player: "alice", team: "red", action: ActionNegotiate, want: true},
		{name: "officer negotiates", player: "bob", team: "red", action: ActionNegotiate, want: true},
		{name: "member cannot negotiate", player: "carol", team: "red", action: ActionNegotiate, want: false},
		{name: "member views", player: "carol", team: "red", action: ActionView, want: true},
		{name: "role does not leak across teams", player: "dave", team: "red", action: ActionNegotiate, want: false},
		{name: "stranger", player: "eve", team: "red", action: ActionView, want: false},
		{name: "empty player", player: "", team: "red", action: ActionView, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.Allowed(ctx, tt.player, tt.team, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTeamGate_AssignRoleReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	gate, err := NewTeamGate()
	require.NoError(t, err)

	require.NoError(t, gate.AssignRole(ctx, "alice", "red", RoleLeader))
	require.NoError(t, gate.AssignRole(ctx, "alice", "red", RoleRecruit))
	assert.Equal(t, []Role{RoleRecruit}, gate.RolesFor("alice", "red"))

	ok, err := gate.Allowed(ctx, "alice", "red", ActionNegotiate)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, gate.RemoveMember(ctx, "alice", "red"))
	assert.Empty(t, gate.RolesFor("alice", "red"))
}

func TestTeamGate_PlayerNamedLikeRole(t *testing.T) {
	ctx := context.Background()
	gate, err := NewTeamGate()
	require.NoError(t, err)

	ok, err := gate.Allowed(ctx, "leader", "red", ActionNegotiate)
	require.NoError(t, err)
	assert.False(t, ok)
}
