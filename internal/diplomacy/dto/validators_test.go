package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDTOValidation(t *testing.T) {
	validate := NewValidator()

	tests := []struct {
		name    string
		dto     interface{}
		wantErr bool
	}{
		{
			name: "valid treaty proposal",
			dto: &ProposeTreatyInput{
				TeamID: "red",
				Body:   ProposeTreatyRequest{TargetTeam: "blue", Type: "trade", Terms: []string{"free passage"}},
			},
		},
		{
			name: "unknown treaty type",
			dto: &ProposeTreatyInput{
				TeamID: "red",
				Body:   ProposeTreatyRequest{TargetTeam: "blue", Type: "marriage", Terms: []string{"x"}},
			},
			wantErr: true,
		},
		{
			name: "empty term",
			dto: &ProposeTreatyInput{
				TeamID: "red",
				Body:   ProposeTreatyRequest{TargetTeam: "blue", Type: "trade", Terms: []string{""}},
			},
			wantErr: true,
		},
		{
			name: "negative duration",
			dto: &ProposeTreatyInput{
				TeamID: "red",
				Body:   ProposeTreatyRequest{TargetTeam: "blue", Type: "trade", Terms: []string{"x"}, DurationSeconds: -1},
			},
			wantErr: true,
		},
		{
			name:    "malformed team id",
			dto:     &RelationActionInput{TeamID: "red team", Body: RelationActionRequest{TargetTeam: "blue"}},
			wantErr: true,
		},
		{
			name:    "same team pair",
			dto:     &GetRelationInput{TeamA: "red", TeamB: "red"},
			wantErr: true,
		},
		{
			name: "alliance member list",
			dto: &CreateAllianceInput{
				TeamID: "red",
				Body:   CreateAllianceRequest{Name: "Pact", Type: "mutual-defense", Members: []string{"blue", "green"}, Terms: []string{"x"}},
			},
		},
		{
			name: "alliance with bad member",
			dto: &CreateAllianceInput{
				TeamID: "red",
				Body:   CreateAllianceRequest{Name: "Pact", Type: "trade", Members: []string{"blue|green"}, Terms: []string{"x"}},
			},
			wantErr: true,
		},
		{
			name:    "unknown roster role",
			dto:     &AssignRoleInput{TeamID: "red", PlayerID: "p1", Body: AssignRoleRequest{Role: "emperor"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.dto)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
