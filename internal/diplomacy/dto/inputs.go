package dto

// ListRelationsInput represents the input for listing a team's relations
type ListRelationsInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token identifying the acting player"`
	TeamID        string `path:"team_id" validate:"team_id" doc:"Team whose relations to list" example:"red"`
}

// GetRelationInput represents the input for reading one pair's relation
type GetRelationInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token identifying the acting player"`
	TeamA         string `path:"team_a" validate:"team_id" doc:"First team of the pair" example:"red"`
	TeamB         string `path:"team_b" validate:"team_id,nefield=TeamA" doc:"Second team of the pair" example:"blue"`
}

// RelationActionRequest names the other side of a war, hostility or normalize action
type RelationActionRequest struct {
	TargetTeam string `json:"target_team" validate:"required,team_id" doc:"Team the action is directed at" example:"blue"`
}

// RelationActionInput represents a direct relation change requested by a team
type RelationActionInput struct {
	Authorization string                `header:"Authorization" doc:"Bearer token identifying the acting player"`
	TeamID        string                `path:"team_id" validate:"team_id" doc:"Acting team" example:"red"`
	Body          RelationActionRequest `json:"body"`
}

// ProposeTreatyRequest is the body of a treaty proposal
type ProposeTreatyRequest struct {
	TargetTeam      string   `json:"target_team" validate:"required,team_id" doc:"Team the treaty is offered to" example:"blue"`
	Type            string   `json:"type" validate:"required,oneof=trade defense non-aggression peace" doc:"Treaty type" example:"trade"`
	Terms           []string `json:"terms" validate:"required,min=1,dive,required" doc:"Ordered treaty clauses" example:"[\"free passage\"]"`
	DurationSeconds int64    `json:"duration_seconds,omitempty" validate:"gte=0" doc:"Lifetime once accepted; 0 means no expiry" example:"604800"`
}

// ProposeTreatyInput represents the input for proposing a treaty
type ProposeTreatyInput struct {
	Authorization string               `header:"Authorization" doc:"Bearer token identifying the acting player"`
	TeamID        string               `path:"team_id" validate:"team_id" doc:"Proposing team" example:"red"`
	Body          ProposeTreatyRequest `json:"body"`
}

// ListTreatiesInput represents the input for listing a team's treaties
type ListTreatiesInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token identifying the acting player"`
	TeamID        string `path:"team_id" validate:"team_id" doc:"Team whose treaties to list" example:"red"`
	Status        string `query:"status" doc:"Comma separated statuses to include (proposed, active, rejected, cancelled, expired)" example:"proposed,active"`
}

// GetTreatyInput represents the input for reading a treaty
type GetTreatyInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token identifying the acting player"`
	TreatyID      string `path:"treaty_id" validate:"required" doc:"Treaty ID"`
}

// TreatyActionInput represents accept, reject or cancel on behalf of a team
type TreatyActionInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token identifying the acting player"`
	TeamID        string `path:"team_id" validate:"team_id" doc:"Acting team" example:"blue"`
	TreatyID      string `path:"treaty_id" validate:"required" doc:"Treaty ID"`
}

// CreateAllianceRequest is the body of an alliance creation
type CreateAllianceRequest struct {
	Name            string   `json:"name" validate:"required" doc:"Alliance name" example:"Northern Pact"`
	Type            string   `json:"type" validate:"required,oneof=mutual-defense trade non-aggression" doc:"Alliance type" example:"mutual-defense"`
	Members         []string `json:"members" validate:"required,min=1,dive,team_id" doc:"Invited teams; the founder is added automatically" example:"[\"blue\",\"green\"]"`
	Terms           []string `json:"terms" validate:"required,min=1,dive,required" doc:"Shared alliance terms" example:"[\"shared borders\"]"`
	DurationSeconds int64    `json:"duration_seconds,omitempty" validate:"gte=0" doc:"Lifetime of the alliance; 0 means no expiry"`
}

// CreateAllianceInput represents the input for founding an alliance
type CreateAllianceInput struct {
	Authorization string                `header:"Authorization" doc:"Bearer token identifying the acting player"`
	TeamID        string                `path:"team_id" validate:"team_id" doc:"Founding team" example:"red"`
	Body          CreateAllianceRequest `json:"body"`
}

// ListAlliancesInput represents the input for listing a team's alliances
type ListAlliancesInput struct {
	Authorization    string `header:"Authorization" doc:"Bearer token identifying the acting player"`
	TeamID           string `path:"team_id" validate:"team_id" doc:"Team whose alliances to list" example:"red"`
	IncludeDissolved bool   `query:"include_dissolved" doc:"Include dissolved alliances"`
}

// GetAllianceInput represents the input for reading an alliance
type GetAllianceInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token identifying the acting player"`
	AllianceID    string `path:"alliance_id" validate:"required" doc:"Alliance ID"`
}

// AllianceActionInput represents join or leave on behalf of a team
type AllianceActionInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token identifying the acting player"`
	TeamID        string `path:"team_id" validate:"team_id" doc:"Acting team" example:"green"`
	AllianceID    string `path:"alliance_id" validate:"required" doc:"Alliance ID"`
}

// AssignRoleRequest carries the roster role of a player
type AssignRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=leader officer member recruit" doc:"Role within the team" example:"officer"`
}

// AssignRoleInput represents an admin roster sync for one player
type AssignRoleInput struct {
	Authorization string            `header:"Authorization" doc:"Bearer token with the admin claim"`
	TeamID        string            `path:"team_id" validate:"team_id" doc:"Team ID" example:"red"`
	PlayerID      string            `path:"player_id" validate:"required,max=128" doc:"Player ID"`
	Body          AssignRoleRequest `json:"body"`
}

// RemoveMemberInput represents an admin roster removal
type RemoveMemberInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token with the admin claim"`
	TeamID        string `path:"team_id" validate:"team_id" doc:"Team ID" example:"red"`
	PlayerID      string `path:"player_id" validate:"required,max=128" doc:"Player ID"`
}

// RunSweepInput represents a manual expiry sweep request
type RunSweepInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token with the admin claim"`
}

// StatusInput represents the input for the module status endpoint
type StatusInput struct{}
