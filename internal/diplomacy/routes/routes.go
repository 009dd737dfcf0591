package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-concord/internal/diplomacy/dto"
	"go-concord/internal/diplomacy/models"
	"go-concord/internal/diplomacy/services"
	"go-concord/pkg/middleware"
	"go-concord/pkg/permissions"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-playground/validator/v10"
)

// Module represents the diplomacy routes module
type Module struct {
	service  *services.Service
	auth     *middleware.ActorAuthenticator
	validate *validator.Validate
}

// NewModule creates a new diplomacy routes module
func NewModule(service *services.Service, auth *middleware.ActorAuthenticator) *Module {
	return &Module{
		service:  service,
		auth:     auth,
		validate: dto.NewValidator(),
	}
}

// RegisterUnifiedRoutes registers all diplomacy routes with the provided Huma API
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	// Relations
	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-list-relations",
		Method:      http.MethodGet,
		Path:        basePath + "/teams/{team_id}/relations",
		Summary:     "List Team Relations",
		Description: "List every stored relation involving the team. Pairs without a record are implicitly neutral.",
		Tags:        []string{"Diplomacy / Relations"},
	}, m.listRelations)

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-get-relation",
		Method:      http.MethodGet,
		Path:        basePath + "/relations/{team_a}/{team_b}",
		Summary:     "Get Relation",
		Description: "Get the relation between two teams. The order of the two teams does not matter.",
		Tags:        []string{"Diplomacy / Relations"},
	}, m.getRelation)

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-declare-war",
		Method:      http.MethodPost,
		Path:        basePath + "/teams/{team_id}/war",
		Summary:     "Declare War",
		Description: "Declare war on another team. Any proposed or active treaty between the pair is cancelled.",
		Tags:        []string{"Diplomacy / Relations"},
	}, m.relationAction(m.service.Relations.DeclareWar))

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-declare-hostility",
		Method:      http.MethodPost,
		Path:        basePath + "/teams/{team_id}/hostility",
		Summary:     "Declare Hostility",
		Description: "Mark a neutral pair hostile. Not allowed while a treaty is active or the pair is at war.",
		Tags:        []string{"Diplomacy / Relations"},
	}, m.relationAction(m.service.Relations.DeclareHostility))

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-normalize-relation",
		Method:      http.MethodPost,
		Path:        basePath + "/teams/{team_id}/normalize",
		Summary:     "Normalize Relation",
		Description: "Return a hostile pair to neutral. A pair at war needs a peace treaty instead.",
		Tags:        []string{"Diplomacy / Relations"},
	}, m.relationAction(m.service.Relations.Normalize))

	// Treaties
	huma.Register(api, huma.Operation{
		OperationID:   "diplomacy-propose-treaty",
		Method:        http.MethodPost,
		Path:          basePath + "/teams/{team_id}/treaties",
		Summary:       "Propose Treaty",
		Description:   "Propose a treaty to another team. Only one proposed or active treaty may exist per pair.",
		Tags:          []string{"Diplomacy / Treaties"},
		DefaultStatus: http.StatusCreated,
	}, m.proposeTreaty)

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-list-treaties",
		Method:      http.MethodGet,
		Path:        basePath + "/teams/{team_id}/treaties",
		Summary:     "List Team Treaties",
		Tags:        []string{"Diplomacy / Treaties"},
	}, m.listTreaties)

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-get-treaty",
		Method:      http.MethodGet,
		Path:        basePath + "/treaties/{treaty_id}",
		Summary:     "Get Treaty",
		Tags:        []string{"Diplomacy / Treaties"},
	}, m.getTreaty)

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-accept-treaty",
		Method:      http.MethodPost,
		Path:        basePath + "/teams/{team_id}/treaties/{treaty_id}/accept",
		Summary:     "Accept Treaty",
		Description: "Accept a proposed treaty on behalf of its target team and apply the relation it implies.",
		Tags:        []string{"Diplomacy / Treaties"},
	}, m.treatyAction(m.service.Treaties.Accept))

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-reject-treaty",
		Method:      http.MethodPost,
		Path:        basePath + "/teams/{team_id}/treaties/{treaty_id}/reject",
		Summary:     "Reject Treaty",
		Tags:        []string{"Diplomacy / Treaties"},
	}, m.treatyAction(m.service.Treaties.Reject))

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-cancel-treaty",
		Method:      http.MethodPost,
		Path:        basePath + "/teams/{team_id}/treaties/{treaty_id}/cancel",
		Summary:     "Cancel Treaty",
		Description: "Cancel an active treaty as either party, or withdraw a proposal as the proposing team.",
		Tags:        []string{"Diplomacy / Treaties"},
	}, m.treatyAction(m.service.Treaties.Cancel))

	// Alliances
	huma.Register(api, huma.Operation{
		OperationID:   "diplomacy-create-alliance",
		Method:        http.MethodPost,
		Path:          basePath + "/teams/{team_id}/alliances",
		Summary:       "Create Alliance",
		Description:   "Found an alliance with the listed teams. No two members may be at war.",
		Tags:          []string{"Diplomacy / Alliances"},
		DefaultStatus: http.StatusCreated,
	}, m.createAlliance)

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-list-alliances",
		Method:      http.MethodGet,
		Path:        basePath + "/teams/{team_id}/alliances",
		Summary:     "List Team Alliances",
		Tags:        []string{"Diplomacy / Alliances"},
	}, m.listAlliances)

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-get-alliance",
		Method:      http.MethodGet,
		Path:        basePath + "/alliances/{alliance_id}",
		Summary:     "Get Alliance",
		Tags:        []string{"Diplomacy / Alliances"},
	}, m.getAlliance)

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-join-alliance",
		Method:      http.MethodPost,
		Path:        basePath + "/teams/{team_id}/alliances/{alliance_id}/join",
		Summary:     "Join Alliance",
		Tags:        []string{"Diplomacy / Alliances"},
	}, m.allianceAction(m.service.Alliances.Join))

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-leave-alliance",
		Method:      http.MethodPost,
		Path:        basePath + "/teams/{team_id}/alliances/{alliance_id}/leave",
		Summary:     "Leave Alliance",
		Description: "Leave an alliance. An alliance left with fewer than two members is dissolved.",
		Tags:        []string{"Diplomacy / Alliances"},
	}, m.allianceAction(m.service.Alliances.Leave))

	// Administration
	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-assign-team-role",
		Method:      http.MethodPut,
		Path:        basePath + "/admin/teams/{team_id}/members/{player_id}",
		Summary:     "Sync Team Role",
		Description: "Set the role a player holds in a team. Called by the team roster service.",
		Tags:        []string{"Diplomacy / Admin"},
	}, m.assignRole)

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-remove-team-member",
		Method:      http.MethodDelete,
		Path:        basePath + "/admin/teams/{team_id}/members/{player_id}",
		Summary:     "Remove Team Member",
		Tags:        []string{"Diplomacy / Admin"},
	}, m.removeMember)

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-run-sweep",
		Method:      http.MethodPost,
		Path:        basePath + "/admin/sweep",
		Summary:     "Run Expiry Sweep",
		Description: "Expire due treaties and dissolve due alliances now instead of waiting for the schedule.",
		Tags:        []string{"Diplomacy / Admin"},
	}, m.runSweep)

	huma.Register(api, huma.Operation{
		OperationID: "diplomacy-get-status",
		Method:      http.MethodGet,
		Path:        basePath + "/status",
		Summary:     "Get Diplomacy Module Status",
		Tags:        []string{"Module Status"},
	}, m.getStatus)
}

func (m *Module) listRelations(ctx context.Context, input *dto.ListRelationsInput) (*dto.RelationListOutput, error) {
	actor, err := m.authenticate(input.Authorization, input)
	if err != nil {
		return nil, err
	}
	if err := m.service.CanView(ctx, actor.PlayerID, input.TeamID); err != nil {
		return nil, toHumaError(ctx, err)
	}

	relations, err := m.service.Relations.ListRelations(ctx, input.TeamID)
	if err != nil {
		return nil, toHumaError(ctx, err)
	}
	return &dto.RelationListOutput{Body: dto.RelationsFromModels(relations)}, nil
}

func (m *Module) getRelation(ctx context.Context, input *dto.GetRelationInput) (*dto.RelationOutput, error) {
	actor, err := m.authenticate(input.Authorization, input)
	if err != nil {
		return nil, err
	}
	if err := m.service.CanView(ctx, actor.PlayerID, input.TeamA, input.TeamB); err != nil {
		return nil, toHumaError(ctx, err)
	}

	rel, err := m.service.Relations.GetRelation(ctx, input.TeamA, input.TeamB)
	if err != nil {
		return nil, toHumaError(ctx, err)
	}
	return &dto.RelationOutput{Body: dto.RelationFromModel(rel)}, nil
}

type relationFunc func(ctx context.Context, actor, team, target string) (*models.Relation, error)

func (m *Module) relationAction(fn relationFunc) func(context.Context, *dto.RelationActionInput) (*dto.RelationOutput, error) {
	return func(ctx context.Context, input *dto.RelationActionInput) (*dto.RelationOutput, error) {
		actor, err := m.authenticate(input.Authorization, input)
		if err != nil {
			return nil, err
		}
		rel, err := fn(ctx, actor.PlayerID, input.TeamID, input.Body.TargetTeam)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &dto.RelationOutput{Body: dto.RelationFromModel(rel)}, nil
	}
}

func (m *Module) proposeTreaty(ctx context.Context, input *dto.ProposeTreatyInput) (*dto.TreatyOutput, error) {
	actor, err := m.authenticate(input.Authorization, input)
	if err != nil {
		return nil, err
	}

	duration, err := durationFromSeconds(input.Body.DurationSeconds, m.service.Policy().MaxTreatyDuration)
	if err != nil {
		return nil, toHumaError(ctx, err)
	}

	treaty, err := m.service.Treaties.Propose(ctx, actor.PlayerID, services.ProposeTreatyRequest{
		ProposingTeam: input.TeamID,
		TargetTeam:    input.Body.TargetTeam,
		Type:          models.TreatyType(input.Body.Type),
		Terms:         input.Body.Terms,
		Duration:      duration,
	})
	if err != nil {
		return nil, toHumaError(ctx, err)
	}
	return &dto.TreatyOutput{Body: dto.TreatyFromModel(treaty)}, nil
}

func (m *Module) listTreaties(ctx context.Context, input *dto.ListTreatiesInput) (*dto.TreatyListOutput, error) {
	actor, err := m.authenticate(input.Authorization, input)
	if err != nil {
		return nil, err
	}
	if err := m.service.CanView(ctx, actor.PlayerID, input.TeamID); err != nil {
		return nil, toHumaError(ctx, err)
	}

	treaties, err := m.service.Treaties.ListTreaties(ctx, input.TeamID, parseStatuses(input.Status))
	if err != nil {
		return nil, toHumaError(ctx, err)
	}
	return &dto.TreatyListOutput{Body: dto.TreatiesFromModels(treaties)}, nil
}

func (m *Module) getTreaty(ctx context.Context, input *dto.GetTreatyInput) (*dto.TreatyOutput, error) {
	actor, err := m.authenticate(input.Authorization, input)
	if err != nil {
		return nil, err
	}

	treaty, err := m.service.Treaties.GetTreaty(ctx, input.TreatyID)
	if err != nil {
		return nil, toHumaError(ctx, err)
	}
	if err := m.service.CanView(ctx, actor.PlayerID, treaty.ProposingTeam, treaty.TargetTeam); err != nil {
		return nil, toHumaError(ctx, err)
	}
	return &dto.TreatyOutput{Body: dto.TreatyFromModel(treaty)}, nil
}

type treatyFunc func(ctx context.Context, actor, treatyID, acting string) (*models.Treaty, error)

func (m *Module) treatyAction(fn treatyFunc) func(context.Context, *dto.TreatyActionInput) (*dto.TreatyOutput, error) {
	return func(ctx context.Context, input *dto.TreatyActionInput) (*dto.TreatyOutput, error) {
		actor, err := m.authenticate(input.Authorization, input)
		if err != nil {
			return nil, err
		}
		treaty, err := fn(ctx, actor.PlayerID, input.TreatyID, input.TeamID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &dto.TreatyOutput{Body: dto.TreatyFromModel(treaty)}, nil
	}
}

func (m *Module) createAlliance(ctx context.Context, input *dto.CreateAllianceInput) (*dto.AllianceOutput, error) {
	actor, err := m.authenticate(input.Authorization, input)
	if err != nil {
		return nil, err
	}

	duration, err := durationFromSeconds(input.Body.DurationSeconds, m.service.Policy().MaxTreatyDuration)
	if err != nil {
		return nil, toHumaError(ctx, err)
	}

	alliance, err := m.service.Alliances.Create(ctx, actor.PlayerID, services.CreateAllianceRequest{
		FounderTeam: input.TeamID,
		Name:        input.Body.Name,
		Type:        models.AllianceType(input.Body.Type),
		Members:     input.Body.Members,
		Terms:       input.Body.Terms,
		Duration:    duration,
	})
	if err != nil {
		return nil, toHumaError(ctx, err)
	}
	return &dto.AllianceOutput{Body: dto.AllianceFromModel(alliance)}, nil
}

func (m *Module) listAlliances(ctx context.Context, input *dto.ListAlliancesInput) (*dto.AllianceListOutput, error) {
	actor, err := m.authenticate(input.Authorization, input)
	if err != nil {
		return nil, err
	}
	if err := m.service.CanView(ctx, actor.PlayerID, input.TeamID); err != nil {
		return nil, toHumaError(ctx, err)
	}

	alliances, err := m.service.Alliances.ListForTeam(ctx, input.TeamID, input.IncludeDissolved)
	if err != nil {
		return nil, toHumaError(ctx, err)
	}
	return &dto.AllianceListOutput{Body: dto.AlliancesFromModels(alliances)}, nil
}

func (m *Module) getAlliance(ctx context.Context, input *dto.GetAllianceInput) (*dto.AllianceOutput, error) {
	if _, err := m.authenticate(input.Authorization, input); err != nil {
		return nil, err
	}

	alliance, err := m.service.Alliances.GetAlliance(ctx, input.AllianceID)
	if err != nil {
		return nil, toHumaError(ctx, err)
	}
	return &dto.AllianceOutput{Body: dto.AllianceFromModel(alliance)}, nil
}

type allianceFunc func(ctx context.Context, actor, allianceID, team string) (*models.Alliance, error)

func (m *Module) allianceAction(fn allianceFunc) func(context.Context, *dto.AllianceActionInput) (*dto.AllianceOutput, error) {
	return func(ctx context.Context, input *dto.AllianceActionInput) (*dto.AllianceOutput, error) {
		actor, err := m.authenticate(input.Authorization, input)
		if err != nil {
			return nil, err
		}
		alliance, err := fn(ctx, actor.PlayerID, input.AllianceID, input.TeamID)
		if err != nil {
			return nil, toHumaError(ctx, err)
		}
		return &dto.AllianceOutput{Body: dto.AllianceFromModel(alliance)}, nil
	}
}

func (m *Module) assignRole(ctx context.Context, input *dto.AssignRoleInput) (*dto.RosterOutput, error) {
	if err := m.authorizeAdmin(input.Authorization, input); err != nil {
		return nil, err
	}
	role, err := permissions.ParseRole(input.Body.Role)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	if err := m.service.AssignRole(ctx, input.PlayerID, input.TeamID, role); err != nil {
		return nil, toHumaError(ctx, err)
	}
	return &dto.RosterOutput{Body: m.rosterEntry(input.PlayerID, input.TeamID)}, nil
}

func (m *Module) removeMember(ctx context.Context, input *dto.RemoveMemberInput) (*dto.RosterOutput, error) {
	if err := m.authorizeAdmin(input.Authorization, input); err != nil {
		return nil, err
	}
	if err := m.service.RemoveMember(ctx, input.PlayerID, input.TeamID); err != nil {
		return nil, toHumaError(ctx, err)
	}
	return &dto.RosterOutput{Body: m.rosterEntry(input.PlayerID, input.TeamID)}, nil
}

func (m *Module) rosterEntry(playerID, teamID string) dto.RosterEntry {
	roles := m.service.RolesFor(playerID, teamID)
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return dto.RosterEntry{TeamID: teamID, PlayerID: playerID, Roles: names}
}

func (m *Module) runSweep(ctx context.Context, input *dto.RunSweepInput) (*dto.SweepOutput, error) {
	if err := m.authorizeAdmin(input.Authorization, nil); err != nil {
		return nil, err
	}
	result, err := m.service.Sweeper.Sweep(ctx)
	if err != nil {
		return nil, toHumaError(ctx, err)
	}
	return &dto.SweepOutput{Body: sweepFromResult(result)}, nil
}

func (m *Module) getStatus(ctx context.Context, input *dto.StatusInput) (*dto.StatusOutput, error) {
	report := m.service.Status(ctx)

	status := dto.DiplomacyStatus{
		Module:        "diplomacy",
		Status:        "healthy",
		EventsSent:    report.EventsSent,
		EventsDropped: report.EventsDropped,
		EventsPending: report.EventsPending,
	}
	if !report.Healthy {
		status.Status = "unhealthy"
		status.Message = report.StoreError
	}
	if report.LastSweep != nil {
		last := sweepFromResult(*report.LastSweep)
		status.LastSweep = &last
	}
	return &dto.StatusOutput{Body: status}, nil
}

// authenticate resolves the acting player and validates the request DTO
func (m *Module) authenticate(authHeader string, input any) (*middleware.Actor, error) {
	actor, err := m.auth.Authenticate(authHeader)
	if err != nil {
		return nil, err
	}
	if err := m.validateInput(input); err != nil {
		return nil, err
	}
	return actor, nil
}

func (m *Module) authorizeAdmin(authHeader string, input any) error {
	if _, err := m.auth.RequireAdmin(authHeader); err != nil {
		return err
	}
	if input == nil {
		return nil
	}
	return m.validateInput(input)
}

func (m *Module) validateInput(input any) error {
	err := m.validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return huma.Error400BadRequest("Invalid request", err)
	}
	details := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, &huma.ErrorDetail{
			Message:  "failed on the '" + fe.Tag() + "' rule",
			Location: fieldLocation(fe),
			Value:    fe.Value(),
		})
	}
	return huma.Error400BadRequest("Request validation failed", details...)
}

// fieldLocation turns a validator namespace like ProposeTreatyInput.Body.TargetTeam into body.TargetTeam
func fieldLocation(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if strings.HasPrefix(ns, "Body.") {
		return "body." + strings.TrimPrefix(ns, "Body.")
	}
	return ns
}

// durationFromSeconds converts a requested lifetime, rejecting values above
// limit before the conversion can overflow
func durationFromSeconds(secs int64, limit time.Duration) (time.Duration, error) {
	maxSecs := int64(limit / time.Second)
	if secs < 0 || secs > maxSecs {
		return 0, models.Validation("body.duration_seconds", "must be between 0 and %d seconds", maxSecs)
	}
	return time.Duration(secs) * time.Second, nil
}

func parseStatuses(raw string) []models.TreatyStatus {
	var out []models.TreatyStatus
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, models.TreatyStatus(strings.ToLower(part)))
		}
	}
	return out
}

func sweepFromResult(r services.SweepResult) dto.SweepResult {
	return dto.SweepResult{
		StartedAt:          r.StartedAt,
		FinishedAt:         r.FinishedAt,
		TreatiesExpired:    r.TreatiesExpired,
		AlliancesDissolved: r.AlliancesDissolved,
		Failures:           r.Failures,
	}
}

// toHumaError maps domain errors onto HTTP statuses; anything else is a 500
func toHumaError(ctx context.Context, err error) error {
	de, ok := models.AsDiplomacyError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return huma.Error503ServiceUnavailable("Timed out waiting for a concurrent change on the same pair")
		}
		slog.ErrorContext(ctx, "Diplomacy request failed", "error", err)
		return huma.Error500InternalServerError("Internal server error")
	}

	switch de.Kind {
	case models.KindNotAuthorized:
		return huma.Error403Forbidden(de.Message)
	case models.KindConflict:
		if de.Ref != "" {
			return huma.Error409Conflict(de.Message, &huma.ErrorDetail{Message: "conflicting entity", Location: "ref", Value: de.Ref})
		}
		return huma.Error409Conflict(de.Message)
	case models.KindInvalidTransition:
		return huma.Error422UnprocessableEntity(de.Message)
	case models.KindIncompatibleRelation:
		return huma.Error412PreconditionFailed(de.Message, &huma.ErrorDetail{Message: "pair at war", Location: "pair", Value: de.Ref})
	case models.KindValidation:
		return huma.Error400BadRequest(de.Message, &huma.ErrorDetail{Message: de.Message, Location: de.Field})
	case models.KindNotFound:
		return huma.Error404NotFound(de.Message)
	}
	return huma.Error500InternalServerError("Internal server error")
}
