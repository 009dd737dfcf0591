package dto

import (
	"go-concord/internal/diplomacy/models"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers custom validation rules for diplomacy DTOs
func RegisterCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("team_id", validateTeamID)
}

// validateTeamID validates the opaque team identifier format
func validateTeamID(fl validator.FieldLevel) bool {
	return models.ValidTeamID(fl.Field().String())
}

// NewValidator returns a validator with the diplomacy rules registered
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	RegisterCustomValidators(validate)
	return validate
}
