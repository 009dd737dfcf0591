package services

import (
	"context"
	"errors"
	"time"

	"go-concord/internal/diplomacy/models"
)

var (
	// ErrRecordNotFound is returned by repositories when no document matches
	ErrRecordNotFound = errors.New("record not found")
	// ErrStaleWrite means the stored version moved on since the record was read
	ErrStaleWrite = errors.New("stale write: record version changed")
	// ErrOpenSlotTaken means another proposed or active treaty already holds the pair
	ErrOpenSlotTaken = errors.New("pair already has an open treaty")
)

// RelationRepository persists one relation document per pair key.
// SaveRelation inserts when Version is zero and otherwise replaces the record
// only if the stored version still matches, bumping Version on success.
type RelationRepository interface {
	GetRelation(ctx context.Context, key models.PairKey) (*models.Relation, error)
	ListRelations(ctx context.Context, team string) ([]*models.Relation, error)
	SaveRelation(ctx context.Context, rel *models.Relation) error
}

// TreatyRepository persists treaties with the same optimistic versioning
type TreatyRepository interface {
	GetTreaty(ctx context.Context, id string) (*models.Treaty, error)
	FindOpenTreaty(ctx context.Context, key models.PairKey) (*models.Treaty, error)
	ListTreaties(ctx context.Context, team string, statuses []models.TreatyStatus) ([]*models.Treaty, error)
	ListExpiredTreaties(ctx context.Context, now time.Time) ([]*models.Treaty, error)
	InsertTreaty(ctx context.Context, t *models.Treaty) error
	UpdateTreaty(ctx context.Context, t *models.Treaty) error
}

type AllianceRepository interface {
	GetAlliance(ctx context.Context, id string) (*models.Alliance, error)
	ListAlliances(ctx context.Context, team string, includeDissolved bool) ([]*models.Alliance, error)
	ListExpiredAlliances(ctx context.Context, now time.Time) ([]*models.Alliance, error)
	InsertAlliance(ctx context.Context, a *models.Alliance) error
	UpdateAlliance(ctx context.Context, a *models.Alliance) error
}

// Repository is the full storage surface of the diplomacy services.
// InTx runs fn so that its writes commit together or not at all; repository
// calls made with the ctx passed to fn join the transaction. A nested InTx
// joins the outer one.
type Repository interface {
	RelationRepository
	TreatyRepository
	AllianceRepository
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	HealthCheck(ctx context.Context) error
}

func statusSet(statuses []models.TreatyStatus) map[models.TreatyStatus]bool {
	if len(statuses) == 0 {
		return nil
	}
	set := make(map[models.TreatyStatus]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}
