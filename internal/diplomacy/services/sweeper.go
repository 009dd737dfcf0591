package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-concord/internal/diplomacy/models"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
)

const sweepLockKey = "diplomacy:sweep:lock"

// SweepResult summarizes one expiry pass
type SweepResult struct {
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	TreatiesExpired    int       `json:"treaties_expired"`
	AlliancesDissolved int       `json:"alliances_dissolved"`
	Failures           int       `json:"failures"`
}

// Sweeper expires due treaties and alliances on a cron schedule
type Sweeper struct {
	treaties  *TreatyEngine
	alliances *AllianceRegistry

	runLock    lockClient
	runLockTTL time.Duration
	timeout    time.Duration

	cron *cron.Cron

	mu      sync.Mutex
	lastRun *SweepResult
}

func newSweeper(treaties *TreatyEngine, alliances *AllianceRegistry) *Sweeper {
	return &Sweeper{
		treaties:  treaties,
		alliances: alliances,
		timeout:   2 * time.Minute,
	}
}

// UseRunLock makes scheduled sweeps take a distributed lock so only one
// instance sweeps at a time
func (s *Sweeper) UseRunLock(client lockClient, ttl time.Duration) {
	s.runLock = client
	s.runLockTTL = ttl
}

// Start registers the sweep with cron using schedule, e.g. "@every 60s"
func (s *Sweeper) Start(schedule string) error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(schedule, s.runScheduled); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()

	slog.Info("Diplomacy sweeper started", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

func (s *Sweeper) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.runLock != nil {
		token := uuid.New().String()
		acquired, err := s.runLock.AcquireLock(ctx, sweepLockKey, token, s.runLockTTL)
		if err != nil {
			slog.Error("Failed to acquire sweep lock", "error", err)
			return
		}
		if !acquired {
			slog.Debug("Sweep already running on another instance")
			return
		}
		defer func() {
			if err := s.runLock.ReleaseLock(context.Background(), sweepLockKey, token); err != nil {
				slog.Warn("Failed to release sweep lock", "error", err)
			}
		}()
	}

	if _, err := s.Sweep(ctx); err != nil {
		slog.Error("Diplomacy sweep failed", "error", err)
	}
}

// Sweep expires everything due now. Failures on single entities are logged
// and counted; only a failed listing aborts the pass.
func (s *Sweeper) Sweep(ctx context.Context) (result SweepResult, err error) {
	ctx, span := s.treaties.startSpan(ctx, "Sweep")
	defer func() {
		span.SetAttributes(
			attribute.Int("treaties_expired", result.TreatiesExpired),
			attribute.Int("alliances_dissolved", result.AlliancesDissolved),
			attribute.Int("failures", result.Failures))
		endSpan(span, err)
	}()

	now := s.treaties.now()
	result.StartedAt = now.UTC()

	treaties, err := s.treaties.repo.ListExpiredTreaties(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to list expired treaties: %w", err)
	}
	for _, t := range treaties {
		expired, err := s.treaties.Expire(ctx, t.ID)
		if err != nil {
			result.Failures++
			slog.ErrorContext(ctx, "Failed to expire treaty", "treaty_id", t.ID, "error", err)
			continue
		}
		if expired.Status == models.TreatyExpired {
			result.TreatiesExpired++
		}
	}

	alliances, err := s.alliances.repo.ListExpiredAlliances(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to list expired alliances: %w", err)
	}
	for _, a := range alliances {
		dissolved, err := s.alliances.Expire(ctx, a.ID)
		if err != nil {
			result.Failures++
			slog.ErrorContext(ctx, "Failed to dissolve expired alliance", "alliance_id", a.ID, "error", err)
			continue
		}
		if dissolved.Status == models.AllianceDissolved {
			result.AlliancesDissolved++
		}
	}

	result.FinishedAt = s.treaties.now().UTC()
	s.mu.Lock()
	last := result
	s.lastRun = &last
	s.mu.Unlock()

	if result.TreatiesExpired+result.AlliancesDissolved+result.Failures > 0 {
		slog.InfoContext(ctx, "Diplomacy sweep completed",
			"treaties_expired", result.TreatiesExpired,
			"alliances_dissolved", result.AlliancesDissolved,
			"failures", result.Failures)
	}
	return result, nil
}

// LastRun returns the most recent completed sweep, if any
func (s *Sweeper) LastRun() *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return nil
	}
	last := *s.lastRun
	return &last
}
