package diplomacy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go-concord/internal/diplomacy/routes"
	"go-concord/internal/diplomacy/services"
	"go-concord/pkg/config"
	"go-concord/pkg/database"
	"go-concord/pkg/middleware"
	"go-concord/pkg/module"
	"go-concord/pkg/permissions"

	"github.com/danielgtaylor/huma/v2"
)

// Config holds the module settings read from the environment
type Config struct {
	Store         string
	LockTTL       time.Duration
	WriteTimeout  time.Duration
	EventBuffer   int
	EventsChannel string
	SweepSchedule string
	Policy        services.Policy
}

// LoadConfig reads the DIPLOMACY_* settings
func LoadConfig() Config {
	return Config{
		Store:         config.GetEnv("DIPLOMACY_STORE", "mongo"),
		LockTTL:       config.GetDurationEnv("DIPLOMACY_LOCK_TTL", 15*time.Second),
		WriteTimeout:  config.GetDurationEnv("DIPLOMACY_WRITE_TIMEOUT", 5*time.Second),
		EventBuffer:   config.GetIntEnv("DIPLOMACY_EVENT_BUFFER", 1024),
		EventsChannel: config.GetEnv("DIPLOMACY_EVENTS_CHANNEL", "diplomacy:events"),
		SweepSchedule: config.GetEnv("DIPLOMACY_SWEEP_SCHEDULE", "@every 60s"),
		Policy:        services.PolicyFromEnv(),
	}
}

// Validate checks the timing settings. A mutation holds its lock for the
// whole write, so the write deadline must end before the lock can expire.
func (c Config) Validate() error {
	if c.LockTTL <= 0 {
		return fmt.Errorf("DIPLOMACY_LOCK_TTL must be positive, got %s", c.LockTTL)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("DIPLOMACY_WRITE_TIMEOUT must be positive, got %s", c.WriteTimeout)
	}
	if c.WriteTimeout >= c.LockTTL {
		return fmt.Errorf("DIPLOMACY_WRITE_TIMEOUT (%s) must be shorter than DIPLOMACY_LOCK_TTL (%s)", c.WriteTimeout, c.LockTTL)
	}
	return nil
}

// Module wires the diplomacy services into the application
type Module struct {
	*module.BaseModule
	cfg      Config
	service  *services.Service
	notifier *services.AsyncNotifier
	routes   *routes.Module
}

// New builds the module. Without MongoDB (or with DIPLOMACY_STORE=memory)
// state lives in process; without Redis locks are process local and events
// go to the log.
func New(mongodb *database.MongoDB, redis *database.Redis, auth *middleware.ActorAuthenticator, cfg Config) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("diplomacy config: %w", err)
	}

	var repo services.Repository
	var gate *permissions.TeamGate
	var err error

	if mongodb == nil || cfg.Store == "memory" {
		slog.Warn("Diplomacy state is kept in memory and will not survive a restart")
		repo = services.NewMemoryRepository()
		gate, err = permissions.NewTeamGate()
	} else {
		repo = services.NewMongoRepository(mongodb)
		gate, err = permissions.NewMongoTeamGate(mongodb.Client, mongodb.Database.Name())
	}
	if err != nil {
		return nil, fmt.Errorf("diplomacy permission gate: %w", err)
	}

	var locker services.Locker
	var sink services.EventSink
	if redis != nil {
		locker = services.NewRedisLocker(redis, cfg.LockTTL)
		sink = services.NewRedisPublisher(redis, cfg.EventsChannel)
	} else {
		locker = services.NewLocalLocker()
		sink = services.LogPublisher{}
	}
	notifier := services.NewAsyncNotifier(sink, cfg.EventBuffer)

	service := services.NewService(repo, locker, notifier, gate, services.Config{
		Policy:       cfg.Policy,
		WriteTimeout: cfg.WriteTimeout,
	})
	if redis != nil {
		service.Sweeper.UseRunLock(redis, cfg.LockTTL)
	}

	return &Module{
		BaseModule: module.NewBaseModule("diplomacy", mongodb, redis),
		cfg:        cfg,
		service:    service,
		notifier:   notifier,
		routes:     routes.NewModule(service, auth),
	}, nil
}

// RegisterUnifiedRoutes registers the diplomacy operations under basePath
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	m.routes.RegisterUnifiedRoutes(api, basePath)
}

// StartBackgroundTasks starts the expiry sweep
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	slog.InfoContext(ctx, "Starting diplomacy background tasks", "schedule", m.cfg.SweepSchedule)
	if err := m.service.Sweeper.Start(m.cfg.SweepSchedule); err != nil {
		slog.ErrorContext(ctx, "Failed to start diplomacy sweeper", "error", err)
	}
}

// Stop stops the sweeper and drains queued events
func (m *Module) Stop() {
	m.service.Sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.notifier.Close(ctx); err != nil {
		slog.Warn("Diplomacy events left undelivered at shutdown", "error", err, "pending", m.notifier.Pending())
	}

	m.BaseModule.Stop()
}

// Service exposes the diplomacy service to other modules
func (m *Module) Service() *services.Service {
	return m.service
}
