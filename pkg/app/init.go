package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"go-concord/pkg/config"
	"go-concord/pkg/database"
	"go-concord/pkg/logging"

	"github.com/joho/godotenv"
)

// AppContext holds the shared application context and dependencies
type AppContext struct {
	MongoDB          *database.MongoDB
	Redis            *database.Redis
	TelemetryManager *logging.TelemetryManager
	ServiceName      string
	shutdownFuncs    []func(context.Context) error
}

// Options selects which backing services InitializeApp connects to
type Options struct {
	RequireMongoDB bool
	RequireRedis   bool
}

// OptionsFromEnv reads MONGODB_ENABLED / REDIS_ENABLED (both default true)
func OptionsFromEnv() Options {
	return Options{
		RequireMongoDB: config.GetBoolEnv("MONGODB_ENABLED", true),
		RequireRedis:   config.GetBoolEnv("REDIS_ENABLED", true),
	}
}

// InitializeApp loads .env, sets up logging/telemetry and connects to the
// required databases. A required database that cannot be reached is fatal.
func InitializeApp(serviceName string, opts Options) (*AppContext, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	ctx := context.Background()

	telemetryManager := logging.NewTelemetryManager(serviceName)
	if err := telemetryManager.Initialize(ctx); err != nil {
		slog.Warn("Failed to initialize telemetry", "error", err)
	}

	appCtx := &AppContext{
		TelemetryManager: telemetryManager,
		ServiceName:      serviceName,
	}

	if opts.RequireMongoDB {
		mongodb, err := database.NewMongoDB(ctx, serviceName)
		if err != nil {
			return nil, fmt.Errorf("mongodb: %w", err)
		}
		appCtx.MongoDB = mongodb
		appCtx.shutdownFuncs = append(appCtx.shutdownFuncs, mongodb.Close)
	}

	if opts.RequireRedis {
		redis, err := database.NewRedis(ctx)
		if err != nil {
			appCtx.Shutdown(ctx)
			return nil, fmt.Errorf("redis: %w", err)
		}
		appCtx.Redis = redis
		appCtx.shutdownFuncs = append(appCtx.shutdownFuncs, func(context.Context) error {
			return redis.Close()
		})
	}

	appCtx.shutdownFuncs = append(appCtx.shutdownFuncs, telemetryManager.Shutdown)

	return appCtx, nil
}

// Shutdown releases dependencies in registration order
func (a *AppContext) Shutdown(ctx context.Context) {
	slog.Info("Shutting down application", "service", a.ServiceName)

	for _, shutdown := range a.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}
	a.shutdownFuncs = nil
}
