package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go-concord/internal/diplomacy"
	"go-concord/pkg/app"
	"go-concord/pkg/config"
	"go-concord/pkg/handlers"
	"go-concord/pkg/middleware"
	"go-concord/pkg/module"
	"go-concord/pkg/version"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "go.uber.org/automaxprocs"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		out, _ := json.MarshalIndent(version.Get(), "", "  ")
		fmt.Println(string(out))
		return
	}

	info := version.Get()
	log.Printf("Concord %s, built %s (%s)", version.GetVersionString(), info.BuildDate, info.Platform)
	log.Printf("CPUs: %d, GOMAXPROCS: %d", runtime.NumCPU(), runtime.GOMAXPROCS(0))

	appCtx, err := app.InitializeApp("concord", app.OptionsFromEnv())
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	auth := middleware.NewActorAuthenticator([]byte(jwtSecret()))

	diplomacyModule, err := diplomacy.New(appCtx.MongoDB, appCtx.Redis, auth, diplomacy.LoadConfig())
	if err != nil {
		appCtx.Shutdown(context.Background())
		log.Fatalf("Failed to initialize diplomacy module: %v", err)
	}
	modules := []module.Module{diplomacyModule}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.TracingMiddleware)

	deps := map[string]handlers.HealthChecker{}
	if appCtx.MongoDB != nil {
		deps["mongodb"] = appCtx.MongoDB
	}
	if appCtx.Redis != nil {
		deps["redis"] = appCtx.Redis
	}
	r.Get("/health", handlers.HealthHandler(3*time.Second, deps))

	apiPrefix := config.GetAPIPrefix()
	humaConfig := huma.DefaultConfig("Concord Diplomacy API", info.Version)
	humaConfig.Info.Description = "Relations, treaties and alliances between teams"
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}

	var api huma.API
	if apiPrefix == "" {
		api = humachi.New(r, humaConfig)
	} else {
		humaConfig.Servers = []*huma.Server{{URL: apiPrefix}}
		prefixRouter := chi.NewRouter()
		r.Mount(apiPrefix, prefixRouter)
		api = humachi.New(prefixRouter, humaConfig)
	}

	for _, mod := range modules {
		mod.RegisterUnifiedRoutes(api, "/"+mod.Name())
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	for _, mod := range modules {
		mod.StartBackgroundTasks(ctx)
	}

	srv := &http.Server{
		Addr:         config.GetHost() + ":" + config.GetPort("8080"),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting concord server", "addr", srv.Addr, "api_prefix", apiPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Received shutdown signal, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	stop()
	for _, mod := range modules {
		mod.Stop()
	}
	appCtx.Shutdown(shutdownCtx)

	slog.Info("Concord shutdown completed")
}

// jwtSecret reads JWT_SECRET; only development runs may fall back to a fixed key
func jwtSecret() string {
	if secret := config.GetEnv("JWT_SECRET", ""); secret != "" {
		return secret
	}
	if config.GetEnv("ENVIRONMENT", "development") != "development" {
		log.Fatal("JWT_SECRET must be set outside development")
	}
	slog.Warn("JWT_SECRET not set, using the development signing key")
	return "concord-development-secret"
}
