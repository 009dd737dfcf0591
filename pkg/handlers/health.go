package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"go-concord/pkg/version"
)

// HealthChecker is implemented by database.MongoDB and database.Redis
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status  string            `json:"status"`
	Version version.Info      `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthHandler reports healthy only when every dependency answers within
// timeout. Nil checkers are skipped so optional backends can be passed as is.
func HealthHandler(timeout time.Duration, deps map[string]HealthChecker) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name, dep := range deps {
		if dep != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		response := HealthResponse{Status: "healthy", Version: version.Get()}
		code := http.StatusOK
		if len(names) > 0 {
			response.Checks = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := deps[name].HealthCheck(ctx); err != nil {
				slog.WarnContext(ctx, "Health check failed", "dependency", name, "error", err)
				response.Checks[name] = err.Error()
				response.Status = "unhealthy"
				code = http.StatusServiceUnavailable
				continue
			}
			response.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			slog.Error("Failed to encode health response", "error", err)
		}
	}
}
