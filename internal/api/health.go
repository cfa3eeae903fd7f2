package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// HealthChecker is the slice of a dependency this handler needs: a single
// reachability probe. *store.PostgresStore, *store.RedisStore, and every
// queue.Queue implementation all satisfy it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// HealthHandler probes each dependency and reports 200 only when all of
// them answer. A single failed dependency marks the whole response
// "degraded" and returns 503 so a load balancer can route around this
// instance without the process needing to crash.
func HealthHandler(deps map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(deps))
		healthy := true

		for name, dep := range deps {
			if err := dep.Health(r.Context()); err != nil {
				checks[name] = err.Error()
				healthy = false
				continue
			}
			checks[name] = "ok"
		}

		resp := HealthResponse{
			Status:  "healthy",
			Version: "1.0.0",
			Checks:  checks,
		}

		status := http.StatusOK
		if !healthy {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}
