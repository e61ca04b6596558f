// File: internal/handlers/health/health_handlers.go
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"planethero/internal/monitoring"

	"go.uber.org/zap"
)

// HealthHandler reports dependency health. Only an unhealthy store turns the
// answer into a 503; a degraded cache or event bus still answers 200.
func HealthHandler(dashboard *monitoring.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		health := dashboard.Health(ctx)
		writeJSON(w, statusFor(health.Status), health, dashboard.GetLogger())
	}
}

// StatusHandler reports health plus process resources and database metrics
func StatusHandler(dashboard *monitoring.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		status := dashboard.GetSystemStatus(ctx)
		writeJSON(w, statusFor(status.Status), status, dashboard.GetLogger())
	}
}

// LivenessHandler answers as long as the process serves requests
func LivenessHandler(dashboard *monitoring.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "alive",
			"uptime": time.Since(dashboard.GetStartTime()).Round(time.Second).String(),
		}, dashboard.GetLogger())
	}
}

func statusFor(status string) int {
	switch status {
	case "healthy", "degraded":
		return http.StatusOK
	case "unhealthy":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode health response", zap.Error(err))
	}
}
