// File: internal/monitoring/dashboard.go
package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"planethero/internal/database"
	"planethero/internal/services"
	"planethero/internal/store"
	"planethero/internal/utils/appinfo"

	"go.uber.org/zap"
)

// ===============================
// DASHBOARD CORE
// ===============================

// HealthSource reports dependency health
type HealthSource interface {
	HealthCheck(ctx context.Context) *services.ServiceHealth
}

// Dashboard combines dependency health with process resource usage
type Dashboard struct {
	health      HealthSource
	store       store.DocumentStore
	logger      *zap.Logger
	startTime   time.Time
	version     string
	environment string
}

// NewDashboard creates a new monitoring dashboard. st may be nil.
func NewDashboard(health HealthSource, st store.DocumentStore, logger *zap.Logger, version, environment string) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		health:      health,
		store:       st,
		logger:      logger,
		startTime:   time.Now(),
		version:     version,
		environment: environment,
	}
}

// SystemStatusResponse is the body of GET /status
type SystemStatusResponse struct {
	Status      string                    `json:"status"`
	Version     string                    `json:"version"`
	Build       appinfo.BuildInfo         `json:"build"`
	Environment string                    `json:"environment"`
	Timestamp   time.Time                 `json:"timestamp"`
	Uptime      string                    `json:"uptime"`
	Health      *services.ServiceHealth   `json:"health"`
	Resources   ResourceHealth            `json:"resources"`
	Database    *database.MetricsSnapshot `json:"database,omitempty"`
	Alerts      []string                  `json:"alerts,omitempty"`
}

// ResourceHealth describes process resources
type ResourceHealth struct {
	Memory     ResourceMetric `json:"memory"`
	Goroutines ResourceMetric `json:"goroutines"`
}

// ResourceMetric is a single resource reading
type ResourceMetric struct {
	Value  interface{} `json:"value"`
	Unit   string      `json:"unit"`
	Status string      `json:"status"`
}

// Health returns dependency health only
func (d *Dashboard) Health(ctx context.Context) *services.ServiceHealth {
	return d.health.HealthCheck(ctx)
}

// GetSystemStatus returns dependency health with resource usage and, for
// backends that track it, database query metrics
func (d *Dashboard) GetSystemStatus(ctx context.Context) *SystemStatusResponse {
	health := d.health.HealthCheck(ctx)

	status := &SystemStatusResponse{
		Status:      health.Status,
		Version:     d.version,
		Build:       appinfo.Get(),
		Environment: d.environment,
		Timestamp:   time.Now(),
		Uptime:      time.Since(d.startTime).Round(time.Second).String(),
		Health:      health,
		Resources:   resourceHealth(),
	}

	if reporter, ok := d.store.(store.MetricsReporter); ok {
		status.Database = reporter.QueryMetrics()
	}

	d.collectAlerts(status)
	return status
}

// GetLogger returns the dashboard logger
func (d *Dashboard) GetLogger() *zap.Logger {
	return d.logger
}

// GetStartTime returns when the dashboard was created
func (d *Dashboard) GetStartTime() time.Time {
	return d.startTime
}

// ===============================
// RESOURCES & ALERTS
// ===============================

func resourceHealth() ResourceHealth {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	heapMB := float64(mem.HeapAlloc) / (1024 * 1024)
	goroutines := runtime.NumGoroutine()

	return ResourceHealth{
		Memory: ResourceMetric{
			Value:  formatBytes(mem.HeapAlloc),
			Unit:   "bytes",
			Status: getResourceStatus(heapMB, 512, 1024),
		},
		Goroutines: ResourceMetric{
			Value:  goroutines,
			Unit:   "count",
			Status: getResourceStatus(float64(goroutines), 1000, 2000),
		},
	}
}

func (d *Dashboard) collectAlerts(status *SystemStatusResponse) {
	status.Alerts = append(status.Alerts, status.Health.Issues...)

	if status.Resources.Memory.Status != "healthy" {
		status.Alerts = append(status.Alerts, fmt.Sprintf("memory usage %s (%v)", status.Resources.Memory.Status, status.Resources.Memory.Value))
	}
	if status.Resources.Goroutines.Status != "healthy" {
		status.Alerts = append(status.Alerts, fmt.Sprintf("goroutine count %s (%v)", status.Resources.Goroutines.Status, status.Resources.Goroutines.Value))
	}
	if db := status.Database; db != nil && db.QueryCount > 0 && db.ErrorCount*10 > db.QueryCount {
		status.Alerts = append(status.Alerts, fmt.Sprintf("database error rate high (%d of %d queries)", db.ErrorCount, db.QueryCount))
	}

	if len(status.Alerts) > 0 {
		d.logger.Warn("System status has alerts", zap.Strings("alerts", status.Alerts))
	}
}

// getResourceStatus determines resource status based on usage and thresholds
func getResourceStatus(value, warningThreshold, criticalThreshold float64) string {
	if value >= criticalThreshold {
		return "critical"
	}
	if value >= warningThreshold {
		return "warning"
	}
	return "healthy"
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
