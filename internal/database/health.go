package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the current health status of the database
type HealthStatus struct {
	Status          string                 `json:"status"`
	Timestamp       time.Time              `json:"timestamp"`
	ResponseTime    time.Duration          `json:"response_time"`
	ConnectionCount int                    `json:"connection_count"`
	Errors          []string               `json:"errors,omitempty"`
	Details         map[string]interface{} `json:"details"`
}

// HealthChecker pings the database and probes the documents table
type HealthChecker struct {
	manager         *Manager
	logger          *zap.Logger
	timeoutDuration time.Duration
	criticalTables  []string
}

// NewHealthChecker creates a health checker for manager
func NewHealthChecker(manager *Manager, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		manager:         manager,
		logger:          logger,
		timeoutDuration: 5 * time.Second,
		criticalTables:  []string{"documents"},
	}
}

// Check runs connectivity, pool and table checks
func (hc *HealthChecker) Check(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	ctx, cancel := context.WithTimeout(ctx, hc.timeoutDuration)
	defer cancel()

	warnings := 0
	db := hc.manager.DB()

	pingStart := time.Now()
	err := db.PingContext(ctx)
	pingDuration := time.Since(pingStart)
	status.Details["ping_duration"] = pingDuration.String()
	status.Details["ping_success"] = err == nil
	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("Connectivity: %v", err))
		hc.logger.Error("Database ping failed", zap.Error(err), zap.Duration("duration", pingDuration))
	} else if pingDuration > 500*time.Millisecond {
		status.Details["ping_warning"] = "Slow ping response"
		warnings++
	}

	stats := db.Stats()
	status.ConnectionCount = stats.OpenConnections
	status.Details["pool"] = map[string]interface{}{
		"max_open": stats.MaxOpenConnections,
		"open":     stats.OpenConnections,
		"in_use":   stats.InUse,
		"idle":     stats.Idle,
	}
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		status.Details["pool_warning"] = "Connection pool exhausted"
		warnings++
	}

	if err == nil {
		for _, table := range hc.criticalTables {
			var one int
			query := fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", table)
			scanErr := db.QueryRowContext(ctx, query).Scan(&one)
			if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
				status.Errors = append(status.Errors, fmt.Sprintf("Table access %s: %v", table, scanErr))
			}
		}
	}

	status.ResponseTime = time.Since(start)
	switch {
	case len(status.Errors) > 0:
		status.Status = StatusUnhealthy
	case warnings > 0 || status.ResponseTime > time.Second:
		status.Status = StatusDegraded
	default:
		status.Status = StatusHealthy
	}
	return status
}
