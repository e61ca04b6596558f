package database

import (
	"database/sql"
	"sync/atomic"
	"time"
)

// Metrics collects database query counters
type Metrics struct {
	db *sql.DB

	queryCount     int64
	queryDuration  int64 // nanoseconds
	errorCount     int64
	slowQueryCount int64

	execCount     int64
	selectCount   int64
	queryRowCount int64

	slowQueryThreshold time.Duration
}

// MetricsSnapshot provides a point-in-time view of metrics
type MetricsSnapshot struct {
	QueryCount       int64         `json:"query_count"`
	ErrorCount       int64         `json:"error_count"`
	SlowQueryCount   int64         `json:"slow_query_count"`
	ExecCount        int64         `json:"exec_count"`
	SelectCount      int64         `json:"select_count"`
	QueryRowCount    int64         `json:"query_row_count"`
	AvgQueryDuration time.Duration `json:"avg_query_duration"`
	OpenConnections  int           `json:"open_connections"`
	InUse            int           `json:"in_use"`
	Idle             int           `json:"idle"`
	Timestamp        time.Time     `json:"timestamp"`
}

// NewMetrics creates a metrics collector. db may be nil in tests.
func NewMetrics(db *sql.DB, slowQueryThreshold time.Duration) *Metrics {
	if slowQueryThreshold <= 0 {
		slowQueryThreshold = 100 * time.Millisecond
	}
	return &Metrics{
		db:                 db,
		slowQueryThreshold: slowQueryThreshold,
	}
}

// RecordQuery records metrics for a database query
func (m *Metrics) RecordQuery(queryType string, duration time.Duration, err error) {
	atomic.AddInt64(&m.queryCount, 1)
	atomic.AddInt64(&m.queryDuration, int64(duration))

	if err != nil {
		atomic.AddInt64(&m.errorCount, 1)
	}

	if duration > m.slowQueryThreshold {
		atomic.AddInt64(&m.slowQueryCount, 1)
	}

	switch queryType {
	case "exec":
		atomic.AddInt64(&m.execCount, 1)
	case "query":
		atomic.AddInt64(&m.selectCount, 1)
	case "query_row":
		atomic.AddInt64(&m.queryRowCount, 1)
	}
}

// SlowQueryThreshold returns the duration above which a query counts as slow
func (m *Metrics) SlowQueryThreshold() time.Duration {
	return m.slowQueryThreshold
}

// Snapshot returns current metrics snapshot
func (m *Metrics) Snapshot() *MetricsSnapshot {
	queryCount := atomic.LoadInt64(&m.queryCount)
	totalDuration := atomic.LoadInt64(&m.queryDuration)

	var avgDuration time.Duration
	if queryCount > 0 {
		avgDuration = time.Duration(totalDuration / queryCount)
	}

	snapshot := &MetricsSnapshot{
		QueryCount:       queryCount,
		ErrorCount:       atomic.LoadInt64(&m.errorCount),
		SlowQueryCount:   atomic.LoadInt64(&m.slowQueryCount),
		ExecCount:        atomic.LoadInt64(&m.execCount),
		SelectCount:      atomic.LoadInt64(&m.selectCount),
		QueryRowCount:    atomic.LoadInt64(&m.queryRowCount),
		AvgQueryDuration: avgDuration,
		Timestamp:        time.Now(),
	}

	if m.db != nil {
		stats := m.db.Stats()
		snapshot.OpenConnections = stats.OpenConnections
		snapshot.InUse = stats.InUse
		snapshot.Idle = stats.Idle
	}

	return snapshot
}
