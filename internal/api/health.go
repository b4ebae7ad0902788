package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/luckyloop/internal/rules"
	"github.com/MJE43/luckyloop/internal/store"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

const dbCheckTimeout = 2 * time.Second

// HealthCheckResponse represents a comprehensive health check response
type HealthCheckResponse struct {
	Status        HealthStatus           `json:"status"`
	Timestamp     string                 `json:"timestamp"`
	EngineVersion string                 `json:"engine_version"`
	GitCommit     string                 `json:"git_commit,omitempty"`
	BuildTime     string                 `json:"build_time,omitempty"`
	Uptime        string                 `json:"uptime"`
	Checks        map[string]HealthCheck `json:"checks"`
	System        SystemInfo             `json:"system"`
	RequestID     string                 `json:"request_id,omitempty"`
}

// HealthCheck represents an individual health check
type HealthCheck struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked string       `json:"last_checked"`
	Duration    string       `json:"duration,omitempty"`
}

// SystemInfo contains system information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	GOMAXPROCS    int    `json:"gomaxprocs"`
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
	MemoryTotal   uint64 `json:"memory_total_bytes"`
	MemorySys     uint64 `json:"memory_sys_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
	LiveSessions  int    `json:"live_sessions"`
}

// worse returns the more severe of two statuses.
func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// handleHealthCheck provides comprehensive health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	start := time.Now()

	checks := map[string]HealthCheck{
		"catalog":  s.checkCatalogHealth(),
		"sessions": s.checkSessionsHealth(),
		"database": s.checkDatabaseHealth(r.Context()),
	}
	overallStatus := HealthStatusHealthy
	for _, c := range checks {
		overallStatus = worse(overallStatus, c.Status)
	}

	response := HealthCheckResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		Uptime:        time.Since(s.startTime).String(),
		Checks:        checks,
		System:        s.getSystemInfo(),
		RequestID:     requestID,
	}

	// Degraded still answers 200
	statusCode := http.StatusOK
	if overallStatus == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	s.logger.Printf("health_check request_id=%s status=%s checks=%d duration=%s",
		requestID, overallStatus, len(checks), time.Since(start))

	s.writeJSON(w, statusCode, response)
}

// handleReadiness provides readiness probe endpoint
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	ready := true
	message := "Ready"
	if c := s.checkCatalogHealth(); c.Status == HealthStatusUnhealthy {
		ready = false
		message = c.Message
	} else if c := s.checkDatabaseHealth(r.Context()); c.Status == HealthStatusUnhealthy {
		ready = false
		message = c.Message
	}

	response := map[string]interface{}{
		"ready":          ready,
		"message":        message,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"request_id":     requestID,
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
		s.logger.Printf("readiness_check request_id=%s outcome=not_ready message=%q", requestID, message)
	}

	s.writeJSON(w, statusCode, response)
}

// handleLiveness provides liveness probe endpoint
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"alive":          true,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"uptime":         time.Since(s.startTime).String(),
		"request_id":     middleware.GetReqID(r.Context()),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// checkCatalogHealth builds a session config and validates its rules
// catalog, the same way session creation would.
func (s *Server) checkCatalogHealth() HealthCheck {
	start := time.Now()

	status := HealthStatusHealthy
	var message string

	cfg, err := s.newConfig()
	switch {
	case err != nil:
		status = HealthStatusUnhealthy
		message = fmt.Sprintf("session config: %v", err)
	default:
		catalog := cfg.Catalog
		if catalog == nil {
			catalog = rules.Default()
		}
		if err := catalog.Validate(); err != nil {
			status = HealthStatusUnhealthy
			message = err.Error()
		} else {
			message = fmt.Sprintf("%d levels, %d skills, %d encounters",
				len(catalog.Levels), len(catalog.Skills), len(catalog.Encounters))
		}
	}

	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

// checkSessionsHealth reports registry load. A full registry turns away
// new sessions, so it counts as degraded.
func (s *Server) checkSessionsHealth() HealthCheck {
	live := s.sessions.count()
	status := HealthStatusHealthy
	if s.sessions.max > 0 && live >= s.sessions.max {
		status = HealthStatusDegraded
	}
	return HealthCheck{
		Status:      status,
		Message:     fmt.Sprintf("%d/%d live sessions", live, s.sessions.max),
		LastChecked: time.Now().UTC().Format(time.RFC3339),
	}
}

// checkDatabaseHealth runs a one-row query against the history store.
// Running without a store is allowed and reported as degraded.
func (s *Server) checkDatabaseHealth(ctx context.Context) HealthCheck {
	start := time.Now()

	status := HealthStatusHealthy
	message := "Database connection healthy"

	if s.db == nil {
		status = HealthStatusDegraded
		message = "History store disabled"
	} else {
		ctx, cancel := context.WithTimeout(ctx, dbCheckTimeout)
		defer cancel()
		if _, err := s.db.ListSessions(ctx, store.SessionsQuery{Page: 1, PerPage: 1}); err != nil {
			status = HealthStatusUnhealthy
			message = fmt.Sprintf("Database query failed: %v", err)
		}
	}

	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

// getSystemInfo collects system information
func (s *Server) getSystemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		MemoryAlloc:   m.Alloc,
		MemoryTotal:   m.TotalAlloc,
		MemorySys:     m.Sys,
		GCCycles:      m.NumGC,
		LiveSessions:  s.sessions.count(),
	}
}
