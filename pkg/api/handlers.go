package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hausbrain/core/pkg/tracestore"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthResponse is a status string plus a per-component checks map, kept
// deliberately small: this domain has only one dependency worth reporting
// on (the database pool).
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthHandler handles GET /health. Only the engine's own database
// connection is checked — no adapters or external services, so a flaky
// device integration never causes the orchestrator to restart the engine.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := statusHealthy
	checks := map[string]HealthCheck{"database": {Status: statusHealthy}}

	if err := s.pool.Ping(reqCtx); err != nil {
		status = statusUnhealthy
		checks["database"] = HealthCheck{Status: statusUnhealthy, Message: err.Error()}
	}

	httpStatus := http.StatusOK
	if status == statusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, HealthResponse{Status: status, Checks: checks})
}

// latestTraceHandler handles GET /traces/latest.
func (s *Server) latestTraceHandler(c *gin.Context) {
	trace, err := s.traces.Latest(c.Request.Context())
	if errors.Is(err, tracestore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no planning trace recorded yet"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trace)
}

// traceByIDHandler handles GET /traces/:id, where :id is the trace's uuid.
func (s *Server) traceByIDHandler(c *gin.Context) {
	id := c.Param("id")

	trace, err := s.traces.ByTraceID(c.Request.Context(), id)
	if errors.Is(err, tracestore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "planning trace not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trace)
}
