package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"grandexchange-api/pkg/response"
)

// StartTime tracks when the server started for uptime calculation
var StartTime = time.Now()

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler contains shared HTTP handlers and their dependencies.
type Handler struct {
	service string
	version string
	checks  []ReadyCheck
}

// New creates a new handler. Checks run on every readiness and status request.
func New(service, version string, checks ...ReadyCheck) *Handler {
	return &Handler{service: service, version: version, checks: checks}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) runChecks(ctx context.Context) ([]Check, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	checks := []Check{{Name: "api", Status: "ok"}}
	ready := true
	for _, rc := range h.checks {
		c := Check{Name: rc.Name, Status: "ok"}
		if err := rc.Check(ctx); err != nil {
			c.Status = "error"
			c.Error = err.Error()
			ready = false
		}
		checks = append(checks, c)
	}
	return checks, ready
}

// Ready handles GET /api/v1/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.runChecks(r.Context())

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, ReadyResponse{
		Ready:     ready,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// StatusResponse represents the unified status response for monitoring
type StatusResponse struct {
	Service       string            `json:"service"`
	Status        string            `json:"status"`
	Timestamp     string            `json:"timestamp"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	PingMS        int64             `json:"ping_ms"`
	MemoryMB      float64           `json:"memory_mb"`
	Checks        map[string]string `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	requestStart := time.Now()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	checks, ready := h.runChecks(r.Context())
	statusChecks := make(map[string]string, len(checks))
	for _, c := range checks {
		statusChecks[c.Name] = c.Status
	}
	status := "ok"
	if !ready {
		status = "degraded"
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, StatusResponse{
		Service:       h.service,
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(StartTime).Seconds()),
		PingMS:        time.Since(requestStart).Milliseconds(),
		MemoryMB:      float64(int(memoryMB*100)) / 100,
		Checks:        statusChecks,
	})
}
