package handler

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prescrimed/tenant-access-service/internal/adapters/response"
)

const dependencyCheckTimeout = 5 * time.Second

// DependencyCheck probes one dependency for the readiness endpoint.
type DependencyCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

type HealthHandler struct {
	checks    []DependencyCheck
	startTime time.Time
	version   string
}

func NewHealthHandler(checks ...DependencyCheck) *HealthHandler {
	version := os.Getenv("APP_VERSION")
	if version == "" {
		version = "unknown"
	}
	return &HealthHandler{
		checks:    checks,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse follows Kubernetes health check conventions.
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health only confirms the process is serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.report("UP", map[string]Check{"process": {Status: "UP"}}))
}

// Live is an alias for Health.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	h.Health(w, r)
}

// Ready runs every dependency probe and reports 503 if any fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]Check, len(h.checks))
	status := "UP"
	httpStatus := http.StatusOK

	for _, c := range h.checks {
		check := runCheck(r.Context(), c)
		checks[c.Name] = check
		if check.Status != "UP" {
			status = "DOWN"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	response.JSON(w, httpStatus, h.report(status, checks))
}

func (h *HealthHandler) report(status string, checks map[string]Check) HealthResponse {
	return HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Checks:    checks,
	}
}

func runCheck(ctx context.Context, c DependencyCheck) Check {
	if c.Probe == nil {
		return Check{Status: "DOWN", Message: c.Name + " is not initialized"}
	}
	ctx, cancel := context.WithTimeout(ctx, dependencyCheckTimeout)
	defer cancel()

	if err := c.Probe(ctx); err != nil {
		return Check{Status: "DOWN", Message: "cannot reach " + c.Name}
	}
	return Check{Status: "UP"}
}
