package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prescrimed/tenant-access-service/internal/adapters/handler"
	"github.com/prescrimed/tenant-access-service/test/mocks"
)

func TestHealthHandler_Health(t *testing.T) {
	h := handler.NewHealthHandler()

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp handler.HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "UP" {
		t.Errorf("expected UP, got %q", resp.Status)
	}
	if _, ok := resp.Checks["process"]; !ok {
		t.Error("expected process check")
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	redisClient := mocks.NewMockRedisClient()
	redisProbe := handler.DependencyCheck{
		Name:  "redis",
		Probe: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	tests := []struct {
		name       string
		checks     []handler.DependencyCheck
		pingErr    error
		wantStatus int
		wantDown   string
	}{
		{
			name:       "all dependencies up",
			checks:     []handler.DependencyCheck{{Name: "database", Probe: func(context.Context) error { return nil }}, redisProbe},
			wantStatus: http.StatusOK,
		},
		{
			name:       "redis down",
			checks:     []handler.DependencyCheck{{Name: "database", Probe: func(context.Context) error { return nil }}, redisProbe},
			pingErr:    errors.New("connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantDown:   "redis",
		},
		{
			name:       "database not initialized",
			checks:     []handler.DependencyCheck{{Name: "database"}},
			wantStatus: http.StatusServiceUnavailable,
			wantDown:   "database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			redisClient.PingError = tt.pingErr
			h := handler.NewHealthHandler(tt.checks...)

			rec := httptest.NewRecorder()
			h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp handler.HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if tt.wantDown != "" && resp.Checks[tt.wantDown].Status != "DOWN" {
				t.Errorf("expected %s DOWN, got %+v", tt.wantDown, resp.Checks)
			}
		})
	}
}
