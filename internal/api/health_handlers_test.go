package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	err error
}

func (s *stubChecker) HealthCheck(ctx context.Context) error { return s.err }

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}
	return resp
}

func TestHealthAlwaysOK(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersConfig{})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "healthy" || resp.Checks["runtime"] != "ok" {
		t.Errorf("response = %+v", resp)
	}
}

func TestReady(t *testing.T) {
	dbDown := errors.New("connection refused")

	tests := []struct {
		name       string
		db         HealthChecker
		redis      HealthChecker
		wantStatus int
		wantDB     string
		wantRedis  string
	}{
		{"all up", &stubChecker{}, &stubChecker{}, http.StatusOK, "ok", "ok"},
		{"db down fails readiness", &stubChecker{err: dbDown}, &stubChecker{}, http.StatusServiceUnavailable, "error", "ok"},
		{"redis down only degrades", &stubChecker{}, &stubChecker{err: dbDown}, http.StatusOK, "ok", "degraded"},
		{"no checkers configured", nil, nil, http.StatusOK, "ok", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandlers(HealthHandlersConfig{DBChecker: tt.db, RedisChecker: tt.redis})

			rec := httptest.NewRecorder()
			h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decodeHealth(t, rec)
			if resp.Checks["database"] != tt.wantDB {
				t.Errorf("database = %q, want %q", resp.Checks["database"], tt.wantDB)
			}
			if resp.Checks["redis"] != tt.wantRedis {
				t.Errorf("redis = %q, want %q", resp.Checks["redis"], tt.wantRedis)
			}
		})
	}
}
