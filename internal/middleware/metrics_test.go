package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherFamilies(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}
	return byName
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Registering twice must fail with a duplicate error.
	if err := m.Register(prometheus.NewRegistry()); err != nil {
		t.Fatalf("Register into fresh registry: %v", err)
	}
}

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	m.IncSightingsCreated()
	m.IncSightingsCreated()
	m.IncSightingsDeleted()
	m.IncRateLimitBlocked("/sightings", "ip")
	m.IncRateLimitStoreErrors()

	families := gatherFamilies(t, reg)

	created := families[MetricSightingsCreated]
	if created == nil || created.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Errorf("sightings_created_total = %v, want 2", created)
	}

	deleted := families[MetricSightingsDeleted]
	if deleted == nil || deleted.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Errorf("sightings_deleted_total = %v, want 1", deleted)
	}

	blocked := families[MetricRateLimitBlocked]
	if blocked == nil {
		t.Fatal("rate_limit_blocked_total not gathered")
	}
	labels := blocked.GetMetric()[0].GetLabel()
	foundEndpoint := false
	for _, l := range labels {
		if l.GetName() == "endpoint" && l.GetValue() == "/sightings" {
			foundEndpoint = true
		}
	}
	if !foundEndpoint {
		t.Errorf("rate_limit_blocked_total labels = %v, want endpoint=/sightings", labels)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	handler := HTTPMetrics(m)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/sightings/0c9f1d6e-3a7b-4a1c-9b2d-5e6f7a8b9c0d", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	families := gatherFamilies(t, reg)
	total := families[MetricHTTPRequestsTotal]
	if total == nil {
		t.Fatal("http_requests_total not gathered")
	}

	metric := total.GetMetric()[0]
	if metric.GetCounter().GetValue() != 1 {
		t.Errorf("http_requests_total = %v, want 1", metric.GetCounter().GetValue())
	}
	for _, l := range metric.GetLabel() {
		if l.GetName() == "path" && l.GetValue() != "/sightings/{id}" {
			t.Errorf("path label = %q, want /sightings/{id}", l.GetValue())
		}
	}
}

func TestHTTPMetricsSkipsHealthChecks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	handler := HTTPMetrics(m)(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))

	families := gatherFamilies(t, reg)
	if f := families[MetricHTTPRequestsTotal]; f != nil && len(f.GetMetric()) > 0 {
		t.Errorf("health checks were counted: %v", f)
	}
}
