package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"fixloop/internal/config"
)

func TestHealthCheckAllHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	adapter := NewHealthAdapter(config.HealthConfig{Timeout: "2s"}, []config.Service{
		{Name: "container", URL: srv.URL},
		{Name: "settings", URL: srv.URL},
	}, srv.URL+"/health")

	report := adapter.Check(context.Background())
	if !report.AllHealthy() {
		t.Fatalf("expected all healthy, got %+v", report.Unhealthy())
	}
	if len(report.Results) != 3 {
		t.Errorf("expected 3 probe results, got %d", len(report.Results))
	}
}

func TestHealthCheckNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := NewHealthAdapter(config.HealthConfig{Timeout: "2s"}, []config.Service{
		{Name: "container", URL: srv.URL},
	}, "")

	report := adapter.Check(context.Background())
	if report.AllHealthy() {
		t.Fatal("502 endpoint must be unhealthy")
	}
	bad := report.Unhealthy()
	if len(bad) != 1 || bad[0].Name != "container" {
		t.Fatalf("unexpected unhealthy set: %+v", bad)
	}
	if bad[0].Detail != "status 502" {
		t.Errorf("Detail = %q", bad[0].Detail)
	}
}

func TestHealthCheckConnectionRefused(t *testing.T) {
	// Reserve a port, then close it so the probe hits a dead endpoint.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	adapter := NewHealthAdapter(config.HealthConfig{Timeout: "1s"}, []config.Service{
		{Name: "analytics", URL: url},
	}, "")

	report := adapter.Check(context.Background())
	if report.AllHealthy() {
		t.Fatal("dead endpoint must be unhealthy")
	}
	if report.Unhealthy()[0].Detail != "not responding" {
		t.Errorf("Detail = %q", report.Unhealthy()[0].Detail)
	}
}
