package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/johnnysally/SmartCare360-sub000/internal/config"
	"github.com/johnnysally/SmartCare360-sub000/internal/domain/queue"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/metrics"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            env,
		AuthSigningKey: "test-key",
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		RequestTimeout: 5 * time.Second,
		OutboxBuffer:   16,
		Timezone:       "UTC",
	}
}

func TestBuildApp_Routes(t *testing.T) {
	a, err := buildApp(testConfig("development"), zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}

	registered := map[string]bool{}
	for _, r := range a.echo.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	want := []string{
		"GET /health",
		"GET /metrics",
		"POST /api/v1/queue/check-in",
		"GET /api/v1/queue/department/:dept",
		"GET /api/v1/queue/all",
		"GET /api/v1/queue/next/:dept",
		"POST /api/v1/queue/:id/call",
		"POST /api/v1/queue/:id/complete",
		"PUT /api/v1/queue/:id/priority",
		"GET /api/v1/queue/stats",
		"GET /api/v1/queue/stats/:dept",
		"GET /api/v1/queue/analytics",
		"GET /api/v1/queue/notifications/:patientId",
		"GET /api/v1/queue/ws",
	}
	for _, route := range want {
		if !registered[route] {
			t.Errorf("route %s not registered", route)
		}
	}
	if a.relay != nil {
		t.Error("relay must be nil without redis")
	}
}

func TestBuildApp_PublicEndpoints(t *testing.T) {
	a, err := buildApp(testConfig("production"), zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}

	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected /health 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}

	rec = httptest.NewRecorder()
	a.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("expected prometheus exposition, got %d", rec.Code)
	}
}

func TestBuildApp_RequiresTokenOutsideDevelopment(t *testing.T) {
	a, err := buildApp(testConfig("production"), zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}

	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/queue/all", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestBuildApp_BadTimezone(t *testing.T) {
	cfg := testConfig("development")
	cfg.Timezone = "Nowhere/Special"
	if _, err := buildApp(cfg, zerolog.Nop(), nil, nil); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestMetricsObserver(t *testing.T) {
	reg := metrics.New()
	var obs queue.Observer = metricsObserver{reg: reg}

	obs.CheckedIn(queue.DeptOPD)
	obs.Called(queue.DeptOPD, true, 90*time.Second)
	obs.Called(queue.DeptOPD, false, 0)
	obs.Completed(queue.DeptOPD, true)

	if got := testutil.ToFloat64(reg.CheckIns.WithLabelValues("OPD")); got != 1 {
		t.Errorf("expected 1 check-in, got %v", got)
	}
	if got := testutil.ToFloat64(reg.Calls.WithLabelValues("OPD", "empty")); got != 1 {
		t.Errorf("expected 1 empty call, got %v", got)
	}
	if got := testutil.ToFloat64(reg.Completions.WithLabelValues("OPD", "true")); got != 1 {
		t.Errorf("expected 1 routed completion, got %v", got)
	}
}

func TestMigrateCmd_Flags(t *testing.T) {
	cmd := migrateCmd()
	for _, name := range []string{"up", "status"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Fatalf("missing subcommand %s", name)
		}
		if f := sub.Flags().Lookup("schema"); f == nil || f.DefValue != "public" {
			t.Errorf("%s: expected --schema default public", name)
		}
		if f := sub.Flags().Lookup("dir"); f == nil || f.DefValue != "./migrations" {
			t.Errorf("%s: expected --dir default ./migrations", name)
		}
	}
}
