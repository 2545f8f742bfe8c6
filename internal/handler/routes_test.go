package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"

	"bookmyturf-proxy/internal/config"
	"bookmyturf-proxy/internal/metrics"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream-Path", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	e := newTestEcho(t, testConfig(upstream.URL))

	tests := []struct {
		name         string
		method       string
		path         string
		wantStatus   int
		wantUpstream string
	}{
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK, ""},
		{"GET /api/health", http.MethodGet, "/api/health", http.StatusOK, ""},
		{"GET /proxy/status", http.MethodGet, "/proxy/status", http.StatusOK, ""},
		{"GET /api/auth/verify", http.MethodGet, "/api/auth/verify", http.StatusOK, "/api/auth/verify"},
		{"GET /api/turfs", http.MethodGet, "/api/turfs?city=pune", http.StatusOK, "/api/turfs"},
		{"POST /api/bookings", http.MethodPost, "/api/bookings", http.StatusOK, "/api/bookings"},
		{"DELETE /api/bookings/7", http.MethodDelete, "/api/bookings/7", http.StatusOK, "/api/bookings/7"},
		{"PATCH /api/users/me", http.MethodPatch, "/api/users/me", http.StatusOK, "/api/users/me"},
		{"GET /api", http.MethodGet, "/api", http.StatusOK, "/api"},
		{"GET /unknown returns 404", http.MethodGet, "/unknown", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("X-Upstream-Path"); got != tt.wantUpstream {
				t.Errorf("upstream path = %q, want %q", got, tt.wantUpstream)
			}
		})
	}
}

func TestRegisterRoutes_LivenessWithoutUpstream(t *testing.T) {
	e := newTestEcho(t, testConfig("http://127.0.0.1:1"))

	for _, path := range []string{"/healthz", "/api/health", "/proxy/status"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
				t.Errorf("body = %q, want status ok", rec.Body.String())
			}
		})
	}
}

func TestRegisterRoutes_AuthVerifyOutsidePrefix(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream-Path", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	cfg := testConfig(upstream.URL)
	cfg.Proxy.AuthVerifyPath = "/auth/verify"
	e := newTestEcho(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("X-Upstream-Path"); got != "/auth/verify" {
		t.Errorf("upstream path = %q, want %q", got, "/auth/verify")
	}
}

func TestRegisterMetrics(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Metrics = config.MetricsConfig{Enabled: true, Path: "/metrics"}
	m := metrics.New()
	m.CookiesRewritten.Inc()

	e := echo.New()
	RegisterMetrics(e, cfg, m)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "bookmyturf_proxy_cookies_rewritten_total 1") {
		t.Errorf("metrics output missing cookie counter:\n%s", body)
	}
}

func TestRegisterMetrics_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Metrics = config.MetricsConfig{Enabled: false, Path: "/metrics"}

	e := echo.New()
	RegisterMetrics(e, cfg, metrics.New())

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRegisterRoutes_HeadLivenessStaysLocal(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer upstream.Close()

	e := newTestEcho(t, testConfig(upstream.URL))

	for _, path := range []string{"/healthz", "/api/health", "/proxy/status"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodHead, path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("upstream hit %d times by HEAD liveness probes, want 0", n)
	}
}
