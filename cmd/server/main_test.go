package main

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"terrainview.dev/internal/api"
	"terrainview.dev/internal/bus"
	"terrainview.dev/internal/config"
	"terrainview.dev/internal/registry"
	"terrainview.dev/internal/transport/ws"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	cfg := config.Defaults()
	cfg.DistDir = t.TempDir()
	cfg.MapsDir = t.TempDir()
	logger := log.New(io.Discard, "", 0)

	b := bus.New(cfg.EventQueue)
	store := registry.NewStore(b, logger)
	apiSrv, err := api.NewServer(store, cfg.MapsDir, logger)
	if err != nil {
		t.Fatalf("api: %v", err)
	}
	wsSrv := ws.NewServer(store, time.Second, logger)
	return newMux(cfg, logger, store, b, apiSrv, wsSrv, nil)
}

func TestOpsEndpoints_methods(t *testing.T) {
	mux := newTestMux(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: status=%d", path, rec.Code)
		}

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("POST %s: status=%d want=405", path, rec.Code)
		}
	}
}

func TestMetrics_exposition(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{
		"terrainview_players 0",
		"terrainview_subscribers 0",
		"terrainview_events_published_total 0",
		"terrainview_events_dropped_total 0",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics missing %q:\n%s", name, body)
		}
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:9999": true,
		"[::1]:9999":     true,
		"10.0.0.5:9999":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want=%v", addr, got, want)
		}
	}
}
