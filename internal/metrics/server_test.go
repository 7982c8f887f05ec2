package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func startTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	s := NewServer(cfg, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServer_Endpoints(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(CollectorConfig{Version: "v1"}, registry)
	c.BackendStarted()

	var ready atomic.Bool
	s := startTestServer(t, ServerConfig{
		Gatherer: registry,
		Ready:    ready.Load,
		Routes: map[string]http.Handler{
			"/capabilities": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "[]")
			}),
		},
	})
	base := "http://" + s.Addr()

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/health", http.StatusOK, "ok"},
		{"/healthz", http.StatusOK, "ok"},
		{"/ready", http.StatusServiceUnavailable, "not ready"},
		{"/metrics", http.StatusOK, "desktop_shell_backend_starts_total 1"},
		{"/capabilities", http.StatusOK, "[]"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := get(t, base+tt.path)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if !strings.Contains(body, tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", body, tt.wantBody)
			}
		})
	}

	ready.Store(true)
	if status, _ := get(t, base+"/readyz"); status != http.StatusOK {
		t.Errorf("/readyz after ready = %d, want 200", status)
	}
}

func TestServer_StartBindError(t *testing.T) {
	first := startTestServer(t, ServerConfig{})

	s := NewServer(ServerConfig{Addr: first.Addr()}, nil)
	if err := s.Start(); err == nil {
		s.Shutdown(context.Background())
		t.Fatal("Start() on a bound address succeeded")
	}
}
