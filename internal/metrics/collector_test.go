package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// =============================================================================
// Test Helpers
// =============================================================================

// newTestCollector creates a collector with an isolated registry.
func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(CollectorConfig{
		Version:  "test",
		Platform: "linux",
		Command:  "python3 backend/main.py",
	}, registry)
	return c, registry
}

// findMetric returns the metric in family name whose labels include want.
func findMetric(t *testing.T, registry *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metrics
				}
			}
			return m
		}
	}
	return nil
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := findMetric(t, registry, name, labels)
	if m == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := findMetric(t, registry, name, labels)
	if m == nil {
		t.Fatalf("metric %s%v not found", name, labels)
	}
	return m.GetGauge().GetValue()
}

// =============================================================================
// Tests
// =============================================================================

func TestNewCollector_Info(t *testing.T) {
	_, registry := newTestCollector(t)

	got := gaugeValue(t, registry, "desktop_shell_info", map[string]string{
		"version":  "test",
		"platform": "linux",
	})
	if got != 1 {
		t.Errorf("desktop_shell_info = %v, want 1", got)
	}
}

func TestCollector_Lifecycle(t *testing.T) {
	c, registry := newTestCollector(t)

	c.BackendStarted()
	c.BackendRestarted()
	c.BackendStarted()
	c.BackendReady(300 * time.Millisecond)

	if got := counterValue(t, registry, "desktop_shell_backend_starts_total", nil); got != 2 {
		t.Errorf("starts = %v, want 2", got)
	}
	if got := counterValue(t, registry, "desktop_shell_backend_restarts_total", nil); got != 1 {
		t.Errorf("restarts = %v, want 1", got)
	}
	if c.TotalStarts() != 2 || c.TotalRestarts() != 1 {
		t.Errorf("totals = %d/%d, want 2/1", c.TotalStarts(), c.TotalRestarts())
	}

	m := findMetric(t, registry, "desktop_shell_backend_startup_seconds", nil)
	if m == nil || m.GetHistogram().GetSampleCount() != 1 {
		t.Errorf("startup histogram = %v, want one sample", m)
	}
}

func TestCollector_SetState(t *testing.T) {
	c, registry := newTestCollector(t)

	c.SetState("running", true)
	if got := gaugeValue(t, registry, "desktop_shell_backend_up", nil); got != 1 {
		t.Errorf("backend_up = %v, want 1", got)
	}
	if got := gaugeValue(t, registry, "desktop_shell_backend_state", map[string]string{"state": "running"}); got != 1 {
		t.Errorf("state{running} = %v, want 1", got)
	}

	c.SetState("backoff", false)
	if got := gaugeValue(t, registry, "desktop_shell_backend_up", nil); got != 0 {
		t.Errorf("backend_up = %v, want 0", got)
	}
	if m := findMetric(t, registry, "desktop_shell_backend_state", map[string]string{"state": "running"}); m != nil {
		t.Error("stale running state still exported")
	}
}

func TestCollector_RecordOutcome(t *testing.T) {
	tests := []struct {
		name       string
		outcome    string
		exitCode   int
		uptime     time.Duration
		wantCodes  int
		wantUptime uint64
	}{
		{"clean exit", "success", 0, time.Minute, 1, 1},
		{"crash", "abnormal_exit", 1, 2 * time.Second, 1, 1},
		{"killed", "killed", 137, time.Second, 1, 1},
		{"never started", "start_failure", -1, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, registry := newTestCollector(t)
			c.RecordOutcome(tt.outcome, tt.exitCode, tt.uptime)

			if got := counterValue(t, registry, "desktop_shell_backend_exits_total",
				map[string]string{"outcome": tt.outcome}); got != 1 {
				t.Errorf("exits{%s} = %v, want 1", tt.outcome, got)
			}

			s := c.GenerateSummary()
			if len(s.ExitCodes) != tt.wantCodes {
				t.Errorf("ExitCodes = %v, want %d entries", s.ExitCodes, tt.wantCodes)
			}
			if s.LastOutcome != tt.outcome {
				t.Errorf("LastOutcome = %q, want %q", s.LastOutcome, tt.outcome)
			}

			m := findMetric(t, registry, "desktop_shell_backend_uptime_seconds", nil)
			if got := m.GetHistogram().GetSampleCount(); got != tt.wantUptime {
				t.Errorf("uptime samples = %d, want %d", got, tt.wantUptime)
			}
		})
	}
}

func TestCollector_UptimeQuantiles(t *testing.T) {
	c, registry := newTestCollector(t)

	for i := 1; i <= 100; i++ {
		c.RecordOutcome("abnormal_exit", 1, time.Duration(i)*time.Second)
	}

	s := c.GenerateSummary()
	if s.UptimeP50 < 40*time.Second || s.UptimeP50 > 60*time.Second {
		t.Errorf("UptimeP50 = %v, want about 50s", s.UptimeP50)
	}
	if s.UptimeP99 < s.UptimeP95 || s.UptimeP95 < s.UptimeP50 {
		t.Errorf("quantiles out of order: p50=%v p95=%v p99=%v", s.UptimeP50, s.UptimeP95, s.UptimeP99)
	}

	p99 := gaugeValue(t, registry, "desktop_shell_backend_uptime_p99_seconds", nil)
	if p99 < 90 || p99 > 100 {
		t.Errorf("p99 gauge = %v, want about 99", p99)
	}
	if s.ExitCodes[1] != 100 {
		t.Errorf("ExitCodes[1] = %d, want 100", s.ExitCodes[1])
	}
}

func TestCollector_EventEmitted(t *testing.T) {
	c, registry := newTestCollector(t)

	c.EventEmitted("backend-error")
	c.EventEmitted("backend-error")
	c.EventEmitted("backend-ready")

	if got := counterValue(t, registry, "desktop_shell_events_emitted_total",
		map[string]string{"event": "backend-error"}); got != 2 {
		t.Errorf("events{backend-error} = %v, want 2", got)
	}
	if got := c.GenerateSummary().EventsEmitted; got != 3 {
		t.Errorf("EventsEmitted = %d, want 3", got)
	}
}

func TestCollector_ObserveEventBus(t *testing.T) {
	c, registry := newTestCollector(t)

	if got := counterValue(t, registry, "desktop_shell_events_dropped_total", nil); got != 0 {
		t.Errorf("events_dropped before observing = %v, want 0", got)
	}

	var dropped int64 = 3
	c.ObserveEventBus(func() (int64, int64) { return 10, dropped })

	if got := counterValue(t, registry, "desktop_shell_events_dropped_total", nil); got != 3 {
		t.Errorf("events_dropped = %v, want 3", got)
	}
	dropped = 5
	if got := c.GenerateSummary().EventsDropped; got != 5 {
		t.Errorf("EventsDropped = %d, want 5", got)
	}
}

func TestGenerateSummary_Empty(t *testing.T) {
	c, _ := newTestCollector(t)

	s := c.GenerateSummary()
	if s.TotalStarts != 0 || s.UptimeP50 != 0 || len(s.Outcomes) != 0 {
		t.Errorf("empty summary = %+v", s)
	}

	// The summary is a copy.
	s.Outcomes["x"] = 1
	if len(c.GenerateSummary().Outcomes) != 0 {
		t.Error("GenerateSummary exposed internal map")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c, _ := newTestCollector(t)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				c.BackendStarted()
				c.RecordOutcome("abnormal_exit", 1, time.Second)
				c.EventEmitted("backend-error")
				_ = c.GenerateSummary()
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	if got := c.TotalStarts(); got != 400 {
		t.Errorf("TotalStarts() = %d, want 400", got)
	}
}
