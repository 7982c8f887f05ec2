// Package metrics provides Prometheus metrics for the desktop shell.
//
// All metrics describe the single supervised backend and the events the
// shell emits to its front end, so label cardinality stays fixed.
package metrics

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "desktop_shell"

// Collector manages all Prometheus metrics for the shell.
type Collector struct {
	info            *prometheus.GaugeVec
	backendUp       prometheus.Gauge
	backendState    *prometheus.GaugeVec
	backendStarts   prometheus.Counter
	backendRestarts prometheus.Counter
	backendExits    *prometheus.CounterVec
	backendUptime   prometheus.Histogram
	backendStartup  prometheus.Histogram
	uptimeP50       prometheus.Gauge
	uptimeP95       prometheus.Gauge
	uptimeP99       prometheus.Gauge
	eventsEmitted   *prometheus.CounterVec
	eventsDropped   prometheus.CounterFunc

	// Timing
	startTime time.Time

	// For summary generation
	mu            sync.Mutex
	totalStarts   int64
	totalRestarts int64
	totalEvents   int64
	outcomes      map[string]int64
	exitCodes     map[int]int64
	lastOutcome   string
	uptimeDigest  *tdigest.TDigest
	busStats      func() (emitted, dropped int64)
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version  string
	Platform string
	Command  string
}

// NewCollector creates a new metrics collector on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "info",
				Help:      "Information about the shell (value always 1)",
			},
			[]string{"version", "platform", "command"},
		),
		backendUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_up",
			Help:      "1 while the backend process is running",
		}),
		backendState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backend_state",
				Help:      "Current supervisor state (1 for the active state)",
			},
			[]string{"state"},
		),
		backendStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_starts_total",
			Help:      "Backend processes launched",
		}),
		backendRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_restarts_total",
			Help:      "Backend restarts scheduled after a failure",
		}),
		backendExits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_exits_total",
				Help:      "Backend runs by classified outcome",
			},
			[]string{"outcome"},
		),
		backendUptime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_uptime_seconds",
			Help:      "How long each backend run lasted",
			Buckets:   []float64{0.1, 1, 5, 30, 60, 300, 1800, 3600, 14400},
		}),
		backendStartup: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_startup_seconds",
			Help:      "Time from launch until the readiness probe succeeded",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		uptimeP50: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_uptime_p50_seconds",
			Help:      "Median backend run duration",
		}),
		uptimeP95: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_uptime_p95_seconds",
			Help:      "95th percentile backend run duration",
		}),
		uptimeP99: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_uptime_p99_seconds",
			Help:      "99th percentile backend run duration",
		}),
		eventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_emitted_total",
				Help:      "Events emitted to the front end",
			},
			[]string{"event"},
		),
		startTime:    time.Now(),
		outcomes:     make(map[string]int64),
		exitCodes:    make(map[int]int64),
		uptimeDigest: tdigest.NewWithCompression(100),
	}
	c.eventsDropped = prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Event deliveries dropped because a subscriber was full",
		},
		func() float64 { return float64(c.droppedEvents()) },
	)

	registry.MustRegister(
		c.info,
		c.backendUp,
		c.backendState,
		c.backendStarts,
		c.backendRestarts,
		c.backendExits,
		c.backendUptime,
		c.backendStartup,
		c.uptimeP50,
		c.uptimeP95,
		c.uptimeP99,
		c.eventsEmitted,
		c.eventsDropped,
	)

	c.info.WithLabelValues(cfg.Version, cfg.Platform, cfg.Command).Set(1)

	return c
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// SetState records the supervisor's current state.
func (c *Collector) SetState(state string, running bool) {
	c.backendState.Reset()
	c.backendState.WithLabelValues(state).Set(1)
	if running {
		c.backendUp.Set(1)
	} else {
		c.backendUp.Set(0)
	}
}

// BackendStarted records a backend launch.
func (c *Collector) BackendStarted() {
	c.backendStarts.Inc()

	c.mu.Lock()
	c.totalStarts++
	c.mu.Unlock()
}

// BackendRestarted records a scheduled restart.
func (c *Collector) BackendRestarted() {
	c.backendRestarts.Inc()

	c.mu.Lock()
	c.totalRestarts++
	c.mu.Unlock()
}

// BackendReady records how long the backend took to become ready.
func (c *Collector) BackendReady(startup time.Duration) {
	c.backendStartup.Observe(startup.Seconds())
}

// RecordOutcome records the end of one backend run. Runs that never
// started (negative exit code) are counted but add no uptime sample.
func (c *Collector) RecordOutcome(outcome string, exitCode int, uptime time.Duration) {
	c.backendExits.WithLabelValues(outcome).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.outcomes[outcome]++
	c.lastOutcome = outcome
	if exitCode < 0 {
		return
	}
	c.exitCodes[exitCode]++

	c.backendUptime.Observe(uptime.Seconds())
	c.uptimeDigest.Add(uptime.Seconds(), 1)
	c.uptimeP50.Set(c.uptimeDigest.Quantile(0.50))
	c.uptimeP95.Set(c.uptimeDigest.Quantile(0.95))
	c.uptimeP99.Set(c.uptimeDigest.Quantile(0.99))
}

// EventEmitted records an event sent to the front end.
func (c *Collector) EventEmitted(name string) {
	c.eventsEmitted.WithLabelValues(name).Inc()

	c.mu.Lock()
	c.totalEvents++
	c.mu.Unlock()
}

// ObserveEventBus reads dropped deliveries from stats at scrape and
// summary time.
func (c *Collector) ObserveEventBus(stats func() (emitted, dropped int64)) {
	c.mu.Lock()
	c.busStats = stats
	c.mu.Unlock()
}

func (c *Collector) droppedEvents() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.droppedEventsLocked()
}

func (c *Collector) droppedEventsLocked() int64 {
	if c.busStats == nil {
		return 0
	}
	_, dropped := c.busStats()
	return dropped
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating an exit summary.
type Summary struct {
	Duration      time.Duration
	TotalStarts   int64
	TotalRestarts int64
	EventsEmitted int64
	EventsDropped int64
	Outcomes      map[string]int64
	ExitCodes     map[int]int64
	LastOutcome   string
	UptimeP50     time.Duration
	UptimeP95     time.Duration
	UptimeP99     time.Duration
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:      time.Since(c.startTime),
		TotalStarts:   c.totalStarts,
		TotalRestarts: c.totalRestarts,
		EventsEmitted: c.totalEvents,
		EventsDropped: c.droppedEventsLocked(),
		Outcomes:      make(map[string]int64, len(c.outcomes)),
		ExitCodes:     make(map[int]int64, len(c.exitCodes)),
		LastOutcome:   c.lastOutcome,
	}

	for k, v := range c.outcomes {
		s.Outcomes[k] = v
	}
	for code, count := range c.exitCodes {
		s.ExitCodes[code] = count
	}

	if c.uptimeDigest.Count() > 0 {
		s.UptimeP50 = secondsToDuration(c.uptimeDigest.Quantile(0.50))
		s.UptimeP95 = secondsToDuration(c.uptimeDigest.Quantile(0.95))
		s.UptimeP99 = secondsToDuration(c.uptimeDigest.Quantile(0.99))
	}

	return s
}

// TotalStarts returns the total number of backend starts.
func (c *Collector) TotalStarts() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalStarts
}

// TotalRestarts returns the total number of restarts.
func (c *Collector) TotalRestarts() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalRestarts
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
