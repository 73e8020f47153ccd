// Package metrics exposes Prometheus collectors for the tick loop. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketwatch"

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	tickDuration  prometheus.Histogram
	fetches       *prometheus.CounterVec
	announcements *prometheus.CounterVec
	notifyErrors  prometheus.Counter
	compacted     prometheus.Counter
	ledgerRecords *prometheus.GaugeVec
	watched       prometheus.Gauge
	lastTick      prometheus.Gauge
}

// New creates and registers the collectors plus the Go runtime and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Reconciliation ticks by outcome.",
		}, []string{"outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of completed ticks.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_fetches_total",
			Help:      "Detail snapshot fetches by result.",
		}, []string{"result"}),
		announcements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announcements_total",
			Help:      "Announcements fired by kind.",
		}, []string{"kind"}),
		notifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_errors_total",
			Help:      "Announcements whose delivery failed.",
		}),
		compacted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compacted_records_total",
			Help:      "Retired records dropped by compaction.",
		}),
		ledgerRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_records",
			Help:      "Ledger records by status.",
		}, []string{"status"}),
		watched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_set_size",
			Help:      "Markets in the watch-set of the last tick.",
		}),
		lastTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_tick_timestamp_seconds",
			Help:      "Unix time of the last completed tick.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks, m.tickDuration, m.fetches, m.announcements,
		m.notifyErrors, m.compacted, m.ledgerRecords, m.watched, m.lastTick,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TickDone records a completed tick.
func (m *Metrics) TickDone(d time.Duration, watched int) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues("ok").Inc()
	m.tickDuration.Observe(d.Seconds())
	m.watched.Set(float64(watched))
	m.lastTick.SetToCurrentTime()
}

// TickFailed records a tick that returned an error.
func (m *Metrics) TickFailed() {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues("error").Inc()
}

// TickSkipped records an overlapping fire that was discarded.
func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues("skipped").Inc()
}

// Fetch records one snapshot fetch result: "ok", "empty" or "error".
func (m *Metrics) Fetch(result string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
}

// Announced records a fired announcement.
func (m *Metrics) Announced(kind string) {
	if m == nil {
		return
	}
	m.announcements.WithLabelValues(kind).Inc()
}

// NotifyFailed records a failed delivery.
func (m *Metrics) NotifyFailed() {
	if m == nil {
		return
	}
	m.notifyErrors.Inc()
}

// Compacted records dropped records.
func (m *Metrics) Compacted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.compacted.Add(float64(n))
}

// LedgerSize sets the per-status record gauges.
func (m *Metrics) LedgerSize(byStatus map[string]int) {
	if m == nil {
		return
	}
	for status, n := range byStatus {
		m.ledgerRecords.WithLabelValues(status).Set(float64(n))
	}
}
