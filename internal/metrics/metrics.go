package metrics

import (
	"math/big"
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "points"

// Outcome labels recorded for each ledger call.
const (
	OutcomeOK       = "ok"
	OutcomeDryRun   = "dry_run"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Ledger holds the collectors for ledger activity on a dedicated registry.
type Ledger struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	events     *prometheus.CounterVec
	supply     prometheus.Gauge
}

// New builds the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Ledger {
	registry := prometheus.NewRegistry()
	m := &Ledger{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger calls segmented by operation and outcome.",
		}, []string{"operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of ledger calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Committed ledger events segmented by type.",
		}, []string{"type"}),
		supply: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "owner_supply",
			Help:      "Last observed issuer supply. Precision is lost above 2^53.",
		}),
	}
	registry.MustRegister(
		m.operations,
		m.durations,
		m.events,
		m.supply,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCall records the outcome and latency of one ledger call.
func (m *Ledger) ObserveCall(operation, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.durations.WithLabelValues(operation).Observe(took.Seconds())
}

// RecordEvent counts one committed event.
func (m *Ledger) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// SetSupply publishes the issuer supply.
func (m *Ledger) SetSupply(v uint256.Int) {
	if m == nil {
		return
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	m.supply.Set(f)
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Ledger) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Ledger) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
