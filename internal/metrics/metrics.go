// Package metrics holds the Prometheus instruments of the trade journal core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the journal core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CacheLookups  *prometheus.CounterVec // labels: family, result=hit|miss|error
	CacheWriteErr *prometheus.CounterVec // labels: op=set|delete|flush
	Invalidations prometheus.Counter

	// Lifecycle
	Transitions *prometheus.CounterVec // labels: op=create|update|correct|exit|cancel|delete

	// Bulk import
	BulkRecords *prometheus.CounterVec // labels: outcome=created|skipped|failed

	// Circuit breaker in front of the cache backend
	CacheBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	CacheBreakerTrips prometheus.Counter
}

// New creates the metrics and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_cache_lookups_total",
			Help: "Cache lookups by key family and result",
		}, []string{"family", "result"}),
		CacheWriteErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_cache_write_errors_total",
			Help: "Cache writes/invalidations that failed and were skipped",
		}, []string{"op"}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_cache_invalidations_total",
			Help: "Per-user cache invalidations triggered by trade mutations",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_trade_mutations_total",
			Help: "Successful trade mutations by operation",
		}, []string{"op"}),
		BulkRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_bulk_records_total",
			Help: "Bulk import records by outcome",
		}, []string{"outcome"}),
		CacheBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "journal_cache_circuit_breaker_state",
			Help: "Cache circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		CacheBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_cache_circuit_breaker_trips_total",
			Help: "Times the cache circuit breaker tripped open",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CacheLookups,
			m.CacheWriteErr,
			m.Invalidations,
			m.Transitions,
			m.BulkRecords,
			m.CacheBreakerState,
			m.CacheBreakerTrips,
		)
	}
	return m
}

// CacheLookup records the result of one cache read.
func (m *Metrics) CacheLookup(family, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(family, result).Inc()
}

// CacheWriteError records a cache write that failed.
func (m *Metrics) CacheWriteError(op string) {
	if m == nil {
		return
	}
	m.CacheWriteErr.WithLabelValues(op).Inc()
}

// Invalidated records one per-user invalidation.
func (m *Metrics) Invalidated() {
	if m == nil {
		return
	}
	m.Invalidations.Inc()
}

// Mutation records a successful trade mutation.
func (m *Metrics) Mutation(op string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(op).Inc()
}

// Bulk records the outcome counts of one bulk import.
func (m *Metrics) Bulk(created, skipped, failed int) {
	if m == nil {
		return
	}
	m.BulkRecords.WithLabelValues("created").Add(float64(created))
	m.BulkRecords.WithLabelValues("skipped").Add(float64(skipped))
	m.BulkRecords.WithLabelValues("failed").Add(float64(failed))
}

// BreakerState records a circuit breaker transition.
func (m *Metrics) BreakerState(state int, tripped bool) {
	if m == nil {
		return
	}
	m.CacheBreakerState.Set(float64(state))
	if tripped {
		m.CacheBreakerTrips.Inc()
	}
}
