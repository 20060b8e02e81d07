// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 Metrics collector
// =============================================================================

// Collector registers and records the platform's Prometheus metrics.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// Governance metrics
	proposalsTotal   *prometheus.CounterVec
	votesTotal       *prometheus.CounterVec
	talliesTotal     *prometheus.CounterVec
	tallyDuration    *prometheus.HistogramVec
	proposalsPending *prometheus.GaugeVec

	// Training metrics
	sessionsActive   prometheus.Gauge
	participantsLive *prometheus.GaugeVec
	roundsTotal      *prometheus.CounterVec
	roundDuration    *prometheus.HistogramVec
	barrierWait      *prometheus.HistogramVec
	workerLaunches   *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// Database metrics
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
	mu     sync.RWMutex
}

// NewCollector creates a metrics collector under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP metrics
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// Governance metrics
	c.proposalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_total",
			Help:      "Total number of proposals created",
		},
		[]string{"content_variant", "operation_variant"},
	)

	c.votesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Total number of votes cast",
		},
		[]string{"vote_type"}, // priority, decision
	)

	c.talliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tallies_total",
			Help:      "Total number of vote tallies",
		},
		[]string{"content_variant", "outcome"}, // winner, tie, no_majority, accepted, rejected
	)

	c.tallyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tally_duration_seconds",
			Help:      "Vote tally duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"content_variant"},
	)

	c.proposalsPending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "proposals_pending",
			Help:      "Number of pending proposals per strategy",
		},
		[]string{"strategy"},
	)

	// Training metrics
	c.sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_sessions_active",
			Help:      "Number of active training sessions",
		},
	)

	c.participantsLive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_participants_live",
			Help:      "Number of live participant connections per session",
		},
		[]string{"session"},
	)

	c.roundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_rounds_total",
			Help:      "Total number of training rounds started",
		},
		[]string{"session"},
	)

	c.roundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_round_duration_seconds",
			Help:      "Training round duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"session"},
	)

	c.barrierWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_barrier_wait_seconds",
			Help:      "Time participants spend waiting at the round rendezvous",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"session"},
	)

	c.workerLaunches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_worker_launches_total",
			Help:      "Total number of aggregation worker launches",
		},
		[]string{"session", "status"},
	)

	// Cache metrics
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Database metrics
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP metrics
// =============================================================================

// RecordHTTPRequest records one HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🗳️ Governance metrics
// =============================================================================

// RecordProposal records a proposal creation.
func (c *Collector) RecordProposal(contentVariant, operationVariant string) {
	c.proposalsTotal.WithLabelValues(contentVariant, operationVariant).Inc()
}

// RecordVote records a cast vote.
func (c *Collector) RecordVote(voteType string) {
	c.votesTotal.WithLabelValues(voteType).Inc()
}

// RecordTally records a tally and its outcome.
func (c *Collector) RecordTally(contentVariant, outcome string, duration time.Duration) {
	c.talliesTotal.WithLabelValues(contentVariant, outcome).Inc()
	c.tallyDuration.WithLabelValues(contentVariant).Observe(duration.Seconds())
}

// SetPendingProposals sets the pending proposal gauge for a strategy.
func (c *Collector) SetPendingProposals(strategy string, n int) {
	c.proposalsPending.WithLabelValues(strategy).Set(float64(n))
}

// =============================================================================
// 🏋️ Training metrics
// =============================================================================

// SetActiveSessions sets the active session gauge.
func (c *Collector) SetActiveSessions(n int) {
	c.sessionsActive.Set(float64(n))
}

// SetLiveParticipants sets the live participant gauge for a session.
func (c *Collector) SetLiveParticipants(session string, n int) {
	c.participantsLive.WithLabelValues(session).Set(float64(n))
}

// RecordRound records a started round and the previous round's duration.
func (c *Collector) RecordRound(session string, duration time.Duration) {
	c.roundsTotal.WithLabelValues(session).Inc()
	if duration > 0 {
		c.roundDuration.WithLabelValues(session).Observe(duration.Seconds())
	}
}

// RecordBarrierWait records how long a participant blocked at the round
// rendezvous.
func (c *Collector) RecordBarrierWait(session string, duration time.Duration) {
	c.barrierWait.WithLabelValues(session).Observe(duration.Seconds())
}

// RecordWorkerLaunch records an aggregation worker launch attempt.
func (c *Collector) RecordWorkerLaunch(session, status string) {
	c.workerLaunches.WithLabelValues(session, status).Inc()
}

// =============================================================================
// 💾 Cache metrics
// =============================================================================

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🗄️ Database metrics
// =============================================================================

// RecordDBConnections records connection pool gauges.
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery records a database query duration.
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 Helpers
// =============================================================================

// statusCode groups an HTTP status code into its class.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
