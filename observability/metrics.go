package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type distributorMetrics struct {
	claims      *prometheus.CounterVec
	rootCommits prometheus.Counter
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var (
	distributorMetricsOnce sync.Once
	distributorRegistry    *distributorMetrics
)

// Metrics returns the lazily-initialised registry tracking claim activity and
// JSON-RPC handler load.
func Metrics() *distributorMetrics {
	distributorMetricsOnce.Do(func() {
		distributorRegistry = &distributorMetrics{
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "merkledrop",
				Subsystem: "distributor",
				Name:      "claims_total",
				Help:      "Count of successful reward claims segmented by token.",
			}, []string{"token"}),
			rootCommits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "merkledrop",
				Subsystem: "distributor",
				Name:      "root_commits_total",
				Help:      "Count of roots becoming live across all instances.",
			}),
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "merkledrop",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "merkledrop",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			distributorRegistry.claims,
			distributorRegistry.rootCommits,
			distributorRegistry.requests,
			distributorRegistry.latency,
		)
	})
	return distributorRegistry
}

// RecordClaim increments the claim counter for the supplied token ticker.
func (m *distributorMetrics) RecordClaim(token string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToUpper(token))
	if normalized == "" {
		normalized = "UNKNOWN"
	}
	m.claims.WithLabelValues(normalized).Inc()
}

// RecordRootCommit counts a root becoming live.
func (m *distributorMetrics) RecordRootCommit() {
	if m == nil {
		return
	}
	m.rootCommits.Inc()
}

// RecordRequest captures a handled JSON-RPC request and its latency.
func (m *distributorMetrics) RecordRequest(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}
