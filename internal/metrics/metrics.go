package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tokengate"

var (
	AuthRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_requests_total",
			Help:      "Total number of bearer token authentications, labeled by outcome (ok or rejection reason).",
		},
		[]string{"outcome"},
	)

	AuthLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_latency_seconds",
			Help:      "Time spent validating a bearer token (seconds).",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		},
		[]string{"result"},
	)

	CertRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cert_refresh_total",
			Help:      "Total number of signing certificate refresh attempts, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	CertRefreshDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cert_refresh_duration_seconds",
			Help:      "Duration of signing certificate fetches (seconds).",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter, labeled by scope.",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		AuthRequestsTotal,
		AuthLatencySeconds,
		CertRefreshTotal,
		CertRefreshDurationSeconds,
		RateLimitedTotal,
	)
}

// RefreshObserver records refresher outcomes.
type RefreshObserver struct{}

func (RefreshObserver) RefreshSucceeded(_ int, took time.Duration) {
	CertRefreshTotal.WithLabelValues("success").Inc()
	CertRefreshDurationSeconds.Observe(took.Seconds())
}

func (RefreshObserver) RefreshFailed(_ error, took time.Duration) {
	CertRefreshTotal.WithLabelValues("failure").Inc()
	CertRefreshDurationSeconds.Observe(took.Seconds())
}

// ObserveAuth records one authentication. An empty outcome means success.
func ObserveAuth(outcome string, took time.Duration) {
	result := "failure"
	if outcome == "" {
		outcome = "ok"
		result = "success"
	}
	AuthRequestsTotal.WithLabelValues(outcome).Inc()
	AuthLatencySeconds.WithLabelValues(result).Observe(took.Seconds())
}
