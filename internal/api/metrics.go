package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	// httpRequestsTotal counts HTTP requests by method, path, and status.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration observes request latency by method and path.
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harrier",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// verdictsTotal counts scored transactions by risk level.
	verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "verdicts_total",
			Help:      "Total risk verdicts issued by level.",
		},
		[]string{"level"},
	)

	// alertsTotal counts fraud alerts raised by the scoring path.
	alertsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "alerts_total",
			Help:      "Total fraud alerts raised.",
		},
	)

	// estimatorFallbacksTotal counts scores served by the heuristic
	// fallback instead of a model, by estimator ID.
	estimatorFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harrier",
			Name:      "estimator_fallbacks_total",
			Help:      "Total estimator calls that degraded to the rule-based fallback.",
		},
		[]string{"estimator"},
	)

	// scoringDuration observes end-to-end scoring pipeline latency.
	scoringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "harrier",
			Name:      "scoring_duration_seconds",
			Help:      "End-to-end transaction scoring duration in seconds.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		verdictsTotal,
		alertsTotal,
		estimatorFallbacksTotal,
		scoringDuration,
	)
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func observeHTTPRequest(method, path string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func observeVerdict(verdict *domain.RiskVerdict, alerted bool, elapsed time.Duration) {
	verdictsTotal.WithLabelValues(string(verdict.Level)).Inc()
	if alerted {
		alertsTotal.Inc()
	}
	if !verdict.LocalModel.Available {
		estimatorFallbacksTotal.WithLabelValues(verdict.LocalModel.EstimatorID).Inc()
	}
	if !verdict.GlobalModel.Available {
		estimatorFallbacksTotal.WithLabelValues(verdict.GlobalModel.EstimatorID).Inc()
	}
	scoringDuration.Observe(elapsed.Seconds())
}
