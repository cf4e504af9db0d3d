package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	CachedSessions prometheus.Gauge
	CacheEvents    *prometheus.CounterVec
	TurnOutcomes   *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	TurnLatency    prometheus.Histogram

	stageWindow *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		CachedSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_sessions",
			Help:      "Number of session entries currently held in the cache.",
		}),
		CacheEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_cache_events_total",
			Help:      "Session cache events by type.",
		}, []string{"event"}),
		TurnOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_outcomes_total",
			Help:      "Completed chat turns by outcome.",
		}, []string{"outcome"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end chat turn latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 30000},
		}),
		stageWindow: newTurnStageWindow(256),
	}
}

// ObserveTurnStage records a per-stage duration in the sliding window; the
// turn_total stage also feeds the Prometheus histogram.
func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	ms := float64(d.Milliseconds())
	m.stageWindow.Observe(stage, ms)
	if stage == StageTurnTotal {
		m.TurnLatency.Observe(ms)
	}
}

func (m *Metrics) ObserveTurnIndicator(name string) {
	m.stageWindow.ObserveIndicator(name)
}

// TurnStageSnapshot returns recent per-stage latency percentiles for the
// perf endpoint.
func (m *Metrics) TurnStageSnapshot() TurnStageSnapshot {
	return m.stageWindow.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
