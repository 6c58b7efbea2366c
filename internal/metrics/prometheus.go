package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AuditDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "truthlens_audit_duration_seconds",
			Help:    "End-to-end audit duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	AuditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthlens_audits_total",
			Help: "Completed audits by risk badge",
		},
		[]string{"badge"},
	)

	AuditErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "truthlens_audit_errors_total",
			Help: "Audits that ended in an error state",
		},
	)

	TrustScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "truthlens_trust_score",
			Help:    "Overall trust score of completed audits",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	VetoTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthlens_veto_total",
			Help: "Governance vetoes raised by flag",
		},
		[]string{"flag"},
	)

	DriftedFeatures = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "truthlens_drifted_features",
			Help:    "Number of drifted features per audit",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	CollaboratorFallback = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthlens_collaborator_fallback_total",
			Help: "Degraded results returned by LLM collaborators",
		},
		[]string{"collaborator"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthlens_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthlens_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truthlens_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "truthlens_ws_sessions",
			Help: "Open websocket audit sessions",
		},
	)

	initOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			AuditDuration,
			AuditsTotal,
			AuditErrors,
			TrustScore,
			VetoTotal,
			DriftedFeatures,
			CollaboratorFallback,
			LLMTokensUsed,
			CacheHits,
			CacheMisses,
			ActiveSessions,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
