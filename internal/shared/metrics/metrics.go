package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	analysisStartedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "analysis_started_total",
		Help: "Total analyses started",
	})
	analysisCompletedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "analysis_completed_total",
		Help: "Total analyses completed",
	})
	analysisFailedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_failed_total",
		Help: "Total analyses aborted, by pipeline stage",
	}, []string{"stage"})
	analysisParseFallbackTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "analysis_parse_fallback_total",
		Help: "Total analyses whose model response could not be parsed as JSON",
	})
	analysisJobsEnqueuedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "analysis_jobs_enqueued_total",
		Help: "Total background analysis jobs enqueued",
	})
	analysisDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_duration_ms",
		Help:    "Analysis duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
	})
)

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Inc()
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Inc()
}

// IncAnalysisFailed increments the failed counter for the stage that aborted.
func IncAnalysisFailed(stage string) {
	analysisFailedTotal.WithLabelValues(stage).Inc()
}

// IncParseFallback increments the whole-response parse fallback counter.
func IncParseFallback() {
	analysisParseFallbackTotal.Inc()
}

// IncJobsEnqueued increments the background job counter.
func IncJobsEnqueued() {
	analysisJobsEnqueuedTotal.Inc()
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Registry returns the registry metrics are recorded in.
func Registry() *prometheus.Registry {
	return registry
}
