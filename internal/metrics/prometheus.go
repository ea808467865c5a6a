package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rights_batch_duration_seconds",
			Help:    "Batch processing duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"outcome"},
	)

	ArticlesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rights_articles_processed_total",
			Help: "Articles processed, by how their rights were obtained",
		},
		[]string{"path"},
	)

	ModelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rights_model_calls_total",
			Help: "Model generation calls by status",
		},
		[]string{"status"},
	)

	ModelCallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rights_model_call_duration_seconds",
			Help:    "Model generation latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
	)

	ParseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rights_parse_failures_total",
			Help: "Model outputs that degraded to an empty result, by reason",
		},
		[]string{"reason"},
	)

	UnexpectedRights = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rights_unexpected_right_total",
			Help: "Model results discarded because their right was not requested",
		},
	)

	DetailsPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rights_analysis_details_persisted_total",
			Help: "Analysis detail rows inserted",
		},
	)

	ModelServerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rights_model_server_state",
			Help: "Model server readiness state (0 unknown, 1 checking, 2 starting, 3 ready, 4 unreachable)",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rights_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rights_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ArticlesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rights_articles_ingested_total",
			Help: "Articles stored by batch ingestion",
		},
	)
)

func Init() {
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(ArticlesProcessed)
	prometheus.MustRegister(ModelCalls)
	prometheus.MustRegister(ModelCallDuration)
	prometheus.MustRegister(ParseFailures)
	prometheus.MustRegister(UnexpectedRights)
	prometheus.MustRegister(DetailsPersisted)
	prometheus.MustRegister(ModelServerState)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ArticlesIngested)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
