package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbrief",
			Name:      "queries_total",
			Help:      "Total number of processed queries",
		},
		[]string{"status"}, // "ok" / "degraded" / "failed"
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "finbrief",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
	)

	CollaboratorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbrief",
			Name:      "collaborator_calls_total",
			Help:      "Total collaborator calls by outcome",
		},
		[]string{"service", "outcome"}, // outcome: "success" / "timeout" / "failure"
	)

	CollaboratorCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finbrief",
			Name:      "collaborator_call_duration_seconds",
			Help:      "Collaborator call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service"},
	)

	RetrievalScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "finbrief",
			Name:      "retrieval_score",
			Help:      "Similarity scores of passages that passed the threshold",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	AnswerConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "finbrief",
			Name:      "answer_confidence",
			Help:      "Confidence scores of produced answers",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	SynthesisAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbrief",
			Name:      "synthesis_attempts_total",
			Help:      "Synthesis gate outcomes by stage",
		},
		[]string{"stage"}, // "attempt" / "retry" / "fallback"
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbrief",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbrief",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbrief",
			Name:      "generation_requests_total",
			Help:      "Total number of language generation requests",
		},
		[]string{"model", "status"},
	)

	IndexedDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "finbrief",
			Name:      "indexed_documents",
			Help:      "Number of documents currently in the vector index",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(CollaboratorCallsTotal)
	prometheus.MustRegister(CollaboratorCallDuration)
	prometheus.MustRegister(RetrievalScore)
	prometheus.MustRegister(AnswerConfidence)
	prometheus.MustRegister(SynthesisAttemptsTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(GenerationRequestsTotal)
	prometheus.MustRegister(IndexedDocuments)
	pipelineMetricsRegistered = true
}
