package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var chunksProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chunks_processed_total",
	Help: "Chunk processing outcomes labelled by terminal status",
}, []string{"status"})

var documentsFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "documents_finalized_total",
	Help: "Documents moved to a terminal status",
}, []string{"status"})

var extractionAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "extraction_attempts_total",
	Help: "Extraction attempts labelled by method and outcome",
}, []string{"method", "outcome"})

var stuckChunksRecovered = promauto.NewCounter(prometheus.CounterOpts{
	Name: "stuck_chunks_recovered_total",
	Help: "Chunks reset to pending by the stuck-chunk pass",
})

var pendingChunks = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "pending_chunks",
	Help: "Chunks awaiting processing across all documents",
})

var chunkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "chunk_processing_duration_seconds",
	Help:    "Total time spent processing a single chunk.",
	Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func IncrementChunksProcessed(status string) {
	chunksProcessedTotal.WithLabelValues(status).Inc()
}

func IncrementDocumentsFinalized(status string) {
	documentsFinalizedTotal.WithLabelValues(status).Inc()
}

func IncrementExtractionAttempts(method string, outcome string) {
	extractionAttemptsTotal.WithLabelValues(method, outcome).Inc()
}

func IncrementStuckChunksRecovered() {
	stuckChunksRecovered.Inc()
}

func SetPendingChunks(count int) {
	pendingChunks.Set(float64(count))
}

func CaptureChunkMetrics(status string, timeElapsed time.Duration) {
	chunkDuration.WithLabelValues(status).Observe(timeElapsed.Seconds())
}

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
