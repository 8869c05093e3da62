package prometheus

import "github.com/prometheus/client_golang/prometheus"

const (
	MessageDurationBucketStart  = 0.005
	MessageDurationBucketFactor = 2.0
	MessageDurationBucketCount  = 14
)

const (
	kafkaLatencyBucketStart  = 0.1
	kafkaLatencyBucketFactor = 2.5
	kafkaLatencyBucketCount  = 12
)

const (
	batchSizeBucketStart  = 1
	batchSizeBucketFactor = 2
	batchSizeBucketCount  = 12
)

const (
	AnomalyOrphan        = "orphan"
	AnomalyCycle         = "cycle"
	AnomalySelfReference = "self_reference"
)

var ProcessMessageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "process_message_duration_seconds",
		Help: "Time taken to process a CDR message",
		Buckets: prometheus.ExponentialBuckets(
			MessageDurationBucketStart,
			MessageDurationBucketFactor,
			MessageDurationBucketCount,
		),
	},
	[]string{"source"},
)

var KafkaMessageLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "kafka_message_latency_seconds",
		Help: "Time taken from message production to consumption",
		Buckets: prometheus.ExponentialBuckets(
			kafkaLatencyBucketStart,
			kafkaLatencyBucketFactor,
			kafkaLatencyBucketCount,
		),
	},
	[]string{"topic"},
)

var MinioOperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "minio_operation_duration_seconds",
		Help:    "Time taken by MinIO operations",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

var DerivationDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name: "derivation_duration_seconds",
		Help: "Time taken to resolve lineage and build journeys over the full call set",
		Buckets: prometheus.ExponentialBuckets(
			MessageDurationBucketStart,
			MessageDurationBucketFactor,
			MessageDurationBucketCount,
		),
	},
)

var IngestBatchSize = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name: "ingest_batch_size",
		Help: "Number of call events accepted per ingestion",
		Buckets: prometheus.ExponentialBuckets(
			batchSizeBucketStart,
			batchSizeBucketFactor,
			batchSizeBucketCount,
		),
	},
)

var JourneyEvents = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "journey_events",
		Help: "Number of IVR journey events in the last derivation",
	},
)

var LineageAnomalies = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "lineage_anomalies",
		Help: "Parent references that could not be followed in the last lineage derivation",
	},
	[]string{"kind"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Time taken to serve HTTP requests",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route", "status"},
)

var CircuitBreakerTrips = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "circuit_breaker_trips_total",
		Help: "Breaker trips that restarted the app, by dependency",
	},
	[]string{"service"},
)

func init() {
	prometheus.MustRegister(ProcessMessageDuration)
	prometheus.MustRegister(KafkaMessageLatency)
	prometheus.MustRegister(MinioOperationDuration)
	prometheus.MustRegister(DerivationDuration)
	prometheus.MustRegister(IngestBatchSize)
	prometheus.MustRegister(JourneyEvents)
	prometheus.MustRegister(LineageAnomalies)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(CircuitBreakerTrips)
}
