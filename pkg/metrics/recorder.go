package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder handles metrics recording and exposure
type Recorder struct {
	// API metrics
	apiRequestCounter   *prometheus.CounterVec
	apiLatencyHistogram *prometheus.HistogramVec

	// Pricing metrics
	pricingCounter *prometheus.CounterVec
	pricingLatency *prometheus.HistogramVec

	// Greeks metrics
	greeksCounter     *prometheus.CounterVec
	greeksLatency     *prometheus.HistogramVec
	greeksPricerCalls *prometheus.HistogramVec

	// Streaming metrics
	kafkaMessageCounter *prometheus.CounterVec
	websocketClients    prometheus.Gauge

	// System metrics
	memoryUsageGauge    prometheus.Gauge
	goroutineCountGauge prometheus.Gauge
}

// NewRecorder creates a recorder whose metrics are registered with reg.
// A nil reg uses the default Prometheus registry.
func NewRecorder(namespace string, reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		// API metrics
		apiRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "The total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		apiLatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "API request latency distribution",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // From 1ms to ~16s
			},
			[]string{"method", "path"},
		),

		// Pricing metrics
		pricingCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pricer_calls_total",
				Help:      "The total number of single option prices computed",
			},
			[]string{"model", "status"},
		),
		pricingLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pricer_latency_seconds",
				Help:      "Latency of a single option price",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 14), // From 1us to ~67s
			},
			[]string{"model"},
		),

		// Greeks metrics
		greeksCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "greeks_calculations_total",
				Help:      "The total number of Greeks calculations",
			},
			[]string{"model", "status"},
		),
		greeksLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "greeks_latency_seconds",
				Help:      "Greeks calculation latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20), // From 100us to ~52s
			},
			[]string{"model"},
		),
		greeksPricerCalls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "greeks_pricer_calls",
				Help:      "Distinct pricer evaluations per Greeks calculation",
				Buckets:   prometheus.LinearBuckets(1, 1, 20),
			},
			[]string{"model"},
		),

		// Streaming metrics
		kafkaMessageCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kafka_messages_total",
				Help:      "Kafka messages handled by topic and outcome",
			},
			[]string{"topic", "status"},
		),
		websocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Connected websocket clients",
			},
		),

		// System metrics
		memoryUsageGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memory_usage_bytes",
				Help:      "Memory usage of the application in bytes",
			},
		),
		goroutineCountGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goroutine_count",
				Help:      "Number of goroutines",
			},
		),
	}
}

// RecordAPIRequest records metrics for an API request
func (r *Recorder) RecordAPIRequest(method, path string, status int, latency time.Duration) {
	r.apiRequestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.apiLatencyHistogram.WithLabelValues(method, path).Observe(latency.Seconds())
}

// RecordPricing records one pricer evaluation; status is "ok" or an error kind
func (r *Recorder) RecordPricing(model, status string, latency time.Duration) {
	r.pricingCounter.WithLabelValues(model, status).Inc()
	r.pricingLatency.WithLabelValues(model).Observe(latency.Seconds())
}

// RecordGreeks records one Greeks calculation
func (r *Recorder) RecordGreeks(model, status string, pricerCalls int, latency time.Duration) {
	r.greeksCounter.WithLabelValues(model, status).Inc()
	r.greeksLatency.WithLabelValues(model).Observe(latency.Seconds())
	r.greeksPricerCalls.WithLabelValues(model).Observe(float64(pricerCalls))
}

// RecordKafkaMessage counts a consumed or produced message
func (r *Recorder) RecordKafkaMessage(topic, status string) {
	r.kafkaMessageCounter.WithLabelValues(topic, status).Inc()
}

// RecordWebsocketClients records the number of connected clients
func (r *Recorder) RecordWebsocketClients(count int) {
	r.websocketClients.Set(float64(count))
}

// RecordMemoryUsage records the current memory usage
func (r *Recorder) RecordMemoryUsage(bytesUsed uint64) {
	r.memoryUsageGauge.Set(float64(bytesUsed))
}

// RecordGoroutineCount records the current number of goroutines
func (r *Recorder) RecordGoroutineCount(count int) {
	r.goroutineCountGauge.Set(float64(count))
}
