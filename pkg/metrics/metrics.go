package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Total number of purchase webhooks handled, by outcome (count)",
		},
		[]string{"outcome"},
	)

	WebhookProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_ms",
			Help:    "End-to-end webhook handling duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"outcome"},
	)

	WebhookBodySizeBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_body_size_bytes",
			Help:    "Size of accepted webhook bodies in bytes",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576},
		},
	)

	DeliveryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_requests_total",
			Help: "Total number of conversion API calls, by result (count)",
		},
		[]string{"status"},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_duration_ms",
			Help:    "Duration of conversion API calls in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

var (
	webhookOnce        sync.Once
	deliveryOnce       sync.Once
	circuitBreakerOnce sync.Once
	rateLimitOnce      sync.Once
)

func RegisterWebhookMetrics() {
	webhookOnce.Do(func() {
		prometheus.MustRegister(WebhookRequestsTotal)
		prometheus.MustRegister(WebhookProcessingDuration)
		prometheus.MustRegister(WebhookBodySizeBytes)
	})
}

func RegisterDeliveryMetrics() {
	deliveryOnce.Do(func() {
		prometheus.MustRegister(DeliveryRequestsTotal)
		prometheus.MustRegister(DeliveryDuration)
	})
}

func RegisterCircuitBreakerMetrics() {
	circuitBreakerOnce.Do(func() {
		prometheus.MustRegister(CircuitBreakerState)
		prometheus.MustRegister(CircuitBreakerRequests)
		prometheus.MustRegister(CircuitBreakerFailures)
	})
}

func RegisterRateLimitMetrics() {
	rateLimitOnce.Do(func() {
		prometheus.MustRegister(RateLimitRequestsTotal)
	})
}

func ObserveWebhook(outcome string, duration time.Duration) {
	WebhookRequestsTotal.WithLabelValues(outcome).Inc()
	WebhookProcessingDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func ObserveWebhookBodySize(sizeBytes int) {
	WebhookBodySizeBytes.Observe(float64(sizeBytes))
}

func ObserveDelivery(status string, duration time.Duration) {
	DeliveryRequestsTotal.WithLabelValues(status).Inc()
	DeliveryDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}
