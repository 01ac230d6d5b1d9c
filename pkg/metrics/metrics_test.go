package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveWebhook(t *testing.T) {
	before := testutil.ToFloat64(WebhookRequestsTotal.WithLabelValues("delivered"))

	ObserveWebhook("delivered", 12*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(WebhookRequestsTotal.WithLabelValues("delivered")))
}

func TestObserveDelivery(t *testing.T) {
	before := testutil.ToFloat64(DeliveryRequestsTotal.WithLabelValues("api_error"))

	ObserveDelivery("api_error", time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(DeliveryRequestsTotal.WithLabelValues("api_error")))
}

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		RegisterWebhookMetrics()
		RegisterWebhookMetrics()
		RegisterDeliveryMetrics()
		RegisterDeliveryMetrics()
		RegisterCircuitBreakerMetrics()
		RegisterCircuitBreakerMetrics()
		RegisterRateLimitMetrics()
		RegisterRateLimitMetrics()
	})
}
