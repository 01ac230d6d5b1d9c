package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"capibridge/internal/config"
	"capibridge/internal/conversion"
	"capibridge/pkg/circuitbreaker"
	"capibridge/pkg/metrics"
)

// CircuitBreakerClient fails fast while the ingestion endpoint keeps failing.
// Calls are never retried.
type CircuitBreakerClient struct {
	sender Sender
	cb     *circuitbreaker.Wrapper
}

func NewCircuitBreakerClient(sender Sender, cfg circuitbreaker.Config) *CircuitBreakerClient {
	return &CircuitBreakerClient{
		sender: sender,
		cb:     circuitbreaker.NewWrapper(cfg),
	}
}

func (c *CircuitBreakerClient) Deliver(ctx context.Context, event conversion.ConversionEvent) (*Response, error) {
	result, err := c.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return c.sender.Deliver(ctx, event)
	})
	if err != nil {
		if circuitbreaker.IsRejection(err) {
			metrics.ObserveDelivery("circuit_open", 0)
			return nil, fmt.Errorf("circuit breaker %s rejected delivery: %w", c.cb.Name(), err)
		}
		return nil, err
	}

	resp, ok := result.(*Response)
	if !ok || resp == nil {
		return nil, fmt.Errorf("sender returned invalid result type")
	}
	return resp, nil
}

func (c *CircuitBreakerClient) State() string {
	return c.cb.State().String()
}

func (c *CircuitBreakerClient) IsOpen() bool {
	return c.cb.IsOpen()
}

// CountsAgainstBreaker reports whether err says the endpoint is unhealthy.
// Rejections of a single event (4xx other than 429) leave the breaker alone.
func CountsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

// BreakerConfig builds the breaker settings used for the ingestion endpoint.
func BreakerConfig(name string, cfg config.CircuitBreakerConfig) circuitbreaker.Config {
	c := circuitbreaker.FromConfig(name, cfg)
	c.IsSuccessful = func(err error) bool {
		return !CountsAgainstBreaker(err)
	}
	return c
}
