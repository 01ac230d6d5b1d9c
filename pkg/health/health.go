package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ErrDegraded marks a check failure that leaves the service usable.
var ErrDegraded = errors.New("degraded")

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type CheckerRegistry struct {
	checkers []Checker
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make([]Checker, 0),
	}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, checker)
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make(map[string]CheckResult)
	allHealthy := true
	anyDegraded := false

	for _, checker := range r.checkers {
		err := checker.Check(ctx)
		result := CheckResult{
			Timestamp: time.Now(),
		}

		switch {
		case err == nil:
			result.Status = StatusHealthy
		case errors.Is(err, ErrDegraded):
			result.Status = StatusDegraded
			result.Message = err.Error()
			anyDegraded = true
		default:
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			allHealthy = false
		}

		results[checker.Name()] = result
	}

	overallStatus := StatusHealthy
	if !allHealthy {
		overallStatus = StatusUnhealthy
	} else if anyDegraded {
		overallStatus = StatusDegraded
	}

	return Health{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// SecretChecker reports whether the webhook signing secret is configured.
type SecretChecker struct {
	configured bool
}

func NewSecretChecker(configured bool) *SecretChecker {
	return &SecretChecker{configured: configured}
}

func (c *SecretChecker) Name() string {
	return "webhook_secret"
}

func (c *SecretChecker) Check(context.Context) error {
	if !c.configured {
		return fmt.Errorf("webhook signing secret is not configured")
	}
	return nil
}

type breakerState interface {
	State() string
	IsOpen() bool
}

// CircuitBreakerChecker reports an open delivery breaker as degraded; the
// webhook endpoint still answers, it just cannot forward events.
type CircuitBreakerChecker struct {
	name    string
	breaker breakerState
}

func NewCircuitBreakerChecker(name string, breaker breakerState) *CircuitBreakerChecker {
	return &CircuitBreakerChecker{name: name, breaker: breaker}
}

func (c *CircuitBreakerChecker) Name() string {
	return "circuit_breaker_" + c.name
}

func (c *CircuitBreakerChecker) Check(context.Context) error {
	if c.breaker.IsOpen() {
		return fmt.Errorf("circuit breaker is %s: %w", c.breaker.State(), ErrDegraded)
	}
	return nil
}
