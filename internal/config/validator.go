package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks the configuration before any component is built.
// All field errors are reported together.
func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateWebhook(cfg.Webhook, cfg.IsProduction())...)
	errs = append(errs, validateMeta(cfg.Meta)...)

	if err := validateMapping(cfg.Mapping); err != nil {
		errs = append(errs, err)
	}

	if err := validateCircuitBreaker(cfg.CircuitBreaker); err != nil {
		errs = append(errs, err)
	}

	if err := validateTracing(cfg.Tracing); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateWebhook(cfg WebhookConfig, production bool) []error {
	var errs []error

	if cfg.AllowUnsigned && production {
		errs = append(errs, &ValidationError{
			Field:   "webhook.allow_unsigned",
			Message: "unsigned webhooks cannot be accepted in production",
		})
	}

	if cfg.Secret == "" && !cfg.AllowUnsigned {
		errs = append(errs, &ValidationError{
			Field:   "webhook.secret",
			Message: "signing secret is required",
		})
	}

	if strings.TrimSpace(cfg.SignatureHeader) == "" {
		errs = append(errs, &ValidationError{
			Field:   "webhook.signature_header",
			Message: "signature header name is required",
		})
	}

	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "webhook.max_body_bytes",
			Message: "max body size must be positive",
		})
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS <= 0 {
			errs = append(errs, &ValidationError{
				Field:   "webhook.rate_limit.rps",
				Message: "rps must be positive when rate limiting is enabled",
			})
		}
		if cfg.RateLimit.Burst < 1 {
			errs = append(errs, &ValidationError{
				Field:   "webhook.rate_limit.burst",
				Message: "burst must be at least 1",
			})
		}
	}

	return errs
}

func validateMeta(cfg MetaConfig) []error {
	var errs []error

	if cfg.PixelID == "" {
		errs = append(errs, &ValidationError{
			Field:   "meta.pixel_id",
			Message: "pixel id is required",
		})
	} else if strings.ContainsAny(cfg.PixelID, "/?#") {
		errs = append(errs, &ValidationError{
			Field:   "meta.pixel_id",
			Message: "pixel id must be a single path segment",
		})
	}

	if cfg.AccessToken == "" {
		errs = append(errs, &ValidationError{
			Field:   "meta.access_token",
			Message: "access token is required",
		})
	}

	if cfg.APIVersion == "" {
		errs = append(errs, &ValidationError{
			Field:   "meta.api_version",
			Message: "api version is required",
		})
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, &ValidationError{
			Field:   "meta.base_url",
			Message: fmt.Sprintf("base url must be an absolute http(s) url, got %q", cfg.BaseURL),
		})
	}

	if cfg.Timeout <= 0 {
		errs = append(errs, &ValidationError{
			Field:   "meta.timeout",
			Message: "delivery timeout must be positive",
		})
	}

	return errs
}

func validateMapping(cfg MappingConfig) error {
	if len(cfg.DefaultCurrency) != 3 {
		return &ValidationError{
			Field:   "mapping.default_currency",
			Message: fmt.Sprintf("default currency must be a 3-letter ISO 4217 code, got %q", cfg.DefaultCurrency),
		}
	}
	return nil
}

func validateCircuitBreaker(cfg CircuitBreakerConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.FailureRatio < 0 || cfg.FailureRatio > 1 {
		return &ValidationError{
			Field:   "circuit_breaker.failure_ratio",
			Message: "failure ratio must be between 0 and 1",
		}
	}

	if cfg.Timeout < 0 || cfg.Interval < 0 {
		return &ValidationError{
			Field:   "circuit_breaker",
			Message: "interval and timeout must be non-negative",
		}
	}

	return nil
}

func validateTracing(cfg TracingConfig) error {
	if cfg.Enabled && cfg.OTLP.Endpoint == "" {
		return &ValidationError{
			Field:   "tracing.otlp.endpoint",
			Message: "OTLP endpoint is required when tracing is enabled",
		}
	}
	return nil
}
