package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"capibridge/internal/constants"
)

// LoadConfig reads configuration from an optional YAML file and the environment.
// An empty configFile means environment and defaults only.
func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("environment", EnvironmentProduction)

	viper.SetDefault("server.port", constants.DefaultPort)
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("webhook.secret", "")
	viper.SetDefault("webhook.signature_header", constants.DefaultSignatureHeader)
	viper.SetDefault("webhook.allow_unsigned", false)
	viper.SetDefault("webhook.max_body_bytes", constants.DefaultMaxBodyBytes)
	viper.SetDefault("webhook.rate_limit.enabled", false)
	viper.SetDefault("webhook.rate_limit.rps", 10.0)
	viper.SetDefault("webhook.rate_limit.burst", 20)
	viper.SetDefault("webhook.rate_limit.cleanup_interval", 5*time.Minute)
	viper.SetDefault("webhook.rate_limit.max_age", 10*time.Minute)

	viper.SetDefault("meta.pixel_id", "")
	viper.SetDefault("meta.access_token", "")
	viper.SetDefault("meta.api_version", constants.DefaultGraphAPIVersion)
	viper.SetDefault("meta.base_url", constants.DefaultGraphBaseURL)
	viper.SetDefault("meta.timeout", constants.DefaultHTTPTimeout)
	viper.SetDefault("meta.test_event_code", "")

	viper.SetDefault("mapping.default_currency", constants.DefaultCurrency)
	viper.SetDefault("mapping.skip_expression", "")

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60*time.Second)
	viper.SetDefault("circuit_breaker.timeout", 30*time.Second)
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 5)

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.service_name", constants.ServiceName)
	viper.SetDefault("tracing.otlp.endpoint", "")
	viper.SetDefault("tracing.otlp.insecure", false)
	viper.SetDefault("tracing.sampler.type", "parentbased_always_on")
	viper.SetDefault("tracing.sampler.param", 1.0)
}

// bindEnvVariables keeps the variable names operators already use for the bridge
// working alongside the structured names derived from the key path.
func bindEnvVariables() {
	viper.BindEnv("environment", "ENVIRONMENT", "APP_ENV")

	viper.BindEnv("server.port", "SERVER_PORT", "PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("webhook.secret", "WEBHOOK_SECRET", "SHOPIFY_WEBHOOK_SECRET")
	viper.BindEnv("webhook.signature_header", "WEBHOOK_SIGNATURE_HEADER")
	viper.BindEnv("webhook.allow_unsigned", "WEBHOOK_ALLOW_UNSIGNED")
	viper.BindEnv("webhook.max_body_bytes", "WEBHOOK_MAX_BODY_BYTES")

	viper.BindEnv("meta.pixel_id", "META_PIXEL_ID")
	viper.BindEnv("meta.access_token", "META_ACCESS_TOKEN", "META_CAPI_TOKEN")
	viper.BindEnv("meta.api_version", "META_API_VERSION")
	viper.BindEnv("meta.base_url", "META_BASE_URL")
	viper.BindEnv("meta.timeout", "META_TIMEOUT")
	viper.BindEnv("meta.test_event_code", "META_TEST_EVENT_CODE")

	viper.BindEnv("mapping.default_currency", "MAPPING_DEFAULT_CURRENCY")
	viper.BindEnv("mapping.skip_expression", "MAPPING_SKIP_EXPRESSION")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func normalize(cfg *Config) {
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.Mapping.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.Mapping.DefaultCurrency))
	cfg.Meta.BaseURL = strings.TrimRight(cfg.Meta.BaseURL, "/")
}
