package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/osvaldoandrade/tokengate/pkg/auth"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          int    `yaml:"port"`
	Env           string `yaml:"env"`
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	Auth      auth.ValidationConfig `yaml:"auth"`
	RateLimit RateLimitConfig       `yaml:"rateLimit"`
	Tracing   TracingConfig         `yaml:"tracing"`
}

// RateLimitConfig throttles clients that keep presenting rejected tokens.
// A zero FailedAuthPerMinute disables the limiter.
type RateLimitConfig struct {
	FailedAuthPerMinute int `yaml:"failedAuthPerMinute"`
	FailedAuthBurst     int `yaml:"failedAuthBurst"`
}

func (r RateLimitConfig) Enabled() bool {
	return r.FailedAuthPerMinute > 0
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

// LoadConfig reads filePath, applies environment overrides and fills
// defaults for the ambient settings. Token validation settings have no
// defaults.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	applyEnv(&c)
	applyDefaults(&c)
	return &c, nil
}

// LoadConfigOptional behaves like LoadConfig but treats an empty path or a
// missing file as an empty document, so the service can be configured from
// the environment alone.
func LoadConfigOptional(filePath string) (*Config, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath != "" {
		c, err := LoadConfig(filePath)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	var c Config
	applyEnv(&c)
	applyDefaults(&c)
	return &c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}

	if v := os.Getenv("AUTH_VALID_ISSUERS"); v != "" {
		c.Auth.ValidIssuers = splitList(v)
	}
	if v := os.Getenv("AUTH_VALID_AUDIENCES"); v != "" {
		c.Auth.ValidAudiences = splitList(v)
	}
	if v := os.Getenv("AUTH_METADATA_ADDRESS"); v != "" {
		c.Auth.MetadataAddress = v
	}
	if v := os.Getenv("AUTH_METADATA_REFRESH_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Auth.RefreshIntervalMinutes = n
		}
	}
	if v := os.Getenv("AUTH_IDENTITY_CLAIM_TYPES"); v != "" {
		c.Auth.ClaimTypePriority = splitList(v)
	}
	if v := os.Getenv("AUTH_FETCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Auth.FetchTimeoutSeconds = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_FAILED_AUTH_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.FailedAuthPerMinute = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_FAILED_AUTH_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.FailedAuthBurst = n
		}
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		c.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Tracing.ServiceName = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Tracing.OTLPEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"); v != "" {
		c.Tracing.OTLPInsecure = parseBool(v)
	}
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Tracing.SampleRatio = f
		}
	}
}

func applyDefaults(c *Config) {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.RateLimit.Enabled() && c.RateLimit.FailedAuthBurst <= 0 {
		c.RateLimit.FailedAuthBurst = c.RateLimit.FailedAuthPerMinute
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "tokengate"
	}
}

// Validate checks the whole configuration. Token validation problems are
// reported field by field alongside the host settings.
func (c *Config) Validate() error {
	if errs := c.Problems(); len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Problems lists every violated setting, auth fields first.
func (c *Config) Problems() []string {
	var errs []string

	if err := c.Auth.Validate(); err != nil {
		var cfgErr *auth.ConfigurationError
		if errors.As(err, &cfgErr) {
			for _, p := range cfgErr.Problems {
				errs = append(errs, "auth."+p.Field+" "+p.Message)
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logLevel must be one of debug, info, warn, error")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "json", "text":
	default:
		errs = append(errs, "logFormat must be json or text")
	}
	if c.RateLimit.FailedAuthPerMinute < 0 {
		errs = append(errs, "rateLimit.failedAuthPerMinute must not be negative")
	}
	if c.RateLimit.Enabled() && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, "redisAddr is required when rate limiting is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, "tracing.sampleRatio must be between 0 and 1")
	}
	return errs
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes" || v == "y" || v == "on"
}
