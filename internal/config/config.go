// Package config provides configuration loading with explicit naming
//
// Available functions:
//
//	LoadFromEnvVarsOnly()                     - Environment variables ONLY
//	LoadFromYamlFile(path)                    - YAML file ONLY (no env overrides)
//	LoadFromYamlWithEnvOverrides(path)        - YAML base + Environment overrides
//	                                            Priority: Env Vars > YAML > Defaults
//
// Environment variables supported:
//
//	SERVER:
//	  - NTPQ_EXPORTER_ADDRESS, NTPQ_EXPORTER_PORT
//	  - SERVER_READ_TIMEOUT, SERVER_WRITE_TIMEOUT
//	  - ENABLE_CORS, ALLOWED_ORIGINS (comma-separated)
//
//	QUERY:
//	  - NTPQ_TARGETS (comma-separated host[:port]), NTPQ_TIMEOUT, NTPQ_INTERVAL
//	  - NTPQ_MAX_REFERENCE_AGE, NTPQ_MAX_OFFSET
//	  - NTPQ_ENABLE_KERNEL, NTPQ_ENABLE_SNTP, NTPQ_WORKERS
//
//	RATE_LIMIT:
//	  - RATE_LIMIT_ENABLED, RATE_LIMIT_GLOBAL, RATE_LIMIT_PER_TARGET, RATE_LIMIT_BURST_SIZE
//
//	CIRCUIT_BREAKER:
//	  - CIRCUIT_BREAKER_ENABLED, CIRCUIT_BREAKER_MAX_REQUESTS
//	  - CIRCUIT_BREAKER_INTERVAL, CIRCUIT_BREAKER_TIMEOUT
//	  - CIRCUIT_BREAKER_FAILURE_THRESHOLD
//
//	LOGGING:
//	  - LOG_LEVEL (trace|debug|info|warn|error|fatal|panic)
//	  - LOG_FORMAT (json|console), LOG_ENABLE_FILE, LOG_FILE_PATH
//
//	METRICS:
//	  - METRICS_NAMESPACE, METRICS_SUBSYSTEM
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/maximewewer/ntpq-exporter/pkg/logger"
)

// DefaultPort is the NTP control port
const DefaultPort = 123

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Query   QueryConfig   `yaml:"query"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Address        string        `yaml:"address"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	EnableCORS     bool          `yaml:"enable_cors"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// QueryConfig contains control query configuration
type QueryConfig struct {
	Targets []TargetConfig `yaml:"targets"`

	// Timeout bounds one exchange; zero waits for the reply indefinitely
	Timeout         time.Duration `yaml:"timeout"`
	Interval        time.Duration `yaml:"interval"`
	MaxReferenceAge time.Duration `yaml:"max_reference_age"`
	MaxOffset       time.Duration `yaml:"max_offset"`
	EnableKernel    bool          `yaml:"enable_kernel"`
	EnableSNTP      bool          `yaml:"enable_sntp"`

	// Workers bounds the number of targets queried in parallel
	Workers int `yaml:"workers"`

	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// TargetConfig identifies one daemon to query
type TargetConfig struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns host:port
func (t TargetConfig) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Label returns the name used in metrics and logs
func (t TargetConfig) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Address()
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled       bool `yaml:"enabled"`
	GlobalRate    int  `yaml:"global_rate"`
	PerTargetRate int  `yaml:"per_target_rate"`
	BurstSize     int  `yaml:"burst_size"`
}

// CircuitBreakerConfig contains circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	EnableFile bool   `yaml:"enable_file"`
	FilePath   string `yaml:"file_path"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// LoadFromYamlFile reads configuration from a YAML file only (no env var overrides)
func LoadFromYamlFile(path string) (*Config, error) {
	cfg, err := readYamlFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration", err)
		return nil, fmt.Errorf("configuration validation failed for %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromYamlWithEnvOverrides loads base config from YAML, then overrides with environment variables
// Priority: Environment Variables > YAML File > Defaults
func LoadFromYamlWithEnvOverrides(path string) (*Config, error) {
	cfg, err := readYamlFile(path)
	if err != nil {
		logger.Warn("config", "Failed to load YAML config file, falling back to env vars only")
		cfg = DefaultConfig()
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration after env overrides", err)
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFromEnvVarsOnly loads configuration from environment variables only (no YAML file)
// Priority: Environment Variables > Defaults
func LoadFromEnvVarsOnly() (*Config, error) {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration from environment", err)
		return nil, fmt.Errorf("environment configuration validation failed: %w", err)
	}

	return cfg, nil
}

func readYamlFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("config", "Failed to read config file", err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		logger.Error("config", "Failed to parse config file", err)
		return nil, fmt.Errorf("failed to parse YAML config file %s: %w", path, err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to an existing config
func applyEnvOverrides(cfg *Config) {
	// ---------------------------------------------------------------------------
	// SERVER - HTTP Server configuration
	// ---------------------------------------------------------------------------
	if addr := os.Getenv("NTPQ_EXPORTER_ADDRESS"); addr != "" {
		cfg.Server.Address = addr
	}
	if port := os.Getenv("NTPQ_EXPORTER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if readTimeout := os.Getenv("SERVER_READ_TIMEOUT"); readTimeout != "" {
		if t, err := time.ParseDuration(readTimeout); err == nil {
			cfg.Server.ReadTimeout = t
		}
	}
	if writeTimeout := os.Getenv("SERVER_WRITE_TIMEOUT"); writeTimeout != "" {
		if t, err := time.ParseDuration(writeTimeout); err == nil {
			cfg.Server.WriteTimeout = t
		}
	}
	if enableCORS := os.Getenv("ENABLE_CORS"); enableCORS != "" {
		if b, err := strconv.ParseBool(enableCORS); err == nil {
			cfg.Server.EnableCORS = b
		}
	}
	if allowedOrigins := os.Getenv("ALLOWED_ORIGINS"); allowedOrigins != "" {
		cfg.Server.AllowedOrigins = parseCommaSeparated(allowedOrigins)
	}

	// ---------------------------------------------------------------------------
	// QUERY - Control query configuration
	// ---------------------------------------------------------------------------
	if targets := os.Getenv("NTPQ_TARGETS"); targets != "" {
		var parsed []TargetConfig
		for _, item := range parseCommaSeparated(targets) {
			target, err := ParseTarget(item)
			if err != nil {
				logger.Warnf("config", "Ignoring invalid target %q: %v", item, err)
				continue
			}
			parsed = append(parsed, target)
		}
		if len(parsed) > 0 {
			cfg.Query.Targets = parsed
		}
	}
	if timeout := os.Getenv("NTPQ_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Query.Timeout = t
		}
	}
	if interval := os.Getenv("NTPQ_INTERVAL"); interval != "" {
		if i, err := time.ParseDuration(interval); err == nil {
			cfg.Query.Interval = i
		}
	}
	if maxAge := os.Getenv("NTPQ_MAX_REFERENCE_AGE"); maxAge != "" {
		if d, err := time.ParseDuration(maxAge); err == nil {
			cfg.Query.MaxReferenceAge = d
		}
	}
	if maxOffset := os.Getenv("NTPQ_MAX_OFFSET"); maxOffset != "" {
		if d, err := time.ParseDuration(maxOffset); err == nil {
			cfg.Query.MaxOffset = d
		}
	}
	if enableKernel := os.Getenv("NTPQ_ENABLE_KERNEL"); enableKernel != "" {
		if b, err := strconv.ParseBool(enableKernel); err == nil {
			cfg.Query.EnableKernel = b
		}
	}
	if enableSNTP := os.Getenv("NTPQ_ENABLE_SNTP"); enableSNTP != "" {
		if b, err := strconv.ParseBool(enableSNTP); err == nil {
			cfg.Query.EnableSNTP = b
		}
	}
	if workers := os.Getenv("NTPQ_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			cfg.Query.Workers = w
		}
	}

	// ---------------------------------------------------------------------------
	// RATE LIMIT - Rate limiting configuration
	// ---------------------------------------------------------------------------
	if rateLimitEnabled := os.Getenv("RATE_LIMIT_ENABLED"); rateLimitEnabled != "" {
		if b, err := strconv.ParseBool(rateLimitEnabled); err == nil {
			cfg.Query.RateLimit.Enabled = b
		}
	}
	if globalRate := os.Getenv("RATE_LIMIT_GLOBAL"); globalRate != "" {
		if r, err := strconv.Atoi(globalRate); err == nil {
			cfg.Query.RateLimit.GlobalRate = r
		}
	}
	if perTargetRate := os.Getenv("RATE_LIMIT_PER_TARGET"); perTargetRate != "" {
		if r, err := strconv.Atoi(perTargetRate); err == nil {
			cfg.Query.RateLimit.PerTargetRate = r
		}
	}
	if burstSize := os.Getenv("RATE_LIMIT_BURST_SIZE"); burstSize != "" {
		if b, err := strconv.Atoi(burstSize); err == nil {
			cfg.Query.RateLimit.BurstSize = b
		}
	}

	// ---------------------------------------------------------------------------
	// CIRCUIT BREAKER - Circuit breaker configuration
	// ---------------------------------------------------------------------------
	if cbEnabled := os.Getenv("CIRCUIT_BREAKER_ENABLED"); cbEnabled != "" {
		if b, err := strconv.ParseBool(cbEnabled); err == nil {
			cfg.Query.CircuitBreaker.Enabled = b
		}
	}
	if maxRequests := os.Getenv("CIRCUIT_BREAKER_MAX_REQUESTS"); maxRequests != "" {
		if r, err := strconv.ParseUint(maxRequests, 10, 32); err == nil {
			cfg.Query.CircuitBreaker.MaxRequests = uint32(r)
		}
	}
	if cbInterval := os.Getenv("CIRCUIT_BREAKER_INTERVAL"); cbInterval != "" {
		if i, err := time.ParseDuration(cbInterval); err == nil {
			cfg.Query.CircuitBreaker.Interval = i
		}
	}
	if cbTimeout := os.Getenv("CIRCUIT_BREAKER_TIMEOUT"); cbTimeout != "" {
		if t, err := time.ParseDuration(cbTimeout); err == nil {
			cfg.Query.CircuitBreaker.Timeout = t
		}
	}
	if failureThreshold := os.Getenv("CIRCUIT_BREAKER_FAILURE_THRESHOLD"); failureThreshold != "" {
		if f, err := strconv.ParseFloat(failureThreshold, 64); err == nil {
			cfg.Query.CircuitBreaker.FailureThreshold = f
		}
	}

	// ---------------------------------------------------------------------------
	// LOGGING - Logging configuration
	// ---------------------------------------------------------------------------
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if enableFile := os.Getenv("LOG_ENABLE_FILE"); enableFile != "" {
		if b, err := strconv.ParseBool(enableFile); err == nil {
			cfg.Logging.EnableFile = b
		}
	}
	if filePath := os.Getenv("LOG_FILE_PATH"); filePath != "" {
		cfg.Logging.FilePath = filePath
	}

	// ---------------------------------------------------------------------------
	// METRICS - Prometheus metrics configuration
	// ---------------------------------------------------------------------------
	if namespace := os.Getenv("METRICS_NAMESPACE"); namespace != "" {
		cfg.Metrics.Namespace = namespace
	}
	if subsystem := os.Getenv("METRICS_SUBSYSTEM"); subsystem != "" {
		cfg.Metrics.Subsystem = subsystem
	}
}

// ParseTarget parses "host", "host:port" or "[v6]:port". The port
// defaults to 123.
func ParseTarget(s string) (TargetConfig, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TargetConfig{}, fmt.Errorf("empty target")
	}

	host, portText, err := net.SplitHostPort(s)
	if err != nil {
		// No port given; a bare IPv6 address may still be bracketed
		return TargetConfig{Host: strings.Trim(s, "[]"), Port: DefaultPort}, nil
	}

	port, err := strconv.Atoi(portText)
	if err != nil || port < 1 || port > 65535 {
		return TargetConfig{}, fmt.Errorf("invalid port %q", portText)
	}

	return TargetConfig{Host: host, Port: port}, nil
}

// parseCommaSeparated splits a comma-separated string, dropping empty items
func parseCommaSeparated(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
