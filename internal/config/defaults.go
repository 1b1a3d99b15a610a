package config

import "time"

// ApplyDefaults sets default values for unspecified configuration fields
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9560
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	// Default CORS origins (empty = no CORS)
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{}
	}

	// Query defaults
	if len(cfg.Query.Targets) == 0 {
		cfg.Query.Targets = []TargetConfig{{Host: "localhost", Port: DefaultPort}}
	}
	for i := range cfg.Query.Targets {
		if cfg.Query.Targets[i].Host == "" {
			cfg.Query.Targets[i].Host = "localhost"
		}
		if cfg.Query.Targets[i].Port == 0 {
			cfg.Query.Targets[i].Port = DefaultPort
		}
	}
	// Timeout stays zero: the exchange waits for the daemon unless configured
	if cfg.Query.Interval == 0 {
		cfg.Query.Interval = 30 * time.Second
	}
	if cfg.Query.MaxReferenceAge == 0 {
		cfg.Query.MaxReferenceAge = 1 * time.Hour
	}
	if cfg.Query.MaxOffset == 0 {
		cfg.Query.MaxOffset = 100 * time.Millisecond
	}
	if cfg.Query.Workers == 0 {
		cfg.Query.Workers = 4
	}

	// Rate limiting defaults (disabled by default)
	if cfg.Query.RateLimit.GlobalRate == 0 {
		cfg.Query.RateLimit.GlobalRate = 100
	}
	if cfg.Query.RateLimit.PerTargetRate == 0 {
		cfg.Query.RateLimit.PerTargetRate = 10
	}
	if cfg.Query.RateLimit.BurstSize == 0 {
		cfg.Query.RateLimit.BurstSize = 5
	}

	// Circuit breaker defaults (disabled by default)
	if cfg.Query.CircuitBreaker.MaxRequests == 0 {
		cfg.Query.CircuitBreaker.MaxRequests = 3
	}
	if cfg.Query.CircuitBreaker.Interval == 0 {
		cfg.Query.CircuitBreaker.Interval = 60 * time.Second
	}
	if cfg.Query.CircuitBreaker.Timeout == 0 {
		cfg.Query.CircuitBreaker.Timeout = 30 * time.Second
	}
	if cfg.Query.CircuitBreaker.FailureThreshold == 0 {
		cfg.Query.CircuitBreaker.FailureThreshold = 0.6 // 60%
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Metrics defaults
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "ntpq"
	}
}

// DefaultConfig returns a configuration with all defaults applied
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
