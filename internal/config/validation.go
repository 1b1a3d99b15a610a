package config

import (
	"errors"
	"strconv"
	"time"

	"github.com/maximewewer/ntpq-exporter/internal/ntp"
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}

	if err := validateQuery(&cfg.Query); err != nil {
		return err
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	if err := validateMetrics(&cfg.Metrics); err != nil {
		return err
	}

	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.New("port must be between 1 and 65535, got " + strconv.Itoa(cfg.Port))
	}

	if cfg.ReadTimeout < 1*time.Second || cfg.ReadTimeout > 60*time.Second {
		return errors.New("read_timeout must be between 1s and 60s")
	}

	if cfg.WriteTimeout < 1*time.Second || cfg.WriteTimeout > 60*time.Second {
		return errors.New("write_timeout must be between 1s and 60s")
	}

	return nil
}

func validateQuery(cfg *QueryConfig) error {
	if len(cfg.Targets) == 0 {
		return errors.New("at least one target must be configured")
	}

	for i, target := range cfg.Targets {
		if err := ntp.ValidateTargetAddress(target.Host); err != nil {
			return errors.New("targets[" + strconv.Itoa(i) + "]: " + err.Error())
		}
		if target.Port < 1 || target.Port > 65535 {
			return errors.New("targets[" + strconv.Itoa(i) + "]: port must be between 1 and 65535, got " + strconv.Itoa(target.Port))
		}
	}

	// Zero means no timeout
	if cfg.Timeout < 0 || (cfg.Timeout > 0 && cfg.Timeout < 100*time.Millisecond) || cfg.Timeout > 60*time.Second {
		return errors.New("timeout must be 0 (none) or between 100ms and 60s")
	}

	if cfg.Interval < 1*time.Second || cfg.Interval > 1*time.Hour {
		return errors.New("interval must be between 1s and 1h")
	}

	if cfg.Workers < 1 || cfg.Workers > 64 {
		return errors.New("workers must be between 1 and 64")
	}

	if cfg.MaxReferenceAge < 0 || cfg.MaxOffset < 0 {
		return errors.New("max_reference_age and max_offset must not be negative")
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.GlobalRate < 1 {
			return errors.New("rate_limit.global_rate must be at least 1")
		}
		if cfg.RateLimit.PerTargetRate < 1 {
			return errors.New("rate_limit.per_target_rate must be at least 1")
		}
		if cfg.RateLimit.BurstSize < 1 {
			return errors.New("rate_limit.burst_size must be at least 1")
		}
	}

	if cfg.CircuitBreaker.Enabled {
		if cfg.CircuitBreaker.FailureThreshold <= 0 || cfg.CircuitBreaker.FailureThreshold > 1 {
			return errors.New("circuit_breaker.failure_threshold must be in (0, 1]")
		}
	}

	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLevels[cfg.Level] {
		return errors.New("invalid log level (must be trace, debug, info, warn, error, fatal, or panic)")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[cfg.Format] {
		return errors.New("invalid log format (must be json or console)")
	}

	if cfg.EnableFile && cfg.FilePath == "" {
		return errors.New("file_path is required when enable_file is true")
	}

	return nil
}

func validateMetrics(cfg *MetricsConfig) error {
	if cfg.Namespace == "" {
		return errors.New("namespace is required")
	}

	return nil
}
