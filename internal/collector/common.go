package collector

import (
	"github.com/maximewewer/ntpq-exporter/internal/config"
	"github.com/maximewewer/ntpq-exporter/internal/ntp"
	"github.com/maximewewer/ntpq-exporter/pkg/metrics"
	"github.com/sony/gobreaker"
)

// CommonCollector provides shared functionality for all collectors
type CommonCollector struct {
	config  *config.Config
	metrics *metrics.DaemonMetrics
	enabled bool
	name    string
}

// NewCommonCollector creates a new common collector base
func NewCommonCollector(cfg *config.Config, m *metrics.DaemonMetrics, name string) *CommonCollector {
	return &CommonCollector{
		config:  cfg,
		metrics: m,
		enabled: true,
		name:    name,
	}
}

// Name returns the collector name
func (c *CommonCollector) Name() string {
	return c.name
}

// Enabled returns whether the collector is enabled
func (c *CommonCollector) Enabled() bool {
	return c.enabled
}

// GetConfig returns the configuration
func (c *CommonCollector) GetConfig() *config.Config {
	return c.config
}

// GetMetrics returns the metrics registry
func (c *CommonCollector) GetMetrics() *metrics.DaemonMetrics {
	return c.metrics
}

// Targets returns the configured daemons in configuration order
func (c *CommonCollector) Targets() []ntp.Target {
	targets := make([]ntp.Target, len(c.config.Query.Targets))
	for i, t := range c.config.Query.Targets {
		targets[i] = ntp.Target{Host: t.Host, Port: t.Port}
	}
	return targets
}

// Labels returns the metric label of each configured daemon, index-aligned with Targets
func (c *CommonCollector) Labels() []string {
	labels := make([]string, len(c.config.Query.Targets))
	for i, t := range c.config.Query.Targets {
		labels[i] = t.Label()
	}
	return labels
}

// NewQuerier builds the query stack described by cfg: a control query client,
// optionally rate limited, optionally wrapped in per-target circuit breakers.
// The breaker client is nil when circuit breaking is disabled.
func NewQuerier(cfg *config.Config) (ntp.Querier, *ntp.CircuitBreakerClient) {
	opts := []ntp.Option{ntp.WithTimeout(cfg.Query.Timeout)}

	if cfg.Query.RateLimit.Enabled {
		opts = append(opts, ntp.WithRateLimiter(ntp.NewRateLimiter(
			cfg.Query.RateLimit.GlobalRate,
			cfg.Query.RateLimit.PerTargetRate,
			cfg.Query.RateLimit.BurstSize,
		)))
	}

	client := ntp.NewClient(opts...)

	if !cfg.Query.CircuitBreaker.Enabled {
		return client, nil
	}

	cbConfig := ntp.NewCircuitBreakerConfigWithThreshold(
		cfg.Query.CircuitBreaker.MaxRequests,
		cfg.Query.CircuitBreaker.Interval,
		cfg.Query.CircuitBreaker.Timeout,
		cfg.Query.CircuitBreaker.FailureThreshold,
	)
	breaker := ntp.NewCircuitBreakerClient(client, cbConfig)
	return breaker, breaker
}

// breakerStateValue maps a breaker state to the circuit_breaker_state gauge value
func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
