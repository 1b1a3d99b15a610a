package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry manages Prometheus metric registration
type Registry struct {
	registry *prometheus.Registry
	metrics  *DaemonMetrics
}

// NewRegistry creates a new metrics registry with the default namespace "ntpq"
func NewRegistry() *Registry {
	return NewRegistryWithConfig("ntpq", "")
}

// NewRegistryWithConfig creates a new metrics registry with custom namespace and subsystem
func NewRegistryWithConfig(namespace, subsystem string) *Registry {
	return &Registry{
		registry: prometheus.NewRegistry(),
		metrics:  NewDaemonMetricsWithConfig(namespace, subsystem),
	}
}

// Register registers the exporter metrics and the Go runtime collectors
func (r *Registry) Register() error {
	if err := r.registry.Register(r.metrics); err != nil {
		return err
	}

	if err := r.registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	return r.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// GetRegistry returns the underlying Prometheus registry
func (r *Registry) GetRegistry() *prometheus.Registry {
	return r.registry
}

// GetMetrics returns the exporter metrics
func (r *Registry) GetMetrics() *DaemonMetrics {
	return r.metrics
}

// MustRegister registers all metrics and panics on error
func (r *Registry) MustRegister() {
	if err := r.Register(); err != nil {
		panic(err)
	}
}
