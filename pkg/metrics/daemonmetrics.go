package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DaemonMetrics encapsulates all exporter metrics
type DaemonMetrics struct {
	// Daemon state reported over mode 6
	OffsetSeconds      *prometheus.GaugeVec
	OffsetExceeded     *prometheus.GaugeVec // 1 if |offset| exceeds the configured maximum
	ReferenceTimestamp *prometheus.GaugeVec
	ReferenceAge       *prometheus.GaugeVec
	LeapIndicator      *prometheus.GaugeVec
	ClockSource        *prometheus.GaugeVec
	Synchronized       *prometheus.GaugeVec
	Up                 *prometheus.GaugeVec
	ResultValid        *prometheus.GaugeVec

	// Query metrics
	QueryDurationSeconds *prometheus.HistogramVec
	QueryErrorsTotal     *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec

	// Exporter operational metrics
	ExporterBuildInfo         *prometheus.GaugeVec
	ExporterScrapeDuration    prometheus.Histogram
	ExporterScrapesTotal      *prometheus.CounterVec
	ExporterTargetsConfigured prometheus.Gauge
	CollectorDurationSeconds  *prometheus.HistogramVec
	HTTPRequestsTotal         *prometheus.CounterVec

	// Kernel PLL state (Linux only)
	KernelOffsetSeconds   *prometheus.GaugeVec
	KernelFrequencyPPM    *prometheus.GaugeVec
	KernelMaxErrorSeconds *prometheus.GaugeVec
	KernelEstErrorSeconds *prometheus.GaugeVec
	KernelSynchronized    *prometheus.GaugeVec
	KernelStatusCode      *prometheus.GaugeVec

	// Cross-checks against the daemon's own offset
	SNTPOffsetSeconds *prometheus.GaugeVec
	SNTPRTTSeconds    *prometheus.GaugeVec
	DivergenceSeconds *prometheus.GaugeVec
}

// NewDaemonMetricsWithConfig creates all exporter metrics with a custom namespace and subsystem
func NewDaemonMetricsWithConfig(namespace, subsystem string) *DaemonMetrics {
	gauge := func(sub, name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: sub,
				Name:      name,
				Help:      help,
			},
			labels,
		)
	}

	return &DaemonMetrics{
		OffsetSeconds: gauge(subsystem, "daemon_offset_seconds",
			"Offset the daemon reports for the local clock, in seconds (millisecond resolution)", "target"),
		OffsetExceeded: gauge(subsystem, "daemon_offset_exceeded",
			"1 if the absolute daemon offset exceeds the configured maximum, 0 otherwise", "target"),
		ReferenceTimestamp: gauge(subsystem, "daemon_reference_timestamp_seconds",
			"Time the daemon last updated its clock, as a Unix timestamp", "target"),
		ReferenceAge: gauge(subsystem, "daemon_reference_age_seconds",
			"Seconds since the daemon last updated its clock", "target"),
		LeapIndicator: gauge(subsystem, "daemon_leap_indicator",
			"Leap indicator from the system status word (0=none, 1=+1s, 2=-1s, 3=unsynchronized)", "target"),
		ClockSource: gauge(subsystem, "daemon_clock_source",
			"Clock source code from the system status word (6=ntp, 1=pps, ...)", "target"),
		Synchronized: gauge(subsystem, "daemon_synchronized",
			"1 if the daemon reports a synchronized clock, 0 otherwise", "target"),
		Up: gauge(subsystem, "daemon_up",
			"1 if the last control query succeeded, 0 otherwise", "target"),
		ResultValid: gauge(subsystem, "daemon_result_valid",
			"1 if the reported state passed sanity checks, 0 otherwise", "target"),

		QueryDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "query_duration_seconds",
				Help:      "Control query duration distribution in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"target", "status"},
		),
		QueryErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "query_errors_total",
				Help:      "Failed control queries by error kind (transport, daemon, parse, malformed, other)",
			},
			[]string{"target", "kind"},
		),
		CircuitBreakerState: gauge(subsystem, "circuit_breaker_state",
			"Circuit breaker state per target (0=closed, 1=half-open, 2=open)", "target"),

		ExporterBuildInfo: gauge("exporter", "build_info",
			"Build information for the exporter", "version", "commit", "go_version"),
		ExporterScrapeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "exporter",
				Name:      "scrape_duration_seconds",
				Help:      "Duration of a full collection cycle in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),
		ExporterScrapesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "exporter",
				Name:      "scrapes_total",
				Help:      "Total number of collection cycles",
			},
			[]string{"status"},
		),
		ExporterTargetsConfigured: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "exporter",
				Name:      "targets_configured",
				Help:      "Number of configured daemons",
			},
		),
		CollectorDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "exporter",
				Name:      "collector_duration_seconds",
				Help:      "Collector execution duration in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
			[]string{"collector"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "exporter",
				Name:      "http_requests_total",
				Help:      "HTTP requests served by the exporter",
			},
			[]string{"path", "code"},
		),

		KernelOffsetSeconds: gauge(subsystem, "kernel_offset_seconds",
			"Kernel PLL time offset in seconds", "node"),
		KernelFrequencyPPM: gauge(subsystem, "kernel_frequency_ppm",
			"Kernel clock frequency offset in PPM", "node"),
		KernelMaxErrorSeconds: gauge(subsystem, "kernel_max_error_seconds",
			"Kernel maximum error estimate in seconds", "node"),
		KernelEstErrorSeconds: gauge(subsystem, "kernel_est_error_seconds",
			"Kernel estimated error in seconds", "node"),
		KernelSynchronized: gauge(subsystem, "kernel_synchronized",
			"1 if the kernel clock is synchronized, 0 otherwise", "node"),
		KernelStatusCode: gauge(subsystem, "kernel_status_code",
			"Kernel NTP status word", "node"),

		SNTPOffsetSeconds: gauge(subsystem, "sntp_offset_seconds",
			"Local clock offset against the daemon measured with a mode 3 exchange (not comparable to daemon_offset_seconds, which is the daemon against its upstream)", "target"),
		SNTPRTTSeconds: gauge(subsystem, "sntp_rtt_seconds",
			"Round-trip time of the mode 3 exchange", "target"),
		DivergenceSeconds: gauge(subsystem, "daemon_divergence_seconds",
			"Absolute difference between the daemon offset and the kernel PLL offset", "target", "source"),
	}
}

// NewDaemonMetrics creates all exporter metrics with the default namespace
func NewDaemonMetrics() *DaemonMetrics {
	return NewDaemonMetricsWithConfig("ntpq", "")
}

func (m *DaemonMetrics) getAllMetrics() []prometheus.Collector {
	return []prometheus.Collector{
		m.OffsetSeconds,
		m.OffsetExceeded,
		m.ReferenceTimestamp,
		m.ReferenceAge,
		m.LeapIndicator,
		m.ClockSource,
		m.Synchronized,
		m.Up,
		m.ResultValid,

		m.QueryDurationSeconds,
		m.QueryErrorsTotal,
		m.CircuitBreakerState,

		m.ExporterBuildInfo,
		m.ExporterScrapeDuration,
		m.ExporterScrapesTotal,
		m.ExporterTargetsConfigured,
		m.CollectorDurationSeconds,
		m.HTTPRequestsTotal,

		m.KernelOffsetSeconds,
		m.KernelFrequencyPPM,
		m.KernelMaxErrorSeconds,
		m.KernelEstErrorSeconds,
		m.KernelSynchronized,
		m.KernelStatusCode,

		m.SNTPOffsetSeconds,
		m.SNTPRTTSeconds,
		m.DivergenceSeconds,
	}
}

// Describe implements prometheus.Collector interface
func (m *DaemonMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, metric := range m.getAllMetrics() {
		metric.Describe(ch)
	}
}

// Collect implements prometheus.Collector interface
func (m *DaemonMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, metric := range m.getAllMetrics() {
		metric.Collect(ch)
	}
}
