package collector

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/maximewewer/ntpq-exporter/internal/config"
	"github.com/maximewewer/ntpq-exporter/internal/ntp"
	"github.com/maximewewer/ntpq-exporter/pkg/logger"
	"github.com/maximewewer/ntpq-exporter/pkg/metrics"
)

// SourceKernel is the source label of daemon_divergence_seconds. Only the
// kernel PLL offset measures the same quantity as the daemon offset (local
// clock against upstream), so it is the only divergence source.
const SourceKernel = "kernel"

// divergenceWarnThreshold is the divergence above which a warning is logged
const divergenceWarnThreshold = 10 * time.Millisecond

// KernelStateReader reads the kernel PLL state
type KernelStateReader interface {
	Read() (*ntp.KernelTimex, error)
}

// OffsetMeasurer measures the local clock against a daemon
type OffsetMeasurer interface {
	Measure(ctx context.Context, host string, port int) (*ntp.SNTPMeasurement, error)
}

// HybridCollector compares each daemon's self-reported offset with the
// kernel PLL offset, and measures the local clock against each daemon with
// a mode 3 exchange. The mode 3 offset is local clock against the daemon,
// not the daemon against its upstream, so it is exported without a
// divergence.
type HybridCollector struct {
	*CommonCollector
	source       ResultSource
	kernelReader KernelStateReader
	sntp         OffsetMeasurer
	nodeName     string
}

// NewHybridCollector creates a cross-check collector reading daemon offsets
// from source. It is enabled only when kernel or SNTP checks are.
func NewHybridCollector(cfg *config.Config, m *metrics.DaemonMetrics, source ResultSource) *HybridCollector {
	// Node name from the environment (set by DaemonSet)
	nodeName := os.Getenv("NODE_NAME")
	if nodeName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			nodeName = "unknown"
		} else {
			nodeName = hostname
		}
	}

	c := &HybridCollector{
		CommonCollector: NewCommonCollector(cfg, m, "hybrid"),
		source:          source,
		nodeName:        nodeName,
	}
	if cfg.Query.EnableKernel {
		c.kernelReader = ntp.NewKernelReader(true)
	}
	if cfg.Query.EnableSNTP {
		c.sntp = ntp.NewSNTPChecker(cfg.Query.Timeout)
	}
	c.enabled = c.kernelReader != nil || c.sntp != nil

	return c
}

// Collect updates kernel metrics and the divergence of every target the
// daemon collector reached in this cycle
func (c *HybridCollector) Collect(ctx context.Context) error {
	start := time.Now()
	defer func() {
		c.GetMetrics().CollectorDurationSeconds.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())
	}()

	var kernelState *ntp.KernelTimex
	if c.kernelReader != nil {
		state, err := c.kernelReader.Read()
		if err != nil {
			// Kernel metrics are skipped, SNTP checks still run
			logger.SafeWarn("collector", "Failed to read kernel timex state", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			kernelState = state
			c.updateKernelMetrics(kernelState)
		}
	}

	targets := c.Targets()
	for i, label := range c.Labels() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, ok := c.source.Latest(label)
		if !ok {
			c.clearDivergence(label)
			continue
		}

		if kernelState != nil {
			c.recordDivergence(label, SourceKernel, result.Offset(), kernelState.Offset)
		}

		if c.sntp != nil {
			c.crossCheckSNTP(ctx, label, targets[i], result)
		}
	}

	return nil
}

// updateKernelMetrics updates kernel-specific metrics
func (c *HybridCollector) updateKernelMetrics(state *ntp.KernelTimex) {
	m := c.GetMetrics()

	m.KernelOffsetSeconds.WithLabelValues(c.nodeName).Set(state.GetOffsetSeconds())
	m.KernelFrequencyPPM.WithLabelValues(c.nodeName).Set(state.GetFrequencyPPM())
	m.KernelMaxErrorSeconds.WithLabelValues(c.nodeName).Set(state.GetMaxErrorSeconds())
	m.KernelEstErrorSeconds.WithLabelValues(c.nodeName).Set(state.GetEstErrorSeconds())
	m.KernelStatusCode.WithLabelValues(c.nodeName).Set(float64(state.Status))
	m.KernelSynchronized.WithLabelValues(c.nodeName).Set(boolValue(state.IsSynchronized()))

	logger.SafeDebug("collector", "Kernel metrics updated", map[string]interface{}{
		"node":         c.nodeName,
		"offset_us":    state.Offset.Microseconds(),
		"freq_ppm":     state.GetFrequencyPPM(),
		"synchronized": state.IsSynchronized(),
		"status":       state.SyncStatus,
	})
}

func (c *HybridCollector) crossCheckSNTP(ctx context.Context, label string, target ntp.Target, result *ntp.Result) {
	m := c.GetMetrics()

	measurement, err := c.sntp.Measure(ctx, target.Host, target.Port)
	if err != nil {
		logger.SafeDebug("collector", "SNTP cross-check failed", map[string]interface{}{
			"target": label,
			"error":  err.Error(),
		})
		m.SNTPOffsetSeconds.DeleteLabelValues(label)
		m.SNTPRTTSeconds.DeleteLabelValues(label)
		return
	}

	m.SNTPOffsetSeconds.WithLabelValues(label).Set(measurement.ClockOffset.Seconds())
	m.SNTPRTTSeconds.WithLabelValues(label).Set(measurement.RTT.Seconds())

	logger.SafeDebug("collector", "SNTP cross-check completed", map[string]interface{}{
		"target":        label,
		"daemon_offset": result.Offset().Seconds(),
		"local_offset":  measurement.ClockOffset.Seconds(),
		"rtt":           measurement.RTT.Seconds(),
	})
}

func (c *HybridCollector) recordDivergence(label, source string, daemonOffset, other time.Duration) {
	divergence := math.Abs((daemonOffset - other).Seconds())
	c.GetMetrics().DivergenceSeconds.WithLabelValues(label, source).Set(divergence)

	if divergence > divergenceWarnThreshold.Seconds() {
		logger.SafeWarn("collector", "Significant offset divergence detected", map[string]interface{}{
			"node":          c.nodeName,
			"target":        label,
			"source":        source,
			"divergence":    divergence,
			"daemon_offset": daemonOffset.Seconds(),
			"other_offset":  other.Seconds(),
		})
	}
}

func (c *HybridCollector) clearDivergence(label string) {
	m := c.GetMetrics()
	m.DivergenceSeconds.DeleteLabelValues(label, SourceKernel)
	m.SNTPOffsetSeconds.DeleteLabelValues(label)
	m.SNTPRTTSeconds.DeleteLabelValues(label)
}
