// Package collector turns control query results into Prometheus metrics.
//
// The package includes two collectors:
//   - DaemonCollector: queries every configured daemon for its offset and
//     reference time and exports them along with query health
//   - HybridCollector: cross-checks the daemon offsets against the kernel
//     PLL and measures the local clock against each daemon with an ordinary
//     client exchange
//
// All collectors implement the Collector interface and are run in order by
// a Registry, so the hybrid collector sees the results of the same cycle.
//
// Usage:
//
//	cfg, _ := config.LoadFromYamlFile("config.yaml")
//	querier, breaker := collector.NewQuerier(cfg)
//	daemon := collector.NewDaemonCollector(cfg, m, querier, breaker)
//	registry := collector.NewRegistry()
//	registry.Register(daemon)
//	registry.Register(collector.NewHybridCollector(cfg, m, daemon))
//	err := registry.CollectAll(ctx)
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maximewewer/ntpq-exporter/internal/config"
	"github.com/maximewewer/ntpq-exporter/internal/control"
	"github.com/maximewewer/ntpq-exporter/internal/ntp"
	"github.com/maximewewer/ntpq-exporter/pkg/logger"
	"github.com/maximewewer/ntpq-exporter/pkg/mathutil"
	"github.com/maximewewer/ntpq-exporter/pkg/metrics"
)

// Error kinds used as the kind label of query_errors_total
const (
	KindTransport = "transport"
	KindDaemon    = "daemon"
	KindParse     = "parse"
	KindMalformed = "malformed"
	KindOther     = "other"
)

// ResultSource exposes the latest successful result per target label
type ResultSource interface {
	Latest(label string) (*ntp.Result, bool)
}

// DaemonCollector exports the offset and reference time every configured
// daemon reports about itself
type DaemonCollector struct {
	*CommonCollector
	pool      *ntp.WorkerPool
	breaker   *ntp.CircuitBreakerClient
	validator *ntp.Validator
	now       func() time.Time

	mu     sync.RWMutex
	latest map[string]*ntp.Result
}

// NewDaemonCollector creates a collector querying through querier. breaker
// may be nil; when set, its per-target state is exported.
func NewDaemonCollector(cfg *config.Config, m *metrics.DaemonMetrics, querier ntp.Querier, breaker *ntp.CircuitBreakerClient) *DaemonCollector {
	return &DaemonCollector{
		CommonCollector: NewCommonCollector(cfg, m, "daemon"),
		pool:            ntp.NewWorkerPool(cfg.Query.Workers, querier),
		breaker:         breaker,
		validator:       ntp.NewValidator(cfg.Query.MaxOffset, cfg.Query.MaxReferenceAge),
		now:             time.Now,
		latest:          make(map[string]*ntp.Result),
	}
}

// Collect queries every target once. It fails only when no target answered.
func (c *DaemonCollector) Collect(ctx context.Context) error {
	start := time.Now()
	defer func() {
		c.GetMetrics().CollectorDurationSeconds.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())
	}()

	m := c.GetMetrics()
	targets := c.Targets()
	labels := c.Labels()
	m.ExporterTargetsConfigured.Set(float64(len(targets)))

	logger.Debugf("collector", "Starting daemon collection with %d targets", len(targets))

	results, err := c.pool.QueryAll(ctx, targets)
	if err != nil {
		m.ExporterScrapesTotal.WithLabelValues("failure").Inc()
		return err
	}

	successCount := 0
	var firstErr error
	for i, jr := range results {
		label := labels[i]

		if jr.Error != nil {
			c.recordFailure(label, jr)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", label, jr.Error)
			}
		} else {
			c.recordSuccess(label, jr)
			successCount++
		}

		if c.breaker != nil {
			state := c.breaker.GetState(jr.Target.Host, jr.Target.Port)
			m.CircuitBreakerState.WithLabelValues(label).Set(breakerStateValue(state))
		}
	}

	duration := time.Since(start)
	m.ExporterScrapeDuration.Observe(duration.Seconds())

	logger.SafeInfo("collector", "Daemon collection completed", map[string]interface{}{
		"success":  successCount,
		"failed":   len(results) - successCount,
		"duration": duration.Seconds(),
	})

	if successCount == 0 {
		m.ExporterScrapesTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("all %d targets failed, first error: %w", len(results), firstErr)
	}

	m.ExporterScrapesTotal.WithLabelValues("success").Inc()
	return nil
}

// Latest returns the result of the last successful query of label. Failed
// queries clear it.
func (c *DaemonCollector) Latest(label string) (*ntp.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.latest[label]
	return r, ok
}

func (c *DaemonCollector) recordSuccess(label string, jr ntp.JobResult) {
	m := c.GetMetrics()
	r := jr.Result
	now := c.now()

	m.Up.WithLabelValues(label).Set(1)
	m.QueryDurationSeconds.WithLabelValues(label, "success").Observe(jr.Duration.Seconds())

	m.OffsetSeconds.WithLabelValues(label).Set(mathutil.MillisToSeconds(r.OffsetMillis))
	m.ReferenceTimestamp.WithLabelValues(label).Set(mathutil.MillisToSeconds(r.RefTimeMillis))
	m.ReferenceAge.WithLabelValues(label).Set(ntp.ReferenceAge(r, now).Seconds())
	m.LeapIndicator.WithLabelValues(label).Set(float64(r.Status.Leap()))
	m.ClockSource.WithLabelValues(label).Set(float64(r.Status.ClockSource()))
	m.Synchronized.WithLabelValues(label).Set(boolValue(r.Status.Synchronized()))

	exceeded := mathutil.AbsDuration(r.Offset()) > c.GetConfig().Query.MaxOffset
	m.OffsetExceeded.WithLabelValues(label).Set(boolValue(exceeded))

	validation := c.validator.Validate(r, now)
	m.ResultValid.WithLabelValues(label).Set(boolValue(validation.Valid))
	if !validation.Valid || len(validation.Warnings) > 0 {
		logger.SafeWarn("collector", "Daemon state failed sanity checks", map[string]interface{}{
			"target":   label,
			"errors":   validation.Errors,
			"warnings": validation.Warnings,
		})
	}

	c.mu.Lock()
	c.latest[label] = r
	c.mu.Unlock()

	logger.SafeDebug("collector", "Daemon metrics updated", map[string]interface{}{
		"target":        label,
		"offset_ms":     r.OffsetMillis,
		"reftime_ms":    r.RefTimeMillis,
		"clock_source":  r.Status.ClockSourceName(),
		"synchronized":  r.Status.Synchronized(),
		"query_seconds": jr.Duration.Seconds(),
	})
}

// recordFailure marks the target down and drops the series derived from the
// last reply so no stale offset is exported
func (c *DaemonCollector) recordFailure(label string, jr ntp.JobResult) {
	m := c.GetMetrics()
	kind := ErrorKind(jr.Error)

	m.Up.WithLabelValues(label).Set(0)
	m.QueryDurationSeconds.WithLabelValues(label, "failure").Observe(jr.Duration.Seconds())
	m.QueryErrorsTotal.WithLabelValues(label, kind).Inc()

	m.OffsetSeconds.DeleteLabelValues(label)
	m.OffsetExceeded.DeleteLabelValues(label)
	m.ReferenceTimestamp.DeleteLabelValues(label)
	m.ReferenceAge.DeleteLabelValues(label)
	m.LeapIndicator.DeleteLabelValues(label)
	m.ClockSource.DeleteLabelValues(label)
	m.Synchronized.DeleteLabelValues(label)
	m.ResultValid.DeleteLabelValues(label)

	c.mu.Lock()
	delete(c.latest, label)
	c.mu.Unlock()

	logger.SafeWarn("collector", "Control query failed", map[string]interface{}{
		"target": label,
		"kind":   kind,
		"error":  jr.Error.Error(),
	})
}

// ErrorKind classifies a query error into one of the Kind* labels
func ErrorKind(err error) string {
	var (
		transportErr *ntp.TransportError
		daemonErr    *control.DaemonError
		parseErr     *control.ParseError
		malformedErr *control.MalformedResponseError
	)

	switch {
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &daemonErr):
		return KindDaemon
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &malformedErr):
		return KindMalformed
	default:
		return KindOther
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
