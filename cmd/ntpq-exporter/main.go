package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/maximewewer/ntpq-exporter/internal/collector"
	"github.com/maximewewer/ntpq-exporter/internal/config"
	"github.com/maximewewer/ntpq-exporter/internal/server"
	"github.com/maximewewer/ntpq-exporter/pkg/logger"
	"github.com/maximewewer/ntpq-exporter/pkg/metrics"
)

var (
	// Build information
	version = "dev"
	commit  = ""
)

func main() {
	// Parse command-line flags
	configFile := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Println("ntpq-exporter version", version)
		os.Exit(0)
	}

	// Load configuration (before logger is initialized)
	cfg, err := loadConfig(*configFile)
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitLogger(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		Component:  "ntpq-exporter",
		EnableFile: cfg.Logging.EnableFile,
	}); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Startup("ntpq-exporter", version, map[string]interface{}{
		"go_version": runtime.Version(),
		"config":     cfg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("main", "Exporter stopped with error", err)
		os.Exit(1)
	}

	logger.Shutdown("ntpq-exporter", "graceful")
}

// loadConfig loads configuration based on whether a config file is specified
func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		// Priority: Environment Variables > YAML File > Defaults
		return config.LoadFromYamlWithEnvOverrides(configFile)
	}
	// Priority: Environment Variables > Defaults
	return config.LoadFromEnvVarsOnly()
}

// run serves metrics and collects until ctx is cancelled or the server fails
func run(ctx context.Context, cfg *config.Config) error {
	registry := metrics.NewRegistryWithConfig(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	if err := registry.Register(); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	m := registry.GetMetrics()
	m.ExporterBuildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)

	collectors := buildCollectors(cfg, m)
	status := &collectionStatus{}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := server.New(cfg, registry.GetRegistry(), m, status)
	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Start(ctx)
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		runCollectionLoop(ctx, cfg.Query.Interval, collectors, status)
	}()

	var err error
	select {
	case <-ctx.Done():
		logger.Info("main", "Received shutdown signal")
		err = <-serverErrChan
	case err = <-serverErrChan:
		cancel()
	}

	<-loopDone
	return err
}

// buildCollectors registers the daemon collector and, when kernel or SNTP
// cross-checks are enabled, the hybrid collector reading its results
func buildCollectors(cfg *config.Config, m *metrics.DaemonMetrics) *collector.Registry {
	querier, breaker := collector.NewQuerier(cfg)
	daemon := collector.NewDaemonCollector(cfg, m, querier, breaker)
	hybrid := collector.NewHybridCollector(cfg, m, daemon)

	registry := collector.NewRegistry()
	registry.Register(daemon)
	registry.Register(hybrid)

	logger.SafeInfo("main", "Registered collectors", map[string]interface{}{
		"total":           registry.Count(),
		"enabled":         registry.EnabledCount(),
		"targets":         len(cfg.Query.Targets),
		"kernel_enabled":  cfg.Query.EnableKernel,
		"sntp_enabled":    cfg.Query.EnableSNTP,
		"circuit_breaker": breaker != nil,
	})

	return registry
}

// runCollectionLoop collects immediately and then on every tick. Each cycle
// is bounded by the interval so a silent daemon cannot stall the loop.
func runCollectionLoop(ctx context.Context, interval time.Duration, collectors *collector.Registry, status *collectionStatus) {
	collectOnce := func() {
		cycleCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		err := collectors.CollectAll(cycleCtx)
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		status.record(time.Now(), err)
	}

	collectOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.SafeInfo("main", "Collection loop started", map[string]interface{}{
		"interval": interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			logger.Info("main", "Collection loop stopped")
			return
		case <-ticker.C:
			collectOnce()
		}
	}
}

// collectionStatus remembers the outcome of the last collection cycle
type collectionStatus struct {
	mu   sync.RWMutex
	last time.Time
	err  error
}

func (s *collectionStatus) record(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = at
	s.err = err
}

// LastCollection implements server.HealthReporter
func (s *collectionStatus) LastCollection() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.last, s.err
}
