// Command ntpq-offset asks one NTP daemon for its own offset and reference
// time and prints them in milliseconds.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maximewewer/ntpq-exporter/internal/config"
	"github.com/maximewewer/ntpq-exporter/internal/ntp"
	"github.com/maximewewer/ntpq-exporter/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the resolved query parameters
type options struct {
	host    string
	port    int
	timeout time.Duration
	level   string
}

// run executes one query and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ntpq-offset: %v\n", err)
		return 1
	}

	if err := logger.InitLogger(logger.Config{
		Level:     opts.level,
		Format:    "json",
		Component: "ntpq-offset",
		Writer:    stderr,
	}); err != nil {
		fmt.Fprintf(stderr, "ntpq-offset: failed to initialize logger: %v\n", err)
		return 1
	}

	client := ntp.NewClient(ntp.WithTimeout(opts.timeout))

	result, err := client.Query(ctx, opts.host, opts.port)
	if err != nil {
		fmt.Fprintf(stderr, "ntpq-offset: %v\n", err)
		return 1
	}

	logger.SafeDebug("main", "Daemon state", map[string]interface{}{
		"target":       result.Target,
		"clock_source": result.Status.ClockSourceName(),
		"synchronized": result.Status.Synchronized(),
		"duration":     result.Duration.Seconds(),
	})

	fmt.Fprintf(stdout, "offset=%d, reftime=%d\n", result.OffsetMillis, result.RefTimeMillis)
	return 0
}

// parseOptions resolves flags over the optional config file. The first
// configured target is used unless -host or -port is given.
func parseOptions(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("ntpq-offset", flag.ContinueOnError)
	fs.SetOutput(stderr)

	host := fs.String("host", "localhost", "Daemon host")
	port := fs.Int("port", config.DefaultPort, "Daemon control port")
	timeout := fs.Duration("timeout", 0, "Query timeout (0 waits indefinitely)")
	configFile := fs.String("config", "", "Path to configuration file")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	opts := options{host: *host, port: *port, timeout: *timeout, level: "warn"}

	if *configFile != "" {
		cfg, err := config.LoadFromYamlFile(*configFile)
		if err != nil {
			return options{}, err
		}

		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

		target := cfg.Query.Targets[0]
		if !set["host"] {
			opts.host = target.Host
		}
		if !set["port"] {
			opts.port = target.Port
		}
		if !set["timeout"] {
			opts.timeout = cfg.Query.Timeout
		}
		opts.level = cfg.Logging.Level
	}

	if opts.port < 1 || opts.port > 65535 {
		return options{}, fmt.Errorf("invalid port %d", opts.port)
	}
	if opts.timeout < 0 {
		return options{}, fmt.Errorf("timeout cannot be negative")
	}

	return opts, nil
}
