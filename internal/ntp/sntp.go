package ntp

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/ntp"
	"github.com/maximewewer/ntpq-exporter/pkg/logger"
)

// SNTPMeasurement is the local clock measured against a daemon with an
// ordinary client exchange
type SNTPMeasurement struct {
	Target      string
	ClockOffset time.Duration
	RTT         time.Duration
	Stratum     uint8
	Leap        uint8
}

// SNTPChecker cross-checks a daemon's self-reported offset by querying it
// as a regular NTP server
type SNTPChecker struct {
	timeout time.Duration
	version int
}

// NewSNTPChecker creates a checker. A zero timeout uses DefaultSNTPTimeout.
func NewSNTPChecker(timeout time.Duration) *SNTPChecker {
	if timeout <= 0 {
		timeout = DefaultSNTPTimeout
	}
	return &SNTPChecker{timeout: timeout, version: 4}
}

// Measure performs one mode 3 exchange with host:port
func (s *SNTPChecker) Measure(ctx context.Context, host string, port int) (*SNTPMeasurement, error) {
	target := targetKey(host, port)

	opts := ntp.QueryOptions{
		Timeout: s.timeout,
		Version: s.version,
	}

	type queryResult struct {
		response *ntp.Response
		err      error
	}

	// Buffered so the goroutine never blocks after a cancelled wait
	resultChan := make(chan queryResult, 1)

	go func() {
		resp, err := ntp.QueryWithOptions(target, opts)
		resultChan <- queryResult{response: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sntp query cancelled: %w", ctx.Err())
	case result := <-resultChan:
		if result.err != nil {
			return nil, &TransportError{Op: "sntp", Addr: target, Err: result.err}
		}

		if err := result.response.Validate(); err != nil {
			logger.SafeWarn("ntp", "SNTP response validation failed", map[string]interface{}{
				"target": target,
				"error":  err.Error(),
			})
			return nil, fmt.Errorf("sntp response from %s invalid: %w", target, err)
		}

		return &SNTPMeasurement{
			Target:      target,
			ClockOffset: result.response.ClockOffset,
			RTT:         result.response.RTT,
			Stratum:     result.response.Stratum,
			Leap:        uint8(result.response.Leap),
		}, nil
	}
}
