package ntp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/maximewewer/ntpq-exporter/pkg/logger"
	"github.com/sony/gobreaker"
)

// CircuitBreakerClient wraps a Querier with one circuit breaker per target.
type CircuitBreakerClient struct {
	querier  Querier
	breakers map[string]*gobreaker.CircuitBreaker
	mu       sync.RWMutex
	config   CircuitBreakerConfig
}

// CircuitBreakerConfig holds configuration for circuit breakers.
type CircuitBreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed to pass through
	// when the CircuitBreaker is half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state
	// for the CircuitBreaker to clear the internal Counts.
	Interval time.Duration

	// Timeout is the period of the open state,
	// after which the state becomes half-open.
	Timeout time.Duration

	// ReadyToTrip is called with a copy of Counts whenever a request fails in the closed state.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is called after a breaker changes state. Optional.
	OnStateChange func(target string, from, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the default settings: trip once at
// least three queries were seen and 60% of them failed.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return NewCircuitBreakerConfigWithThreshold(3, 60*time.Second, 30*time.Second, 0.6)
}

// NewCircuitBreakerConfigWithThreshold creates a circuit breaker config with custom failure threshold.
func NewCircuitBreakerConfigWithThreshold(maxRequests uint32, interval, timeout time.Duration, failureThreshold float64) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= failureThreshold
		},
	}
}

// NewCircuitBreakerClient creates a new circuit breaker protected querier.
func NewCircuitBreakerClient(querier Querier, config CircuitBreakerConfig) *CircuitBreakerClient {
	if config.MaxRequests == 0 {
		onChange := config.OnStateChange
		config = DefaultCircuitBreakerConfig()
		config.OnStateChange = onChange
	}

	return &CircuitBreakerClient{
		querier:  querier,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		config:   config,
	}
}

func (cb *CircuitBreakerClient) breakerFor(target string) *gobreaker.CircuitBreaker {
	cb.mu.RLock()
	breaker, exists := cb.breakers[target]
	cb.mu.RUnlock()

	if exists {
		return breaker
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists := cb.breakers[target]; exists {
		return breaker
	}

	breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        target,
		MaxRequests: cb.config.MaxRequests,
		Interval:    cb.config.Interval,
		Timeout:     cb.config.Timeout,
		ReadyToTrip: cb.config.ReadyToTrip,
		// A query abandoned by its caller says nothing about the daemon
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.SafeWarn("ntp", "Circuit breaker state changed", map[string]interface{}{
				"target": name,
				"from":   from.String(),
				"to":     to.String(),
			})
			if cb.config.OnStateChange != nil {
				cb.config.OnStateChange(name, from, to)
			}
		},
	})

	cb.breakers[target] = breaker
	return breaker
}

// Query performs a single control query with circuit breaker protection.
func (cb *CircuitBreakerClient) Query(ctx context.Context, host string, port int) (*Result, error) {
	target := targetKey(host, port)
	breaker := cb.breakerFor(target)

	result, err := breaker.Execute(func() (interface{}, error) {
		return cb.querier.Query(ctx, host, port)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("circuit breaker open for %s: %w", target, err)
		}
		return nil, err
	}

	return result.(*Result), nil
}

// GetState returns the current state of the circuit breaker for a target.
func (cb *CircuitBreakerClient) GetState(host string, port int) gobreaker.State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	breaker, exists := cb.breakers[targetKey(host, port)]
	if !exists {
		return gobreaker.StateClosed
	}

	return breaker.State()
}

// GetCounts returns the current counts for a target's circuit breaker.
func (cb *CircuitBreakerClient) GetCounts(host string, port int) gobreaker.Counts {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	breaker, exists := cb.breakers[targetKey(host, port)]
	if !exists {
		return gobreaker.Counts{}
	}

	return breaker.Counts()
}

// GetAllStates returns the states of all circuit breakers keyed by host:port.
func (cb *CircuitBreakerClient) GetAllStates() map[string]gobreaker.State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	states := make(map[string]gobreaker.State, len(cb.breakers))
	for target, breaker := range cb.breakers {
		states[target] = breaker.State()
	}

	return states
}

func targetKey(host string, port int) string {
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
