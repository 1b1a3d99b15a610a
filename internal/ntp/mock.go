package ntp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maximewewer/ntpq-exporter/internal/control"
)

// MockQuerier is a scripted Querier for tests
type MockQuerier struct {
	mu         sync.RWMutex
	results    map[string]*Result
	errors     map[string]error
	delays     map[string]time.Duration
	callCounts map[string]int
	flapping   map[string]bool
	flapCount  map[string]int
}

// NewMockQuerier creates a new mock querier
func NewMockQuerier() *MockQuerier {
	return &MockQuerier{
		results:    make(map[string]*Result),
		errors:     make(map[string]error),
		delays:     make(map[string]time.Duration),
		callCounts: make(map[string]int),
		flapping:   make(map[string]bool),
		flapCount:  make(map[string]int),
	}
}

// Query returns the scripted outcome for host:port
func (m *MockQuerier) Query(ctx context.Context, host string, port int) (*Result, error) {
	target := targetKey(host, port)

	m.mu.Lock()
	m.callCounts[target]++
	delay := m.delays[target]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.flapping[target] {
		m.flapCount[target]++
		if m.flapCount[target]%2 == 0 {
			return nil, &TransportError{Op: "read", Addr: target, Err: errors.New("connection refused")}
		}
	}

	if err, ok := m.errors[target]; ok {
		return nil, err
	}

	if result, ok := m.results[target]; ok {
		copied := *result
		return &copied, nil
	}

	return nil, errors.New("target not configured in mock")
}

// SetResult scripts a successful reply
func (m *MockQuerier) SetResult(host string, port int, result *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := targetKey(host, port)
	if result.Target == "" {
		result.Target = target
	}
	m.results[target] = result
	delete(m.errors, target)
}

// SetupSynchronizedDaemon scripts a synchronized daemon with the given
// offset and a reference time refAge in the past.
func (m *MockQuerier) SetupSynchronizedDaemon(host string, port int, offsetMillis int64, refAge time.Duration) {
	m.SetResult(host, port, &Result{
		OffsetMillis:  offsetMillis,
		RefTimeMillis: time.Now().Add(-refAge).UnixMilli(),
		// leap 0, source ntp, one clock sync event
		Status:   control.SystemStatus(0x0615),
		Duration: 2 * time.Millisecond,
	})
}

// SetError scripts a failing reply
func (m *MockQuerier) SetError(host string, port int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errors[targetKey(host, port)] = err
}

// SetDelay delays every reply for host:port
func (m *MockQuerier) SetDelay(host string, port int, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.delays[targetKey(host, port)] = delay
}

// SetFlapping makes every second query for host:port fail
func (m *MockQuerier) SetFlapping(host string, port int, flapping bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flapping[targetKey(host, port)] = flapping
}

// CallCount returns the number of queries made to host:port
func (m *MockQuerier) CallCount(host string, port int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.callCounts[targetKey(host, port)]
}

// Reset clears all scripted outcomes and counters
func (m *MockQuerier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = make(map[string]*Result)
	m.errors = make(map[string]error)
	m.delays = make(map[string]time.Duration)
	m.callCounts = make(map[string]int)
	m.flapping = make(map[string]bool)
	m.flapCount = make(map[string]int)
}
