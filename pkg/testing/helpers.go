package testutil

import (
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/maximewewer/ntpq-exporter/internal/control"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// SynchronizedStatus is a system status word for a daemon synchronized to an NTP source
const SynchronizedStatus uint16 = 0x0615

// CreateControlResponse builds a mode 6 read-variables response carrying varlist
func CreateControlResponse(varlist string, status uint16) []byte {
	m := control.BuildRequest(control.OpReadVar, varlist)
	m.SetResponse(true)
	m.SetStatus(status)
	return m.Bytes()
}

// CreateControlErrorResponse builds a mode 6 response with the error bit set
func CreateControlErrorResponse(code control.ErrorCode, text string) []byte {
	m := control.BuildRequest(control.OpReadVar, text)
	m.SetResponse(true)
	m.SetError(true)
	m.SetStatus(uint16(code) << 8)
	return m.Bytes()
}

// CreateDaemonVarlist renders the reftime/offset pair a daemon reports
func CreateDaemonVarlist(refTime time.Time, offsetMillis float64) string {
	return fmt.Sprintf("reftime=%s, offset=%.3f",
		control.FormatTimestamp(refTime.UnixMilli()), offsetMillis)
}

// GenerateDaemonVarlist generates a deterministic varlist based on seed
func GenerateDaemonVarlist(seed int64) string {
	r := rand.New(rand.NewSource(seed))

	age := time.Duration(r.Int63n(int64(time.Hour))) // 0-1h
	offset := (r.Float64() - 0.5) * 200              // -100ms to 100ms
	refTime := time.Unix(1_700_000_000, 0).Add(-age).UTC()

	return CreateDaemonVarlist(refTime, offset)
}

// StartControlDaemon starts a UDP listener that answers each request with reply(request).
// A nil reply makes the daemon silent. It returns the host and port the listener is bound to.
func StartControlDaemon(t *testing.T, reply func(req []byte) []byte) (string, int) {
	t.Helper()

	host, port, _ := StartRecordingControlDaemon(t, reply)
	return host, port
}

// StartRecordingControlDaemon is StartControlDaemon that also delivers a copy
// of every received request on the returned channel. Requests beyond the
// channel capacity are dropped, not blocked on.
func StartRecordingControlDaemon(t *testing.T, reply func(req []byte) []byte) (string, int, <-chan []byte) {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	requests := make(chan []byte, 16)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			req := append([]byte(nil), buf[:n]...)
			select {
			case requests <- req:
			default:
			}
			if reply != nil {
				_, _ = conn.WriteTo(reply(req), addr)
			}
		}
	}()

	return "127.0.0.1", conn.LocalAddr().(*net.UDPAddr).Port, requests
}

// StaticReply answers every request with raw, echoing the request sequence number
func StaticReply(raw []byte) func(req []byte) []byte {
	return func(req []byte) []byte {
		resp := append([]byte(nil), raw...)
		if len(req) >= control.HeaderSize && len(resp) >= control.HeaderSize {
			control.NewMessage(resp).SetSequence(control.NewMessage(req).Sequence())
		}
		return resp
	}
}

// AssertMetricValue validates a Prometheus metric value
func AssertMetricValue(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string, expected float64) {
	t.Helper()

	metrics, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() != metricName {
			continue
		}

		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), labels) {
				var value float64
				switch mf.GetType() {
				case dto.MetricType_GAUGE:
					value = m.GetGauge().GetValue()
				case dto.MetricType_COUNTER:
					value = m.GetCounter().GetValue()
				case dto.MetricType_HISTOGRAM:
					value = m.GetHistogram().GetSampleSum()
				default:
					t.Fatalf("Unsupported metric type: %v", mf.GetType())
				}

				if value != expected {
					t.Errorf("Metric %s with labels %v: expected %f, got %f", metricName, labels, expected, value)
				}
				return
			}
		}
	}

	t.Errorf("Metric %s with labels %v not found", metricName, labels)
}

// AssertMetricExists checks if a metric exists with given labels
func AssertMetricExists(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string) {
	t.Helper()

	if !metricExists(t, registry, metricName, labels) {
		t.Errorf("Metric %s with labels %v not found", metricName, labels)
	}
}

// AssertMetricAbsent checks that no series exists for metricName with given labels
func AssertMetricAbsent(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string) {
	t.Helper()

	if metricExists(t, registry, metricName, labels) {
		t.Errorf("Metric %s with labels %v should not be present", metricName, labels)
	}
}

func metricExists(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string) bool {
	t.Helper()

	metrics, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	for _, mf := range metrics {
		if mf.GetName() != metricName {
			continue
		}

		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), labels) {
				return true
			}
		}
	}
	return false
}

// labelsMatch checks if metric labels match expected labels
func labelsMatch(metricLabels []*dto.LabelPair, expected map[string]string) bool {
	if len(metricLabels) != len(expected) {
		return false
	}

	for _, label := range metricLabels {
		expectedValue, exists := expected[label.GetName()]
		if !exists || expectedValue != label.GetValue() {
			return false
		}
	}

	return true
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for !condition() {
		<-ticker.C
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for condition: %s", message)
		}
	}
}

// NewTestHTTPServer creates a test HTTP server for integration tests
func NewTestHTTPServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
	})

	return server
}

// CountGoroutines returns the current number of goroutines
func CountGoroutines() int {
	return runtime.NumGoroutine()
}

// CreateTestRegistry creates a new Prometheus registry for testing
func CreateTestRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ValidatePrometheusMetricName validates that a metric name follows Prometheus conventions
func ValidatePrometheusMetricName(t *testing.T, name string) {
	t.Helper()

	if len(name) == 0 {
		t.Error("Metric name cannot be empty")
	}

	// Must match regex: [a-zA-Z_:][a-zA-Z0-9_:]*
	validName := regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	if !validName.MatchString(name) {
		t.Errorf("Invalid metric name: %s (must match [a-zA-Z_:][a-zA-Z0-9_:]*)", name)
	}

	if !strings.HasPrefix(name, "ntpq_") {
		t.Errorf("Metric name %s should have ntpq_ prefix", name)
	}

	if strings.Contains(name, "-") {
		t.Errorf("Metric name %s should use underscores, not hyphens", name)
	}
}

// ValidatePrometheusLabelName validates that a label name follows Prometheus conventions
func ValidatePrometheusLabelName(t *testing.T, name string) {
	t.Helper()

	// Must match regex: [a-zA-Z_][a-zA-Z0-9_]*
	validLabel := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	if !validLabel.MatchString(name) {
		t.Errorf("Invalid label name: %s (must match [a-zA-Z_][a-zA-Z0-9_]*)", name)
	}

	// Reserved label names
	reserved := []string{"__name__", "job", "instance"}
	for _, r := range reserved {
		if name == r {
			t.Errorf("Label name %s is reserved", name)
		}
	}
}
