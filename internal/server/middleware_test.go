package server

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/maximewewer/ntpq-exporter/internal/config"
	"github.com/maximewewer/ntpq-exporter/pkg/metrics"
	testutil "github.com/maximewewer/ntpq-exporter/pkg/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corsConfig(origins ...string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			EnableCORS:     true,
			AllowedOrigins: origins,
		},
	}
}

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

func TestMiddleware_Apply_WithoutCORS(t *testing.T) {
	mw := NewMiddleware(&config.Config{}, metrics.NewDaemonMetrics())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()

	mw.Apply(okHandler("ok")).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMiddleware_LoggingMiddleware_CountsRequests(t *testing.T) {
	m := metrics.NewDaemonMetrics()
	reg := testutil.CreateTestRegistry()
	require.NoError(t, reg.Register(m))
	mw := NewMiddleware(&config.Config{}, m)

	tests := []struct {
		path       string
		statusCode int
		route      string
	}{
		{"/metrics", http.StatusOK, "/metrics"},
		{"/health", http.StatusServiceUnavailable, "/health"},
		{"/favicon.ico", http.StatusNotFound, "other"},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			w := httptest.NewRecorder()
			mw.loggingMiddleware(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.statusCode, w.Code)
		})
	}

	testutil.AssertMetricValue(t, reg, "ntpq_exporter_http_requests_total",
		map[string]string{"path": "/metrics", "code": "200"}, 1)
	testutil.AssertMetricValue(t, reg, "ntpq_exporter_http_requests_total",
		map[string]string{"path": "/health", "code": "503"}, 1)
	testutil.AssertMetricValue(t, reg, "ntpq_exporter_http_requests_total",
		map[string]string{"path": "other", "code": "404"}, 1)
}

func TestMiddleware_LoggingMiddleware_NilMetrics(t *testing.T) {
	mw := NewMiddleware(&config.Config{}, nil)

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		mw.loggingMiddleware(okHandler("ok")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, "ok", w.Body.String())
}

func TestMiddleware_CORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{"exact_match", []string{"https://example.com"}, "https://example.com", true},
		{"wildcard_subdomain", []string{"*.example.com"}, "https://grafana.example.com", true},
		{"wildcard_apex", []string{"*.example.com"}, "https://example.com", true},
		{"not_listed", []string{"https://example.com"}, "https://evil.test", false},
		{"empty_list", nil, "https://example.com", false},
		{"no_origin", []string{"https://example.com"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewMiddleware(corsConfig(tt.origins...), nil)

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			mw.corsMiddleware(okHandler("ok")).ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			if tt.allowed {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "GET")
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestMiddleware_CORSMiddleware_OPTIONS(t *testing.T) {
	mw := NewMiddleware(corsConfig("https://example.com"), nil)

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	req := httptest.NewRequest(http.MethodOptions, "/metrics", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()

	mw.corsMiddleware(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, handlerCalled, "Handler should not be called for OPTIONS")
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMiddleware_RecoveryMiddleware(t *testing.T) {
	mw := NewMiddleware(&config.Config{}, nil)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		mw.recoveryMiddleware(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestMiddleware_FullStack_PanicIsCounted(t *testing.T) {
	m := metrics.NewDaemonMetrics()
	reg := testutil.CreateTestRegistry()
	require.NoError(t, reg.Register(m))
	mw := NewMiddleware(corsConfig("https://example.com"), m)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()

	mw.Apply(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
	testutil.AssertMetricValue(t, reg, "ntpq_exporter_http_requests_total",
		map[string]string{"path": "/metrics", "code": "500"}, 1)
}

func TestResponseWriter_WriteHeader(t *testing.T) {
	w := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, rw.statusCode)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResponseWriter_DefaultStatusCode(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

	_, _ = rw.Write([]byte("test"))

	assert.Equal(t, http.StatusOK, rw.statusCode)
}

func TestMiddleware_ConcurrentRequests(t *testing.T) {
	mw := NewMiddleware(corsConfig("https://example.com"), metrics.NewDaemonMetrics())
	wrapped := mw.Apply(okHandler("ok"))

	var wg sync.WaitGroup
	codes := make(chan int, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
}

func BenchmarkMiddleware_Apply(b *testing.B) {
	mw := NewMiddleware(corsConfig("https://example.com"), metrics.NewDaemonMetrics())
	wrapped := mw.Apply(okHandler(""))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Origin", "https://example.com")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)
	}
}
