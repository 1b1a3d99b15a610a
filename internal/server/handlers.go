package server

import (
	"encoding/json"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maximewewer/ntpq-exporter/internal/config"
	"github.com/maximewewer/ntpq-exporter/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthReporter reports the outcome of the most recent collection cycle.
// A zero time means no cycle has completed yet.
type HealthReporter interface {
	LastCollection() (time.Time, error)
}

// Handlers contains HTTP request handlers
type Handlers struct {
	config   *config.Config
	registry *prometheus.Registry
	health   HealthReporter
}

// NewHandlers creates a new handlers instance. health may be nil, in which
// case /health always reports healthy.
func NewHandlers(cfg *config.Config, registry *prometheus.Registry, health HealthReporter) *Handlers {
	return &Handlers{
		config:   cfg,
		registry: registry,
		health:   health,
	}
}

// MetricsHandler serves Prometheus metrics
func (h *Handlers) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	handler := promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		ErrorLog:      &loggerAdapter{},
		ErrorHandling: promhttp.ContinueOnError,
	})

	handler.ServeHTTP(w, r)
}

type healthResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	LastCollection string `json:"last_collection,omitempty"`
	Error          string `json:"error,omitempty"`
}

// HealthHandler returns health status. It answers 503 when the last
// collection cycle reached no daemon.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{Status: "healthy", Service: "ntpq-exporter"}
	code := http.StatusOK

	if h.health != nil {
		last, err := h.health.LastCollection()
		switch {
		case last.IsZero():
			response.Status = "starting"
		case err != nil:
			response.Status = "unhealthy"
			response.Error = err.Error()
			code = http.StatusServiceUnavailable
		}
		if !last.IsZero() {
			response.LastCollection = last.UTC().Format(time.RFC3339)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("server", "Failed to write health response", err)
	}
}

// IndexHandler serves the index page
func (h *Handlers) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)

	timeout := "none"
	if h.config.Query.Timeout > 0 {
		timeout = h.config.Query.Timeout.String()
	}

	var targets strings.Builder
	for _, t := range h.config.Query.Targets {
		targets.WriteString("            <li>" + html.EscapeString(t.Label()) + "</li>\n")
	}

	page := `<!DOCTYPE html>
<html>
<head>
    <title>NTPQ Exporter</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        h1 { color: #333; }
        ul { list-style-type: none; padding: 0; }
        li { margin: 10px 0; }
        a { color: #0066cc; text-decoration: none; }
        a:hover { text-decoration: underline; }
        .info { background-color: #f0f0f0; padding: 15px; border-radius: 5px; }
    </style>
</head>
<body>
    <h1>NTP Daemon Exporter</h1>
    <div class="info">
        <h2>Available Endpoints:</h2>
        <ul>
            <li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
            <li><a href="/health">/health</a> - Health check</li>
        </ul>
        <h2>Configuration:</h2>
        <ul>
            <li>Daemons: ` + strconv.Itoa(len(h.config.Query.Targets)) + ` configured</li>
            <li>Query timeout: ` + timeout + `</li>
            <li>Collection interval: ` + h.config.Query.Interval.String() + `</li>
            <li>Kernel cross-check: ` + strconv.FormatBool(h.config.Query.EnableKernel) + `</li>
            <li>SNTP cross-check: ` + strconv.FormatBool(h.config.Query.EnableSNTP) + `</li>
        </ul>
        <h2>Targets:</h2>
        <ul>
` + targets.String() + `        </ul>
    </div>
</body>
</html>`

	_, _ = w.Write([]byte(page))
}

// loggerAdapter adapts pkg/logger to promhttp logger interface
type loggerAdapter struct{}

func (l *loggerAdapter) Println(v ...interface{}) {
	parts := make([]string, 0, len(v))
	for _, val := range v {
		switch typed := val.(type) {
		case string:
			parts = append(parts, typed)
		case error:
			parts = append(parts, typed.Error())
		}
	}
	logger.Error("promhttp", strings.Join(parts, " "), nil)
}
