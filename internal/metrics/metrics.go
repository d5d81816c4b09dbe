package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/star/sattrack/internal/record"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sattrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	fetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_fetch_attempts_total",
			Help: "Position lookups by merge outcome.",
		},
		[]string{"outcome"},
	)

	fetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sattrack_fetch_duration_seconds",
			Help:    "Position lookup round-trip time in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	records = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sattrack_records",
			Help: "Satellite records in the store by state.",
		},
		[]string{"state"},
	)

	runLastCompleted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_run_last_completed_timestamp_seconds",
			Help: "Unix time the last fetch run persisted its store.",
		},
	)

	runResults = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sattrack_run_results",
			Help: "Merge results of the last fetch run.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(fetchAttemptsTotal)
	prometheus.MustRegister(fetchDurationSeconds)
	prometheus.MustRegister(records)
	prometheus.MustRegister(runLastCompleted)
	prometheus.MustRegister(runResults)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetch counts one lookup and its duration.
func RecordFetch(outcome string, d time.Duration) {
	fetchAttemptsTotal.WithLabelValues(outcome).Inc()
	fetchDurationSeconds.Observe(d.Seconds())
}

// SetRecordStates publishes the active/inactive/decayed record counts.
func SetRecordStates(recs []*record.Record) {
	var active, inactive, decayed int
	for _, r := range recs {
		if r.Status == record.StatusActive {
			active++
		} else {
			inactive++
		}
		if r.Decayed {
			decayed++
		}
	}
	records.WithLabelValues("active").Set(float64(active))
	records.WithLabelValues("inactive").Set(float64(inactive))
	records.WithLabelValues("decayed").Set(float64(decayed))
}

// SetRunCompleted records the result of a finished run.
func SetRunCompleted(t time.Time, ok, failed int) {
	runLastCompleted.Set(float64(t.Unix()))
	runResults.WithLabelValues("ok").Set(float64(ok))
	runResults.WithLabelValues("failed").Set(float64(failed))
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// knownRoutes are exact paths used as metric labels unchanged.
var knownRoutes = map[string]bool{
	"/":                  true,
	"/healthz":           true,
	"/readyz":            true,
	"/metrics":           true,
	"/app.js":            true,
	"/styles.css":        true,
	"/api/v1/satellites": true,
	"/api/v1/summary":    true,
	"/index.html":        true,
}

// normalizeRoute collapses per-satellite paths to their route template so
// label cardinality stays bounded.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	rest, ok := strings.CutPrefix(path, "/api/v1/satellites/")
	if !ok || rest == "" {
		return "other"
	}
	id, sub, hasSub := strings.Cut(rest, "/")
	if id == "" {
		return "other"
	}
	if !hasSub {
		return "/api/v1/satellites/{id}"
	}
	switch sub {
	case "trail", "attempts":
		return "/api/v1/satellites/{id}/" + sub
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
