// Package api serves the record store over HTTP: a JSON API, probes,
// metrics and the embedded map UI.
package api

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/star/sattrack/internal/archive"
	"github.com/star/sattrack/internal/auth"
	"github.com/star/sattrack/internal/health"
	"github.com/star/sattrack/internal/httputil"
	"github.com/star/sattrack/internal/metrics"
	"github.com/star/sattrack/internal/record"
)

// Source provides the current store. A non-nil store may come with a
// load error, in which case it is served and the error logged.
type Source interface {
	Get() (*record.Store, error)
}

// AttemptLog lists archived attempts for a satellite.
type AttemptLog interface {
	Recent(ctx context.Context, id string, limit int) ([]archive.Entry, error)
}

// Config holds server configuration loaded from environment variables.
type Config struct {
	Auth       auth.Config
	TrustProxy bool // Read client IPs from X-Forwarded-For / X-Real-IP
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	source     Source
	attempts   AttemptLog
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. attempts may be nil when the
// archive is disabled; static holds the map UI files.
func NewServer(addr string, logger *slog.Logger, cfg Config, source Source, attempts AttemptLog, static fs.FS) *Server {
	s := &Server{
		source:   source,
		attempts: attempts,
		logger:   logger,
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(cfg, static),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(cfg Config, static fs.FS) http.Handler {
	r := chi.NewRouter()

	// metrics -> logging -> recover -> cors -> auth -> routes.
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware(s.logger, cfg.TrustProxy))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(auth.Middleware(cfg.Auth))

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz(s.ready))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/satellites", s.handleListSatellites)
		r.Get("/satellites/{id}", s.handleGetSatellite)
		r.Get("/satellites/{id}/trail", s.handleGetTrail)
		r.Get("/satellites/{id}/attempts", s.handleGetAttempts)
		r.Get("/summary", s.handleSummary)
	})

	if static != nil {
		r.Handle("/*", http.FileServer(http.FS(static)))
	}

	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// ready fails when the store file cannot be stat'ed or read. A corrupt file
// is served as an empty store and does not make the server unready.
func (s *Server) ready() error {
	st, err := s.source.Get()
	if st == nil {
		return err
	}
	return nil
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
