// Package server exposes text rendering and font pipeline runs over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/MeKo-Tech/handwriter/internal/fontmaker"
	"github.com/MeKo-Tech/handwriter/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// stagesFunc builds the stages of one fontmake run.
type stagesFunc func(withThreshold bool, progress pipeline.ProgressFactory) ([]pipeline.Stage, error)

// Server holds the HTTP server state and dependencies.
type Server struct {
	app          *config.Config
	corsOrigin   string
	maxTextBytes int64
	timeout      time.Duration
	rateLimiter  *RateLimiter
	newStages    stagesFunc
	logger       *slog.Logger

	// Held for the duration of a fontmake run.
	runMu sync.Mutex
}

// Config holds server configuration.
type Config struct {
	CORSOrigin string
	MaxTextKB  int
	TimeoutSec int
	RateLimit  config.RateLimitConfig
	// App supplies paths, writer defaults and stage settings.
	App    *config.Config
	Logger *slog.Logger
}

// ConfigFrom derives the server configuration from the application configuration.
func ConfigFrom(app *config.Config) Config {
	return Config{
		CORSOrigin: app.Server.CORSOrigin,
		MaxTextKB:  app.Server.MaxTextKB,
		TimeoutSec: app.Server.TimeoutSec,
		RateLimit:  app.Server.RateLimit,
		App:        app,
	}
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	Running bool   `json:"pipeline_running"`
}

// WriteRequest is the body of POST /write. Unset fields fall back to the
// writer configuration.
type WriteRequest struct {
	Text    string `json:"text"`
	Seed    *int64 `json:"seed,omitempty"`
	Debug   *bool  `json:"debug,omitempty"`
	Connect *bool  `json:"connect,omitempty"`
	Format  string `json:"format,omitempty"`
}

// ErrorResponse is the body of every failed HTTP request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a server for the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.App == nil {
		d := config.DefaultConfig()
		cfg.App = &d
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		app:          cfg.App,
		corsOrigin:   cfg.CORSOrigin,
		maxTextBytes: int64(cfg.MaxTextKB) * 1024,
		timeout:      time.Duration(cfg.TimeoutSec) * time.Second,
		logger:       logger,
	}
	if cfg.RateLimit.Enabled() {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit)
	}
	s.newStages = func(withThreshold bool, progress pipeline.ProgressFactory) ([]pipeline.Stage, error) {
		return fontmaker.NewStages(s.app, withThreshold, progress)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", instrument("/health", s.corsMiddleware(s.healthHandler)))
	mux.HandleFunc("/write", instrument("/write", s.corsMiddleware(s.rateLimitMiddleware(s.writeHandler))))
	mux.HandleFunc("/ws/fontmake", s.fontmakeWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
