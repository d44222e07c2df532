package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MeKo-Tech/dermascan/internal/classifier"
	"github.com/MeKo-Tech/dermascan/internal/scan"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// modelProvider is the part of the classifier the server reports on.
type modelProvider interface {
	IsReady() bool
	Info() classifier.ModelInfo
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	scanner     *scan.Scanner
	model       modelProvider
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	rateLimiter *RateLimiter
	version     string
	started     time.Time

	cleanupInterval time.Duration
	clientIdle      time.Duration
	artifactTTL     time.Duration
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	RateLimit   RateLimitConfig
	Version     string

	// CleanupInterval is how often RunMaintenance sweeps. Zero means 10 minutes.
	CleanupInterval time.Duration
	// ClientIdleTimeout drops rate limiter state for clients not seen this
	// long. Zero means 24 hours.
	ClientIdleTimeout time.Duration
	// ArtifactTTL removes scan crops older than this. Zero keeps them.
	ArtifactTTL time.Duration
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Version   string  `json:"version,omitempty"`
	Time      string  `json:"time"`
	UptimeSec float64 `json:"uptime_sec"`
}

// ReadyResponse is returned by /ready.
type ReadyResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// ScanResponse wraps a completed scan.
type ScanResponse struct {
	Success bool         `json:"success"`
	Result  *scan.Result `json:"result"`
}

// ErrorResponse is the body of every failed request. All failures may be
// retried by the caller.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
	Retryable bool   `json:"retryable"`
}

// New creates a server around a scanner. model may be nil when only crops are served.
func New(cfg Config, scanner *scan.Scanner, model modelProvider) (*Server, error) {
	if scanner == nil {
		return nil, errors.New("scanner is required")
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 50
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 30
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.ClientIdleTimeout <= 0 {
		cfg.ClientIdleTimeout = 24 * time.Hour
	}

	s := &Server{
		scanner:     scanner,
		model:       model,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
		version:     cfg.Version,
		started:     time.Now(),

		cleanupInterval: cfg.CleanupInterval,
		clientIdle:      cfg.ClientIdleTimeout,
		artifactTTL:     cfg.ArtifactTTL,
	}
	if cfg.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/ready", s.corsMiddleware(s.readyHandler))
	mux.HandleFunc("/model", s.corsMiddleware(s.modelHandler))
	mux.HandleFunc("/scan", s.corsMiddleware(s.rateLimitMiddleware(s.scanHandler)))
	mux.HandleFunc("/scan/batch", s.corsMiddleware(s.rateLimitMiddleware(s.batchScanHandler)))
	mux.HandleFunc("/crop", s.corsMiddleware(s.rateLimitMiddleware(s.cropHandler)))
	mux.HandleFunc("/ws/scan", s.corsMiddleware(s.scanWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
