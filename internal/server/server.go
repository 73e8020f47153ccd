// Package server exposes the control API: liveness, ledger status and
// browsing, manual control, Prometheus metrics and the live announcement
// WebSocket feed.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/server/handler"
	"github.com/alanyoungcy/marketwatch/internal/server/middleware"
	"github.com/alanyoungcy/marketwatch/internal/server/ws"
)

// Config holds the HTTP server settings.
type Config struct {
	Port               int
	CORSOrigins        []string
	APIKey             string // empty disables authentication
	RateLimitPerMinute int    // 0 disables rate limiting
}

// Handlers groups the route handlers. Announcements, Metrics and Hub are
// optional.
type Handlers struct {
	Health        *handler.HealthHandler
	Control       *handler.ControlHandler
	Markets       *handler.MarketHandler
	Announcements *handler.AnnouncementHandler
	Metrics       http.Handler
	Hub           *ws.Hub
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// publicPaths skip authentication.
var publicPaths = []string{"/api/health", "/metrics"}

// NewServer registers routes and wraps them in the middleware chain:
// CORS, logging, auth, then rate limiting when a limiter is given.
func NewServer(cfg Config, h Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewHandler(cfg, h, limiter, logger),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      2 * time.Minute,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, h Handlers, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", h.Control.Status)
	mux.HandleFunc("POST /api/tick", h.Control.Tick)
	mux.HandleFunc("PUT /api/destination", h.Control.SetDestination)
	mux.HandleFunc("POST /api/seed/skip", h.Control.SkipSeed)
	mux.HandleFunc("GET /api/markets", h.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.Markets.GetMarket)

	if h.Announcements != nil {
		mux.HandleFunc("GET /api/announcements", h.Announcements.ListAnnouncements)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.HandleWS)
	}

	var out http.Handler = mux
	if limiter != nil && cfg.RateLimitPerMinute > 0 {
		out = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute, logger)(out)
	}
	out = middleware.Auth(cfg.APIKey, publicPaths...)(out)
	out = middleware.Logging(logger)(out)
	out = middleware.CORS(cfg.CORSOrigins)(out)
	return out
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", slog.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
