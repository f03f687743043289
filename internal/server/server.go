package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuongdcdev/shade-trader/internal/domain"
	"github.com/cuongdcdev/shade-trader/internal/server/handler"
	"github.com/cuongdcdev/shade-trader/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Limiter enables per-client rate limiting when non-nil and
	// RateLimitPerMin is positive.
	Limiter         domain.RateLimiter
	RateLimitPerMin int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Processor may be nil when the server runs without an order processor.
type Handlers struct {
	Health    *handler.HealthHandler
	Orders    *handler.OrderHandler
	Users     *handler.UserHandler
	Wallets   *handler.WalletHandler
	Processor *handler.ProcessorHandler
}

// Server is the headless HTTP API server for the trading bot.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (auth, logging, CORS) wired up.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Prometheus metrics.
	mux.Handle("GET /metrics", promhttp.Handler())

	// User registration.
	mux.HandleFunc("POST /api/users", handlers.Users.RegisterUser)

	// Order endpoints.
	mux.HandleFunc("GET /api/orders", handlers.Orders.ListOrders)
	mux.HandleFunc("POST /api/orders", handlers.Orders.PlaceOrder)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.GetOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", handlers.Orders.CancelOrder)

	// Wallet endpoints.
	mux.HandleFunc("GET /api/wallets/{address}/balances", handlers.Wallets.Balances)

	// Processor control endpoints.
	if handlers.Processor != nil {
		mux.HandleFunc("GET /api/processor/status", handlers.Processor.Status)
		mux.HandleFunc("POST /api/processor/start", handlers.Processor.Start)
		mux.HandleFunc("POST /api/processor/stop", handlers.Processor.Stop)
		mux.HandleFunc("POST /api/processor/tick", handlers.Processor.Tick)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	if cfg.Limiter != nil && cfg.RateLimitPerMin > 0 {
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimitPerMin, time.Minute)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
