// Package http exposes the credential lifecycle over a small JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/custodia-labs/marketlink/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck names a dependency probed by /ready
type HealthCheck struct {
	Name   string
	Pinger Pinger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	authService       driving.AuthService
	credentialService driving.CredentialService

	// Infrastructure
	metrics http.Handler // optional
	checks  []HealthCheck
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server. metrics may be nil.
func NewServer(
	cfg Config,
	authService driving.AuthService,
	credentialService driving.CredentialService,
	metrics http.Handler,
	checks ...HealthCheck,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		logger:            logger,
		authService:       authService,
		credentialService: credentialService,
		metrics:           metrics,
		checks:            checks,
	}

	var handler http.Handler = s.router
	handler = NewCORSMiddleware(cfg.AllowedOrigins).Handler(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)
	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics)
	}

	// Provider redirects are public: the state parameter authenticates them
	s.router.HandleFunc("GET /api/v1/oauth/callback", s.handleOAuthCallback)
	s.router.HandleFunc("GET /api/v1/oauth/{marketplace}/callback", s.handleOAuthCallback)

	// Read endpoints (any operator)
	s.router.Handle("GET /api/v1/marketplaces/status",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleMarketplaceStatus)))
	s.router.Handle("GET /api/v1/credentials",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListCredentials)))
	s.router.Handle("GET /api/v1/credentials/{marketplace}/{profile}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetCredential)))

	// Mutations (admin-only)
	s.router.Handle("PUT /api/v1/credentials/{marketplace}/{profile}",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleProvisionStatic))))
	s.router.Handle("POST /api/v1/credentials/{marketplace}/{profile}/refresh",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleRefreshCredential))))
	s.router.Handle("POST /api/v1/credentials/{marketplace}/{profile}/deactivate",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleDeactivateCredential))))
	s.router.Handle("POST /api/v1/oauth/{marketplace}/authorize",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleOAuthAuthorize))))
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
