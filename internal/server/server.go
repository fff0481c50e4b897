// Package server is the composition root: it opens nothing itself but
// wires a store into services, handlers, middleware and routes, and runs
// the HTTP server until it is told to stop.
//
// Dependency chain:
//
//	repository.Store -> services -> handlers -> chi routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/jsonhost/internal/auth"
	"github.com/sakif/jsonhost/internal/config"
	"github.com/sakif/jsonhost/internal/handler"
	"github.com/sakif/jsonhost/internal/middleware"
	"github.com/sakif/jsonhost/internal/repository"
	"github.com/sakif/jsonhost/internal/service"
)

// Server owns the router and the store. The store is closed when Start
// returns.
type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	store     repository.Store
	passwords *auth.PasswordService
}

// Option customises a Server before its routes are built.
type Option func(*Server)

// WithPasswordService replaces the bcrypt settings. Tests use it to lower
// the cost.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// New wires every layer on top of store. The caller keeps ownership of
// store until Start is called.
func New(cfg *config.Config, store repository.Store, logger *slog.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		store:     store,
		passwords: auth.NewPasswordService(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes registers middleware and routes.
//
// Middleware runs in the order it is added:
//  1. RequestID, so every log line and metric can be correlated
//  2. RealIP
//  3. Logger
//  4. Recoverer, inside Logger so a panic is logged as a 500
//  5. security headers
//  6. Prometheus
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.NewSecure(middleware.SecureOptions(s.config.Server.Development)))
	if s.config.Metrics.Enabled {
		s.router.Use(middleware.Prometheus)
	}

	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	keys := auth.NewKeyGenerator()
	users, files := s.store.Users(), s.store.Files()

	accounts := service.NewAccountService(users, tokens, s.passwords, keys, s.logger)
	apiKeys := service.NewAPIKeyService(users, keys, s.logger)
	fileService := service.NewFileService(files, s.logger)
	previews := service.NewPreviewService(users, s.logger)
	public := service.NewPublicService(users, files, s.logger)

	// A nil interface, not a typed nil, when GitHub sign-in is off.
	var github handler.GitHubAuthenticator
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(
			s.config.GitHub.ClientID,
			s.config.GitHub.ClientSecret,
			s.config.GitHub.CallbackURL,
		)
	}

	authHandler := handler.NewAuthHandler(accounts, github, tokens.TTL(), s.config.Auth.CookieSecure, s.logger)
	apiKeyHandler := handler.NewAPIKeyHandler(apiKeys, s.logger)
	fileHandler := handler.NewFileHandler(fileService, s.logger)
	previewHandler := handler.NewPreviewHandler(previews, s.logger)
	publicHandler := handler.NewPublicHandler(public, s.config.Server.PublicBaseURL, s.logger)

	s.router.Method(http.MethodGet, "/healthz", handler.NewHealthHandler(s.store, s.logger))
	if s.config.Metrics.Enabled {
		s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	// === Public routes ===
	s.router.Post("/auth/signup", authHandler.HandleSignup)
	s.router.Post("/auth/login", authHandler.HandleLogin)
	s.router.Post("/auth/logout", authHandler.HandleLogout)
	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	s.router.Get("/data/key/{apiKey}", publicHandler.HandleList)
	s.router.Get("/data/key/{apiKey}/{fileName}", publicHandler.HandleGet)

	// === Session routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/auth/me", authHandler.HandleMe)
		r.Get("/auth/session", authHandler.HandleSession)

		r.Get("/api-key", apiKeyHandler.HandleGet)
		r.Post("/api-key/generate", apiKeyHandler.HandleGenerate)
		r.Delete("/api-key", apiKeyHandler.HandleDelete)

		r.Get("/files", fileHandler.HandleList)
		r.Post("/files", fileHandler.HandleSave)
		r.Get("/files/{fileName}", fileHandler.HandleGet)
		r.Delete("/files/{fileName}", fileHandler.HandleDelete)

		r.Get("/preview-url", previewHandler.HandleGet)
		r.Post("/preview-url", previewHandler.HandleSet)
	})

	return nil
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.DB.Driver),
			slog.Bool("github", s.config.GitHub.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
