// Package server is the composition root: it builds the prover relay,
// services and handlers, mounts them on a chi router and runs the HTTP
// server until its context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/webproof-contributors/internal/auth"
	"github.com/sakif/webproof-contributors/internal/config"
	"github.com/sakif/webproof-contributors/internal/handler"
	"github.com/sakif/webproof-contributors/internal/middleware"
	"github.com/sakif/webproof-contributors/internal/prover"
	"github.com/sakif/webproof-contributors/internal/repository"
	"github.com/sakif/webproof-contributors/internal/service"
)

// Server owns the router. The store is owned by the caller, which closes it
// after Start returns.
type Server struct {
	router   *chi.Mux
	cfg      *config.Config
	logger   *slog.Logger
	store    repository.Store
	registry *prometheus.Registry
}

// New wires every route. registry receives the HTTP and prover metrics and is
// served on /metrics; a nil registry gets a fresh one.
func New(cfg *config.Config, logger *slog.Logger, store repository.Store, registry *prometheus.Registry) (*Server, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes mounts:
//
//	GET  /healthz                 store health
//	GET  /metrics                 Prometheus exposition
//	POST /api/prove               create a web-proof
//	POST /api/verify              verify a web-proof
//	POST /api/upload-proof        verify and store a contribution
//	GET  /api/contributions       public contributor list
//	GET  /api/verify-all          re-verify the proof directory
//	GET  /api/me                  signed-in account          (auth)
//	GET  /api/me/contributions    own contributions, proofs  (auth)
//	GET  /auth/github/login       start GitHub login         (auth)
//	GET  /auth/github/callback    finish GitHub login        (auth)
//	POST /auth/logout             clear the session          (auth)
//
// The (auth) routes exist only when GitHub login is configured.
func (s *Server) setupRoutes() error {
	httpMetrics := &middleware.HTTPMetrics{}
	httpMetrics.Register(s.registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(httpMetrics.Middleware)

	proverMetrics := &prover.Metrics{}
	proverMetrics.Register(s.registry)
	relay := prover.New(s.cfg.Prover(), s.logger, prover.WithMetrics(proverMetrics))

	proofService := service.NewProofService(relay, relay, s.logger)
	contributionService := service.NewContributionService(relay, s.store, s.logger)
	batchService := service.NewBatchService(relay, os.DirFS(s.cfg.WebproofsDir), s.cfg.BatchConcurrency, s.logger)

	proofHandler := handler.NewProofHandler(proofService, s.logger)
	contributionHandler := handler.NewContributionHandler(contributionService, s.logger)
	batchHandler := handler.NewBatchHandler(batchService, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	var (
		tokens      *auth.TokenService
		authHandler *handler.AuthHandler
	)
	if s.cfg.AuthEnabled() {
		var err error
		tokens, err = auth.NewTokenService(s.cfg.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		github := auth.NewGitHubProvider(s.cfg.GitHubClientID, s.cfg.GitHubClientSecret, s.cfg.GitHubCallbackURL)
		authHandler = handler.NewAuthHandler(github, service.NewAuthService(tokens, s.logger),
			isHTTPS(s.cfg.GitHubCallbackURL), s.logger)

		s.router.Route("/auth", func(r chi.Router) {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
			r.Post("/logout", authHandler.HandleLogout)
		})
	} else {
		s.logger.Warn("JWT_SECRET or GITHUB_CLIENT_ID not set, GitHub login is disabled")
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(limitBody(s.cfg.MaxProofBytes))
		if tokens != nil {
			r.Use(auth.OptionalAuth(tokens))
		}

		r.Post("/prove", proofHandler.HandleProve)
		r.Post("/verify", proofHandler.HandleVerify)
		r.Post("/upload-proof", contributionHandler.HandleUpload)
		r.Get("/contributions", contributionHandler.HandleList)
		r.With(withDeadline(s.cfg.VerifyAllTimeout)).Get("/verify-all", batchHandler.HandleVerifyAll)

		if tokens != nil {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(tokens))
				r.Get("/me", authHandler.HandleMe)
				r.Get("/me/contributions", contributionHandler.HandleListMine)
			})
		}
	})

	return nil
}

// Start serves until ctx is cancelled, then drains in-flight requests for at
// most ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	// Proving can take up to ProveTimeout, so the write timeout must outlast it.
	// /api/verify-all extends its own deadline to VerifyAllTimeout.
	writeTimeout := max(s.cfg.ProveTimeout, s.cfg.VerifyTimeout) + 15*time.Second

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)),
			slog.Bool("postgres", s.cfg.UsesPostgres()),
			slog.Bool("auth", s.cfg.AuthEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func limitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// withDeadline bounds a request by d and moves its write deadline out to
// match, for routes that legitimately outlast the server's WriteTimeout.
func withDeadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deadline := time.Now().Add(d)
			// Recorders and some wrappers cannot move the deadline; the
			// context bound still applies.
			_ = http.NewResponseController(w).SetWriteDeadline(deadline.Add(5 * time.Second))

			ctx, cancel := context.WithDeadline(r.Context(), deadline)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isHTTPS(rawURL string) bool {
	return strings.HasPrefix(rawURL, "https://")
}
