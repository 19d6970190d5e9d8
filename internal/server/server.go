package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/foliohq/folio/internal/handler"
	"github.com/foliohq/folio/internal/metrics"
	"github.com/foliohq/folio/internal/ratelimit"
	"github.com/foliohq/folio/internal/server/middleware"
	"github.com/foliohq/folio/internal/service"
	"github.com/foliohq/folio/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes

	// TrustProxy honours X-Forwarded-For / X-Real-IP when resolving the
	// client address. Leave it off unless a reverse proxy sets them.
	TrustProxy bool

	// APIRequests per APIWindow per client IP across /api.
	APIRequests int
	APIWindow   time.Duration

	// LoginKeyBy selects the login limiter key (email, ip, email+ip).
	LoginKeyBy string

	Cookie handler.CookieOptions
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            5000,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		MaxBodySize:     10 * 1024 * 1024, // 10MB
		APIRequests:     100,
		APIWindow:       15 * time.Minute,
		LoginKeyBy:      middleware.KeyByEmail,
		Cookie:          handler.CookieOptions{Name: "adminToken"},
	}
}

// Deps are the services the router dispatches to.
type Deps struct {
	Store   *store.Store
	Auth    *service.AuthService
	Content *service.ContentService
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
	OpenAPI []byte
}

// Server is the top-level HTTP server for Folio. It owns the Chi router and
// the background login limiter sweep.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	system := handler.NewSystemHandler(s.deps.Store, s.deps.OpenAPI, s.logger)
	auth := handler.NewAuthHandler(s.deps.Auth, s.cfg.Cookie, s.deps.Metrics, s.logger)
	content := handler.NewContentHandler(s.deps.Content, s.logger)
	gate := middleware.NewGate(s.deps.Auth, s.cfg.Cookie.Name, s.deps.Metrics, s.logger)

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	if s.cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}

	r.NotFound(system.NotFound)
	r.MethodNotAllowed(system.MethodNotAllowed)

	// --- Health checks (no auth required) ---
	r.Get("/health", system.Health)
	r.Get("/readyz", system.Ready)
	r.Get("/openapi.json", system.OpenAPI)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}

	// --- API routes ---
	r.Route("/api", func(r chi.Router) {
		if s.cfg.APIRequests > 0 {
			r.Use(middleware.APIRateLimit(s.cfg.APIRequests, s.cfg.APIWindow))
		}

		r.Route("/admin/auth", func(r chi.Router) {
			login := http.Handler(http.HandlerFunc(auth.Login))
			if s.deps.Limiter != nil {
				login = middleware.LoginRateLimit(s.deps.Limiter, s.cfg.LoginKeyBy, s.deps.Metrics, s.logger)(login)
			}
			r.Method(http.MethodPost, "/login", login)

			r.Group(func(r chi.Router) {
				r.Use(gate.Require)
				r.Post("/register", auth.Register)
				r.Get("/me", auth.Me)
				r.Post("/logout", auth.Logout)
				r.Put("/profile", auth.Profile)
				r.Put("/password", auth.Password)
				r.Get("/verify", auth.Verify)
			})
		})

		r.With(gate.Require).Get("/admin/stats", content.Stats)

		// Public read, admin write.
		for _, c := range []string{service.CollectionProjects, service.CollectionSkills, service.CollectionCertificates} {
			r.Route("/"+c, func(r chi.Router) {
				r.With(gate.Optional).Get("/", content.List(c))
				r.With(gate.Optional).Get("/{id}", content.Get(c))
				r.Group(func(r chi.Router) {
					r.Use(gate.Require)
					r.Post("/", content.Create(c))
					r.Put("/{id}", content.Update(c))
					r.Delete("/{id}", content.Delete(c))
				})
			})
		}

		// Public write, admin read.
		r.Route("/"+service.CollectionMessages, func(r chi.Router) {
			r.Post("/", content.SubmitMessage)
			r.Group(func(r chi.Router) {
				r.Use(gate.Require)
				r.Get("/", content.List(service.CollectionMessages))
				r.Get("/{id}", content.Get(service.CollectionMessages))
				r.Delete("/{id}", content.Delete(service.CollectionMessages))
			})
		})

		r.Get("/settings", content.GetSettings)
		r.With(gate.Require).Put("/settings", content.PutSettings)
	})

	s.router = r
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received, then shuts down gracefully.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled. The login limiter sweep runs for the
// lifetime of the server.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	if s.deps.Limiter != nil {
		go s.deps.Limiter.Run(sweepCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
