// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: New opens the store, builds the
// services on top of it and hands each handler the service it needs. Nothing
// below this package knows how the others are constructed.
//
//	config.Config → sqlite.DB → services → handlers → chi routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/civicforum/constitution-platform/internal/assistant"
	"github.com/civicforum/constitution-platform/internal/auth"
	"github.com/civicforum/constitution-platform/internal/config"
	"github.com/civicforum/constitution-platform/internal/constitution"
	"github.com/civicforum/constitution-platform/internal/handler"
	"github.com/civicforum/constitution-platform/internal/middleware"
	sqliteRepo "github.com/civicforum/constitution-platform/internal/repository/sqlite"
	"github.com/civicforum/constitution-platform/internal/service"
)

// Server owns the router and the database connection. The connection is
// closed when Start returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// Options carries collaborators that main builds from configuration.
// Zero values disable the corresponding feature.
type Options struct {
	// Assistant answers /api/chat. Nil makes the route return 503.
	Assistant assistant.Assistant

	// Passwords overrides the bcrypt cost; tests pass a MinCost service.
	Passwords *auth.PasswordService
}

// New opens the database, ensures the default poll exists and wires routes.
func New(cfg config.Config, logger *slog.Logger, opts Options) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on shutdown.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures middleware and routes.
//
// ROUTE STRUCTURE:
//
//	GET    /health
//	GET    /auth/google/login, /auth/google/callback   (when Google is configured)
//	       /api/posts...       engagement engine
//	GET    /api/my-posts, /api/trending-posts
//	       /api/users...       identity
//	       /api/vote...        polls
//	POST   /api/chat
//	GET    /api/articles, /api/articles/{number}
//	GET    /*                  SPA build (when STATIC_DIR is set)
//
// MIDDLEWARE ORDER: RequestID → RealIP → Logger → Recoverer → CORS.
func (s *Server) setupRoutes(opts Options) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	// === Collaborators ===
	catalog, err := constitution.Load()
	if err != nil {
		return fmt.Errorf("loading constitution catalog: %w", err)
	}

	var tokens *auth.TokenService
	if s.config.JWTSecret != "" {
		if tokens, err = auth.NewTokenService(s.config.JWTSecret); err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("JWT_SECRET not set, bearer tokens are plain user ids")
	}

	passwords := opts.Passwords
	if passwords == nil {
		passwords = auth.NewPasswordService()
	}

	// === Services ===
	identity := service.NewIdentityService(s.db, passwords, tokens, s.logger)
	engagement := service.NewEngagementService(s.db, s.db, s.logger)
	polls := service.NewPollService(s.db, s.logger)
	chat := service.NewChatService(opts.Assistant, catalog, s.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := polls.EnsureDefaultPoll(ctx); err != nil {
		return err
	}

	// === Handlers ===
	postHandler := handler.NewPostHandler(engagement, s.logger)
	userHandler := handler.NewUserHandler(identity, s.logger)
	pollHandler := handler.NewPollHandler(polls, s.logger)
	chatHandler := handler.NewChatHandler(chat, s.logger)
	articleHandler := handler.NewArticleHandler(catalog)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	requireAuth := auth.RequireAuth(identity)
	optionalAuth := auth.OptionalAuth(identity)

	s.router.Get("/health", healthHandler.HandleHealth)

	if s.config.GoogleEnabled() {
		google := auth.NewGoogleProvider(s.config.GoogleClientID, s.config.GoogleClientSecret, s.config.GoogleCallbackURL)
		authHandler := handler.NewAuthHandler(google, identity, s.logger)
		s.router.Get("/auth/google/login", authHandler.HandleGoogleLogin)
		s.router.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.HandleList)
			r.Get("/trending", postHandler.HandleTrending)
			r.Get("/article/{articleNumber}", postHandler.HandleListByArticle)
			r.Get("/user/{userId}", postHandler.HandleListByUser)
			r.Get("/{postId}", postHandler.HandleGet)
			r.Get("/{postId}/stats", postHandler.HandleStats)
			r.Get("/{postId}/responses", postHandler.HandleResponses)
			r.Get("/{postId}/comments", postHandler.HandleListComments)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", postHandler.HandleCreate)
				r.Post("/{postId}/agree", postHandler.HandleAgree)
				r.Post("/{postId}/disagree", postHandler.HandleDisagree)
				r.Get("/{postId}/responded", postHandler.HandleHasResponded)
				r.Post("/{postId}/comments", postHandler.HandleAddComment)
			})
		})

		r.Get("/trending-posts", postHandler.HandleTrending)
		r.With(requireAuth).Get("/my-posts", postHandler.HandleMyPosts)

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", userHandler.HandleRegister)
			r.Post("/login", userHandler.HandleLogin)
			r.Post("/google-login", userHandler.HandleGoogleLogin)
			r.Post("/change-password", userHandler.HandleChangePassword)
			r.With(requireAuth).Get("/me", userHandler.HandleMe)
			r.With(requireAuth).Get("/{userId}", userHandler.HandleProfile)
		})

		r.Route("/vote", func(r chi.Router) {
			r.With(optionalAuth).Get("/", pollHandler.HandleList)
			r.Get("/{pollId}", pollHandler.HandleGet)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", pollHandler.HandleVote)
				r.Post("/create", pollHandler.HandleCreate)
				r.Delete("/{pollId}", pollHandler.HandleDelete)
			})
		})

		r.Post("/chat", chatHandler.HandleChat)

		r.Get("/articles", articleHandler.HandleList)
		r.Get("/articles/{number}", articleHandler.HandleGet)
	})

	if s.config.StaticDir != "" {
		s.router.Handle("/*", spaHandler(s.config.StaticDir))
	}

	return nil
}

// spaHandler serves files from dir and falls back to index.html so the
// client-side router can handle deep links.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Chat answers can take a while; the assistant has its own timeout.
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
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
