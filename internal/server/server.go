// Package server is the composition root: it builds every dependency from
// the configuration, mounts the routes and runs the HTTP server until a
// shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/drissi/moviespace/internal/auth"
	"github.com/drissi/moviespace/internal/config"
	"github.com/drissi/moviespace/internal/handler"
	"github.com/drissi/moviespace/internal/jobs"
	"github.com/drissi/moviespace/internal/middleware"
	sqliteRepo "github.com/drissi/moviespace/internal/repository/sqlite"
	"github.com/drissi/moviespace/internal/service"
	"github.com/drissi/moviespace/internal/tmdb"
	"github.com/drissi/moviespace/web"
)

const (
	authRateLimit   = 10 // per IP per minute on POST /login and /register
	importRateLimit = 5  // per IP per minute on POST /import/csv

	shutdownTimeout = 30 * time.Second
)

// Server owns the router, the database and the import worker pool.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	pool   *jobs.Pool
}

// New opens the database and wires every layer. Call Close if Start is never
// called.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
		pool:   jobs.NewPool(cfg.Imports.Workers, cfg.Imports.QueueSize, logger),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.cfg.Auth.SecretKey)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	renderer, err := handler.NewRenderer(web.Templates, s.cfg.TMDB.ImageBaseURL, s.logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("loading static assets: %w", err)
	}

	provider := tmdb.NewClient(tmdb.Config{
		APIKey:  s.cfg.TMDB.APIKey,
		BaseURL: s.cfg.TMDB.BaseURL,
		Timeout: s.cfg.TMDB.Timeout,
	}, s.logger)

	// The sqlite DB implements every repository interface.
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
	catalogService := service.NewCatalogService(provider, s.db, s.db, s.db, s.db, s.logger)
	libraryService := service.NewLibraryService(provider, s.db, s.db, s.db, s.db, s.logger)
	reviewService := service.NewReviewService(provider, s.db, s.db, s.logger)
	importService := service.NewImportService(provider, s.db, s.db, s.db, s.pool, service.ImportConfig{
		MaxRows:   s.cfg.Imports.MaxRows,
		BatchSize: s.cfg.Imports.BatchSize,
	}, s.logger)
	if err := importService.FailInterrupted(context.Background()); err != nil {
		return err
	}

	authHandler := handler.NewAuthHandler(authService, renderer, s.logger)
	catalogHandler := handler.NewCatalogHandler(catalogService, renderer, s.logger)
	libraryHandler := handler.NewLibraryHandler(libraryService, reviewService, renderer, s.logger)
	importHandler := handler.NewImportHandler(importService, libraryService, s.cfg.Imports.MaxRows, renderer, s.logger)
	sitemapHandler := handler.NewSitemapHandler(s.db, s.cfg.Site.BaseURL, s.logger)

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(auth.LoadUser(tokens, s.db, s.logger))
	r.Use(middleware.Logger(s.logger))

	r.NotFound(renderer.NotFound)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	r.Get("/", catalogHandler.HandleHome)
	r.Get("/search", catalogHandler.HandleSearch)
	r.Get("/movie/{id}", catalogHandler.HandleMovie)
	r.Get("/sitemap.xml", sitemapHandler.HandleSitemap)

	r.Get("/login", authHandler.HandleLoginPage)
	r.Get("/register", authHandler.HandleRegisterPage)
	r.Get("/logout", authHandler.HandleLogout)
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(authRateLimit, time.Minute))
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/register", authHandler.HandleRegister)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)

		r.Post("/movie/{id}/add-to-list", libraryHandler.HandleSetStatus)
		r.Post("/movie/{id}/remove-from-list", libraryHandler.HandleClearStatus)
		r.Post("/movie/{id}/review", libraryHandler.HandleReview)
		r.Get("/profile", libraryHandler.HandleProfile)

		r.Get("/lists", libraryHandler.HandleLists)
		r.Post("/lists/create", libraryHandler.HandleCreateList)
		r.Get("/lists/{id}", libraryHandler.HandleViewList)
		r.Post("/lists/{id}/add-movie/{movie_id}", libraryHandler.HandleAddMovie)
		r.Post("/lists/{id}/delete", libraryHandler.HandleDeleteList)

		r.Get("/import", importHandler.HandlePage)
		r.With(httprate.LimitByIP(importRateLimit, time.Minute)).
			Post("/import/csv", importHandler.HandleUpload)
	})

	return nil
}

// Close stops the worker pool and closes the database.
func (s *Server) Close(ctx context.Context) error {
	poolErr := s.pool.Stop(ctx)
	return errors.Join(poolErr, s.db.Close())
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests,
// cancels running imports and closes the database.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Movie pages make several sequential metadata calls.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.pool.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.cfg.Database.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		s.logger.Error("releasing resources", slog.String("error", err.Error()))
	}

	if runErr == nil {
		s.logger.Info("server stopped gracefully")
	}
	return runErr
}
