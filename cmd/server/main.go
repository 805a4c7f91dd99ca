// Command server runs the MovieSpace web application.
package main

import (
	"log/slog"
	"os"

	"github.com/drissi/moviespace/internal/config"
	"github.com/drissi/moviespace/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		slog.Error("invalid log level", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if cfg.UsingDefaultSecret() {
		logger.Warn("SECRET_KEY is not set; using the built-in default, session tokens are forgeable")
	}
	if cfg.TMDB.APIKey == "" {
		logger.Warn("TMDB_API_KEY is not set; movie data will be unavailable")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
