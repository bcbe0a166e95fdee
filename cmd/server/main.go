// Package main is the entry point for the civic forum API server.
//
// main stays minimal: read configuration, build the logger and the optional
// collaborators, then hand everything to internal/server.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/civicforum/constitution-platform/internal/assistant/gemini"
	"github.com/civicforum/constitution-platform/internal/config"
	"github.com/civicforum/constitution-platform/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// mkdir -p for the database file's directory.
	if dbDir := filepath.Dir(cfg.DBPath); dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	opts := server.Options{}

	// The assistant is optional. Without it /api/chat answers 503.
	if cfg.GeminiAPIKey != "" {
		gcfg := gemini.DefaultConfig()
		gcfg.APIKey = cfg.GeminiAPIKey
		if len(cfg.GeminiModels) > 0 {
			gcfg.Models = gemini.ModelsFromNames(cfg.GeminiModels)
		}

		client, err := gemini.New(context.Background(), gcfg, logger)
		if err != nil {
			logger.Warn("gemini assistant unavailable, /api/chat will return 503",
				slog.String("error", err.Error()),
			)
		} else {
			opts.Assistant = client
		}
	} else {
		logger.Warn("GEMINI_API_KEY not set, /api/chat will return 503")
	}

	if !cfg.GoogleEnabled() {
		logger.Info("GOOGLE_CLIENT_ID/SECRET not set, server-side Google OAuth routes disabled")
	}

	srv, err := server.New(cfg, logger, opts)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
