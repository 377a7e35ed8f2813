// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the store, the background workers and the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/config"
	"codeberg.org/oliverandrich/votemail/internal/database"
	"codeberg.org/oliverandrich/votemail/internal/handlers"
	"codeberg.org/oliverandrich/votemail/internal/i18n"
	"codeberg.org/oliverandrich/votemail/internal/repository"
	"codeberg.org/oliverandrich/votemail/internal/services/auth"
	"codeberg.org/oliverandrich/votemail/internal/services/closing"
	"codeberg.org/oliverandrich/votemail/internal/services/dispatch"
	"codeberg.org/oliverandrich/votemail/internal/services/mailer"
	"codeberg.org/oliverandrich/votemail/internal/services/provision"
	"codeberg.org/oliverandrich/votemail/internal/sse"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/urfave/cli/v3"
)

// shutdownTimeout bounds how long in-flight requests may finish.
const shutdownTimeout = 10 * time.Second

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	SetupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"database", cfg.Database.Driver,
	)

	// Database, migrated on open
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	repo := repository.New(db)

	sender, err := mailer.NewSMTPSender(&cfg.SMTP, &cfg.Mail)
	if err != nil {
		return fmt.Errorf("failed to configure mailer: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.Admin.TokenHash)
	if err != nil {
		return fmt.Errorf("failed to configure admin auth: %w", err)
	}

	hub := sse.NewHub()
	worker := dispatch.New(repo, sender, cfg.Dispatch,
		dispatch.WithPublisher(hub),
		dispatch.WithLogger(slog.Default().With("component", "dispatch")),
	)
	scheduler := closing.New(repo, cfg.Closing, slog.Default().With("component", "closing"))

	h := handlers.New(repo, worker, provision.NewService(repo, worker), hub)
	e := newEcho(cfg, h, verifier)

	return startWithGracefulShutdown(ctx, e, cfg, worker.Run, scheduler.Run)
}

// newEcho builds the HTTP API.
func newEcho(cfg *config.Config, h *handlers.Handlers, verifier *auth.Verifier) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())
	setupMiddleware(e, cfg)
	setupRoutes(e, h, verifier)

	return e
}

// startWithGracefulShutdown serves e and runs the background loops until
// SIGINT or SIGTERM, then drains requests and waits for the loops to stop.
func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config, background ...func(context.Context)) error {
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, run := range background {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(runCtx)
		}()
	}

	// Channel for server errors
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serveErr error
	select {
	case <-runCtx.Done():
		slog.Info("shutting down server")
	case serveErr = <-errChan:
		slog.Error("server error", "error", serveErr)
	}
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	wg.Wait()
	slog.Info("server stopped")
	return serveErr
}
