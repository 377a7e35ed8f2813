// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package closing closes voting once its scheduled closing time passes.
package closing

import (
	"context"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/clock"
	"codeberg.org/oliverandrich/votemail/internal/config"
	"codeberg.org/oliverandrich/votemail/internal/models"
)

// Store is the part of the repository the scheduler uses.
type Store interface {
	CloseIfExpired(ctx context.Context, now time.Time) (bool, error)
	GetVotingConfig(ctx context.Context) (*models.VotingConfig, error)
}

// Scheduler periodically closes expired voting.
type Scheduler struct {
	store  Store
	cfg    config.ClosingConfig
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Scheduler. A nil logger uses slog.Default().
func New(store Store, cfg config.ClosingConfig, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: store, cfg: cfg, clock: clock.System{}, logger: logger}
}

// Tick closes voting if its closing time has passed and reports whether
// this call closed it. The decision is made by the store in one
// statement; the configuration is only read afterwards for logging.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	now := s.clock.Now()
	closed, err := s.store.CloseIfExpired(ctx, now)
	if err != nil {
		s.logger.Error("closing check failed", "error", err)
		return false, err
	}
	if !closed {
		return false, nil
	}

	attrs := []any{"at", now.UTC().Format(time.RFC3339)}
	if cfg, err := s.store.GetVotingConfig(ctx); err == nil && cfg.ClosingTime != nil {
		attrs = append(attrs, "closing_time", cfg.ClosingTime.UTC().Format(time.RFC3339))
	}
	s.logger.Info("voting closed automatically", attrs...)
	return true, nil
}

// Run ticks after the startup delay and then every interval until ctx is
// done. Failed ticks are retried on the next interval.
func (s *Scheduler) Run(ctx context.Context) {
	startup := s.clock.NewTimer(s.cfg.StartupDelay)
	defer startup.Stop()

	select {
	case <-ctx.Done():
		return
	case <-startup.C():
	}

	s.logger.Info("closing scheduler started", "interval", s.cfg.Interval)
	_, _ = s.Tick(ctx)

	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("closing scheduler stopped")
			return
		case <-ticker.C():
			_, _ = s.Tick(ctx)
		}
	}
}
