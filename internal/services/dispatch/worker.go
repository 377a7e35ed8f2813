// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package dispatch sends pending voting code emails in rate-limited batches.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"codeberg.org/oliverandrich/votemail/internal/clock"
	"codeberg.org/oliverandrich/votemail/internal/config"
	"codeberg.org/oliverandrich/votemail/internal/models"
	"codeberg.org/oliverandrich/votemail/internal/services/mailer"
	"github.com/google/uuid"
)

// Store is the part of the repository the worker reads and updates.
type Store interface {
	ListPendingEmails(ctx context.Context, limit int) ([]models.VotingCode, error)
	MarkEmailSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkEmailFailed(ctx context.Context, id int64, reason string) error
}

// Publisher receives progress events, e.g. an SSE hub.
type Publisher interface {
	Publish(event string, payload any)
}

// Event names passed to Publisher.
const (
	EventCycleStarted  = "dispatch.started"
	EventItemSent      = "dispatch.sent"
	EventItemFailed    = "dispatch.failed"
	EventCycleFinished = "dispatch.finished"
	EventCycleAborted  = "dispatch.aborted"
)

// ItemEvent is published for every attempted email.
type ItemEvent struct {
	CycleID string `json:"cycle_id"`
	CodeID  int64  `json:"code_id"`
	Email   string `json:"email"`
	Error   string `json:"error,omitempty"`
}

// Result summarizes one cycle.
type Result struct {
	CycleID   string `json:"cycle_id,omitempty"`
	Skipped   bool   `json:"skipped"`
	Attempted int    `json:"attempted"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	// Full is set when the batch was full, so more work may be waiting.
	Full bool `json:"full"`
}

// Worker drains pending emails. One cycle runs at a time; cycles are
// started by Run on a timer, on Trigger, and again after a full batch.
type Worker struct {
	store     Store
	sender    mailer.Sender
	cfg       config.DispatchConfig
	clock     clock.Clock
	lock      Lock
	publisher Publisher
	logger    *slog.Logger

	trigger  chan struct{}
	resubmit chan struct{}
}

// Option configures a Worker.
type Option func(*Worker)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(w *Worker) { w.clock = c }
}

// WithLock replaces the in-process lock.
func WithLock(l Lock) Option {
	return func(w *Worker) { w.lock = l }
}

// WithPublisher sets the receiver of progress events.
func WithPublisher(p Publisher) Option {
	return func(w *Worker) { w.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// New creates a Worker.
func New(store Store, sender mailer.Sender, cfg config.DispatchConfig, opts ...Option) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	w := &Worker{
		store:    store,
		sender:   sender,
		cfg:      cfg,
		clock:    clock.System{},
		lock:     NewLocalLock(),
		logger:   slog.Default(),
		trigger:  make(chan struct{}, 1),
		resubmit: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Processing reports whether a cycle is running.
func (w *Worker) Processing() bool {
	return w.lock.Held()
}

// TryAcquire takes the cycle lock without running a cycle.
func (w *Worker) TryAcquire() bool {
	return w.lock.TryAcquire()
}

// Release frees the cycle lock.
func (w *Worker) Release() {
	w.lock.Release()
}

// Trigger asks Run to start a cycle and returns immediately. Triggers
// arriving while one is already queued are coalesced.
func (w *Worker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// RunCycle sends one batch of pending emails. It returns a skipped
// Result when another cycle holds the lock. Send failures are recorded on
// the row and do not fail the cycle; only a failed fetch or a cancelled
// context is returned as an error.
func (w *Worker) RunCycle(ctx context.Context) (Result, error) {
	if !w.lock.TryAcquire() {
		w.logger.Debug("dispatch cycle skipped", "reason", "already processing")
		return Result{Skipped: true}, nil
	}
	defer w.lock.Release()

	result := Result{CycleID: uuid.NewString()}
	logger := w.logger.With("cycle_id", result.CycleID)

	batch, err := w.store.ListPendingEmails(ctx, w.cfg.BatchSize)
	if err != nil {
		logger.Error("dispatch fetch failed", "error", err)
		w.publish(EventCycleAborted, result)
		return result, fmt.Errorf("fetching pending emails: %w", err)
	}
	if len(batch) == 0 {
		logger.Debug("no pending emails")
		return result, nil
	}

	result.Attempted = len(batch)
	result.Full = len(batch) == w.cfg.BatchSize
	logger.Info("dispatch cycle started", "batch", len(batch))
	w.publish(EventCycleStarted, result)

	for _, row := range batch {
		w.deliver(ctx, logger, &result, row)

		if err := w.clock.Sleep(ctx, w.cfg.RateLimit); err != nil {
			result.Full = false
			logger.Warn("dispatch cycle interrupted", "sent", result.Sent, "failed", result.Failed, "error", err)
			w.publish(EventCycleAborted, result)
			return result, err
		}
	}

	logger.Info("dispatch cycle complete", "sent", result.Sent, "failed", result.Failed, "full", result.Full)
	w.publish(EventCycleFinished, result)
	return result, nil
}

// deliver sends one email and records the outcome on its row.
func (w *Worker) deliver(ctx context.Context, logger *slog.Logger, result *Result, row models.VotingCode) {
	if row.Email == nil {
		return
	}
	item := ItemEvent{CycleID: result.CycleID, CodeID: row.ID, Email: *row.Email}

	sendErr := w.sender.Send(ctx, mailer.Notification{To: *row.Email, Code: row.Code})
	if sendErr != nil {
		result.Failed++
		item.Error = sendErr.Error()
		logger.Warn("email failed", "code_id", row.ID, "email", *row.Email, "error", sendErr)
		if err := w.store.MarkEmailFailed(ctx, row.ID, sendErr.Error()); err != nil {
			logger.Error("recording email failure failed", "code_id", row.ID, "error", err)
		}
		w.publish(EventItemFailed, item)
		return
	}

	result.Sent++
	logger.Debug("email sent", "code_id", row.ID, "email", *row.Email)
	if err := w.store.MarkEmailSent(ctx, row.ID, w.clock.Now()); err != nil {
		logger.Error("recording email delivery failed", "code_id", row.ID, "error", err)
	}
	w.publish(EventItemSent, item)
}

func (w *Worker) publish(event string, payload any) {
	if w.publisher != nil {
		w.publisher.Publish(event, payload)
	}
}

// Run starts cycles until ctx is done: once after the startup delay, on
// every interval tick, on Trigger, and a cooldown after each full batch.
// Each cycle runs in its own goroutine; overlapping starts are skipped by
// the lock. Run waits for running cycles before returning.
func (w *Worker) Run(ctx context.Context) {
	startup := w.clock.NewTimer(w.cfg.StartupDelay)
	defer startup.Stop()
	ticker := w.clock.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	var (
		wg       sync.WaitGroup
		cooldown clock.Timer
		cooling  <-chan time.Time
	)
	defer func() {
		if cooldown != nil {
			cooldown.Stop()
		}
	}()

	start := func(reason string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.logger.Debug("dispatch cycle requested", "reason", reason)
			result, err := w.RunCycle(ctx)
			if err == nil && result.Full {
				// The lock is already released here.
				select {
				case w.resubmit <- struct{}{}:
				default:
				}
			}
		}()
	}

	w.logger.Info("dispatch worker started",
		"batch_size", w.cfg.BatchSize,
		"rate_limit", w.cfg.RateLimit,
		"interval", w.cfg.Interval,
	)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			w.logger.Info("dispatch worker stopped")
			return
		case <-startup.C():
			start("startup")
		case <-ticker.C():
			start("interval")
		case <-w.trigger:
			start("trigger")
		case <-w.resubmit:
			if cooling == nil {
				cooldown = w.clock.NewTimer(w.cfg.Cooldown)
				cooling = cooldown.C()
			}
		case <-cooling:
			cooling = nil
			start("full batch")
		}
	}
}
