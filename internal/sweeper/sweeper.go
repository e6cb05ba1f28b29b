// Copyright (c) 2026 Identra. All rights reserved.
// Author: dev@identra.io

/*
Package sweeper runs the background expiry jobs.

Expired sessions and spent password-reset tokens are already rejected at read
time; the sweeper keeps the tables from accumulating dead rows.
*/
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ExpiredDeleter removes rows past their expiration and reports how many.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// sweepTimeout bounds one full sweep so a wedged database cannot pile up
// overlapping runs.
const sweepTimeout = 5 * time.Minute

// Sweeper owns the cron schedule and the cleanup targets.
type Sweeper struct {
	scheduler *cron.Cron
	sessions  ExpiredDeleter
	resets    ExpiredDeleter
	logger    *slog.Logger
}

// New constructs a [Sweeper] over the session and password-reset stores.
func New(sessions, resets ExpiredDeleter, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		scheduler: cron.New(),
		sessions:  sessions,
		resets:    resets,
		logger:    logger,
	}
}

// Start registers the hourly sweep and launches the scheduler.
// An immediate first sweep runs in the background so a long-stopped service
// does not wait an hour to shed its backlog.
func (sweeper *Sweeper) Start() error {
	if _, err := sweeper.scheduler.AddFunc("@hourly", sweeper.sweep); err != nil {
		return err
	}

	sweeper.scheduler.Start()
	go sweeper.sweep()

	return nil
}

// Stop halts the scheduler and waits for an in-flight sweep to finish.
func (sweeper *Sweeper) Stop() {
	ctx := sweeper.scheduler.Stop()
	<-ctx.Done()
}

// sweep runs one cleanup pass. Failures are logged and retried on the next
// tick; cleanup is advisory and never takes the service down.
func (sweeper *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	started := time.Now()

	sessions, err := sweeper.sessions.DeleteExpired(ctx)
	if err != nil {
		sweeper.logger.Error("sweep_sessions_failed", slog.String("error", err.Error()))
	}

	resets, err := sweeper.resets.DeleteExpired(ctx)
	if err != nil {
		sweeper.logger.Error("sweep_resets_failed", slog.String("error", err.Error()))
	}

	sweeper.logger.Info("sweep_completed",
		slog.Int64("expired_sessions", sessions),
		slog.Int64("expired_resets", resets),
		slog.Duration("took", time.Since(started)),
	)
}
