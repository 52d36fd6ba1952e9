// Package scheduler runs the periodic dispatch of PENDING transactions.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrJamesThe3rd/consignado/internal/reconciliation"
)

// Dispatcher is the part of the orchestrator the scheduler drives.
type Dispatcher interface {
	DispatchPending(ctx context.Context, filter reconciliation.DispatchFilter) (reconciliation.DispatchResult, error)
}

type Scheduler struct {
	cron       *cron.Cron
	dispatcher Dispatcher
	schedule   string
	timeout    time.Duration
	logger     *slog.Logger
}

func New(dispatcher Dispatcher, schedule string, timeout time.Duration, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))

	// SkipIfStillRunning keeps a slow dispatch from overlapping the next tick.
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:       c,
		dispatcher: dispatcher,
		schedule:   schedule,
		timeout:    timeout,
		logger:     logger,
	}
}

// Start registers the dispatch job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.DispatchPending); err != nil {
		s.logger.Error("failed to schedule dispatch job", "schedule", s.schedule, "error", err)
		return err
	}

	s.logger.Info("scheduled dispatch job", "schedule", s.schedule)
	s.cron.Start()

	return nil
}

// DispatchPending runs one dispatch over every bank and date.
func (s *Scheduler) DispatchPending() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.dispatcher.DispatchPending(ctx, reconciliation.DispatchFilter{})
	if err != nil {
		s.logger.Error("scheduled dispatch failed", "dispatched", res.DispatchedCount, "error", err)
		return
	}

	s.logger.Info("scheduled dispatch finished", "dispatched", res.DispatchedCount)
}

// Stop waits for a running dispatch to finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
