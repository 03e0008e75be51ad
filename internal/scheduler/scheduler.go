// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"goalflow/internal/domain"
	"goalflow/internal/util"
)

// defaultJobTimeout bounds one reconciliation sweep.
const defaultJobTimeout = 5 * time.Minute

// Reconciler checks stored balances against the movement log.
type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]domain.BalanceReport, error)
}

// Jobs contains the scheduled tasks.
type Jobs struct {
	reconciler Reconciler
	logger     *slog.Logger
	timeout    time.Duration

	// a sweep is skipped while the previous one is still running
	running sync.Mutex
}

// NewJobs creates a new Jobs runner.
func NewJobs(reconciler Reconciler, logger *slog.Logger, timeout time.Duration) *Jobs {
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &Jobs{reconciler: reconciler, logger: logger, timeout: timeout}
}

// ReconcileBalances sweeps every account and logs drift. It never corrects balances.
// It returns the number of drifted accounts, or -1 when the sweep did not run to completion.
func (j *Jobs) ReconcileBalances() int {
	if !j.running.TryLock() {
		j.logger.Warn("previous balance reconciliation still running; skipping")
		return -1
	}
	defer j.running.Unlock()

	j.logger.Info("starting balance reconciliation job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	reports, err := j.reconciler.ReconcileAll(ctx)
	drifted := 0
	for _, r := range reports {
		if !r.Consistent {
			drifted++
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, util.ErrBalanceDrift):
		j.logger.Error("balance reconciliation found drift", "accounts", len(reports), "drifted", drifted, "error", err)
	default:
		j.logger.Error("balance reconciliation failed", "checked", len(reports), "error", err)
		return -1
	}

	j.logger.Info("balance reconciliation job finished", "accounts", len(reports), "drifted", drifted, "duration", time.Since(start).String())
	return drifted
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
	}
}

// Start registers the reconciliation job on schedule (standard five-field cron) and starts the scheduler.
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.jobs.ReconcileBalances() }); err != nil {
		s.logger.Error("failed to schedule balance reconciliation job", "schedule", schedule, "error", err)
		return err
	}
	s.logger.Info("scheduled balance reconciliation job", "schedule", schedule)
	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
