// Package jobs runs the recurrence expansion and balance scan on a cron
// schedule.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mmynk/tally/internal/achievements"
	"github.com/mmynk/tally/internal/metrics"
	"github.com/mmynk/tally/internal/recurrence"
	"github.com/mmynk/tally/internal/storage"
)

// Report summarizes one run of both jobs.
type Report struct {
	Recurrence recurrence.Result
	Balances   achievements.Result
}

// Runner runs the recurrence expander followed by the balance scanner.
type Runner struct {
	expander *recurrence.Expander
	scanner  *achievements.Scanner
	logger   *slog.Logger
	now      func() time.Time

	// mu keeps runs from overlapping when triggered by hand during a
	// scheduled run.
	mu sync.Mutex
}

// NewRunner creates a Runner over store.
func NewRunner(store storage.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		expander: recurrence.NewExpander(store, logger),
		scanner:  achievements.NewScanner(store, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// RunOnce runs both jobs. A failing expander does not prevent the scan.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var report Report
	start := r.now()

	rec, recErr := r.expander.Run(ctx, start)
	report.Recurrence = rec
	record("recurrence", recErr)
	if recErr != nil {
		r.logger.Error("Recurrence job failed", "error", recErr)
	} else {
		r.logger.Info("Recurrence job finished",
			"groups", rec.Groups,
			"scanned", rec.Scanned,
			"renewed", rec.Renewed,
			"failed", rec.Failed,
		)
	}

	bal, balErr := r.scanner.Run(ctx)
	report.Balances = bal
	record("balances", balErr)
	if balErr != nil {
		r.logger.Error("Balance scan failed", "error", balErr)
	} else {
		r.logger.Info("Balance scan finished",
			"users", bal.Users,
			"lowered", bal.Lowered,
			"failed", bal.Failed,
		)
	}

	r.logger.Debug("Jobs finished", "duration_ms", time.Since(start).Milliseconds())
	return report, errors.Join(recErr, balErr)
}

func record(job string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.JobRuns.WithLabelValues(job, outcome).Inc()
}

// Scheduler fires a Runner on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler schedules runner with a standard five-field cron expression
// evaluated in loc. A tick that comes while the previous run is still going
// is skipped.
func NewScheduler(ctx context.Context, runner *Runner, schedule string, loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err := c.AddFunc(schedule, func() {
		// Failures are logged by the runner; the next tick tries again.
		_, _ = runner.RunOnce(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid job schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("Jobs scheduled", "next_run", e.Next)
	}
}

// Stop stops the schedule and returns a context that is done once a running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
