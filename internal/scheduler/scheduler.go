// Package scheduler runs the daily automatic capture: prune expired
// artifacts, then refresh the recent date window.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/minsuoh/hipass-capture/internal/capture"
)

// Runner is the slice of the pipeline the scheduler drives.
type Runner interface {
	RunRange(ctx context.Context, days int, progress capture.ProgressFunc) ([]capture.Outcome, error)
}

// Pruner removes artifacts older than the retention window.
type Pruner interface {
	Prune(now time.Time, retentionDays int) (int, error)
}

// Worker fires the daily run at a fixed local hour.
type Worker struct {
	runner    Runner
	pruner    Pruner
	hour      int
	days      int
	retention int
	loc       *time.Location
	log       *zap.Logger
}

func NewWorker(runner Runner, pruner Pruner, hour, days, retention int, loc *time.Location, log *zap.Logger) *Worker {
	if loc == nil {
		loc = time.Local
	}
	return &Worker{
		runner:    runner,
		pruner:    pruner,
		hour:      hour,
		days:      days,
		retention: retention,
		loc:       loc,
		log:       log.Named("scheduler"),
	}
}

// nextRun returns the next occurrence of the configured hour, local to loc.
func nextRun(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	t := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !t.After(local) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// Run sleeps until the next anchor, fires, and repeats until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	for {
		next := nextRun(time.Now(), w.hour, w.loc)
		sleep := time.Until(next)
		if sleep < 0 {
			sleep = 0
		}
		w.log.Info("next scheduled run", zap.Time("at", next))

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	w.log.Info("scheduled run starting")

	if removed, err := w.pruner.Prune(time.Now(), w.retention); err != nil {
		w.log.Error("retention pruning failed", zap.Error(err))
	} else if removed > 0 {
		w.log.Info("retention pruning complete", zap.Int("removed", removed))
	}

	outcomes, err := w.runner.RunRange(ctx, w.days, nil)
	if err != nil {
		// A manual run holds the lock; the window is retried tomorrow.
		w.log.Warn("scheduled capture refused", zap.Error(err))
		return
	}
	w.log.Info("scheduled run finished", zap.Int("outcomes", len(outcomes)))
}
