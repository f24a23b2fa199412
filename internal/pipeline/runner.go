// Package pipeline turns "capture the last N days" requests into orchestrated
// batch runs, serializing access to the single browser session.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/minsuoh/hipass-capture/internal/capture"
)

// ErrBusy is returned when a batch is already running. The portal tolerates
// one session at a time, so overlapping runs are refused rather than queued.
var ErrBusy = errors.New("a capture run is already in progress")

// Runner serializes batch capture runs over one browser engine.
type Runner struct {
	engine capture.Engine
	store  capture.ArtifactStore
	cfg    capture.OrchestratorConfig
	log    *zap.Logger

	mu sync.Mutex
}

func NewRunner(engine capture.Engine, store capture.ArtifactStore, cfg capture.OrchestratorConfig, log *zap.Logger) *Runner {
	return &Runner{
		engine: engine,
		store:  store,
		cfg:    cfg,
		log:    log.Named("pipeline"),
	}
}

// DateRange returns today and the n-1 days before it, today first. The most
// recent days are the ones most likely to be missing, so they go first.
func DateRange(today capture.Date, n int) []capture.Date {
	dates := make([]capture.Date, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, today.AddDays(-i))
	}
	return dates
}

// RunRange captures the last days days ending today. Returns ErrBusy when a
// run is already in flight.
func (r *Runner) RunRange(ctx context.Context, days int, progress capture.ProgressFunc) ([]capture.Outcome, error) {
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()

	dates := DateRange(capture.DateOf(time.Now()), days)
	r.log.Info("starting batch capture", zap.Int("days", days))
	orch := capture.NewOrchestrator(r.engine, r.store, r.cfg, r.log)
	outcomes := orch.RunBatch(ctx, dates, progress)
	r.log.Info("batch capture finished", zap.Int("outcomes", len(outcomes)))
	return outcomes, nil
}

// RunDate captures a single specific date. Returns ErrBusy when a batch is
// already in flight.
func (r *Runner) RunDate(ctx context.Context, date capture.Date) ([]capture.Outcome, error) {
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()

	r.log.Info("starting single date capture", zap.String("date", date.Display()))
	orch := capture.NewOrchestrator(r.engine, r.store, r.cfg, r.log)
	return orch.RunSingle(ctx, date, nil), nil
}

// Busy reports whether a run is currently in flight.
func (r *Runner) Busy() bool {
	if r.mu.TryLock() {
		r.mu.Unlock()
		return false
	}
	return true
}
