package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	config "github.com/NordCoder/Heartbeat/internal/config/scheduler"
)

var (
	mScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_checks_scanned_total", Help: "Active checks loaded by sweeps",
	})
	mOverdue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_checks_overdue_total", Help: "Overdue checks found by sweeps",
	})
	mFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_checks_failed_total", Help: "Checks transitioned to failed",
	})
	mSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_checks_skipped_total", Help: "Overdue checks left unchanged (locked or recovered meanwhile)",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_errors_total", Help: "Errors in scheduler loop",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "scheduler_loop_duration_seconds", Help: "Scheduler tick duration",
		Buckets: prometheus.DefBuckets,
	})
)

type Runner struct {
	Log *zap.Logger
	UC  *Usecase
	Cfg *config.SchedCfg
}

func New(log *zap.Logger, uc *Usecase, cfg *config.SchedCfg) *Runner {
	return &Runner{Log: log, UC: uc, Cfg: cfg}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	defer func() { mLoopDur.Observe(time.Since(start).Seconds()) }()

	res, err := r.UC.Sweep(ctx)
	if err != nil {
		mErr.Inc()
		r.Log.Warn("sweep aborted", zap.Error(err))
		return
	}
	mScanned.Add(float64(res.Scanned))
	mOverdue.Add(float64(res.Overdue))
	mFailed.Add(float64(res.Failed))
	mSkipped.Add(float64(res.Skipped))
	mErr.Add(float64(res.Errors))

	if res.Overdue > 0 {
		r.Log.Debug("sweep done",
			zap.Int("scanned", res.Scanned),
			zap.Int("overdue", res.Overdue),
			zap.Int("failed", res.Failed),
			zap.Int("skipped", res.Skipped),
			zap.Int("errors", res.Errors),
		)
	}
}

// Run sweeps once immediately, then every Cfg.Tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Cfg.Tick)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
