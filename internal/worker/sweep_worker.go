package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/service"
)

const sweepLockKey = "doubts:sweep:lock"

// SweepWorker runs the lifecycle sweeps on a fixed interval.
type SweepWorker struct {
	sweeps   *service.SweepService
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration
	clock    func() time.Time
	logger   *zap.Logger
}

// NewSweepWorker builds a worker. A nil locker runs every pass unlocked.
func NewSweepWorker(sweeps *service.SweepService, locker Locker, interval, lockTTL time.Duration, logger *zap.Logger) *SweepWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lockTTL <= 0 {
		lockTTL = interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepWorker{
		sweeps:   sweeps,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   logger.Named("sweep_worker"),
	}
}

// Start runs one pass immediately and then one per interval until ctx is done.
func (w *SweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single locked pass. It reports whether the pass ran.
func (w *SweepWorker) RunOnce(ctx context.Context) bool {
	if w.locker != nil {
		release, ok, err := w.locker.Acquire(ctx, sweepLockKey, w.lockTTL)
		if err != nil {
			w.logger.Warn("sweep lock unavailable", zap.Error(err))
			return false
		}
		if !ok {
			w.logger.Debug("sweep held by another replica")
			return false
		}
		defer release()
	}

	if _, err := w.sweeps.RunAll(ctx, w.clock()); err != nil {
		w.logger.Error("sweep failed", zap.Error(err))
	}
	return true
}
