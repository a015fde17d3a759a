package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/lifecycle"
	"github.com/spec-kit/doubt-service/internal/observability"
	"github.com/spec-kit/doubt-service/internal/repository"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

// Sweep names.
const (
	SweepAutoClose  = "auto_close"
	SweepEscalation = "escalation"
)

// SweepReport summarises one sweep pass.
type SweepReport struct {
	Sweep   string `json:"sweep"`
	Scanned int    `json:"scanned"`
	Applied int    `json:"applied"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// SweepOptions controls sweep behaviour.
type SweepOptions struct {
	BatchSize         int
	EscalationEnabled bool
}

// SweepService applies time-driven transitions as the system actor.
type SweepService struct {
	doubts  *DoubtService
	repo    repository.DoubtRepository
	engine  *lifecycle.Engine
	opts    SweepOptions
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewSweepService constructs the service.
func NewSweepService(deps Dependencies, doubts *DoubtService, opts SweepOptions) *SweepService {
	deps = deps.withDefaults()
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	return &SweepService{
		doubts:  doubts,
		repo:    deps.Store.Doubts,
		engine:  deps.Engine,
		opts:    opts,
		logger:  deps.Logger.Named("sweep"),
		metrics: deps.Metrics,
	}
}

// AutoCloseSweep closes every doubt resolved at least AutoCloseAfter before now.
// Running it twice is harmless.
func (s *SweepService) AutoCloseSweep(ctx context.Context, now time.Time) (SweepReport, error) {
	cutoff := now.Add(-s.engine.Policy().AutoCloseAfter)
	candidates, err := s.repo.ListAutoCloseCandidates(ctx, cutoff, s.opts.BatchSize)
	if err != nil {
		return SweepReport{Sweep: SweepAutoClose}, storeError(err, "doubt", "")
	}
	return s.run(ctx, SweepAutoClose, lifecycle.ActionAutoClose, candidates, now), nil
}

// EscalationSweep escalates active doubts past their SLA deadline that were never escalated.
func (s *SweepService) EscalationSweep(ctx context.Context, now time.Time) (SweepReport, error) {
	if !s.opts.EscalationEnabled {
		return SweepReport{Sweep: SweepEscalation}, nil
	}
	candidates, err := s.repo.ListSLABreached(ctx, now, s.opts.BatchSize)
	if err != nil {
		return SweepReport{Sweep: SweepEscalation}, storeError(err, "doubt", "")
	}
	return s.run(ctx, SweepEscalation, lifecycle.ActionEscalate, candidates, now), nil
}

// RunAll performs both sweeps and returns their reports.
func (s *SweepService) RunAll(ctx context.Context, now time.Time) ([]SweepReport, error) {
	closeReport, closeErr := s.AutoCloseSweep(ctx, now)
	escReport, escErr := s.EscalationSweep(ctx, now)
	return []SweepReport{closeReport, escReport}, errors.Join(closeErr, escErr)
}

func (s *SweepService) run(ctx context.Context, sweep string, action lifecycle.Action, candidates []domain.Doubt, now time.Time) SweepReport {
	report := SweepReport{Sweep: sweep, Scanned: len(candidates)}
	system := domain.SystemActor()
	for _, d := range candidates {
		if ctx.Err() != nil {
			break
		}
		_, written, err := s.doubts.apply(ctx, d, action, system, now)
		switch {
		case err == nil && written:
			report.Applied++
		case err == nil:
			report.Skipped++
		case apperrors.HasCode(err, apperrors.CodeStaleState), apperrors.HasCode(err, apperrors.CodeGuardViolation):
			// Someone else moved the doubt first.
			report.Skipped++
		default:
			report.Failed++
			s.logger.Warn("sweep transition failed",
				zap.String("sweep", sweep),
				zap.String("doubt_id", d.ID),
				zap.Error(err))
		}
	}
	s.metrics.RecordSweep(sweep, "applied", report.Applied)
	s.metrics.RecordSweep(sweep, "skipped", report.Skipped)
	s.metrics.RecordSweep(sweep, "failed", report.Failed)
	if report.Scanned > 0 {
		s.logger.Info("sweep finished",
			zap.String("sweep", sweep),
			zap.Int("scanned", report.Scanned),
			zap.Int("applied", report.Applied),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed))
	}
	return report
}
