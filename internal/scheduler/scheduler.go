package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/techwallet/internal/audit/domain"
	"github.com/smallbiznis/techwallet/internal/clock"
	obscontext "github.com/smallbiznis/techwallet/internal/observability/context"
	obsmetrics "github.com/smallbiznis/techwallet/internal/observability/metrics"
	reconciliationdomain "github.com/smallbiznis/techwallet/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobReconcileSweep = "reconcile_sweep"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	ReconcileSvc reconciliationdomain.Service
	Metrics      *obsmetrics.SchedulerMetrics `optional:"true"`
	Config       Config                       `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	reconcileSvc reconciliationdomain.Service
	metrics      *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.ReconcileSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		reconcileSvc: p.ReconcileSvc,
		metrics:      p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	run := s.newJobRun(name, batchSize)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(name)

	err := fn(ctx, run)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	run.failed = err != nil
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.String("run_id", run.runID),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	if s.isJobEnabled(JobReconcileSweep) {
		err = errors.Join(err, s.runJob(parent, JobReconcileSweep, s.cfg.BatchSize, s.cfg.JobTimeout, s.ReconcileSweepJob))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ReconcileSweepJob checks every wallet against its ledger history.
// Divergent wallets are logged by the reconciliation service and never
// repaired here.
func (s *Scheduler) ReconcileSweepJob(ctx context.Context, run *jobRun) error {
	result, err := s.reconcileSvc.Sweep(ctx, s.cfg.BatchSize)
	run.recordSweep(result.Checked, len(result.Divergent), result.DivergenceTotal)
	if err != nil {
		return err
	}
	if len(result.Divergent) > 0 {
		ids := make([]string, 0, len(result.Divergent))
		for _, report := range result.Divergent {
			ids = append(ids, report.TechnicianID.String())
		}
		s.logger(ctx).Error("reconciliation found divergent wallets",
			zap.String("run_id", run.runID),
			zap.Int("divergent", len(result.Divergent)),
			zap.Int64("divergence_total", result.DivergenceTotal),
			zap.Strings("technician_ids", ids),
		)
	}
	return nil
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
