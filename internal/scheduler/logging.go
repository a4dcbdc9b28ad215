package scheduler

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/techwallet/internal/observability/logger"
	"go.uber.org/zap"
)

// jobRun accumulates the outcome of one job invocation for its finish line.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time

	checked         int
	divergent       int
	divergenceTotal int64
	failed          bool
}

func (r *jobRun) recordSweep(checked, divergent int, divergenceTotal int64) {
	if r == nil {
		return
	}
	r.checked += checked
	r.divergent += divergent
	r.divergenceTotal += divergenceTotal
}

func (s *Scheduler) newJobRun(job string, batchSize int) *jobRun {
	return &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: s.clock.Now(),
	}
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

// logJobFinish escalates to warn when the job failed or any wallet diverged.
func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("wallets_checked", run.checked),
		zap.Int("wallets_divergent", run.divergent),
		zap.Int64("divergence_total", run.divergenceTotal),
		zap.Bool("failed", run.failed),
	}
	if run.failed || run.divergent > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}
