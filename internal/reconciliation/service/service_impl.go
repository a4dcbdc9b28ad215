package service

import (
	"context"
	"database/sql"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/techwallet/internal/clock"
	obsmetrics "github.com/smallbiznis/techwallet/internal/observability/metrics"
	"github.com/smallbiznis/techwallet/internal/reconciliation/domain"
	walletdomain "github.com/smallbiznis/techwallet/internal/wallet/domain"
	"github.com/smallbiznis/techwallet/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sweepJob         = "reconcile_sweep"
	defaultBatchSize = 200
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      domain.Repository
	WalletSvc walletdomain.Service
	Metrics   *obsmetrics.SchedulerMetrics `optional:"true"`
}

// Service only reads. Divergence is reported, never repaired.
type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      domain.Repository
	walletSvc walletdomain.Service
	metrics   *obsmetrics.SchedulerMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("reconciliation.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		walletSvc: p.WalletSvc,
		metrics:   p.Metrics,
	}
}

func (s *Service) Reconcile(ctx context.Context, technicianID snowflake.ID) (domain.Report, error) {
	if technicianID == 0 {
		return domain.Report{}, walletdomain.ErrInvalidTechnicianID
	}

	var snapshot domain.Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		snapshot, err = s.repo.Snapshot(ctx, tx, technicianID)
		return err
	}, s.readOptions())
	if err != nil {
		return domain.Report{}, err
	}
	if !snapshot.Found {
		return domain.Report{}, walletdomain.ErrWalletNotFound
	}

	expected := snapshot.Credits - snapshot.Debits
	return domain.Report{
		TechnicianID:      technicianID,
		ExpectedBalance:   expected,
		ActualBalance:     snapshot.Balance,
		EarnedUnpaidTotal: snapshot.EarnedUnpaid,
		Divergence:        snapshot.Balance - expected,
		CheckedAt:         s.clock.Now(),
	}, nil
}

// Sweep reconciles every wallet in id order, batchSize ids per page.
func (s *Service) Sweep(ctx context.Context, batchSize int) (domain.SweepResult, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var (
		result domain.SweepResult
		after  snowflake.ID
	)
	for {
		ids, err := s.walletSvc.ListWalletIDs(ctx, after, batchSize)
		if err != nil {
			return result, err
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				s.observe(result)
				return result, err
			}
			report, err := s.Reconcile(ctx, id)
			if err != nil {
				s.observe(result)
				return result, err
			}
			result.Checked++
			s.inspect(report, &result)
		}
		if len(ids) < batchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	s.observe(result)
	s.log.Info("reconciliation sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("divergent", len(result.Divergent)),
		zap.Int64("divergence_total", result.DivergenceTotal),
	)
	return result, nil
}

func (s *Service) inspect(report domain.Report, result *domain.SweepResult) {
	if err := report.Err(); err != nil {
		result.Divergent = append(result.Divergent, report)
		result.DivergenceTotal += abs(report.Divergence)
		s.log.Error("wallet balance diverged from ledger",
			zap.String("technician_id", report.TechnicianID.String()),
			zap.Int64("expected_balance", report.ExpectedBalance),
			zap.Int64("actual_balance", report.ActualBalance),
			zap.Int64("divergence", report.Divergence),
			zap.Error(err),
		)
	}
	if report.EarnedExceedsBalance() {
		s.log.Warn("unpaid earnings exceed wallet balance",
			zap.String("technician_id", report.TechnicianID.String()),
			zap.Int64("earned_unpaid_total", report.EarnedUnpaidTotal),
			zap.Int64("actual_balance", report.ActualBalance),
		)
	}
}

func (s *Service) observe(result domain.SweepResult) {
	s.metrics.ObserveSweep(sweepJob, result.Checked, len(result.Divergent), result.DivergenceTotal)
}

// readOptions asks PostgreSQL for one snapshot across the three reads.
// SQLite transactions are already snapshot-consistent.
func (s *Service) readOptions() *sql.TxOptions {
	if db.IsPostgres(s.db) {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
