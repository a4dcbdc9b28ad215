package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/techwallet/internal/audit/domain"
	"github.com/smallbiznis/techwallet/internal/clock"
	"github.com/smallbiznis/techwallet/internal/earning/domain"
	obsmetrics "github.com/smallbiznis/techwallet/internal/observability/metrics"
	"github.com/smallbiznis/techwallet/internal/rate"
	ratedefaultsdomain "github.com/smallbiznis/techwallet/internal/ratedefaults/domain"
	techniciandomain "github.com/smallbiznis/techwallet/internal/technician/domain"
	walletdomain "github.com/smallbiznis/techwallet/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	WalletSvc     walletdomain.Service
	TechnicianSvc techniciandomain.Service
	RateDefaults  ratedefaultsdomain.Service
	AuditSvc      auditdomain.Service `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	walletSvc     walletdomain.Service
	technicianSvc techniciandomain.Service
	rateDefaults  ratedefaultsdomain.Service
	auditSvc      auditdomain.Service
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("earning.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		walletSvc:     p.WalletSvc,
		technicianSvc: p.TechnicianSvc,
		rateDefaults:  p.RateDefaults,
		auditSvc:      p.AuditSvc,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Service) OnPaymentVerified(ctx context.Context, event domain.PaymentVerified) (*domain.AccrueResult, error) {
	return s.Accrue(ctx, domain.AccrueRequest{
		JobID:          event.JobID,
		TechnicianID:   event.TechnicianID,
		PaymentID:      event.PaymentID,
		VerifiedAmount: event.Amount,
	})
}

// Accrue records the earning for a verified payment and credits the wallet
// in one transaction. A second delivery for the same job and technician
// returns the stored record untouched.
func (s *Service) Accrue(ctx context.Context, req domain.AccrueRequest) (*domain.AccrueResult, error) {
	if err := validateAccrue(req); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByJob(ctx, s.db, req.JobID, req.TechnicianID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.duplicate(ctx, existing), nil
	}

	var (
		record    *domain.EarningRecord
		duplicate bool
		credited  *walletdomain.Transaction
	)
	err = s.walletSvc.WithTechnicianLock(ctx, req.TechnicianID, func(tx *gorm.DB) error {
		record, duplicate, credited = nil, false, nil

		found, err := s.repo.FindByJob(ctx, tx, req.JobID, req.TechnicianID)
		if err != nil {
			return err
		}
		if found != nil {
			record, duplicate = found, true
			return nil
		}

		profile, err := s.technicianSvc.GetProfileTx(ctx, tx, req.TechnicianID)
		if err != nil {
			return err
		}
		snapshot, err := s.rateDefaults.CurrentTx(ctx, tx)
		if err != nil {
			return err
		}
		resolution, err := rate.Resolve(*profile, snapshot)
		if err != nil {
			return err
		}
		kind, err := rate.KindFor(profile.Type)
		if err != nil {
			return err
		}

		candidate := &domain.EarningRecord{
			ID:                  s.genID.Generate(),
			TechnicianID:        req.TechnicianID,
			JobID:               req.JobID,
			PaymentID:           req.PaymentID,
			Kind:                kind,
			BaseAmount:          req.VerifiedAmount,
			RateApplied:         resolution.Rate,
			RateSource:          string(resolution.Source),
			RateDefaultsVersion: resolution.DefaultsVersion,
			Amount:              rate.Apply(req.VerifiedAmount, resolution.Rate),
			Status:              domain.StatusEarned,
			CreatedAt:           s.clock.Now(),
		}
		inserted, err := s.repo.Insert(ctx, tx, candidate)
		if err != nil {
			return err
		}
		if !inserted {
			found, err := s.repo.FindByJob(ctx, tx, req.JobID, req.TechnicianID)
			if err != nil {
				return err
			}
			if found == nil {
				return domain.ErrEarningNotFound
			}
			record, duplicate = found, true
			return nil
		}

		// A zero rate still leaves an auditable record; the ledger only
		// holds positive postings.
		if candidate.Amount > 0 {
			credited, err = s.walletSvc.CreditTx(ctx, tx, req.TechnicianID, candidate.Amount, walletdomain.Source{
				Kind:        walletdomain.SourceKindAccrual,
				ID:          candidate.ID,
				Description: string(kind) + " for job " + req.JobID.String(),
			})
			if err != nil {
				return err
			}
		}
		record = candidate
		return nil
	})
	if err != nil {
		if errors.Is(err, rate.ErrInvalidRate) {
			s.log.Error("accrual refused, rate configuration invalid",
				zap.String("technician_id", req.TechnicianID.String()),
				zap.String("job_id", req.JobID.String()),
			)
		}
		return nil, err
	}
	if duplicate {
		return s.duplicate(ctx, record), nil
	}

	s.log.Info("accrual recorded",
		zap.String("earning_id", record.ID.String()),
		zap.String("technician_id", record.TechnicianID.String()),
		zap.String("job_id", record.JobID.String()),
		zap.String("kind", string(record.Kind)),
		zap.String("rate_applied", record.RateApplied.String()),
		zap.String("rate_source", record.RateSource),
		zap.Int64("amount", record.Amount),
	)
	s.obsMetrics.RecordAccrual(ctx, string(record.Kind), record.Amount)
	if credited != nil {
		s.obsMetrics.RecordLedgerPosting(ctx, string(credited.Direction), string(credited.SourceKind))
	}
	s.audit(ctx, record)
	return &domain.AccrueResult{Record: record}, nil
}

func (s *Service) duplicate(ctx context.Context, record *domain.EarningRecord) *domain.AccrueResult {
	s.log.Info("accrual.duplicate",
		zap.String("earning_id", record.ID.String()),
		zap.String("technician_id", record.TechnicianID.String()),
		zap.String("job_id", record.JobID.String()),
	)
	s.obsMetrics.RecordDuplicateAccrual(ctx)
	return &domain.AccrueResult{Record: record, Duplicate: true}
}

func (s *Service) GetEarning(ctx context.Context, id snowflake.ID) (*domain.EarningRecord, error) {
	if id == 0 {
		return nil, domain.ErrEarningNotFound
	}
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrEarningNotFound
	}
	return record, nil
}

func (s *Service) ListEarnings(ctx context.Context, technicianID snowflake.ID, status *domain.Status) ([]domain.EarningRecord, error) {
	if technicianID == 0 {
		return nil, walletdomain.ErrInvalidTechnicianID
	}
	return s.repo.List(ctx, s.db, technicianID, status)
}

func (s *Service) EarnedUnpaidTotal(ctx context.Context, technicianID snowflake.ID) (int64, error) {
	if technicianID == 0 {
		return 0, walletdomain.ErrInvalidTechnicianID
	}
	return s.repo.SumByStatus(ctx, s.db, technicianID, domain.StatusEarned)
}

// SettleTx consumes whole EARNED records, oldest first, until their sum
// reaches amount. Records move to PAYABLE under the payout and then to PAID.
// A pool smaller than amount is consumed entirely; the ledger debit is the
// binding balance check.
func (s *Service) SettleTx(ctx context.Context, tx *gorm.DB, technicianID, payoutID snowflake.ID, amount int64) ([]domain.EarningRecord, error) {
	earned := domain.StatusEarned
	candidates, err := s.repo.List(ctx, tx, technicianID, &earned)
	if err != nil {
		return nil, err
	}

	var (
		selected []domain.EarningRecord
		ids      []snowflake.ID
		covered  int64
	)
	for _, record := range candidates {
		if covered >= amount {
			break
		}
		selected = append(selected, record)
		ids = append(ids, record.ID)
		covered += record.Amount
	}
	if len(ids) == 0 {
		return nil, nil
	}

	now := s.clock.Now()
	marked, err := s.repo.MarkPayable(ctx, tx, ids, payoutID, now)
	if err != nil {
		return nil, err
	}
	if marked != int64(len(ids)) {
		return nil, domain.ErrSettlementConflict
	}
	if _, err := s.repo.MarkPaid(ctx, tx, payoutID, now); err != nil {
		return nil, err
	}

	for i := range selected {
		selected[i].Status = domain.StatusPaid
		selected[i].PayoutID = &payoutID
		selected[i].PayableAt = &now
		selected[i].PaidAt = &now
	}
	return selected, nil
}

func (s *Service) audit(ctx context.Context, record *domain.EarningRecord) {
	if s.auditSvc == nil {
		return
	}
	targetID := record.ID.String()
	metadata := map[string]any{
		"technician_id":         record.TechnicianID.String(),
		"job_id":                record.JobID.String(),
		"payment_id":            record.PaymentID.String(),
		"kind":                  string(record.Kind),
		"base_amount":           record.BaseAmount,
		"rate_applied":          record.RateApplied.String(),
		"rate_source":           record.RateSource,
		"rate_defaults_version": record.RateDefaultsVersion,
		"amount":                record.Amount,
	}
	if err := s.auditSvc.AuditLog(ctx, "earning.accrued", "earning_record", &targetID, metadata); err != nil {
		s.log.Warn("failed to write accrual audit log", zap.Error(err))
	}
}

func validateAccrue(req domain.AccrueRequest) error {
	switch {
	case req.TechnicianID == 0:
		return walletdomain.ErrInvalidTechnicianID
	case req.JobID == 0:
		return domain.ErrInvalidJobID
	case req.PaymentID == 0:
		return domain.ErrInvalidPaymentID
	case req.VerifiedAmount <= 0:
		return walletdomain.ErrInvalidAmount
	case req.VerifiedAmount > walletdomain.MaxAmount:
		return walletdomain.ErrAmountOverflow
	}
	return nil
}
