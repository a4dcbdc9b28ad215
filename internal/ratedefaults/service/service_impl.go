package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/techwallet/internal/audit/domain"
	"github.com/smallbiznis/techwallet/internal/clock"
	"github.com/smallbiznis/techwallet/internal/config"
	"github.com/smallbiznis/techwallet/internal/rate"
	"github.com/smallbiznis/techwallet/internal/ratedefaults/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxInsertAttempts = 3
	maxHistoryLimit   = 500

	actorSeed = "seed"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	Seed     *config.CompensationConfigHolder
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	seed     *config.CompensationConfigHolder
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ratedefaults.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		seed:     p.Seed,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Current(ctx context.Context) (domain.Snapshot, error) {
	return s.CurrentTx(ctx, s.db)
}

func (s *Service) CurrentTx(ctx context.Context, tx *gorm.DB) (domain.Snapshot, error) {
	latest, err := s.repo.Latest(ctx, tx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if latest != nil {
		return *latest, nil
	}
	return s.seedSnapshot(ctx, tx)
}

// seedSnapshot writes version 1 from the compensation config. A concurrent
// seeder winning the race is fine; its row is returned instead.
func (s *Service) seedSnapshot(ctx context.Context, tx *gorm.DB) (domain.Snapshot, error) {
	cfg := config.DefaultCompensationConfig()
	if s.seed != nil {
		cfg = s.seed.Get()
	}
	contractor, employee, err := cfg.Rates()
	if err != nil {
		return domain.Snapshot{}, rate.ErrInvalidRate
	}

	snapshot := domain.Snapshot{
		Version:        1,
		ContractorRate: contractor,
		EmployeeRate:   employee,
		CreatedBy:      actorSeed,
		CreatedAt:      s.clock.Now(),
	}
	inserted, err := s.repo.Insert(ctx, tx, &snapshot)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if inserted {
		s.log.Info("rate defaults seeded",
			zap.String("contractor_rate", contractor.String()),
			zap.String("employee_rate", employee.String()),
		)
		return snapshot, nil
	}

	latest, err := s.repo.Latest(ctx, tx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if latest == nil {
		return domain.Snapshot{}, domain.ErrVersionConflict
	}
	return *latest, nil
}

func (s *Service) SetRateDefaults(ctx context.Context, contractorRate, employeeRate decimal.Decimal, actor string) (domain.Snapshot, error) {
	if err := rate.Validate(contractorRate); err != nil {
		return domain.Snapshot{}, err
	}
	if err := rate.Validate(employeeRate); err != nil {
		return domain.Snapshot{}, err
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = string(auditdomain.ActorTypeSystem)
	}

	var (
		saved    domain.Snapshot
		previous domain.Snapshot
	)
	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		inserted := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			latest, err := s.repo.Latest(ctx, tx)
			if err != nil {
				return err
			}
			next := int64(1)
			if latest != nil {
				previous = *latest
				next = latest.Version + 1
			}
			saved = domain.Snapshot{
				Version:        next,
				ContractorRate: contractorRate,
				EmployeeRate:   employeeRate,
				CreatedBy:      actor,
				CreatedAt:      s.clock.Now(),
			}
			inserted, err = s.repo.Insert(ctx, tx, &saved)
			return err
		})
		if err != nil {
			return domain.Snapshot{}, err
		}
		if inserted {
			break
		}
		if attempt == maxInsertAttempts {
			return domain.Snapshot{}, domain.ErrVersionConflict
		}
	}

	s.log.Info("rate defaults updated",
		zap.Int64("version", saved.Version),
		zap.String("contractor_rate", saved.ContractorRate.String()),
		zap.String("employee_rate", saved.EmployeeRate.String()),
		zap.String("actor", actor),
	)
	s.audit(ctx, previous, saved)
	return saved, nil
}

func (s *Service) History(ctx context.Context, limit int) ([]domain.Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.List(ctx, s.db, limit)
}

func (s *Service) audit(ctx context.Context, previous, saved domain.Snapshot) {
	if s.auditSvc == nil {
		return
	}
	metadata := map[string]any{
		"version":         saved.Version,
		"contractor_rate": saved.ContractorRate.String(),
		"employee_rate":   saved.EmployeeRate.String(),
		"updated_by":      saved.CreatedBy,
	}
	if previous.Version > 0 {
		metadata["previous_version"] = previous.Version
		metadata["previous_contractor_rate"] = previous.ContractorRate.String()
		metadata["previous_employee_rate"] = previous.EmployeeRate.String()
	}
	if err := s.auditSvc.AuditLog(ctx, "rate_defaults.updated", "rate_defaults", nil, metadata); err != nil {
		s.log.Warn("failed to write rate defaults audit log", zap.Error(err))
	}
}
