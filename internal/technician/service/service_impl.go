package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/techwallet/internal/audit/domain"
	"github.com/smallbiznis/techwallet/internal/clock"
	"github.com/smallbiznis/techwallet/internal/rate"
	"github.com/smallbiznis/techwallet/internal/technician/domain"
	walletdomain "github.com/smallbiznis/techwallet/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      domain.Repository
	WalletSvc walletdomain.Service
	AuditSvc  auditdomain.Service `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      domain.Repository
	walletSvc walletdomain.Service
	auditSvc  auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("technician.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		walletSvc: p.WalletSvc,
		auditSvc:  p.AuditSvc,
	}
}

func (s *Service) UpsertProfile(ctx context.Context, req domain.UpsertRequest) (*domain.Profile, error) {
	if req.ID == 0 {
		return nil, domain.ErrInvalidTechnicianID
	}
	techType, err := domain.ParseType(req.Type)
	if err != nil {
		return nil, err
	}
	status, err := domain.ParseEmploymentStatus(req.EmploymentStatus)
	if err != nil {
		return nil, err
	}

	customRate := decimal.NullDecimal{}
	if req.CustomRate != nil {
		if err := rate.Validate(*req.CustomRate); err != nil {
			return nil, err
		}
		customRate = decimal.NewNullDecimal(*req.CustomRate)
	}
	if req.UseCustomRate && !customRate.Valid {
		return nil, rate.ErrInvalidRate
	}

	now := s.clock.Now()
	profile := &domain.Profile{
		ID:               req.ID,
		DisplayName:      strings.TrimSpace(req.DisplayName),
		Type:             techType,
		CustomRate:       customRate,
		UseCustomRate:    req.UseCustomRate,
		EmploymentStatus: status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var saved *domain.Profile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Upsert(ctx, tx, profile); err != nil {
			return err
		}
		if err := s.walletSvc.EnsureWallet(ctx, tx, profile.ID); err != nil {
			return err
		}
		found, err := s.repo.FindByID(ctx, tx, profile.ID)
		if err != nil {
			return err
		}
		saved = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("technician profile saved",
		zap.String("technician_id", saved.ID.String()),
		zap.String("technician_type", string(saved.Type)),
		zap.Bool("use_custom_rate", saved.UseCustomRate),
	)
	s.audit(ctx, saved)
	return saved, nil
}

func (s *Service) GetProfile(ctx context.Context, id snowflake.ID) (*domain.Profile, error) {
	return s.GetProfileTx(ctx, s.db, id)
}

func (s *Service) GetProfileTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Profile, error) {
	if id == 0 {
		return nil, domain.ErrInvalidTechnicianID
	}
	profile, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrTechnicianNotFound
	}
	return profile, nil
}

func (s *Service) audit(ctx context.Context, profile *domain.Profile) {
	if s.auditSvc == nil {
		return
	}
	targetID := profile.ID.String()
	metadata := map[string]any{
		"technician_type":   string(profile.Type),
		"use_custom_rate":   profile.UseCustomRate,
		"employment_status": string(profile.EmploymentStatus),
	}
	if profile.CustomRate.Valid {
		metadata["custom_rate"] = profile.CustomRate.Decimal.String()
	}
	if err := s.auditSvc.AuditLog(ctx, "technician.profile_saved", "technician", &targetID, metadata); err != nil {
		s.log.Warn("failed to write technician audit log", zap.Error(err))
	}
}
