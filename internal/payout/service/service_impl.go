package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/techwallet/internal/audit/domain"
	"github.com/smallbiznis/techwallet/internal/clock"
	earningdomain "github.com/smallbiznis/techwallet/internal/earning/domain"
	obsmetrics "github.com/smallbiznis/techwallet/internal/observability/metrics"
	"github.com/smallbiznis/techwallet/internal/payout/domain"
	walletdomain "github.com/smallbiznis/techwallet/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	referencePrefix = "PO-"

	maxReasonLength = 500
	maxMethodLength = 120
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	WalletSvc  walletdomain.Service
	EarningSvc earningdomain.Service
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	walletSvc  walletdomain.Service
	earningSvc earningdomain.Service
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payout.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		walletSvc:  p.WalletSvc,
		earningSvc: p.EarningSvc,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) RequestPayout(ctx context.Context, req domain.CreateRequest) (*domain.PayoutRequest, error) {
	if req.TechnicianID == 0 {
		return nil, walletdomain.ErrInvalidTechnicianID
	}
	if req.Amount <= 0 {
		return nil, walletdomain.ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)
	method := strings.TrimSpace(req.PaymentMethod)
	if len(reason) > maxReasonLength || len(method) > maxMethodLength {
		return nil, domain.ErrInvalidReason
	}

	balance, err := s.walletSvc.GetBalance(ctx, req.TechnicianID)
	if err != nil {
		return nil, err
	}
	if req.Amount > balance {
		return nil, &walletdomain.InsufficientBalanceError{
			TechnicianID: req.TechnicianID,
			Requested:    req.Amount,
			Available:    balance,
		}
	}

	payout := &domain.PayoutRequest{
		ID:              s.genID.Generate(),
		Reference:       referencePrefix + ulid.Make().String(),
		TechnicianID:    req.TechnicianID,
		RequestedAmount: req.Amount,
		Reason:          reason,
		PaymentMethod:   method,
		Status:          domain.StatusPending,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, payout); err != nil {
		return nil, err
	}

	s.log.Info("payout requested",
		zap.String("payout_id", payout.ID.String()),
		zap.String("reference", payout.Reference),
		zap.String("technician_id", payout.TechnicianID.String()),
		zap.Int64("amount", payout.RequestedAmount),
	)
	s.obsMetrics.RecordPayoutDecision(ctx, string(payout.Status), "requested")
	s.audit(ctx, "payout.requested", payout, nil)
	return payout, nil
}

func (s *Service) Approve(ctx context.Context, id snowflake.ID, approverID string) (*domain.PayoutRequest, error) {
	approverID = strings.TrimSpace(approverID)
	if approverID == "" {
		return nil, domain.ErrInvalidApprover
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(current.Status, domain.StatusApproved) {
		return nil, domain.ErrInvalidTransition
	}

	var (
		settled  []earningdomain.EarningRecord
		debit    *walletdomain.Transaction
		balance  int64
		approved bool
	)
	err = s.walletSvc.WithTechnicianLock(ctx, current.TechnicianID, func(tx *gorm.DB) error {
		settled, debit, approved = nil, nil, false

		payout, err := s.repo.FindByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if payout == nil {
			return domain.ErrPayoutNotFound
		}
		if payout.Status != domain.StatusPending {
			return domain.ErrInvalidTransition
		}

		balance, err = s.walletSvc.GetBalanceTx(ctx, tx, payout.TechnicianID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if payout.RequestedAmount > balance {
			return s.transition(ctx, tx, id, domain.Transition{
				From:           domain.StatusPending,
				To:             domain.StatusRejected,
				DecisionReason: domain.ReasonInsufficientAtApproval,
				DecidedBy:      approverID,
				DecidedAt:      &now,
			})
		}

		debit, err = s.walletSvc.DebitTx(ctx, tx, payout.TechnicianID, payout.RequestedAmount, walletdomain.Source{
			Kind:        walletdomain.SourceKindPayout,
			ID:          payout.ID,
			Description: "payout " + payout.Reference,
		})
		if err != nil {
			return err
		}
		settled, err = s.earningSvc.SettleTx(ctx, tx, payout.TechnicianID, payout.ID, payout.RequestedAmount)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, tx, id, domain.Transition{
			From:       domain.StatusPending,
			To:         domain.StatusApproved,
			DecidedBy:  approverID,
			DecidedAt:  &now,
			ApprovedAt: &now,
		}); err != nil {
			return err
		}
		if err := s.transition(ctx, tx, id, domain.Transition{
			From:   domain.StatusApproved,
			To:     domain.StatusPaid,
			PaidAt: &now,
		}); err != nil {
			return err
		}
		approved = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	payout, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !approved {
		s.log.Warn("payout auto-rejected at approval",
			zap.String("payout_id", payout.ID.String()),
			zap.String("technician_id", payout.TechnicianID.String()),
			zap.Int64("requested", payout.RequestedAmount),
			zap.Int64("available", balance),
		)
		s.obsMetrics.RecordPayoutDecision(ctx, string(payout.Status), "insufficient_balance")
		s.audit(ctx, "payout.rejected", payout, map[string]any{"available": balance})
		return payout, nil
	}

	earningIDs := make([]string, 0, len(settled))
	for _, record := range settled {
		earningIDs = append(earningIDs, record.ID.String())
	}
	s.log.Info("payout settled",
		zap.String("payout_id", payout.ID.String()),
		zap.String("technician_id", payout.TechnicianID.String()),
		zap.Int64("amount", payout.RequestedAmount),
		zap.Int64("balance_after", debit.BalanceAfter),
		zap.Int("earnings_settled", len(settled)),
	)
	s.obsMetrics.RecordLedgerPosting(ctx, string(debit.Direction), string(debit.SourceKind))
	s.obsMetrics.RecordPayoutDecision(ctx, string(payout.Status), "approved")
	s.audit(ctx, "payout.paid", payout, map[string]any{
		"ledger_transaction_id": debit.ID.String(),
		"earning_ids":           earningIDs,
	})
	return payout, nil
}

func (s *Service) Reject(ctx context.Context, id snowflake.ID, approverID, reason string) (*domain.PayoutRequest, error) {
	approverID = strings.TrimSpace(approverID)
	if approverID == "" {
		return nil, domain.ErrInvalidApprover
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLength {
		return nil, domain.ErrInvalidReason
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(current.Status, domain.StatusRejected) {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	if err := s.transition(ctx, s.db, id, domain.Transition{
		From:           domain.StatusPending,
		To:             domain.StatusRejected,
		DecisionReason: reason,
		DecidedBy:      approverID,
		DecidedAt:      &now,
	}); err != nil {
		return nil, err
	}

	payout, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("payout rejected",
		zap.String("payout_id", payout.ID.String()),
		zap.String("technician_id", payout.TechnicianID.String()),
		zap.String("decided_by", approverID),
	)
	s.obsMetrics.RecordPayoutDecision(ctx, string(payout.Status), "manual")
	s.audit(ctx, "payout.rejected", payout, nil)
	return payout, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.PayoutRequest, error) {
	return s.load(ctx, id)
}

func (s *Service) ListPayoutRequests(ctx context.Context, technicianID snowflake.ID, status *domain.Status) ([]domain.PayoutRequest, error) {
	if technicianID == 0 {
		return nil, walletdomain.ErrInvalidTechnicianID
	}
	return s.repo.List(ctx, s.db, technicianID, status)
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (*domain.PayoutRequest, error) {
	if id == 0 {
		return nil, domain.ErrPayoutNotFound
	}
	payout, err := s.repo.FindByID(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, domain.ErrPayoutNotFound
	}
	return payout, nil
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, id snowflake.ID, t domain.Transition) error {
	if !domain.CanTransition(t.From, t.To) {
		return domain.ErrInvalidTransition
	}
	ok, err := s.repo.Transition(ctx, tx, id, t)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *Service) audit(ctx context.Context, action string, payout *domain.PayoutRequest, extra map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := payout.ID.String()
	metadata := map[string]any{
		"reference":      payout.Reference,
		"technician_id":  payout.TechnicianID.String(),
		"amount":         payout.RequestedAmount,
		"status":         string(payout.Status),
		"payment_method": payout.PaymentMethod,
	}
	if payout.DecisionReason != "" {
		metadata["decision_reason"] = payout.DecisionReason
	}
	if payout.DecidedBy != "" {
		metadata["decided_by"] = payout.DecidedBy
	}
	for k, v := range extra {
		metadata[k] = v
	}
	if err := s.auditSvc.AuditLog(ctx, action, "payout_request", &targetID, metadata); err != nil {
		s.log.Warn("failed to write payout audit log", zap.String("action", action), zap.Error(err))
	}
}
