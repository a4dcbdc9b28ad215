package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/techwallet/internal/clock"
	"github.com/smallbiznis/techwallet/internal/config"
	obsmetrics "github.com/smallbiznis/techwallet/internal/observability/metrics"
	"github.com/smallbiznis/techwallet/internal/wallet/domain"
	"github.com/smallbiznis/techwallet/internal/wallet/lock"
	"github.com/smallbiznis/techwallet/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxTxAttempts = 3

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	Repo       domain.Repository
	Locker     lock.Locker
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	currency   string
	repo       domain.Repository
	locker     lock.Locker
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	currency := strings.ToUpper(strings.TrimSpace(p.Config.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("wallet.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		currency:   currency,
		repo:       p.Repo,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) EnsureWallet(ctx context.Context, tx *gorm.DB, technicianID snowflake.ID) error {
	if technicianID == 0 {
		return domain.ErrInvalidTechnicianID
	}
	now := s.clock.Now()
	return s.repo.EnsureWallet(ctx, tx, &domain.Wallet{
		TechnicianID: technicianID,
		Currency:     s.currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (s *Service) WithTechnicianLock(ctx context.Context, technicianID snowflake.ID, fn func(tx *gorm.DB) error) error {
	if technicianID == 0 {
		return domain.ErrInvalidTechnicianID
	}

	release, err := s.locker.Lock(ctx, technicianID)
	if err != nil {
		return err
	}
	defer release()

	// Once the lock is held the unit runs to commit or rollback even if
	// the caller goes away.
	txCtx := context.WithoutCancel(ctx)
	for attempt := 1; ; attempt++ {
		err = s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
			if err := s.EnsureWallet(txCtx, tx, technicianID); err != nil {
				return err
			}
			wallet, err := s.repo.FindWallet(txCtx, tx, technicianID, true)
			if err != nil {
				return err
			}
			if wallet == nil {
				return domain.ErrWalletNotFound
			}
			return fn(tx)
		})
		if err == nil || !db.IsRetryable(err) || attempt == maxTxAttempts {
			return err
		}
		s.log.Warn("retrying wallet transaction",
			zap.String("technician_id", technicianID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}

func (s *Service) Credit(ctx context.Context, technicianID snowflake.ID, amount int64, source domain.Source) (*domain.Transaction, error) {
	var txn *domain.Transaction
	err := s.WithTechnicianLock(ctx, technicianID, func(tx *gorm.DB) error {
		var err error
		txn, err = s.CreditTx(ctx, tx, technicianID, amount, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordPosting(ctx, txn)
	return txn, nil
}

func (s *Service) Debit(ctx context.Context, technicianID snowflake.ID, amount int64, source domain.Source) (*domain.Transaction, error) {
	var txn *domain.Transaction
	err := s.WithTechnicianLock(ctx, technicianID, func(tx *gorm.DB) error {
		var err error
		txn, err = s.DebitTx(ctx, tx, technicianID, amount, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordPosting(ctx, txn)
	return txn, nil
}

func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, technicianID snowflake.ID, amount int64, source domain.Source) (*domain.Transaction, error) {
	return s.post(ctx, tx, technicianID, domain.DirectionCredit, amount, source)
}

func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, technicianID snowflake.ID, amount int64, source domain.Source) (*domain.Transaction, error) {
	return s.post(ctx, tx, technicianID, domain.DirectionDebit, amount, source)
}

// post appends the ledger line and moves the cached balance in the same
// transaction. The caller must hold the technician lock.
func (s *Service) post(ctx context.Context, tx *gorm.DB, technicianID snowflake.ID, direction domain.Direction, amount int64, source domain.Source) (*domain.Transaction, error) {
	if technicianID == 0 {
		return nil, domain.ErrInvalidTechnicianID
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if amount > domain.MaxAmount {
		return nil, domain.ErrAmountOverflow
	}
	if err := validateSource(source); err != nil {
		return nil, err
	}

	wallet, err := s.repo.FindWallet(ctx, tx, technicianID, true)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, domain.ErrWalletNotFound
	}

	balance := wallet.Balance
	switch direction {
	case domain.DirectionCredit:
		if amount > math.MaxInt64-wallet.Balance {
			return nil, domain.ErrAmountOverflow
		}
		balance += amount
	case domain.DirectionDebit:
		if wallet.Balance < amount {
			return nil, &domain.InsufficientBalanceError{
				TechnicianID: technicianID,
				Requested:    amount,
				Available:    wallet.Balance,
			}
		}
		balance -= amount
	}

	now := s.clock.Now()
	txn := &domain.Transaction{
		ID:           s.genID.Generate(),
		TechnicianID: technicianID,
		Direction:    direction,
		Amount:       amount,
		BalanceAfter: balance,
		SourceKind:   source.Kind,
		SourceID:     source.ID,
		Description:  strings.TrimSpace(source.Description),
		CreatedAt:    now,
	}
	inserted, err := s.repo.InsertTransaction(ctx, tx, txn)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateSource
		}
		return nil, err
	}
	if !inserted {
		return nil, domain.ErrDuplicateSource
	}

	wallet.Balance = balance
	wallet.UpdatedAt = now
	if err := s.repo.UpdateBalance(ctx, tx, wallet); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) GetBalance(ctx context.Context, technicianID snowflake.ID) (int64, error) {
	return s.GetBalanceTx(ctx, s.db, technicianID)
}

func (s *Service) GetBalanceTx(ctx context.Context, tx *gorm.DB, technicianID snowflake.ID) (int64, error) {
	if technicianID == 0 {
		return 0, domain.ErrInvalidTechnicianID
	}
	wallet, err := s.repo.FindWallet(ctx, tx, technicianID, false)
	if err != nil {
		return 0, err
	}
	if wallet == nil {
		return 0, domain.ErrWalletNotFound
	}
	return wallet.Balance, nil
}

func (s *Service) GetWallet(ctx context.Context, technicianID snowflake.ID) (*domain.Wallet, error) {
	if technicianID == 0 {
		return nil, domain.ErrInvalidTechnicianID
	}
	wallet, err := s.repo.FindWallet(ctx, s.db, technicianID, false)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, domain.ErrWalletNotFound
	}
	return wallet, nil
}

func (s *Service) ListTransactions(ctx context.Context, technicianID snowflake.ID) ([]domain.Transaction, error) {
	if technicianID == 0 {
		return nil, domain.ErrInvalidTechnicianID
	}
	return s.repo.ListTransactions(ctx, s.db, technicianID)
}

func (s *Service) Totals(ctx context.Context, technicianID snowflake.ID) (domain.Totals, error) {
	if technicianID == 0 {
		return domain.Totals{}, domain.ErrInvalidTechnicianID
	}
	return s.repo.Totals(ctx, s.db, technicianID)
}

func (s *Service) ListWalletIDs(ctx context.Context, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListWalletIDs(ctx, s.db, afterID, limit)
}

func (s *Service) recordPosting(ctx context.Context, txn *domain.Transaction) {
	if txn == nil {
		return
	}
	s.log.Info("ledger posted",
		zap.String("technician_id", txn.TechnicianID.String()),
		zap.String("direction", string(txn.Direction)),
		zap.Int64("amount", txn.Amount),
		zap.Int64("balance_after", txn.BalanceAfter),
		zap.String("source_kind", string(txn.SourceKind)),
		zap.String("source_id", txn.SourceID.String()),
	)
	s.obsMetrics.RecordLedgerPosting(ctx, string(txn.Direction), string(txn.SourceKind))
}

func validateSource(source domain.Source) error {
	switch source.Kind {
	case domain.SourceKindAccrual, domain.SourceKindPayout:
	default:
		return domain.ErrInvalidSource
	}
	if source.ID == 0 {
		return domain.ErrInvalidSource
	}
	return nil
}
