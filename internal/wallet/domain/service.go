package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// EnsureWallet creates an empty wallet if none exists.
	EnsureWallet(ctx context.Context, tx *gorm.DB, technicianID snowflake.ID) error

	Credit(ctx context.Context, technicianID snowflake.ID, amount int64, source Source) (*Transaction, error)
	Debit(ctx context.Context, technicianID snowflake.ID, amount int64, source Source) (*Transaction, error)

	// CreditTx and DebitTx post inside a transaction opened by
	// WithTechnicianLock so the ledger write joins the caller's atomic unit.
	CreditTx(ctx context.Context, tx *gorm.DB, technicianID snowflake.ID, amount int64, source Source) (*Transaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, technicianID snowflake.ID, amount int64, source Source) (*Transaction, error)

	GetBalance(ctx context.Context, technicianID snowflake.ID) (int64, error)
	GetBalanceTx(ctx context.Context, tx *gorm.DB, technicianID snowflake.ID) (int64, error)
	GetWallet(ctx context.Context, technicianID snowflake.ID) (*Wallet, error)
	ListTransactions(ctx context.Context, technicianID snowflake.ID) ([]Transaction, error)
	Totals(ctx context.Context, technicianID snowflake.ID) (Totals, error)
	ListWalletIDs(ctx context.Context, afterID snowflake.ID, limit int) ([]snowflake.ID, error)

	// WithTechnicianLock serializes fn against every other balance mutation
	// for the same technician and runs it in one database transaction.
	WithTechnicianLock(ctx context.Context, technicianID snowflake.ID, fn func(tx *gorm.DB) error) error
}

type Repository interface {
	EnsureWallet(ctx context.Context, db *gorm.DB, wallet *Wallet) error
	FindWallet(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, forUpdate bool) (*Wallet, error)
	UpdateBalance(ctx context.Context, db *gorm.DB, wallet *Wallet) error
	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) (bool, error)
	ListTransactions(ctx context.Context, db *gorm.DB, technicianID snowflake.ID) ([]Transaction, error)
	Totals(ctx context.Context, db *gorm.DB, technicianID snowflake.ID) (Totals, error)
	ListWalletIDs(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error)
}

var (
	ErrInvalidTechnicianID = errors.New("invalid_technician_id")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidSource       = errors.New("invalid_source")
	ErrWalletNotFound      = errors.New("wallet_not_found")
	ErrDuplicateSource     = errors.New("duplicate_ledger_source")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrAmountOverflow      = errors.New("amount_overflow")
)

// MaxAmount is the largest single amount accepted for a posting or a
// verified payment. It keeps amounts exact as JSON numbers.
const MaxAmount int64 = 1<<53 - 1

// InsufficientBalanceError carries the amounts behind a refused debit.
type InsufficientBalanceError struct {
	TechnicianID snowflake.ID
	Requested    int64
	Available    int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient_balance: technician %s requested %d, available %d",
		e.TechnicianID.String(), e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}
