package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// AccrueRequest is a verified payment for a completed job.
type AccrueRequest struct {
	JobID          snowflake.ID
	TechnicianID   snowflake.ID
	PaymentID      snowflake.ID
	VerifiedAmount int64
}

// PaymentVerified is the inbound platform event.
type PaymentVerified struct {
	JobID        snowflake.ID `json:"job_id"`
	TechnicianID snowflake.ID `json:"technician_id"`
	PaymentID    snowflake.ID `json:"payment_id"`
	Amount       int64        `json:"amount"`
}

// AccrueResult reports whether the call created the record or found it.
type AccrueResult struct {
	Record    *EarningRecord
	Duplicate bool
}

type Service interface {
	Accrue(ctx context.Context, req AccrueRequest) (*AccrueResult, error)
	OnPaymentVerified(ctx context.Context, event PaymentVerified) (*AccrueResult, error)
	GetEarning(ctx context.Context, id snowflake.ID) (*EarningRecord, error)
	ListEarnings(ctx context.Context, technicianID snowflake.ID, status *Status) ([]EarningRecord, error)
	EarnedUnpaidTotal(ctx context.Context, technicianID snowflake.ID) (int64, error)

	// SettleTx marks EARNED records oldest-first as PAID under payoutID
	// until their cumulative amount covers amount. It must run inside the
	// technician's wallet lock.
	SettleTx(ctx context.Context, tx *gorm.DB, technicianID, payoutID snowflake.ID, amount int64) ([]EarningRecord, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *EarningRecord) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*EarningRecord, error)
	FindByJob(ctx context.Context, db *gorm.DB, jobID, technicianID snowflake.ID) (*EarningRecord, error)
	List(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, status *Status) ([]EarningRecord, error)
	SumByStatus(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, status Status) (int64, error)
	MarkPayable(ctx context.Context, db *gorm.DB, ids []snowflake.ID, payoutID snowflake.ID, at time.Time) (int64, error)
	MarkPaid(ctx context.Context, db *gorm.DB, payoutID snowflake.ID, at time.Time) (int64, error)
}

var (
	ErrInvalidJobID       = errors.New("invalid_job_id")
	ErrInvalidPaymentID   = errors.New("invalid_payment_id")
	ErrInvalidStatus      = errors.New("invalid_earning_status")
	ErrEarningNotFound    = errors.New("earning_not_found")
	ErrSettlementConflict = errors.New("earning_settlement_conflict")
)
