package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrDataIntegrityDivergence = errors.New("data_integrity_divergence")

// Report compares a wallet's cached balance with its ledger history.
type Report struct {
	TechnicianID      snowflake.ID `json:"technician_id"`
	ExpectedBalance   int64        `json:"expected_balance"`
	ActualBalance     int64        `json:"actual_balance"`
	EarnedUnpaidTotal int64        `json:"earned_unpaid_total"`
	Divergence        int64        `json:"divergence"`
	CheckedAt         time.Time    `json:"checked_at"`
}

// EarnedExceedsBalance flags unpaid earnings the wallet can no longer cover.
func (r Report) EarnedExceedsBalance() bool {
	return r.EarnedUnpaidTotal > r.ActualBalance
}

// Err returns a *DivergenceError when the balance does not match history.
func (r Report) Err() error {
	if r.Divergence == 0 {
		return nil
	}
	return &DivergenceError{Report: r}
}

type DivergenceError struct {
	Report Report
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("data_integrity_divergence: technician %s balance %d, ledger %d, divergence %d",
		e.Report.TechnicianID.String(), e.Report.ActualBalance, e.Report.ExpectedBalance, e.Report.Divergence)
}

func (e *DivergenceError) Unwrap() error {
	return ErrDataIntegrityDivergence
}

// SweepResult summarizes one pass over every wallet.
type SweepResult struct {
	Checked         int      `json:"checked"`
	Divergent       []Report `json:"divergent"`
	DivergenceTotal int64    `json:"divergence_total"`
}

// Snapshot is the raw state read for one technician.
type Snapshot struct {
	Found        bool
	Balance      int64
	Credits      int64
	Debits       int64
	EarnedUnpaid int64
}

type Service interface {
	Reconcile(ctx context.Context, technicianID snowflake.ID) (Report, error)
	Sweep(ctx context.Context, batchSize int) (SweepResult, error)
}

type Repository interface {
	Snapshot(ctx context.Context, db *gorm.DB, technicianID snowflake.ID) (Snapshot, error)
}
