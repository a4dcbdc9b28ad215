package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/techwallet/internal/reconciliation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Snapshot recomputes totals straight from the money tables.
func (r *repo) Snapshot(ctx context.Context, db *gorm.DB, technicianID snowflake.ID) (domain.Snapshot, error) {
	var wallet struct {
		TechnicianID snowflake.ID
		Balance      int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT technician_id, balance
		 FROM wallet_balances
		 WHERE technician_id = ?`,
		technicianID,
	).Scan(&wallet).Error
	if err != nil {
		return domain.Snapshot{}, err
	}
	if wallet.TechnicianID == 0 {
		return domain.Snapshot{}, nil
	}

	var totals struct {
		Credits int64
		Debits  int64
	}
	err = db.WithContext(ctx).Raw(
		`SELECT
			CAST(COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN amount ELSE 0 END), 0) AS BIGINT) AS credits,
			CAST(COALESCE(SUM(CASE WHEN direction = 'DEBIT' THEN amount ELSE 0 END), 0) AS BIGINT) AS debits
		 FROM ledger_transactions
		 WHERE technician_id = ?`,
		technicianID,
	).Scan(&totals).Error
	if err != nil {
		return domain.Snapshot{}, err
	}

	var earned int64
	err = db.WithContext(ctx).Raw(
		`SELECT CAST(COALESCE(SUM(amount), 0) AS BIGINT)
		 FROM earning_records
		 WHERE technician_id = ? AND status = 'EARNED'`,
		technicianID,
	).Scan(&earned).Error
	if err != nil {
		return domain.Snapshot{}, err
	}

	return domain.Snapshot{
		Found:        true,
		Balance:      wallet.Balance,
		Credits:      totals.Credits,
		Debits:       totals.Debits,
		EarnedUnpaid: earned,
	}, nil
}
