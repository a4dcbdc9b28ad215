package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/techwallet/internal/earning/domain"
	"gorm.io/gorm"
)

const earningColumns = `id, technician_id, job_id, payment_id, kind, base_amount,
	rate_applied, rate_source, rate_defaults_version, amount, status,
	payout_id, created_at, payable_at, paid_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.EarningRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO earning_records (`+earningColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id, technician_id) DO NOTHING`,
		record.ID,
		record.TechnicianID,
		record.JobID,
		record.PaymentID,
		string(record.Kind),
		record.BaseAmount,
		record.RateApplied.String(),
		record.RateSource,
		record.RateDefaultsVersion,
		record.Amount,
		string(record.Status),
		record.PayoutID,
		record.CreatedAt,
		record.PayableAt,
		record.PaidAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.EarningRecord, error) {
	var item domain.EarningRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+earningColumns+`
		 FROM earning_records
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByJob(ctx context.Context, db *gorm.DB, jobID, technicianID snowflake.ID) (*domain.EarningRecord, error) {
	var item domain.EarningRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+earningColumns+`
		 FROM earning_records
		 WHERE job_id = ? AND technician_id = ?
		 LIMIT 1`,
		jobID,
		technicianID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// List returns records in creation order, the order payouts consume them.
func (r *repo) List(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, status *domain.Status) ([]domain.EarningRecord, error) {
	query := `SELECT ` + earningColumns + `
		FROM earning_records
		WHERE technician_id = ?`
	args := []any{technicianID}
	if status != nil {
		query += " AND status = ?"
		args = append(args, string(*status))
	}
	query += " ORDER BY created_at ASC, id ASC"

	var items []domain.EarningRecord
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SumByStatus(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, status domain.Status) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT CAST(COALESCE(SUM(amount), 0) AS BIGINT)
		 FROM earning_records
		 WHERE technician_id = ? AND status = ?`,
		technicianID,
		string(status),
	).Scan(&total).Error
	return total, err
}

func (r *repo) MarkPayable(ctx context.Context, db *gorm.DB, ids []snowflake.ID, payoutID snowflake.ID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE earning_records
		 SET status = ?, payout_id = ?, payable_at = ?
		 WHERE id IN ? AND status = ?`,
		string(domain.StatusPayable),
		payoutID,
		at,
		ids,
		string(domain.StatusEarned),
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, payoutID snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE earning_records
		 SET status = ?, paid_at = ?
		 WHERE payout_id = ? AND status = ?`,
		string(domain.StatusPaid),
		at,
		payoutID,
		string(domain.StatusPayable),
	)
	return res.RowsAffected, res.Error
}
