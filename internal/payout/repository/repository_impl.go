package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/techwallet/internal/payout/domain"
	"github.com/smallbiznis/techwallet/pkg/db"
	"gorm.io/gorm"
)

const payoutColumns = `id, reference, technician_id, requested_amount, reason,
	payment_method, status, decision_reason, created_at, approved_at, paid_at,
	decided_at, decided_by`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, req *domain.PayoutRequest) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO payout_requests (`+payoutColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		req.Reference,
		req.TechnicianID,
		req.RequestedAmount,
		req.Reason,
		req.PaymentMethod,
		string(req.Status),
		req.DecisionReason,
		req.CreatedAt,
		req.ApprovedAt,
		req.PaidAt,
		req.DecidedAt,
		req.DecidedBy,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + `
		FROM payout_requests
		WHERE id = ?
		LIMIT 1`
	if forUpdate {
		query = db.ForUpdate(conn, query)
	}

	var item domain.PayoutRequest
	if err := conn.WithContext(ctx).Raw(query, id).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, technicianID snowflake.ID, status *domain.Status) ([]domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + `
		FROM payout_requests
		WHERE technician_id = ?`
	args := []any{technicianID}
	if status != nil {
		query += " AND status = ?"
		args = append(args, string(*status))
	}
	query += " ORDER BY created_at DESC, id DESC"

	var items []domain.PayoutRequest
	if err := conn.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Transition applies t only while the row is still in t.From.
func (r *repo) Transition(ctx context.Context, conn *gorm.DB, id snowflake.ID, t domain.Transition) (bool, error) {
	sets := []string{"status = ?"}
	args := []any{string(t.To)}
	if t.DecisionReason != "" {
		sets = append(sets, "decision_reason = ?")
		args = append(args, t.DecisionReason)
	}
	if t.DecidedBy != "" {
		sets = append(sets, "decided_by = ?")
		args = append(args, t.DecidedBy)
	}
	if t.DecidedAt != nil {
		sets = append(sets, "decided_at = ?")
		args = append(args, *t.DecidedAt)
	}
	if t.ApprovedAt != nil {
		sets = append(sets, "approved_at = ?")
		args = append(args, *t.ApprovedAt)
	}
	if t.PaidAt != nil {
		sets = append(sets, "paid_at = ?")
		args = append(args, *t.PaidAt)
	}
	args = append(args, id, string(t.From))

	res := conn.WithContext(ctx).Exec(
		`UPDATE payout_requests SET `+strings.Join(sets, ", ")+`
		 WHERE id = ? AND status = ?`,
		args...,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
