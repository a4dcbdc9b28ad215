package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/techwallet/internal/wallet/domain"
	"github.com/smallbiznis/techwallet/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) EnsureWallet(ctx context.Context, conn *gorm.DB, wallet *domain.Wallet) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO wallet_balances (
			technician_id, balance, currency, version, created_at, updated_at
		) VALUES (?, 0, ?, 0, ?, ?)
		ON CONFLICT (technician_id) DO NOTHING`,
		wallet.TechnicianID,
		wallet.Currency,
		wallet.CreatedAt,
		wallet.UpdatedAt,
	).Error
}

func (r *repo) FindWallet(ctx context.Context, conn *gorm.DB, technicianID snowflake.ID, forUpdate bool) (*domain.Wallet, error) {
	query := `SELECT technician_id, balance, currency, version, created_at, updated_at
		FROM wallet_balances
		WHERE technician_id = ?`
	if forUpdate {
		query = db.ForUpdate(conn, query)
	}

	var item domain.Wallet
	if err := conn.WithContext(ctx).Raw(query, technicianID).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.TechnicianID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateBalance(ctx context.Context, conn *gorm.DB, wallet *domain.Wallet) error {
	res := conn.WithContext(ctx).Exec(
		`UPDATE wallet_balances
		 SET balance = ?, version = version + 1, updated_at = ?
		 WHERE technician_id = ? AND version = ?`,
		wallet.Balance,
		wallet.UpdatedAt,
		wallet.TechnicianID,
		wallet.Version,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

func (r *repo) InsertTransaction(ctx context.Context, conn *gorm.DB, txn *domain.Transaction) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`INSERT INTO ledger_transactions (
			id, technician_id, direction, amount, balance_after,
			source_kind, source_id, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_kind, source_id, direction) DO NOTHING`,
		txn.ID,
		txn.TechnicianID,
		string(txn.Direction),
		txn.Amount,
		txn.BalanceAfter,
		string(txn.SourceKind),
		txn.SourceID,
		txn.Description,
		txn.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListTransactions(ctx context.Context, conn *gorm.DB, technicianID snowflake.ID) ([]domain.Transaction, error) {
	var items []domain.Transaction
	err := conn.WithContext(ctx).Raw(
		`SELECT id, technician_id, direction, amount, balance_after,
			source_kind, source_id, description, created_at
		 FROM ledger_transactions
		 WHERE technician_id = ?
		 ORDER BY created_at ASC, id ASC`,
		technicianID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Totals(ctx context.Context, conn *gorm.DB, technicianID snowflake.ID) (domain.Totals, error) {
	var totals domain.Totals
	err := conn.WithContext(ctx).Raw(
		`SELECT
			CAST(COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS BIGINT) AS credits,
			CAST(COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS BIGINT) AS debits
		 FROM ledger_transactions
		 WHERE technician_id = ?`,
		string(domain.DirectionCredit),
		string(domain.DirectionDebit),
		technicianID,
	).Scan(&totals).Error
	return totals, err
}

func (r *repo) ListWalletIDs(ctx context.Context, conn *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var rows []struct {
		TechnicianID snowflake.ID
	}
	err := conn.WithContext(ctx).Raw(
		`SELECT technician_id
		 FROM wallet_balances
		 WHERE technician_id > ?
		 ORDER BY technician_id ASC
		 LIMIT ?`,
		afterID,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.TechnicianID)
	}
	return ids, nil
}
