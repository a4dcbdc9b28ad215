package repository

import (
	"context"

	"github.com/smallbiznis/techwallet/internal/ratedefaults/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Latest(ctx context.Context, db *gorm.DB) (*domain.Snapshot, error) {
	var item domain.Snapshot
	err := db.WithContext(ctx).Raw(
		`SELECT version, contractor_rate, employee_rate, created_by, created_at
		 FROM rate_defaults
		 ORDER BY version DESC
		 LIMIT 1`,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.Version == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, snapshot *domain.Snapshot) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO rate_defaults (
			version, contractor_rate, employee_rate, created_by, created_at
		) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (version) DO NOTHING`,
		snapshot.Version,
		snapshot.ContractorRate.String(),
		snapshot.EmployeeRate.String(),
		snapshot.CreatedBy,
		snapshot.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, limit int) ([]domain.Snapshot, error) {
	var items []domain.Snapshot
	err := db.WithContext(ctx).Raw(
		`SELECT version, contractor_rate, employee_rate, created_by, created_at
		 FROM rate_defaults
		 ORDER BY version DESC
		 LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
