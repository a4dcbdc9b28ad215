package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/techwallet/internal/technician/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, profile *domain.Profile) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO technicians (
			id, display_name, technician_type, custom_rate, use_custom_rate,
			employment_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			technician_type = excluded.technician_type,
			custom_rate = excluded.custom_rate,
			use_custom_rate = excluded.use_custom_rate,
			employment_status = excluded.employment_status,
			updated_at = excluded.updated_at`,
		profile.ID,
		profile.DisplayName,
		string(profile.Type),
		profile.CustomRate,
		profile.UseCustomRate,
		string(profile.EmploymentStatus),
		profile.CreatedAt,
		profile.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Profile, error) {
	var item domain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT id, display_name, technician_type AS type, custom_rate, use_custom_rate,
			employment_status, created_at, updated_at
		 FROM technicians
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
