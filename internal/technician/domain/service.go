package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type UpsertRequest struct {
	ID               snowflake.ID
	DisplayName      string
	Type             string
	CustomRate       *decimal.Decimal
	UseCustomRate    bool
	EmploymentStatus string
}

type Service interface {
	UpsertProfile(ctx context.Context, req UpsertRequest) (*Profile, error)
	GetProfile(ctx context.Context, id snowflake.ID) (*Profile, error)
	// GetProfileTx reads the profile inside the caller's transaction.
	GetProfileTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Profile, error)
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, profile *Profile) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Profile, error)
}

var (
	ErrInvalidTechnicianID     = errors.New("invalid_technician_id")
	ErrInvalidTechnicianType   = errors.New("invalid_technician_type")
	ErrInvalidEmploymentStatus = errors.New("invalid_employment_status")
	ErrTechnicianNotFound      = errors.New("technician_not_found")
)
