package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Snapshot is one immutable version of the global default rates.
type Snapshot struct {
	Version        int64           `json:"version"`
	ContractorRate decimal.Decimal `json:"contractor_rate"`
	EmployeeRate   decimal.Decimal `json:"employee_rate"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Service interface {
	// Current returns the newest snapshot, seeding version 1 when none exists.
	Current(ctx context.Context) (Snapshot, error)
	CurrentTx(ctx context.Context, tx *gorm.DB) (Snapshot, error)
	SetRateDefaults(ctx context.Context, contractorRate, employeeRate decimal.Decimal, actor string) (Snapshot, error)
	History(ctx context.Context, limit int) ([]Snapshot, error)
}

type Repository interface {
	Latest(ctx context.Context, db *gorm.DB) (*Snapshot, error)
	Insert(ctx context.Context, db *gorm.DB, snapshot *Snapshot) (bool, error)
	List(ctx context.Context, db *gorm.DB, limit int) ([]Snapshot, error)
}

var ErrVersionConflict = errors.New("rate_defaults_version_conflict")
