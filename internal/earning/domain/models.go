package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindCommission Kind = "COMMISSION"
	KindBonus      Kind = "BONUS"
)

type Status string

const (
	StatusEarned  Status = "EARNED"
	StatusPayable Status = "PAYABLE"
	StatusPaid    Status = "PAID"
)

// ParseStatusFilter maps an optional filter onto a status. Empty means all.
func ParseStatusFilter(value string) (*Status, error) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	switch normalized {
	case "":
		return nil, nil
	case StatusEarned, StatusPayable, StatusPaid:
		return &normalized, nil
	default:
		return nil, ErrInvalidStatus
	}
}

// EarningRecord is the frozen result of one accrual. Only Status, PayoutID,
// PayableAt and PaidAt change after creation.
type EarningRecord struct {
	ID                  snowflake.ID    `json:"id"`
	TechnicianID        snowflake.ID    `json:"technician_id"`
	JobID               snowflake.ID    `json:"job_id"`
	PaymentID           snowflake.ID    `json:"payment_id"`
	Kind                Kind            `json:"kind"`
	BaseAmount          int64           `json:"base_amount"`
	RateApplied         decimal.Decimal `json:"rate_applied"`
	RateSource          string          `json:"rate_source"`
	RateDefaultsVersion int64           `json:"rate_defaults_version"`
	Amount              int64           `json:"amount"`
	Status              Status          `json:"status"`
	PayoutID            *snowflake.ID   `json:"payout_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	PayableAt           *time.Time      `json:"payable_at,omitempty"`
	PaidAt              *time.Time      `json:"paid_at,omitempty"`
}
