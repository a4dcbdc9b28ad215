// Package domain holds the technician compensation profile.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Type is the closed set of technician classifications.
type Type string

const (
	TypeContractor Type = "CONTRACTOR"
	TypeEmployee   Type = "EMPLOYEE"
)

func ParseType(value string) (Type, error) {
	switch Type(strings.ToUpper(strings.TrimSpace(value))) {
	case TypeContractor:
		return TypeContractor, nil
	case TypeEmployee:
		return TypeEmployee, nil
	default:
		return "", ErrInvalidTechnicianType
	}
}

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "ACTIVE"
	EmploymentStatusSuspended  EmploymentStatus = "SUSPENDED"
	EmploymentStatusTerminated EmploymentStatus = "TERMINATED"
)

func ParseEmploymentStatus(value string) (EmploymentStatus, error) {
	normalized := EmploymentStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch normalized {
	case "":
		return EmploymentStatusActive, nil
	case EmploymentStatusActive, EmploymentStatusSuspended, EmploymentStatusTerminated:
		return normalized, nil
	default:
		return "", ErrInvalidEmploymentStatus
	}
}

// Profile is the compensation view of a technician.
type Profile struct {
	ID               snowflake.ID        `json:"id"`
	DisplayName      string              `json:"display_name"`
	Type             Type                `json:"technician_type"`
	CustomRate       decimal.NullDecimal `json:"custom_rate"`
	UseCustomRate    bool                `json:"use_custom_rate"`
	EmploymentStatus EmploymentStatus    `json:"employment_status"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}
