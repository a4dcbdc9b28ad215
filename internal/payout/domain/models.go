package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusPaid     Status = "PAID"
)

// ReasonInsufficientAtApproval is recorded when approval finds the balance
// no longer covers the request.
const ReasonInsufficientAtApproval = "insufficient funds at approval time"

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusPaid},
}

// CanTransition reports whether the state machine allows from -> to.
// PAID and REJECTED are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusRejected
}

func ParseStatusFilter(value string) (*Status, error) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	switch normalized {
	case "":
		return nil, nil
	case StatusPending, StatusApproved, StatusRejected, StatusPaid:
		return &normalized, nil
	default:
		return nil, ErrInvalidStatus
	}
}

type PayoutRequest struct {
	ID              snowflake.ID `json:"id"`
	Reference       string       `json:"reference"`
	TechnicianID    snowflake.ID `json:"technician_id"`
	RequestedAmount int64        `json:"requested_amount"`
	Reason          string       `json:"reason"`
	PaymentMethod   string       `json:"payment_method"`
	Status          Status       `json:"status"`
	DecisionReason  string       `json:"decision_reason,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	ApprovedAt      *time.Time   `json:"approved_at,omitempty"`
	PaidAt          *time.Time   `json:"paid_at,omitempty"`
	DecidedAt       *time.Time   `json:"decided_at,omitempty"`
	DecidedBy       string       `json:"decided_by,omitempty"`
}

// Transition is one guarded status change. Nil timestamps leave the
// stored value untouched.
type Transition struct {
	From           Status
	To             Status
	DecisionReason string
	DecidedBy      string
	DecidedAt      *time.Time
	ApprovedAt     *time.Time
	PaidAt         *time.Time
}
