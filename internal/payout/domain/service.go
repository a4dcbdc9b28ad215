package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateRequest struct {
	TechnicianID  snowflake.ID
	Amount        int64
	Reason        string
	PaymentMethod string
}

type Service interface {
	// RequestPayout checks the balance as advice only; Approve is binding.
	RequestPayout(ctx context.Context, req CreateRequest) (*PayoutRequest, error)
	// Approve settles the request, or moves it to REJECTED when the balance
	// no longer covers it. The returned request carries the outcome.
	Approve(ctx context.Context, id snowflake.ID, approverID string) (*PayoutRequest, error)
	Reject(ctx context.Context, id snowflake.ID, approverID, reason string) (*PayoutRequest, error)
	Get(ctx context.Context, id snowflake.ID) (*PayoutRequest, error)
	ListPayoutRequests(ctx context.Context, technicianID snowflake.ID, status *Status) ([]PayoutRequest, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, req *PayoutRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*PayoutRequest, error)
	List(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, status *Status) ([]PayoutRequest, error)
	Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, t Transition) (bool, error)
}

var (
	ErrPayoutNotFound    = errors.New("payout_not_found")
	ErrInvalidTransition = errors.New("invalid_payout_transition")
	ErrInvalidStatus     = errors.New("invalid_payout_status")
	ErrInvalidApprover   = errors.New("invalid_approver")
	ErrInvalidReason     = errors.New("invalid_reason")
)
