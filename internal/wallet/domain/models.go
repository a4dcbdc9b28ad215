// Package domain describes the per-technician wallet ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

type SourceKind string

const (
	SourceKindAccrual SourceKind = "ACCRUAL"
	SourceKindPayout  SourceKind = "PAYOUT"
)

// Source identifies the business object a ledger transaction posts for.
type Source struct {
	Kind        SourceKind
	ID          snowflake.ID
	Description string
}

// Transaction is an append-only ledger line. Amount is always positive;
// Direction carries the sign.
type Transaction struct {
	ID           snowflake.ID `json:"id"`
	TechnicianID snowflake.ID `json:"technician_id"`
	Direction    Direction    `json:"direction"`
	Amount       int64        `json:"amount"`
	BalanceAfter int64        `json:"balance_after"`
	SourceKind   SourceKind   `json:"source_kind"`
	SourceID     snowflake.ID `json:"source_id"`
	Description  string       `json:"description"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Signed returns the amount with the direction applied.
func (t Transaction) Signed() int64 {
	if t.Direction == DirectionDebit {
		return -t.Amount
	}
	return t.Amount
}

// Wallet is the cached running balance for one technician.
type Wallet struct {
	TechnicianID snowflake.ID `json:"technician_id"`
	Balance      int64        `json:"balance"`
	Currency     string       `json:"currency"`
	Version      int64        `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Totals are the directional sums over a technician's history.
type Totals struct {
	Credits int64
	Debits  int64
}

func (t Totals) Net() int64 {
	return t.Credits - t.Debits
}
