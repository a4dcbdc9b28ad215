package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/techwallet/internal/audit/domain"
	earningdomain "github.com/smallbiznis/techwallet/internal/earning/domain"
	"github.com/smallbiznis/techwallet/internal/payout/domain"
	"github.com/smallbiznis/techwallet/internal/testutil/engine"
	walletdomain "github.com/smallbiznis/techwallet/internal/wallet/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const approver = "ops-1"

func request(technicianID snowflake.ID, amount int64) domain.CreateRequest {
	return domain.CreateRequest{
		TechnicianID:  technicianID,
		Amount:        amount,
		Reason:        "weekly withdrawal",
		PaymentMethod: "bank:000123456789",
	}
}

func TestApprovePaysOutAndSettlesEarnings(t *testing.T) {
	e := engine.New(t)
	ctx := context.Background()
	tech := e.Technician(t, "CONTRACTOR")
	first := e.Accrue(t, tech, 1000)
	second := e.Accrue(t, tech, 3600)
	require.Equal(t, int64(50), first.Amount)
	require.Equal(t, int64(180), second.Amount)

	req := request(tech, 230)
	payout, err := e.Payouts.RequestPayout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, payout.Status)
	assert.True(t, strings.HasPrefix(payout.Reference, "PO-"))

	paid, err := e.Payouts.Approve(ctx, payout.ID, approver)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.Equal(t, approver, paid.DecidedBy)
	assert.NotNil(t, paid.DecidedAt)
	assert.NotNil(t, paid.ApprovedAt)
	assert.NotNil(t, paid.PaidAt)

	balance, err := e.Wallets.GetBalance(ctx, tech)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	records, err := e.Earnings.ListEarnings(ctx, tech, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, earningdomain.StatusPaid, record.Status)
		require.NotNil(t, record.PayoutID)
		assert.Equal(t, payout.ID, *record.PayoutID)
	}

	txns, err := e.Wallets.ListTransactions(ctx, tech)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	debit := txns[2]
	assert.Equal(t, walletdomain.DirectionDebit, debit.Direction)
	assert.Equal(t, int64(230), debit.Amount)
	assert.Equal(t, walletdomain.SourceKindPayout, debit.SourceKind)
	assert.Equal(t, payout.ID, debit.SourceID)

	report, err := e.Reconciliation.Reconcile(ctx, tech)
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.ExpectedBalance)
	assert.Equal(t, int64(0), report.ActualBalance)
	assert.Equal(t, int64(0), report.Divergence)
	assert.NoError(t, report.Err())

	logs, err := e.Audit.List(ctx, auditdomain.ListAuditLogRequest{Action: "payout.paid"})
	require.NoError(t, err)
	require.Len(t, logs.AuditLogs, 1)
	assert.NotEqual(t, "bank:000123456789", logs.AuditLogs[0].Metadata["payment_method"])
}

func TestRequestPayoutChecksBalance(t *testing.T) {
	e := engine.New(t)
	ctx := context.Background()
	tech := e.Technician(t, "CONTRACTOR")

	req := request(tech, 50)
	_, err := e.Payouts.RequestPayout(ctx, req)
	require.ErrorIs(t, err, walletdomain.ErrInsufficientBalance)

	var insufficient *walletdomain.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(0), insufficient.Available)

	payouts, err := e.Payouts.ListPayoutRequests(ctx, tech, nil)
	require.NoError(t, err)
	assert.Empty(t, payouts)
}

func TestRequestPayoutBoundaries(t *testing.T) {
	e := engine.New(t)
	ctx := context.Background()
	tech := e.Technician(t, "CONTRACTOR")
	e.Accrue(t, tech, 460000) // 23000 earned

	over := request(tech, 23001)
	_, err := e.Payouts.RequestPayout(ctx, over)
	assert.ErrorIs(t, err, walletdomain.ErrInsufficientBalance)

	zero := request(tech, 0)
	_, err = e.Payouts.RequestPayout(ctx, zero)
	assert.ErrorIs(t, err, walletdomain.ErrInvalidAmount)

	exact := request(tech, 23000)
	payout, err := e.Payouts.RequestPayout(ctx, exact)
	require.NoError(t, err)

	paid, err := e.Payouts.Approve(ctx, payout.ID, approver)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
}

func TestApprovalAutoRejectsWhenBalanceShrank(t *testing.T) {
	e := engine.New(t)
	ctx := context.Background()
	tech := e.Technician(t, "CONTRACTOR")
	e.Accrue(t, tech, 2000) // 100 earned

	req := request(tech, 100)
	first, err := e.Payouts.RequestPayout(ctx, req)
	require.NoError(t, err)
	second, err := e.Payouts.RequestPayout(ctx, req)
	require.NoError(t, err)

	_, err = e.Payouts.Approve(ctx, first.ID, approver)
	require.NoError(t, err)

	rejected, err := e.Payouts.Approve(ctx, second.ID, approver)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, domain.ReasonInsufficientAtApproval, rejected.DecisionReason)
	assert.Nil(t, rejected.PaidAt)

	balance, err := e.Wallets.GetBalance(ctx, tech)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	txns, err := e.Wallets.ListTransactions(ctx, tech)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestTerminalStatesNeverChange(t *testing.T) {
	e := engine.New(t)
	ctx := context.Background()
	tech := e.Technician(t, "CONTRACTOR")
	e.Accrue(t, tech, 10000)

	req := request(tech, 100)
	paid, err := e.Payouts.RequestPayout(ctx, req)
	require.NoError(t, err)
	_, err = e.Payouts.Approve(ctx, paid.ID, approver)
	require.NoError(t, err)

	rejected, err := e.Payouts.RequestPayout(ctx, req)
	require.NoError(t, err)
	rejected, err = e.Payouts.Reject(ctx, rejected.ID, approver, "duplicate request")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, "duplicate request", rejected.DecisionReason)

	for _, id := range []snowflake.ID{paid.ID, rejected.ID} {
		_, err = e.Payouts.Approve(ctx, id, approver)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "approve %s", id)
		_, err = e.Payouts.Reject(ctx, id, approver, "late")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "reject %s", id)
	}

	got, err := e.Payouts.Get(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
	got, err = e.Payouts.Get(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)

	balance, err := e.Wallets.GetBalance(ctx, tech)
	require.NoError(t, err)
	assert.Equal(t, int64(400), balance)
}

func TestRejectHasNoLedgerEffect(t *testing.T) {
	e := engine.New(t)
	ctx := context.Background()
	tech := e.Technician(t, "CONTRACTOR")
	e.Accrue(t, tech, 10000)

	req := request(tech, 500)
	payout, err := e.Payouts.RequestPayout(ctx, req)
	require.NoError(t, err)

	_, err = e.Payouts.Reject(ctx, payout.ID, "", "no approver")
	assert.ErrorIs(t, err, domain.ErrInvalidApprover)

	_, err = e.Payouts.Reject(ctx, payout.ID, approver, "")
	require.NoError(t, err)

	balance, err := e.Wallets.GetBalance(ctx, tech)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	records, err := e.Earnings.ListEarnings(ctx, tech, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, earningdomain.StatusEarned, records[0].Status)
}

func TestPartialPayoutConsumesWholeRecordsOldestFirst(t *testing.T) {
	e := engine.New(t)
	ctx := context.Background()
	tech := e.Technician(t, "CONTRACTOR")
	oldest := e.Accrue(t, tech, 2000) // 100
	middle := e.Accrue(t, tech, 4000) // 200
	newest := e.Accrue(t, tech, 6000) // 300

	req := request(tech, 150)
	payout, err := e.Payouts.RequestPayout(ctx, req)
	require.NoError(t, err)
	_, err = e.Payouts.Approve(ctx, payout.ID, approver)
	require.NoError(t, err)

	statuses := map[snowflake.ID]earningdomain.Status{}
	records, err := e.Earnings.ListEarnings(ctx, tech, nil)
	require.NoError(t, err)
	for _, record := range records {
		statuses[record.ID] = record.Status
	}
	assert.Equal(t, earningdomain.StatusPaid, statuses[oldest.ID])
	assert.Equal(t, earningdomain.StatusPaid, statuses[middle.ID])
	assert.Equal(t, earningdomain.StatusEarned, statuses[newest.ID])

	balance, err := e.Wallets.GetBalance(ctx, tech)
	require.NoError(t, err)
	unpaid, err := e.Earnings.EarnedUnpaidTotal(ctx, tech)
	require.NoError(t, err)
	assert.Equal(t, int64(450), balance)
	assert.Equal(t, int64(300), unpaid)
	assert.LessOrEqual(t, unpaid, balance)
}

func TestConcurrentApprovalsNeverOverdraw(t *testing.T) {
	e := engine.New(t)
	ctx := context.Background()
	tech := e.Technician(t, "CONTRACTOR")
	e.Accrue(t, tech, 10000) // 500

	const requests = 6
	pending := make([]domain.PayoutRequest, 0, requests)
	for i := 0; i < requests; i++ {
		req := request(tech, 200)
		payout, err := e.Payouts.RequestPayout(ctx, req)
		require.NoError(t, err)
		pending = append(pending, *payout)
	}

	var wg sync.WaitGroup
	results := make([]*domain.PayoutRequest, requests)
	for i := range pending {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.Payouts.Approve(ctx, pending[i].ID, approver)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	paid := 0
	for _, res := range results {
		require.NotNil(t, res)
		switch res.Status {
		case domain.StatusPaid:
			paid++
		case domain.StatusRejected:
			assert.Equal(t, domain.ReasonInsufficientAtApproval, res.DecisionReason)
		default:
			t.Fatalf("unexpected status %s", res.Status)
		}
	}
	assert.Equal(t, 2, paid)

	balance, err := e.Wallets.GetBalance(ctx, tech)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	report, err := e.Reconciliation.Reconcile(ctx, tech)
	require.NoError(t, err)
	assert.NoError(t, report.Err())
}

func TestUnknownPayout(t *testing.T) {
	e := engine.New(t)
	ctx := context.Background()

	_, err := e.Payouts.Get(ctx, e.Node.Generate())
	assert.ErrorIs(t, err, domain.ErrPayoutNotFound)
	_, err = e.Payouts.Approve(ctx, e.Node.Generate(), approver)
	assert.ErrorIs(t, err, domain.ErrPayoutNotFound)
}

func TestListPayoutRequestsFiltersByStatus(t *testing.T) {
	e := engine.New(t)
	ctx := context.Background()
	tech := e.Technician(t, "CONTRACTOR")
	e.Accrue(t, tech, 10000)

	req := request(tech, 100)
	first, err := e.Payouts.RequestPayout(ctx, req)
	require.NoError(t, err)
	_, err = e.Payouts.RequestPayout(ctx, req)
	require.NoError(t, err)
	_, err = e.Payouts.Approve(ctx, first.ID, approver)
	require.NoError(t, err)

	pending, err := domain.ParseStatusFilter("pending")
	require.NoError(t, err)
	items, err := e.Payouts.ListPayoutRequests(ctx, tech, pending)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	all, err := e.Payouts.ListPayoutRequests(ctx, tech, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = domain.ParseStatusFilter("settled")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
