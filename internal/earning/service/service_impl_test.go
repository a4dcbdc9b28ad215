package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/techwallet/internal/clock"
	"github.com/smallbiznis/techwallet/internal/config"
	"github.com/smallbiznis/techwallet/internal/earning/domain"
	"github.com/smallbiznis/techwallet/internal/earning/repository"
	"github.com/smallbiznis/techwallet/internal/rate"
	ratedefaultsdomain "github.com/smallbiznis/techwallet/internal/ratedefaults/domain"
	ratedefaultsrepo "github.com/smallbiznis/techwallet/internal/ratedefaults/repository"
	ratedefaultsservice "github.com/smallbiznis/techwallet/internal/ratedefaults/service"
	techniciandomain "github.com/smallbiznis/techwallet/internal/technician/domain"
	technicianrepo "github.com/smallbiznis/techwallet/internal/technician/repository"
	technicianservice "github.com/smallbiznis/techwallet/internal/technician/service"
	"github.com/smallbiznis/techwallet/internal/testutil"
	walletdomain "github.com/smallbiznis/techwallet/internal/wallet/domain"
	"github.com/smallbiznis/techwallet/internal/wallet/lock"
	walletrepo "github.com/smallbiznis/techwallet/internal/wallet/repository"
	walletservice "github.com/smallbiznis/techwallet/internal/wallet/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	contractorID = snowflake.ID(7001)
	employeeID   = snowflake.ID(7002)
)

type accrualFixture struct {
	svc          domain.Service
	wallets      walletdomain.Service
	technicians  techniciandomain.Service
	rateDefaults ratedefaultsdomain.Service
	db           *gorm.DB
	node         *snowflake.Node
	clock        *clock.FakeClock
}

func newAccrualFixture(t *testing.T) accrualFixture {
	t.Helper()
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	fake := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{Currency: "USD", WalletLockTTL: 5 * time.Second}

	wallets := walletservice.NewService(walletservice.Params{
		DB:     conn,
		Log:    log,
		GenID:  node,
		Clock:  fake,
		Config: cfg,
		Repo:   walletrepo.Provide(),
		Locker: lock.New(lock.Params{Config: cfg, Log: log}),
	})
	technicians := technicianservice.NewService(technicianservice.Params{
		DB:        conn,
		Log:       log,
		Clock:     fake,
		Repo:      technicianrepo.Provide(),
		WalletSvc: wallets,
	})
	defaults := ratedefaultsservice.NewService(ratedefaultsservice.Params{
		DB:    conn,
		Log:   log,
		Clock: fake,
		Repo:  ratedefaultsrepo.Provide(),
		Seed: config.NewStaticCompensationConfigHolder(config.CompensationConfig{
			DefaultContractorRate: "0.05",
			DefaultEmployeeRate:   "0.02",
		}),
	})
	svc := NewService(Params{
		DB:            conn,
		Log:           log,
		GenID:         node,
		Clock:         fake,
		Repo:          repository.Provide(),
		WalletSvc:     wallets,
		TechnicianSvc: technicians,
		RateDefaults:  defaults,
	})

	ctx := context.Background()
	_, err := technicians.UpsertProfile(ctx, techniciandomain.UpsertRequest{
		ID:   contractorID,
		Type: "CONTRACTOR",
	})
	require.NoError(t, err)
	_, err = technicians.UpsertProfile(ctx, techniciandomain.UpsertRequest{
		ID:   employeeID,
		Type: "EMPLOYEE",
	})
	require.NoError(t, err)

	return accrualFixture{
		svc:          svc,
		wallets:      wallets,
		technicians:  technicians,
		rateDefaults: defaults,
		db:           conn,
		node:         node,
		clock:        fake,
	}
}

func (f accrualFixture) request(technicianID snowflake.ID, amount int64) domain.AccrueRequest {
	return domain.AccrueRequest{
		JobID:          f.node.Generate(),
		TechnicianID:   technicianID,
		PaymentID:      f.node.Generate(),
		VerifiedAmount: amount,
	}
}

func TestAccrueContractorDefaultRate(t *testing.T) {
	f := newAccrualFixture(t)
	ctx := context.Background()

	res, err := f.svc.Accrue(ctx, f.request(contractorID, 1000))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	record := res.Record
	assert.Equal(t, domain.KindCommission, record.Kind)
	assert.True(t, decimal.RequireFromString("0.05").Equal(record.RateApplied))
	assert.Equal(t, string(rate.SourceDefault), record.RateSource)
	assert.Equal(t, int64(1), record.RateDefaultsVersion)
	assert.Equal(t, int64(50), record.Amount)
	assert.Equal(t, domain.StatusEarned, record.Status)

	balance, err := f.wallets.GetBalance(ctx, contractorID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	txns, err := f.wallets.ListTransactions(ctx, contractorID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, walletdomain.SourceKindAccrual, txns[0].SourceKind)
	assert.Equal(t, record.ID, txns[0].SourceID)
}

func TestAccrueEmployeeEarnsBonus(t *testing.T) {
	f := newAccrualFixture(t)

	res, err := f.svc.Accrue(context.Background(), f.request(employeeID, 10000))
	require.NoError(t, err)
	assert.Equal(t, domain.KindBonus, res.Record.Kind)
	assert.Equal(t, int64(200), res.Record.Amount)
}

func TestCustomRateAppliesOnlyToLaterAccruals(t *testing.T) {
	f := newAccrualFixture(t)
	ctx := context.Background()

	first, err := f.svc.Accrue(ctx, f.request(contractorID, 1000))
	require.NoError(t, err)

	custom := decimal.RequireFromString("0.18")
	_, err = f.technicians.UpsertProfile(ctx, techniciandomain.UpsertRequest{
		ID:            contractorID,
		Type:          "CONTRACTOR",
		CustomRate:    &custom,
		UseCustomRate: true,
	})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	second, err := f.svc.Accrue(ctx, f.request(contractorID, 1000))
	require.NoError(t, err)
	assert.True(t, custom.Equal(second.Record.RateApplied))
	assert.Equal(t, string(rate.SourceCustom), second.Record.RateSource)
	assert.Equal(t, int64(180), second.Record.Amount)

	stored, err := f.svc.GetEarning(ctx, first.Record.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.05").Equal(stored.RateApplied))

	balance, err := f.wallets.GetBalance(ctx, contractorID)
	require.NoError(t, err)
	assert.Equal(t, int64(230), balance)
}

func TestRateDefaultsChangeDoesNotTouchExistingRecords(t *testing.T) {
	f := newAccrualFixture(t)
	ctx := context.Background()

	first, err := f.svc.Accrue(ctx, f.request(contractorID, 2000))
	require.NoError(t, err)

	_, err = f.rateDefaults.SetRateDefaults(ctx, decimal.RequireFromString("0.10"), decimal.Zero, "admin")
	require.NoError(t, err)

	second, err := f.svc.Accrue(ctx, f.request(contractorID, 2000))
	require.NoError(t, err)
	assert.Equal(t, int64(200), second.Record.Amount)
	assert.Equal(t, int64(2), second.Record.RateDefaultsVersion)

	stored, err := f.svc.GetEarning(ctx, first.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.Amount)
	assert.True(t, decimal.RequireFromString("0.05").Equal(stored.RateApplied))
}

func TestAccrueRoundsHalfUp(t *testing.T) {
	f := newAccrualFixture(t)

	// 1010 x 0.05 = 50.5 minor units
	res, err := f.svc.Accrue(context.Background(), f.request(contractorID, 1010))
	require.NoError(t, err)
	assert.Equal(t, int64(51), res.Record.Amount)
}

func TestAccrueIsIdempotent(t *testing.T) {
	f := newAccrualFixture(t)
	ctx := context.Background()
	req := f.request(contractorID, 1000)

	first, err := f.svc.Accrue(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.OnPaymentVerified(ctx, domain.PaymentVerified{
		JobID:        req.JobID,
		TechnicianID: req.TechnicianID,
		PaymentID:    req.PaymentID,
		Amount:       req.VerifiedAmount,
	})
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Record.ID, second.Record.ID)

	txns, err := f.wallets.ListTransactions(ctx, contractorID)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestConcurrentDeliveryCreditsOnce(t *testing.T) {
	f := newAccrualFixture(t)
	ctx := context.Background()
	req := f.request(contractorID, 1000)

	const deliveries = 8
	results := make([]*domain.AccrueResult, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Accrue(ctx, req)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	created := 0
	for _, res := range results {
		require.NotNil(t, res)
		if !res.Duplicate {
			created++
		}
		assert.Equal(t, results[0].Record.ID, res.Record.ID)
	}
	assert.Equal(t, 1, created)

	records, err := f.svc.ListEarnings(ctx, contractorID, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	balance, err := f.wallets.GetBalance(ctx, contractorID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestAccrueRejectsInvalidInput(t *testing.T) {
	f := newAccrualFixture(t)
	ctx := context.Background()

	_, err := f.svc.Accrue(ctx, f.request(contractorID, 0))
	assert.ErrorIs(t, err, walletdomain.ErrInvalidAmount)

	_, err = f.svc.Accrue(ctx, f.request(contractorID, -10))
	assert.ErrorIs(t, err, walletdomain.ErrInvalidAmount)

	_, err = f.svc.Accrue(ctx, f.request(contractorID, math.MaxInt64))
	assert.ErrorIs(t, err, walletdomain.ErrAmountOverflow)

	req := f.request(contractorID, 1000)
	req.JobID = 0
	_, err = f.svc.Accrue(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidJobID)

	_, err = f.svc.Accrue(ctx, f.request(snowflake.ID(99999), 1000))
	assert.ErrorIs(t, err, techniciandomain.ErrTechnicianNotFound)

	records, err := f.svc.ListEarnings(ctx, contractorID, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestZeroRateKeepsRecordWithoutPosting(t *testing.T) {
	f := newAccrualFixture(t)
	ctx := context.Background()

	zero := decimal.Zero
	_, err := f.technicians.UpsertProfile(ctx, techniciandomain.UpsertRequest{
		ID:            contractorID,
		Type:          "CONTRACTOR",
		CustomRate:    &zero,
		UseCustomRate: true,
	})
	require.NoError(t, err)

	res, err := f.svc.Accrue(ctx, f.request(contractorID, 1000))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Record.Amount)

	txns, err := f.wallets.ListTransactions(ctx, contractorID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestFullRateCreditsWholePayment(t *testing.T) {
	f := newAccrualFixture(t)
	ctx := context.Background()

	one := decimal.NewFromInt(1)
	_, err := f.technicians.UpsertProfile(ctx, techniciandomain.UpsertRequest{
		ID:            employeeID,
		Type:          "EMPLOYEE",
		CustomRate:    &one,
		UseCustomRate: true,
	})
	require.NoError(t, err)

	res, err := f.svc.Accrue(ctx, f.request(employeeID, 4321))
	require.NoError(t, err)
	assert.Equal(t, int64(4321), res.Record.Amount)
}

func TestAccrualThatWouldOverflowWalletRollsBack(t *testing.T) {
	f := newAccrualFixture(t)
	ctx := context.Background()

	one := decimal.NewFromInt(1)
	_, err := f.technicians.UpsertProfile(ctx, techniciandomain.UpsertRequest{
		ID:            employeeID,
		Type:          "EMPLOYEE",
		CustomRate:    &one,
		UseCustomRate: true,
	})
	require.NoError(t, err)

	res, err := f.svc.Accrue(ctx, f.request(employeeID, walletdomain.MaxAmount))
	require.NoError(t, err)
	assert.Equal(t, walletdomain.MaxAmount, res.Record.Amount)

	near := int64(math.MaxInt64 - 5)
	require.NoError(t, f.db.Exec(
		`UPDATE wallet_balances SET balance = ? WHERE technician_id = ?`,
		near, int64(employeeID),
	).Error)

	_, err = f.svc.Accrue(ctx, f.request(employeeID, 10))
	require.ErrorIs(t, err, walletdomain.ErrAmountOverflow)

	records, err := f.svc.ListEarnings(ctx, employeeID, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	balance, err := f.wallets.GetBalance(ctx, employeeID)
	require.NoError(t, err)
	assert.Equal(t, near, balance)
}

func TestListEarningsFiltersByStatus(t *testing.T) {
	f := newAccrualFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Accrue(ctx, f.request(contractorID, 1000))
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	earned, err := domain.ParseStatusFilter("earned")
	require.NoError(t, err)
	records, err := f.svc.ListEarnings(ctx, contractorID, earned)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.True(t, records[0].CreatedAt.Before(records[2].CreatedAt))

	paid, err := domain.ParseStatusFilter("PAID")
	require.NoError(t, err)
	records, err = f.svc.ListEarnings(ctx, contractorID, paid)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = domain.ParseStatusFilter("pending")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	total, err := f.svc.EarnedUnpaidTotal(ctx, contractorID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)
}
