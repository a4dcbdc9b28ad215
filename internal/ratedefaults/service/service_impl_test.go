package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/techwallet/internal/clock"
	"github.com/smallbiznis/techwallet/internal/config"
	"github.com/smallbiznis/techwallet/internal/rate"
	"github.com/smallbiznis/techwallet/internal/ratedefaults/domain"
	"github.com/smallbiznis/techwallet/internal/ratedefaults/repository"
	"github.com/smallbiznis/techwallet/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRateDefaultsService(t *testing.T, seed config.CompensationConfig) (domain.Service, *config.CompensationConfigHolder, *clock.FakeClock) {
	t.Helper()
	holder := config.NewStaticCompensationConfigHolder(seed)
	fake := clock.NewFakeClock(time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    testutil.NewDB(t),
		Log:   zap.NewNop(),
		Clock: fake,
		Repo:  repository.Provide(),
		Seed:  holder,
	})
	return svc, holder, fake
}

func TestCurrentSeedsFromConfig(t *testing.T) {
	svc, _, _ := newRateDefaultsService(t, config.CompensationConfig{
		DefaultContractorRate: "0.07",
		DefaultEmployeeRate:   "0.01",
	})

	snapshot, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot.Version)
	assert.True(t, decimal.RequireFromString("0.07").Equal(snapshot.ContractorRate))
	assert.True(t, decimal.RequireFromString("0.01").Equal(snapshot.EmployeeRate))
	assert.Equal(t, "seed", snapshot.CreatedBy)

	again, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Version)
}

func TestCurrentSeedsBuiltInDefaults(t *testing.T) {
	svc, _, _ := newRateDefaultsService(t, config.DefaultCompensationConfig())
	snapshot, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.05").Equal(snapshot.ContractorRate))
	assert.True(t, snapshot.EmployeeRate.IsZero())
}

func TestSetRateDefaultsAppendsVersions(t *testing.T) {
	svc, _, fake := newRateDefaultsService(t, config.DefaultCompensationConfig())
	ctx := context.Background()

	_, err := svc.Current(ctx)
	require.NoError(t, err)

	fake.Advance(time.Hour)
	second, err := svc.SetRateDefaults(ctx, decimal.RequireFromString("0.10"), decimal.RequireFromString("0.03"), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version)
	assert.Equal(t, "admin-1", second.CreatedBy)

	fake.Advance(time.Hour)
	third, err := svc.SetRateDefaults(ctx, decimal.NewFromInt(1), decimal.Zero, "admin-2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), third.Version)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), current.Version)

	history, err := svc.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(3), history[0].Version)
	assert.Equal(t, int64(1), history[2].Version)
	assert.True(t, decimal.RequireFromString("0.10").Equal(history[1].ContractorRate))
}

func TestSetRateDefaultsRejectsOutOfRangeBeforeWrite(t *testing.T) {
	svc, _, _ := newRateDefaultsService(t, config.DefaultCompensationConfig())
	ctx := context.Background()

	_, err := svc.SetRateDefaults(ctx, decimal.RequireFromString("1.5"), decimal.Zero, "admin")
	assert.ErrorIs(t, err, rate.ErrInvalidRate)
	_, err = svc.SetRateDefaults(ctx, decimal.Zero, decimal.RequireFromString("-0.01"), "admin")
	assert.ErrorIs(t, err, rate.ErrInvalidRate)

	history, err := svc.History(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestApplyConfigSkipsUnchangedRates(t *testing.T) {
	svc, holder, _ := newRateDefaultsService(t, config.DefaultCompensationConfig())
	ctx := context.Background()

	applied, err := ApplyConfig(ctx, svc, holder.Get())
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = ApplyConfig(ctx, svc, config.CompensationConfig{DefaultContractorRate: "0.08", DefaultEmployeeRate: "0.00"})
	require.NoError(t, err)
	assert.True(t, applied)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.Version)
	assert.Equal(t, "config-file", current.CreatedBy)

	_, err = ApplyConfig(ctx, svc, config.CompensationConfig{DefaultContractorRate: "9", DefaultEmployeeRate: "0"})
	assert.Error(t, err)
}
