package rate

import (
	"testing"

	"github.com/shopspring/decimal"
	earningdomain "github.com/smallbiznis/techwallet/internal/earning/domain"
	ratedefaultsdomain "github.com/smallbiznis/techwallet/internal/ratedefaults/domain"
	techniciandomain "github.com/smallbiznis/techwallet/internal/technician/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() ratedefaultsdomain.Snapshot {
	return ratedefaultsdomain.Snapshot{
		Version:        3,
		ContractorRate: decimal.RequireFromString("0.05"),
		EmployeeRate:   decimal.RequireFromString("0.02"),
	}
}

func TestResolve(t *testing.T) {
	custom := decimal.NewNullDecimal(decimal.RequireFromString("0.18"))

	tests := []struct {
		name    string
		profile techniciandomain.Profile
		rate    string
		source  Source
	}{
		{
			name:    "contractor default",
			profile: techniciandomain.Profile{Type: techniciandomain.TypeContractor},
			rate:    "0.05",
			source:  SourceDefault,
		},
		{
			name:    "employee default",
			profile: techniciandomain.Profile{Type: techniciandomain.TypeEmployee},
			rate:    "0.02",
			source:  SourceDefault,
		},
		{
			name:    "custom rate enabled",
			profile: techniciandomain.Profile{Type: techniciandomain.TypeContractor, UseCustomRate: true, CustomRate: custom},
			rate:    "0.18",
			source:  SourceCustom,
		},
		{
			name:    "custom rate set but disabled",
			profile: techniciandomain.Profile{Type: techniciandomain.TypeContractor, CustomRate: custom},
			rate:    "0.05",
			source:  SourceDefault,
		},
		{
			name:    "custom rate enabled but unset",
			profile: techniciandomain.Profile{Type: techniciandomain.TypeEmployee, UseCustomRate: true},
			rate:    "0.02",
			source:  SourceDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.profile, defaults())
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.rate).Equal(res.Rate), "got %s", res.Rate)
			assert.Equal(t, tt.source, res.Source)
			assert.Equal(t, int64(3), res.DefaultsVersion)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	profile := techniciandomain.Profile{Type: techniciandomain.TypeContractor}
	first, err := Resolve(profile, defaults())
	require.NoError(t, err)
	second, err := Resolve(profile, defaults())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveRejectsOutOfRange(t *testing.T) {
	bad := defaults()
	bad.ContractorRate = decimal.RequireFromString("1.01")
	_, err := Resolve(techniciandomain.Profile{Type: techniciandomain.TypeContractor}, bad)
	assert.ErrorIs(t, err, ErrInvalidRate)

	negative := decimal.NewNullDecimal(decimal.RequireFromString("-0.1"))
	_, err = Resolve(techniciandomain.Profile{Type: techniciandomain.TypeEmployee, UseCustomRate: true, CustomRate: negative}, defaults())
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestResolveRejectsUnknownType(t *testing.T) {
	_, err := Resolve(techniciandomain.Profile{Type: "FREELANCER"}, defaults())
	assert.ErrorIs(t, err, techniciandomain.ErrInvalidTechnicianType)
}

func TestValidateBounds(t *testing.T) {
	assert.NoError(t, Validate(decimal.Zero))
	assert.NoError(t, Validate(decimal.NewFromInt(1)))
	assert.ErrorIs(t, Validate(decimal.RequireFromString("-0.0001")), ErrInvalidRate)
	assert.ErrorIs(t, Validate(decimal.RequireFromString("1.0001")), ErrInvalidRate)
}

func TestApplyRoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(5000), Apply(100000, decimal.RequireFromString("0.05")))
	assert.Equal(t, int64(18000), Apply(100000, decimal.RequireFromString("0.18")))
	// 0.125 * 1 = 0.125 minor units rounds down, 0.5 rounds up.
	assert.Equal(t, int64(0), Apply(1, decimal.RequireFromString("0.125")))
	assert.Equal(t, int64(1), Apply(1, decimal.RequireFromString("0.5")))
	assert.Equal(t, int64(13), Apply(250, decimal.RequireFromString("0.05")))
	assert.Equal(t, int64(0), Apply(99999, decimal.Zero))
	assert.Equal(t, int64(99999), Apply(99999, decimal.NewFromInt(1)))
}

func TestKindFor(t *testing.T) {
	kind, err := KindFor(techniciandomain.TypeContractor)
	require.NoError(t, err)
	assert.Equal(t, earningdomain.KindCommission, kind)

	kind, err = KindFor(techniciandomain.TypeEmployee)
	require.NoError(t, err)
	assert.Equal(t, earningdomain.KindBonus, kind)

	_, err = KindFor("")
	assert.ErrorIs(t, err, techniciandomain.ErrInvalidTechnicianType)
}
