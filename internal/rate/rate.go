// Package rate resolves which commission rate applies to an accrual and
// turns a verified payment into an earned amount.
package rate

import (
	"errors"

	"github.com/shopspring/decimal"
	earningdomain "github.com/smallbiznis/techwallet/internal/earning/domain"
	ratedefaultsdomain "github.com/smallbiznis/techwallet/internal/ratedefaults/domain"
	techniciandomain "github.com/smallbiznis/techwallet/internal/technician/domain"
)

var ErrInvalidRate = errors.New("invalid_rate")

type Source string

const (
	SourceCustom  Source = "CUSTOM"
	SourceDefault Source = "DEFAULT"
)

// Resolution is the rate chosen for one accrual and where it came from.
type Resolution struct {
	Rate            decimal.Decimal
	Source          Source
	DefaultsVersion int64
}

var (
	minRate = decimal.Zero
	maxRate = decimal.NewFromInt(1)
)

// Validate reports ErrInvalidRate unless 0 <= r <= 1.
func Validate(r decimal.Decimal) error {
	if r.LessThan(minRate) || r.GreaterThan(maxRate) {
		return ErrInvalidRate
	}
	return nil
}

// Resolve applies the precedence rule: an enabled custom rate wins,
// otherwise the default for the technician's type.
func Resolve(profile techniciandomain.Profile, defaults ratedefaultsdomain.Snapshot) (Resolution, error) {
	var res Resolution
	switch {
	case profile.UseCustomRate && profile.CustomRate.Valid:
		res = Resolution{Rate: profile.CustomRate.Decimal, Source: SourceCustom}
	default:
		defaultRate, err := defaultFor(profile.Type, defaults)
		if err != nil {
			return Resolution{}, err
		}
		res = Resolution{Rate: defaultRate, Source: SourceDefault}
	}
	res.DefaultsVersion = defaults.Version

	if err := Validate(res.Rate); err != nil {
		return Resolution{}, err
	}
	return res, nil
}

func defaultFor(t techniciandomain.Type, defaults ratedefaultsdomain.Snapshot) (decimal.Decimal, error) {
	switch t {
	case techniciandomain.TypeContractor:
		return defaults.ContractorRate, nil
	case techniciandomain.TypeEmployee:
		return defaults.EmployeeRate, nil
	default:
		return decimal.Decimal{}, techniciandomain.ErrInvalidTechnicianType
	}
}

// Apply returns amount x rate rounded half-up to a whole minor unit.
func Apply(amount int64, r decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(r).Round(0).IntPart()
}

// KindFor maps the technician type onto the earning kind it accrues.
func KindFor(t techniciandomain.Type) (earningdomain.Kind, error) {
	switch t {
	case techniciandomain.TypeContractor:
		return earningdomain.KindCommission, nil
	case techniciandomain.TypeEmployee:
		return earningdomain.KindBonus, nil
	default:
		return "", techniciandomain.ErrInvalidTechnicianType
	}
}
