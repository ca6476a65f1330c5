package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	hoursPerDay  = decimal.NewFromInt(24)
	daysPerYear  = decimal.NewFromInt(365)
	defaultHours = int64(8)
)

// FundingRate is one venue's periodic funding rate for one symbol. Rate is the
// raw per-interval rate as a signed decimal; IntervalHours is the settlement
// interval. Decimal arithmetic keeps threshold comparisons exact.
type FundingRate struct {
	Exchange      ExchangeID
	Symbol        Symbol
	Rate          decimal.Decimal
	IntervalHours int64
	Time          time.Time
}

// AnnualRate normalizes the raw rate to a yearly basis:
// rate * (24 / interval_hours) * 365.
func (f FundingRate) AnnualRate() decimal.Decimal {
	return f.DailyRate().Mul(daysPerYear)
}

// DailyRate is rate * (24 / interval_hours).
func (f FundingRate) DailyRate() decimal.Decimal {
	hours := f.IntervalHours
	if hours <= 0 {
		hours = defaultHours
	}
	return f.Rate.Mul(hoursPerDay).Div(decimal.NewFromInt(hours))
}

// AnnualSpread is the absolute difference between two venues' annualized
// rates, the quantity every arbitrage decision compares against thresholds.
func AnnualSpread(a, b FundingRate) decimal.Decimal {
	return a.AnnualRate().Sub(b.AnnualRate()).Abs()
}
