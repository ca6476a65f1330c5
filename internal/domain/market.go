package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var bpsFactor = decimal.NewFromInt(10000)

// Market is a best bid/ask snapshot from one venue.
type Market struct {
	Exchange ExchangeID
	Symbol   Symbol
	BestBid  decimal.Decimal
	BestAsk  decimal.Decimal
	Time     time.Time
}

// NewMarket validates the quote; a crossed book (bid > ask) is venue garbage
// and is rejected rather than propagated into decisions.
func NewMarket(exchange ExchangeID, symbol Symbol, bid, ask decimal.Decimal, at time.Time) (Market, error) {
	if bid.IsPositive() && ask.IsPositive() && bid.GreaterThan(ask) {
		return Market{}, fmt.Errorf("%w: bid %s above ask %s on %s", ErrMarketDataUnavailable, bid, ask, exchange)
	}
	return Market{Exchange: exchange, Symbol: symbol, BestBid: bid, BestAsk: ask, Time: at}, nil
}

func (m Market) HasQuote() bool {
	return m.BestBid.IsPositive() && m.BestAsk.IsPositive()
}

func (m Market) Mid() decimal.Decimal {
	if !m.HasQuote() {
		return decimal.Zero
	}
	return m.BestBid.Add(m.BestAsk).Div(decimal.NewFromInt(2))
}

func (m Market) Spread() decimal.Decimal {
	if !m.HasQuote() {
		return decimal.Zero
	}
	return m.BestAsk.Sub(m.BestBid)
}

func (m Market) SpreadBPS() decimal.Decimal {
	mid := m.Mid()
	if !mid.IsPositive() {
		return decimal.Zero
	}
	return m.Spread().Div(mid).Mul(bpsFactor)
}
