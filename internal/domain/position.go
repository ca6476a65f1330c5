package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
	SideNone  PositionSide = "none"
)

// Position is a live snapshot of one venue's position, rebuilt from a fresh
// query every cycle. Quantity is a non-negative magnitude; direction lives in
// Side.
type Position struct {
	Exchange ExchangeID
	Symbol   Symbol
	Quantity decimal.Decimal
	Side     PositionSide
	Time     time.Time
}

// NewPosition normalizes a signed quantity into magnitude plus side.
func NewPosition(exchange ExchangeID, symbol Symbol, signed decimal.Decimal, at time.Time) Position {
	side := SideNone
	switch {
	case signed.IsPositive():
		side = SideLong
	case signed.IsNegative():
		side = SideShort
	}
	return Position{
		Exchange: exchange,
		Symbol:   symbol,
		Quantity: signed.Abs(),
		Side:     side,
		Time:     at,
	}
}

// SignedQuantity is positive for long, negative for short, zero for none.
func (p Position) SignedQuantity() decimal.Decimal {
	switch p.Side {
	case SideLong:
		return p.Quantity
	case SideShort:
		return p.Quantity.Neg()
	}
	return decimal.Zero
}

func (p Position) IsEmpty() bool {
	return p.Side == SideNone || p.Quantity.IsZero()
}
