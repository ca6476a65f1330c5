package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

type Action string

const (
	ActionBuild     Action = "BUILD"
	ActionWinddown  Action = "WINDDOWN"
	ActionRebalance Action = "REBALANCE"
)

// TradeLeg is one atomic order intent on one venue.
type TradeLeg struct {
	Exchange ExchangeID
	Symbol   Symbol
	Side     OrderSide
	Quantity decimal.Decimal
}

// SignedQuantity is positive for buys, negative for sells.
func (l TradeLeg) SignedQuantity() decimal.Decimal {
	if l.Side == Sell {
		return l.Quantity.Neg()
	}
	return l.Quantity
}

func (l TradeLeg) String() string {
	return fmt.Sprintf("%s %s %s @ %s", strings.ToUpper(string(l.Side)), l.Quantity, l.Symbol, l.Exchange)
}

// TradingSignal is an ordered set of legs produced by one decision. For a
// hedge (BUILD) signal the legs must net to zero quantity: that is the
// market-neutrality contract.
type TradingSignal struct {
	Action Action
	Legs   []TradeLeg
	Reason string
}

// NetQuantity is the signed sum across legs. Zero for a balanced hedge.
func (s TradingSignal) NetQuantity() decimal.Decimal {
	net := decimal.Zero
	for _, leg := range s.Legs {
		net = net.Add(leg.SignedQuantity())
	}
	return net
}

// IsHedged reports whether the legs net to zero within tolerance.
func (s TradingSignal) IsHedged(tolerance decimal.Decimal) bool {
	return s.NetQuantity().Abs().LessThanOrEqual(tolerance)
}

func (s TradingSignal) String() string {
	legs := make([]string, len(s.Legs))
	for i, leg := range s.Legs {
		legs[i] = leg.String()
	}
	return fmt.Sprintf("%s [%s]: %s", s.Action, strings.Join(legs, " + "), s.Reason)
}
