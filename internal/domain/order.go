package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderOpen      OrderStatus = "open"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
)

// Order is the normalized result of one placed order on one venue.
type Order struct {
	Exchange  ExchangeID
	Symbol    Symbol
	ID        string
	Side      OrderSide
	Quantity  decimal.Decimal
	Filled    decimal.Decimal
	Price     decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.Filled)
}

func (o Order) IsComplete() bool {
	switch o.Status {
	case OrderFilled, OrderCancelled, OrderRejected:
		return true
	}
	return false
}
