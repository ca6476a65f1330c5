package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"funding-hedge-bot/internal/domain"
)

// Client is the capability contract a venue connector must satisfy. Connectors
// live outside the core; the engine only ever talks to them through
// Operations. Symbols are venue-native strings; translation from the
// venue-agnostic domain.Symbol happens in Operations.
type Client interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// SignedPosition returns the current position, positive for long.
	SignedPosition(ctx context.Context, symbol string) (decimal.Decimal, error)
	// FundingRate returns the raw periodic rate and its settlement interval.
	FundingRate(ctx context.Context, symbol string) (rate decimal.Decimal, intervalHours int64, err error)
	// BestBidAsk returns the live top of book.
	BestBidAsk(ctx context.Context, symbol string) (bid, ask decimal.Decimal, err error)
	OpenOrderCount(ctx context.Context, symbol string) (int, error)

	// PlaceOrder places one order and tracks it to completion or failure.
	PlaceOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity decimal.Decimal, clientOrderID string) (OrderResult, error)
	CancelAll(ctx context.Context, symbol string) error
}

// OrderResult is the raw placement outcome before normalization.
type OrderResult struct {
	OrderID string
	Status  string
	Filled  decimal.Decimal
	Price   decimal.Decimal
}
