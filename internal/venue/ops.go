package venue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"funding-hedge-bot/internal/domain"
)

// Operations binds one Client to one (venue, symbol) pair and converts its raw
// primitives into cycle-scoped domain values. Failures are translated into the
// domain taxonomy; retry policy belongs to the caller, never here.
type Operations struct {
	id     domain.ExchangeID
	symbol domain.Symbol
	native string
	client Client
	log    *zap.Logger
}

func NewOperations(id domain.ExchangeID, symbol domain.Symbol, client Client, log *zap.Logger) *Operations {
	return &Operations{
		id:     id,
		symbol: symbol,
		native: nativeSymbol(symbol),
		client: client,
		log:    log.With(zap.String("venue", id.String())),
	}
}

// nativeSymbol is the default venue-side instrument name. Connectors that need
// a different scheme remap inside their Client.
func nativeSymbol(symbol domain.Symbol) string {
	return strings.ToUpper(symbol.Base + "-" + symbol.Quote)
}

func (o *Operations) ID() domain.ExchangeID { return o.id }

func (o *Operations) Symbol() domain.Symbol { return o.symbol }

func (o *Operations) Connect(ctx context.Context) error {
	if err := o.client.Connect(ctx); err != nil {
		return fmt.Errorf("%w: connect %s: %v", domain.ErrVenueUnavailable, o.id, err)
	}
	return nil
}

func (o *Operations) Disconnect(ctx context.Context) error {
	return o.client.Disconnect(ctx)
}

// Position returns the live position snapshot for this venue.
func (o *Operations) Position(ctx context.Context) (domain.Position, error) {
	signed, err := o.client.SignedPosition(ctx, o.native)
	if err != nil {
		return domain.Position{}, o.unavailable("position", err)
	}
	return domain.NewPosition(o.id, o.symbol, signed, time.Now().UTC()), nil
}

func (o *Operations) FundingRate(ctx context.Context) (domain.FundingRate, error) {
	rate, interval, err := o.client.FundingRate(ctx, o.native)
	if err != nil {
		return domain.FundingRate{}, o.unavailable("funding rate", err)
	}
	return domain.FundingRate{
		Exchange:      o.id,
		Symbol:        o.symbol,
		Rate:          rate,
		IntervalHours: interval,
		Time:          time.Now().UTC(),
	}, nil
}

func (o *Operations) Market(ctx context.Context) (domain.Market, error) {
	bid, ask, err := o.client.BestBidAsk(ctx, o.native)
	if err != nil {
		if errors.Is(err, domain.ErrMarketDataUnavailable) {
			return domain.Market{}, fmt.Errorf("%w: %s", domain.ErrMarketDataUnavailable, o.id)
		}
		return domain.Market{}, o.unavailable("market", err)
	}
	market, err := domain.NewMarket(o.id, o.symbol, bid, ask, time.Now().UTC())
	if err != nil {
		return domain.Market{}, err
	}
	if !market.HasQuote() {
		return domain.Market{}, fmt.Errorf("%w: %s has no live quote", domain.ErrMarketDataUnavailable, o.id)
	}
	return market, nil
}

func (o *Operations) PendingOrders(ctx context.Context) (int, error) {
	count, err := o.client.OpenOrderCount(ctx, o.native)
	if err != nil {
		return 0, o.unavailable("open orders", err)
	}
	return count, nil
}

// ExecuteTrade places one leg and normalizes the outcome. The caller
// guarantees at-most-one invocation per leg per cycle; clientOrderID makes the
// placement idempotent on venues that honor it.
func (o *Operations) ExecuteTrade(ctx context.Context, side domain.OrderSide, quantity decimal.Decimal, clientOrderID string) (domain.Order, error) {
	if !quantity.IsPositive() {
		return domain.Order{}, fmt.Errorf("%w: non-positive quantity %s", domain.ErrOrderRejected, quantity)
	}
	result, err := o.client.PlaceOrder(ctx, o.native, side, quantity, clientOrderID)
	now := time.Now().UTC()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.Order{}, fmt.Errorf("%w: %s %s %s on %s", domain.ErrOrderTimeout, side, quantity, o.symbol, o.id)
		}
		return domain.Order{}, fmt.Errorf("%w: %s on %s: %v", domain.ErrOrderRejected, side, o.id, err)
	}
	order := domain.Order{
		Exchange:  o.id,
		Symbol:    o.symbol,
		ID:        result.OrderID,
		Side:      side,
		Quantity:  quantity,
		Filled:    result.Filled,
		Price:     result.Price,
		Status:    normalizeStatus(result.Status),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if order.Status == domain.OrderRejected {
		return order, fmt.Errorf("%w: %s on %s", domain.ErrOrderRejected, side, o.id)
	}
	return order, nil
}

func (o *Operations) CancelAll(ctx context.Context) error {
	if err := o.client.CancelAll(ctx, o.native); err != nil {
		return o.unavailable("cancel all", err)
	}
	return nil
}

func (o *Operations) unavailable(op string, err error) error {
	o.log.Debug("venue call failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s %s: %v", domain.ErrVenueUnavailable, o.id, op, err)
}

func normalizeStatus(raw string) domain.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "FILLED":
		return domain.OrderFilled
	case "OPEN", "NEW", "PARTIALLY_FILLED":
		return domain.OrderOpen
	case "CANCELLED", "CANCELED":
		return domain.OrderCancelled
	case "REJECTED":
		return domain.OrderRejected
	case "PENDING":
		return domain.OrderPending
	}
	return domain.OrderOpen
}
