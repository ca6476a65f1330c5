// Package paper implements an in-memory venue connector. It fills every order
// instantly at the configured mark price, which makes it suitable for dry runs
// and for exercising the full control loop in tests.
package paper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"funding-hedge-bot/internal/domain"
	"funding-hedge-bot/internal/venue"
)

type Client struct {
	name string

	mu        sync.Mutex
	connected bool
	positions map[string]decimal.Decimal
	rates     map[string]fundingQuote
	books     map[string]bookQuote
	open      map[string]int

	orderSeq atomic.Int64
}

type fundingQuote struct {
	rate     decimal.Decimal
	interval int64
}

type bookQuote struct {
	bid decimal.Decimal
	ask decimal.Decimal
}

func New(name string) *Client {
	return &Client{
		name:      name,
		positions: make(map[string]decimal.Decimal),
		rates:     make(map[string]fundingQuote),
		books:     make(map[string]bookQuote),
		open:      make(map[string]int),
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

// SetFunding seeds the funding quote served for symbol.
func (c *Client) SetFunding(symbol string, rate decimal.Decimal, intervalHours int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[symbol] = fundingQuote{rate: rate, interval: intervalHours}
}

// SetBook seeds the top of book served for symbol.
func (c *Client) SetBook(symbol string, bid, ask decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books[symbol] = bookQuote{bid: bid, ask: ask}
}

// SetPosition overrides the signed position, bypassing fills.
func (c *Client) SetPosition(symbol string, signed decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[symbol] = signed
}

// SetOpenOrders overrides the resting order count.
func (c *Client) SetOpenOrders(symbol string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open[symbol] = count
}

func (c *Client) SignedPosition(ctx context.Context, symbol string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return decimal.Zero, err
	}
	return c.positions[symbol], nil
}

func (c *Client) FundingRate(ctx context.Context, symbol string) (decimal.Decimal, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return decimal.Zero, 0, err
	}
	quote, ok := c.rates[symbol]
	if !ok {
		return decimal.Zero, 0, fmt.Errorf("no funding quote for %s", symbol)
	}
	return quote.rate, quote.interval, nil
}

func (c *Client) BestBidAsk(ctx context.Context, symbol string) (decimal.Decimal, decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	book, ok := c.books[symbol]
	if !ok {
		return decimal.Zero, decimal.Zero, domain.ErrMarketDataUnavailable
	}
	return book.bid, book.ask, nil
}

func (c *Client) OpenOrderCount(ctx context.Context, symbol string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return 0, err
	}
	return c.open[symbol], nil
}

func (c *Client) PlaceOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity decimal.Decimal, clientOrderID string) (venue.OrderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return venue.OrderResult{}, err
	}
	delta := quantity
	if side == domain.Sell {
		delta = quantity.Neg()
	}
	c.positions[symbol] = c.positions[symbol].Add(delta)
	price := decimal.Zero
	if book, ok := c.books[symbol]; ok {
		if side == domain.Buy {
			price = book.ask
		} else {
			price = book.bid
		}
	}
	return venue.OrderResult{
		OrderID: fmt.Sprintf("%s-%d", c.name, c.orderSeq.Add(1)),
		Status:  "FILLED",
		Filled:  quantity,
		Price:   price,
	}, nil
}

func (c *Client) CancelAll(ctx context.Context, symbol string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnected(); err != nil {
		return err
	}
	c.open[symbol] = 0
	return nil
}

func (c *Client) checkConnected() error {
	if !c.connected {
		return fmt.Errorf("paper venue %s is not connected", c.name)
	}
	return nil
}
