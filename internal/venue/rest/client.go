// Package rest implements the venue capability contract over a venue-gateway
// HTTP API. Each venue runs behind its own gateway instance; the client is
// generic over the gateway's JSON protocol. Quantities travel as strings and
// are parsed as decimals.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"funding-hedge-bot/internal/domain"
	"funding-hedge-bot/internal/venue"
	"funding-hedge-bot/internal/venue/stream"
)

// quoteMaxAge bounds how stale a streamed quote may be before falling back to
// a REST fetch.
const quoteMaxAge = 5 * time.Second

type Client struct {
	name    string
	baseURL string
	http    *http.Client
	feed    *stream.Feed
	log     *zap.Logger
}

func New(name, baseURL, wsURL string, timeout time.Duration, log *zap.Logger) *Client {
	c := &Client{
		name:    name,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With(zap.String("venue", name)),
	}
	if wsURL != "" {
		c.feed = stream.New(wsURL, 3*time.Second, log)
	}
	return c
}

func (c *Client) Name() string { return c.name }

func (c *Client) Connect(ctx context.Context) error {
	var health struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/v1/health", nil, &health); err != nil {
		return err
	}
	if c.feed != nil {
		c.feed.Start(ctx)
	}
	return nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	if c.feed != nil {
		c.feed.Stop()
	}
	return nil
}

func (c *Client) SignedPosition(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var resp struct {
		Position string `json:"position"`
	}
	if err := c.get(ctx, "/v1/position", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(resp.Position)
}

func (c *Client) FundingRate(ctx context.Context, symbol string) (decimal.Decimal, int64, error) {
	var resp struct {
		Rate          string `json:"rate"`
		IntervalHours int64  `json:"interval_hours"`
	}
	if err := c.get(ctx, "/v1/funding", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return decimal.Zero, 0, err
	}
	rate, err := decimal.NewFromString(resp.Rate)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("funding rate %q: %w", resp.Rate, err)
	}
	return rate, resp.IntervalHours, nil
}

func (c *Client) BestBidAsk(ctx context.Context, symbol string) (decimal.Decimal, decimal.Decimal, error) {
	if c.feed != nil {
		if quote, ok := c.feed.Quote(symbol); ok && time.Since(quote.At) <= quoteMaxAge {
			return quote.Bid, quote.Ask, nil
		}
	}
	var resp struct {
		Bid string `json:"bid"`
		Ask string `json:"ask"`
	}
	if err := c.get(ctx, "/v1/book", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if resp.Bid == "" || resp.Ask == "" {
		return decimal.Zero, decimal.Zero, domain.ErrMarketDataUnavailable
	}
	bid, err := decimal.NewFromString(resp.Bid)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("bid %q: %w", resp.Bid, err)
	}
	ask, err := decimal.NewFromString(resp.Ask)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("ask %q: %w", resp.Ask, err)
	}
	return bid, ask, nil
}

func (c *Client) OpenOrderCount(ctx context.Context, symbol string) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.get(ctx, "/v1/orders/count", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) PlaceOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity decimal.Decimal, clientOrderID string) (venue.OrderResult, error) {
	req := map[string]string{
		"symbol":          symbol,
		"side":            string(side),
		"quantity":        quantity.String(),
		"client_order_id": clientOrderID,
	}
	var resp struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
		Filled  string `json:"filled"`
		Price   string `json:"price"`
	}
	if err := c.post(ctx, "/v1/orders", req, &resp); err != nil {
		return venue.OrderResult{}, err
	}
	filled, _ := decimal.NewFromString(resp.Filled)
	price, _ := decimal.NewFromString(resp.Price)
	return venue.OrderResult{
		OrderID: resp.OrderID,
		Status:  resp.Status,
		Filled:  filled,
		Price:   price,
	}, nil
}

func (c *Client) CancelAll(ctx context.Context, symbol string) error {
	endpoint := c.baseURL + "/v1/orders?" + url.Values{"symbol": {symbol}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
