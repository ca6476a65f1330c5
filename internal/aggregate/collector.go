// Package aggregate fans venue operations out across every registered venue
// and fans the results back in as maps keyed by exchange. A venue that fails
// is dropped from the result for that cycle; losing the comparison quorum is
// the caller's signal to skip the cycle.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"funding-hedge-bot/internal/domain"
	"funding-hedge-bot/internal/metrics"
	"funding-hedge-bot/internal/venue"
)

// minQuorum is the smallest venue set a funding comparison makes sense over.
const minQuorum = 2

type Collector struct {
	reg     *venue.Registry
	timeout time.Duration
	errs    metrics.Counter
	log     *zap.Logger
}

func NewCollector(reg *venue.Registry, timeout time.Duration, errs metrics.Counter, log *zap.Logger) *Collector {
	return &Collector{reg: reg, timeout: timeout, errs: errs, log: log}
}

// Positions gathers live positions from every responsive venue.
func (c *Collector) Positions(ctx context.Context) (map[domain.ExchangeID]domain.Position, error) {
	return collect(c, ctx, "position", func(ctx context.Context, op *venue.Operations) (domain.Position, error) {
		return op.Position(ctx)
	})
}

// FundingRates gathers current funding quotes from every responsive venue.
func (c *Collector) FundingRates(ctx context.Context) (map[domain.ExchangeID]domain.FundingRate, error) {
	return collect(c, ctx, "funding rate", func(ctx context.Context, op *venue.Operations) (domain.FundingRate, error) {
		return op.FundingRate(ctx)
	})
}

// Markets gathers top-of-book snapshots from every responsive venue.
func (c *Collector) Markets(ctx context.Context) (map[domain.ExchangeID]domain.Market, error) {
	return collect(c, ctx, "market", func(ctx context.Context, op *venue.Operations) (domain.Market, error) {
		return op.Market(ctx)
	})
}

// PendingOrderCounts gathers resting order counts from every responsive venue.
func (c *Collector) PendingOrderCounts(ctx context.Context) (map[domain.ExchangeID]int, error) {
	return collect(c, ctx, "open orders", func(ctx context.Context, op *venue.Operations) (int, error) {
		return op.PendingOrders(ctx)
	})
}

// collect runs fetch against every venue concurrently, each under its own
// timeout. Per-venue failures are logged and omitted; the error return fires
// only when fewer than minQuorum venues survive.
func collect[T any](c *Collector, ctx context.Context, what string, fetch func(context.Context, *venue.Operations) (T, error)) (map[domain.ExchangeID]T, error) {
	out := make(map[domain.ExchangeID]T, c.reg.Len())
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range c.reg.IDs() {
		op, ok := c.reg.Get(id)
		if !ok {
			continue
		}
		id := id
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, c.timeout)
			defer cancel()
			val, err := fetch(callCtx, op)
			if err != nil {
				c.errs.Inc()
				c.log.Warn("venue omitted from cycle",
					zap.String("venue", id.String()),
					zap.String("data", what),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			out[id] = val
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(out) < minQuorum {
		return nil, fmt.Errorf("%w: %s from %d of %d venues", domain.ErrInsufficientVenueData, what, len(out), c.reg.Len())
	}
	return out, nil
}

// TotalExposure is the net signed quantity across all venues. A perfect hedge
// nets to zero; the magnitude of the residual is the hedge imbalance.
func TotalExposure(positions map[domain.ExchangeID]domain.Position) decimal.Decimal {
	total := decimal.Zero
	for _, pos := range positions {
		total = total.Add(pos.SignedQuantity())
	}
	return total
}
