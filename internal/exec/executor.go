// Package exec turns trading signals into venue orders. Trades are never
// retried within a cycle (a duplicate fill is worse than a missing one; the
// next cycle's rebalance repairs partials), while cancellation retries with
// backoff because cancelling twice is harmless.
package exec

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"funding-hedge-bot/internal/domain"
	"funding-hedge-bot/internal/venue"
)

const (
	cancelAttempts = 5
	cancelBackoff  = 200 * time.Millisecond
)

// LegResult pairs a leg with its outcome. Err wraps ErrOrderRejected or
// ErrOrderTimeout from the domain taxonomy.
type LegResult struct {
	Leg   domain.TradeLeg
	Order domain.Order
	Err   error
}

type Executor struct {
	reg     *venue.Registry
	timeout time.Duration
	log     *zap.Logger
}

func New(reg *venue.Registry, timeout time.Duration, log *zap.Logger) *Executor {
	return &Executor{reg: reg, timeout: timeout, log: log}
}

// ExecuteSignal places every leg concurrently, each under its own timeout,
// and waits for all of them. A failed or timed-out leg never aborts its
// siblings: the partial hedge it leaves behind is the rebalancer's problem on
// the next cycle. The cycle number scopes client order ids so a leg cannot be
// placed twice within one cycle.
func (e *Executor) ExecuteSignal(ctx context.Context, sig *domain.TradingSignal, cycle uint64) []LegResult {
	results := make([]LegResult, len(sig.Legs))
	g := &errgroup.Group{}
	for i, leg := range sig.Legs {
		i, leg := i, leg
		results[i].Leg = leg
		g.Go(func() error {
			results[i].Order, results[i].Err = e.placeLeg(ctx, leg, clientOrderID(cycle, i, leg))
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.Err != nil {
			e.log.Warn("leg failed",
				zap.String("leg", res.Leg.String()),
				zap.Error(res.Err))
			continue
		}
		e.log.Info("leg placed",
			zap.String("leg", res.Leg.String()),
			zap.String("order_id", res.Order.ID),
			zap.String("status", string(res.Order.Status)))
	}
	return results
}

// ExecuteLeg places a single corrective leg.
func (e *Executor) ExecuteLeg(ctx context.Context, leg domain.TradeLeg, cycle uint64) LegResult {
	order, err := e.placeLeg(ctx, leg, clientOrderID(cycle, 0, leg))
	return LegResult{Leg: leg, Order: order, Err: err}
}

func (e *Executor) placeLeg(ctx context.Context, leg domain.TradeLeg, clientOrderID string) (domain.Order, error) {
	op, ok := e.reg.Get(leg.Exchange)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s is not registered", domain.ErrVenueUnavailable, leg.Exchange)
	}
	legCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return op.ExecuteTrade(legCtx, leg.Side, leg.Quantity, clientOrderID)
}

// CancelAll cancels resting orders on the given venues, retrying each venue
// with backoff. Empty venue list means all registered venues.
func (e *Executor) CancelAll(ctx context.Context, venues ...domain.ExchangeID) error {
	if len(venues) == 0 {
		venues = e.reg.IDs()
	}
	var firstErr error
	for _, id := range venues {
		op, ok := e.reg.Get(id)
		if !ok {
			continue
		}
		if err := e.cancelWithRetry(ctx, op); err != nil {
			e.log.Error("cancel-all failed", zap.String("venue", id.String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *Executor) cancelWithRetry(ctx context.Context, op *venue.Operations) error {
	backoff := cancelBackoff
	var err error
	for attempt := 0; attempt < cancelAttempts; attempt++ {
		if err = op.CancelAll(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return err
}

func clientOrderID(cycle uint64, idx int, leg domain.TradeLeg) string {
	return fmt.Sprintf("fhb-%d-%d-%s-%s", cycle, idx, leg.Exchange.Name, leg.Side)
}
