package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"funding-hedge-bot/internal/aggregate"
	"funding-hedge-bot/internal/alerts"
	"funding-hedge-bot/internal/domain"
	"funding-hedge-bot/internal/exec"
	"funding-hedge-bot/internal/state"
	"funding-hedge-bot/internal/strategy"
	"funding-hedge-bot/internal/timescale"
)

type cycleData struct {
	positions map[domain.ExchangeID]domain.Position
	rates     map[domain.ExchangeID]domain.FundingRate
	markets   map[domain.ExchangeID]domain.Market
	pending   map[domain.ExchangeID]int
}

type cycleOutcome struct {
	n          uint64
	now        time.Time
	data       *cycleData
	phase      strategy.PhaseStatus
	safety     strategy.SafetyReport
	action     domain.Action
	legsPlaced int
	legsFailed int
	skipped    bool
	detail     string
}

// cycle runs one full pass: collect, safety, rebalance, phase, decide,
// execute, report. It never returns an error; every outcome, including "no
// action", is reported.
func (a *App) cycle(ctx context.Context) {
	a.mu.Lock()
	a.cycleCount++
	n := a.cycleCount
	last := a.lastSizeChange
	halted := a.halted
	a.mu.Unlock()
	now := a.now().UTC()

	out := cycleOutcome{n: n, now: now}

	data, err := a.collect(ctx)
	if err != nil {
		out.skipped = true
		out.detail = err.Error()
		a.log.Warn("cycle skipped: collection failed", zap.Uint64("cycle", n), zap.Error(err))
		a.finish(ctx, out, halted)
		return
	}
	out.data = data

	out.safety = strategy.EvaluateSafety(data.positions, data.pending, a.arb)
	refPos, ok := data.positions[a.reference]
	if !ok {
		// The reference venue survived quorum loss elsewhere but not here;
		// a flat reference position derives IDLE, which never trades it.
		a.log.Warn("reference venue missing from positions, deriving phase from flat",
			zap.Uint64("cycle", n), zap.String("reference", a.reference.String()))
	}
	out.phase = strategy.DetectPhase(refPos, last, now, out.safety.Level, a.arb)
	if out.safety.Level > domain.SafetyNormal {
		a.metrics.SafetyEscalations.Inc()
		a.notifier.Notify(alerts.SafetyEscalation{Level: out.safety.Level.String(), Reason: out.safety.Reason})
	}

	switch {
	case out.safety.Level >= domain.SafetyEmergency:
		a.log.Error("emergency: cancelling everywhere and halting new signals",
			zap.Uint64("cycle", n), zap.String("reason", out.safety.Reason))
		if err := a.executor.CancelAll(ctx); err != nil {
			a.log.Error("emergency cancel-all failed", zap.Error(err))
		}
		out.skipped = true
		out.detail = out.safety.Reason
		a.finish(ctx, out, true)
		return

	case out.safety.Level == domain.SafetyPause:
		a.log.Warn("pause: cancelling resting orders, skipping cycle",
			zap.Uint64("cycle", n), zap.String("reason", out.safety.Reason))
		if err := a.executor.CancelAll(ctx); err != nil {
			a.log.Error("pause cancel-all failed", zap.Error(err))
		}
		out.skipped = true
		out.detail = out.safety.Reason
		a.finish(ctx, out, halted)
		return

	case out.safety.Level == domain.SafetyAutoRebalance:
		a.log.Warn("order cap breached, cancelling on offending venues",
			zap.Uint64("cycle", n), zap.String("reason", out.safety.Reason))
		if err := a.executor.CancelAll(ctx, out.safety.OrderCapBreaches...); err != nil {
			a.log.Error("cancel-all failed", zap.Error(err))
		}
	}

	// The halt latch opens only on a fully successful NORMAL evaluation:
	// collection succeeded and nothing triggered.
	if halted {
		if out.safety.Level == domain.SafetyNormal {
			halted = false
			a.log.Info("emergency halt cleared", zap.Uint64("cycle", n))
		} else {
			out.skipped = true
			out.detail = "halted since emergency; waiting for a clean safety evaluation"
			a.finish(ctx, out, halted)
			return
		}
	}

	// A corrective leg runs alone: rebalancing outranks new entries.
	if leg := strategy.ComputeRebalance(data.positions, a.arb); leg != nil {
		out.action = domain.ActionRebalance
		a.metrics.Rebalances.Inc()
		a.log.Info("rebalancing", zap.String("reason", strategy.RebalanceReason(*leg, data.positions)))
		res := a.executor.ExecuteLeg(ctx, *leg, n)
		placed, failed := a.recordLegs([]exec.LegResult{res})
		out.legsPlaced, out.legsFailed = placed, failed
		if placed > 0 {
			a.markSizeChange(ctx, now)
		}
		a.finish(ctx, out, halted)
		return
	}

	var sig *domain.TradingSignal
	if out.phase.Phase != domain.PhaseHolding && out.phase.Phase != domain.PhaseEmergencyStop {
		sig = strategy.AnalyzeOpportunity(data.rates, data.positions, a.arb)
	}
	if sig != nil {
		out.action = sig.Action
		a.log.Info("executing signal", zap.Uint64("cycle", n), zap.String("signal", sig.String()))
		results := a.executor.ExecuteSignal(ctx, sig, n)
		placed, failed := a.recordLegs(results)
		out.legsPlaced, out.legsFailed = placed, failed
		if placed > 0 {
			a.markSizeChange(ctx, now)
		}
	}

	a.finish(ctx, out, halted)
}

// collect gathers the four per-venue aggregates concurrently. Any aggregate
// losing its quorum aborts the whole collection.
func (a *App) collect(ctx context.Context) (*cycleData, error) {
	data := &cycleData{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.positions, err = a.collector.Positions(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.rates, err = a.collector.FundingRates(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.markets, err = a.collector.Markets(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.pending, err = a.collector.PendingOrderCounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

func (a *App) recordLegs(results []exec.LegResult) (placed, failed int) {
	for _, res := range results {
		event := alerts.LegResult{
			Venue:    res.Leg.Exchange.String(),
			Side:     string(res.Leg.Side),
			Quantity: res.Leg.Quantity.String(),
		}
		if res.Err != nil {
			failed++
			a.metrics.OrdersFailed.Inc()
			if errors.Is(res.Err, domain.ErrOrderTimeout) {
				a.metrics.LegsTimedOut.Inc()
			}
			event.Err = res.Err.Error()
		} else {
			placed++
			a.metrics.OrdersPlaced.Inc()
			event.Status = string(res.Order.Status)
		}
		a.notifier.Notify(event)
	}
	return placed, failed
}

// markSizeChange re-anchors the hold timer and persists it so a restart does
// not restart the clock.
func (a *App) markSizeChange(ctx context.Context, now time.Time) {
	a.mu.Lock()
	a.lastSizeChange = now
	a.mu.Unlock()
	if err := state.SaveLastSizeChange(ctx, a.store, now); err != nil {
		a.log.Warn("hold-timer anchor save failed", zap.Error(err))
	}
}

// finish publishes the snapshot, persists it, ships history and counters,
// and emits the cycle summary.
func (a *App) finish(ctx context.Context, out cycleOutcome, halted bool) {
	if out.skipped {
		a.metrics.CyclesSkipped.Inc()
	} else {
		a.metrics.Cycles.Inc()
	}

	snap := Snapshot{
		Cycle:        out.n,
		Time:         out.now,
		Phase:        out.phase.Phase,
		Safety:       out.safety.Level.String(),
		SafetyReason: out.safety.Reason,
		Halted:       halted,
		NetExposure:  "0",
	}
	if out.phase.Phase == "" {
		snap.Phase = domain.PhaseIdle
	}
	if out.data != nil {
		net := aggregate.TotalExposure(out.data.positions)
		snap.NetExposure = net.String()
		snap.Positions = make(map[string]string, len(out.data.positions))
		for id, pos := range out.data.positions {
			snap.Positions[id.String()] = pos.SignedQuantity().String()
		}
		snap.AnnualRates = make(map[string]string, len(out.data.rates))
		for id, rate := range out.data.rates {
			snap.AnnualRates[id.String()] = rate.AnnualRate().String()
			a.writer.EnqueueFunding(timescale.FundingSample{
				Time:          rate.Time,
				Exchange:      id.String(),
				Symbol:        rate.Symbol.String(),
				Rate:          rate.Rate.String(),
				IntervalHours: rate.IntervalHours,
				AnnualRate:    rate.AnnualRate().String(),
			})
		}
		snap.MidPrices = make(map[string]string, len(out.data.markets))
		for id, market := range out.data.markets {
			snap.MidPrices[id.String()] = market.Mid().String()
		}
	}

	a.mu.Lock()
	a.halted = halted
	a.snapshot = snap
	a.mu.Unlock()

	if err := state.SaveCycleSnapshot(ctx, a.store, state.CycleSnapshot{
		Cycle:        snap.Cycle,
		Phase:        string(snap.Phase),
		Safety:       snap.Safety,
		SafetyReason: snap.SafetyReason,
		Halted:       snap.Halted,
		Positions:    snap.Positions,
		AnnualRates:  snap.AnnualRates,
		NetExposure:  snap.NetExposure,
		UpdatedAtMS:  snap.Time.UnixMilli(),
	}); err != nil {
		a.log.Warn("cycle snapshot save failed", zap.Error(err))
	}

	a.writer.EnqueueCycle(timescale.CycleRecord{
		Time:        snap.Time,
		Cycle:       snap.Cycle,
		Phase:       string(snap.Phase),
		Safety:      snap.Safety,
		Action:      string(out.action),
		NetExposure: snap.NetExposure,
		LegsPlaced:  out.legsPlaced,
		LegsFailed:  out.legsFailed,
		Skipped:     out.skipped,
	})

	a.log.Info("cycle complete",
		zap.Uint64("cycle", snap.Cycle),
		zap.String("phase", string(snap.Phase)),
		zap.String("safety", snap.Safety),
		zap.String("action", string(out.action)),
		zap.String("net", snap.NetExposure),
		zap.Int("legs_placed", out.legsPlaced),
		zap.Int("legs_failed", out.legsFailed),
		zap.Bool("skipped", out.skipped))

	a.notifier.Notify(alerts.CycleSummary{
		Cycle:       snap.Cycle,
		Phase:       string(snap.Phase),
		Safety:      snap.Safety,
		Action:      string(out.action),
		NetExposure: snap.NetExposure,
		Skipped:     out.skipped,
		Detail:      out.detail,
	})
}
