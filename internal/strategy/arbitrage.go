// Package strategy is the pure decision core: no I/O, no clocks other than
// the ones passed in, deterministic for identical inputs. Absence of an
// opportunity is a nil signal, never an error.
package strategy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"funding-hedge-bot/internal/config"
	"funding-hedge-bot/internal/domain"
)

// AnalyzeOpportunity compares annualized funding across every venue pair and
// returns a BUILD or WINDDOWN signal, or nil to hold. The build threshold is
// inclusive and the close threshold is exclusive, so a spread sitting exactly
// on the close threshold keeps the position open.
func AnalyzeOpportunity(
	rates map[domain.ExchangeID]domain.FundingRate,
	positions map[domain.ExchangeID]domain.Position,
	cfg config.Arbitrage,
) *domain.TradingSignal {
	if len(rates) < 2 {
		return nil
	}

	low, high, spread, ok := bestPair(rates)
	if !ok {
		return nil
	}

	lowPos := positions[low].SignedQuantity()
	highPos := positions[high].SignedQuantity()
	pairExposure := decimal.Max(lowPos.Abs(), highPos.Abs())

	if spread.GreaterThanOrEqual(cfg.BuildThresholdAPR) && pairExposure.LessThan(cfg.MaxPosition) {
		size := decimal.Min(cfg.TradeSize,
			cfg.MaxPosition.Sub(lowPos.Abs()),
			cfg.MaxPosition.Sub(highPos.Abs()))
		if !size.IsPositive() {
			return nil
		}
		symbol := rates[low].Symbol
		return &domain.TradingSignal{
			Action: domain.ActionBuild,
			Legs: []domain.TradeLeg{
				{Exchange: low, Symbol: symbol, Side: domain.Buy, Quantity: size},
				{Exchange: high, Symbol: symbol, Side: domain.Sell, Quantity: size},
			},
			Reason: fmt.Sprintf("annualized spread %s >= build threshold %s: buy %s, sell %s",
				spread, cfg.BuildThresholdAPR, low, high),
		}
	}

	if spread.LessThan(cfg.CloseThresholdAPR) || pairExposure.GreaterThanOrEqual(cfg.MaxPosition) {
		legs := winddownLegs(positions, []domain.ExchangeID{low, high}, cfg.TradeSize)
		if len(legs) == 0 {
			return nil
		}
		why := fmt.Sprintf("annualized spread %s < close threshold %s", spread, cfg.CloseThresholdAPR)
		if pairExposure.GreaterThanOrEqual(cfg.MaxPosition) {
			why = fmt.Sprintf("pair exposure %s >= max position %s", pairExposure, cfg.MaxPosition)
		}
		return &domain.TradingSignal{
			Action: domain.ActionWinddown,
			Legs:   legs,
			Reason: why,
		}
	}

	return nil
}

// bestPair returns the venue pair with the widest absolute annualized spread,
// ordered so the first venue carries the lower annual rate. Pairs are visited
// in lexicographic id order and only a strictly wider spread displaces the
// incumbent, which makes tie-breaking deterministic.
func bestPair(rates map[domain.ExchangeID]domain.FundingRate) (low, high domain.ExchangeID, spread decimal.Decimal, ok bool) {
	ids := sortedIDs(rates)
	best := decimal.Zero
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := rates[ids[i]], rates[ids[j]]
			s := domain.AnnualSpread(a, b)
			if !ok || s.GreaterThan(best) {
				best = s
				low, high = ids[i], ids[j]
				if a.AnnualRate().GreaterThan(b.AnnualRate()) {
					low, high = ids[j], ids[i]
				}
				ok = true
			}
		}
	}
	return low, high, best, ok
}

// winddownLegs inverts whatever is open on the given venues, each leg capped
// at tradeSize. Flat venues contribute nothing.
func winddownLegs(positions map[domain.ExchangeID]domain.Position, venues []domain.ExchangeID, tradeSize decimal.Decimal) []domain.TradeLeg {
	var legs []domain.TradeLeg
	for _, id := range venues {
		pos, ok := positions[id]
		if !ok || pos.IsEmpty() {
			continue
		}
		side := domain.Sell
		if pos.SignedQuantity().IsNegative() {
			side = domain.Buy
		}
		legs = append(legs, domain.TradeLeg{
			Exchange: id,
			Symbol:   pos.Symbol,
			Side:     side,
			Quantity: decimal.Min(pos.Quantity, tradeSize),
		})
	}
	return legs
}

func sortedIDs[T any](m map[domain.ExchangeID]T) []domain.ExchangeID {
	ids := make([]domain.ExchangeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
