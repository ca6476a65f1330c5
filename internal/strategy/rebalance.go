package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"funding-hedge-bot/internal/config"
	"funding-hedge-bot/internal/domain"
)

// ComputeRebalance returns one corrective leg when the venues no longer net
// to zero within tolerance, or nil when the hedge is balanced. The leg lands
// on the venue contributing most to the drift, opposes the sign of the net,
// and is capped at one trade size so a wildly wrong reading cannot trigger a
// wildly wrong correction.
func ComputeRebalance(positions map[domain.ExchangeID]domain.Position, cfg config.Arbitrage) *domain.TradeLeg {
	net := decimal.Zero
	for _, pos := range positions {
		net = net.Add(pos.SignedQuantity())
	}
	if net.Abs().LessThanOrEqual(cfg.RebalanceTolerance) {
		return nil
	}

	target, ok := mostResponsible(positions, net)
	if !ok {
		return nil
	}

	side := domain.Sell
	if net.IsNegative() {
		side = domain.Buy
	}
	return &domain.TradeLeg{
		Exchange: target,
		Symbol:   positions[target].Symbol,
		Side:     side,
		Quantity: decimal.Min(cfg.TradeSize, net.Abs()),
	}
}

// RebalanceReason renders the imbalance for logs and alerts.
func RebalanceReason(leg domain.TradeLeg, positions map[domain.ExchangeID]domain.Position) string {
	net := decimal.Zero
	for _, pos := range positions {
		net = net.Add(pos.SignedQuantity())
	}
	return fmt.Sprintf("net exposure %s: %s", net, leg)
}

// mostResponsible picks the venue whose signed position leans furthest in the
// direction of the net drift. Ties resolve to the lexicographically first
// venue id.
func mostResponsible(positions map[domain.ExchangeID]domain.Position, net decimal.Decimal) (domain.ExchangeID, bool) {
	var (
		best      domain.ExchangeID
		bestSized decimal.Decimal
		found     bool
	)
	for _, id := range sortedIDs(positions) {
		signed := positions[id].SignedQuantity()
		if signed.Sign() != net.Sign() {
			continue
		}
		if !found || signed.Abs().GreaterThan(bestSized) {
			best = id
			bestSized = signed.Abs()
			found = true
		}
	}
	return best, found
}
