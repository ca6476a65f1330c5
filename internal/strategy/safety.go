package strategy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"funding-hedge-bot/internal/config"
	"funding-hedge-bot/internal/domain"
)

// warningFraction of max position at which a venue starts to be flagged.
var warningFraction = decimal.RequireFromString("0.8")

// SafetyReport carries the single most severe level triggered this cycle,
// with a reason enumerating every trigger, and the venues whose open-order
// count breached the cap (the cancel-all targets for AUTO_REBALANCE).
type SafetyReport struct {
	Level            domain.SafetyLevel
	Reason           string
	OrderCapBreaches []domain.ExchangeID
}

// EvaluateSafety checks every condition and never short-circuits on the first
// trigger: simultaneous violations all appear in the reason, and the returned
// level is the most severe among them.
func EvaluateSafety(
	positions map[domain.ExchangeID]domain.Position,
	pendingOrders map[domain.ExchangeID]int,
	cfg config.Arbitrage,
) SafetyReport {
	report := SafetyReport{Level: domain.SafetyNormal}
	var triggers []string

	escalate := func(level domain.SafetyLevel, why string) {
		triggers = append(triggers, why)
		if level > report.Level {
			report.Level = level
		}
	}

	warnAt := cfg.MaxPosition.Mul(warningFraction)
	net := decimal.Zero
	for _, id := range sortedIDs(positions) {
		pos := positions[id]
		net = net.Add(pos.SignedQuantity())
		switch {
		case pos.Quantity.GreaterThan(cfg.MaxPosition):
			escalate(domain.SafetyPause, fmt.Sprintf("%s position %s exceeds max %s", id, pos.Quantity, cfg.MaxPosition))
		case pos.Quantity.GreaterThanOrEqual(warnAt):
			escalate(domain.SafetyWarning, fmt.Sprintf("%s position %s at %s%%+ of max %s", id, pos.Quantity, warningFraction.Mul(decimal.NewFromInt(100)), cfg.MaxPosition))
		}
	}

	if net.Abs().GreaterThan(cfg.MaxTotalExposure) {
		escalate(domain.SafetyEmergency, fmt.Sprintf("total exposure %s exceeds cap %s", net, cfg.MaxTotalExposure))
	}

	for _, id := range sortedIDs(pendingOrders) {
		if count := pendingOrders[id]; count > cfg.MaxOpenOrders {
			escalate(domain.SafetyAutoRebalance, fmt.Sprintf("%s has %d open orders, cap %d", id, count, cfg.MaxOpenOrders))
			report.OrderCapBreaches = append(report.OrderCapBreaches, id)
		}
	}

	report.Reason = strings.Join(triggers, "; ")
	return report
}
