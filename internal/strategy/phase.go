package strategy

import (
	"time"

	"funding-hedge-bot/internal/config"
	"funding-hedge-bot/internal/domain"
)

// PhaseStatus is the derived lifecycle position: how many trade-size
// repetitions are on, and how many remain in the current direction.
type PhaseStatus struct {
	Phase     domain.Phase
	Completed int
	Remaining int
}

// DetectPhase derives the lifecycle phase from the reference venue's live
// position. Nothing is accumulated across cycles: completed repetitions are
// floor(|position| / trade size), so a restart re-derives the same phase from
// the venue's authoritative number. lastSizeChange is the persisted timestamp
// of the last size-changing fill and drives the hold timer; its zero value
// means the timer has long elapsed.
func DetectPhase(
	reference domain.Position,
	lastSizeChange time.Time,
	now time.Time,
	safety domain.SafetyLevel,
	cfg config.Arbitrage,
) PhaseStatus {
	if safety >= domain.SafetyPause {
		return PhaseStatus{Phase: domain.PhaseEmergencyStop}
	}

	completed := int(reference.Quantity.Div(cfg.TradeSize).IntPart())
	switch {
	case completed == 0:
		return PhaseStatus{Phase: domain.PhaseIdle, Remaining: cfg.CycleTarget}
	case completed < cfg.CycleTarget:
		return PhaseStatus{Phase: domain.PhaseBuilding, Completed: completed, Remaining: cfg.CycleTarget - completed}
	}

	if !lastSizeChange.IsZero() && now.Sub(lastSizeChange) < cfg.CycleHoldTime {
		return PhaseStatus{Phase: domain.PhaseHolding, Completed: completed}
	}
	return PhaseStatus{Phase: domain.PhaseWindingDown, Completed: completed, Remaining: completed}
}
