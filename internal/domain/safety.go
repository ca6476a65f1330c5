package domain

// SafetyLevel is an ordered severity scale. Within a cycle it only escalates;
// a lower level is never restored without a fresh evaluation.
type SafetyLevel int

const (
	SafetyNormal SafetyLevel = iota
	SafetyWarning
	SafetyAutoRebalance
	SafetyPause
	SafetyEmergency
)

func (l SafetyLevel) String() string {
	switch l {
	case SafetyNormal:
		return "NORMAL"
	case SafetyWarning:
		return "WARNING"
	case SafetyAutoRebalance:
		return "AUTO_REBALANCE"
	case SafetyPause:
		return "PAUSE"
	case SafetyEmergency:
		return "EMERGENCY"
	}
	return "UNKNOWN"
}

// Phase is the hedge lifecycle, derived from live positions every cycle.
type Phase string

const (
	PhaseIdle          Phase = "IDLE"
	PhaseBuilding      Phase = "BUILDING"
	PhaseHolding       Phase = "HOLDING"
	PhaseWindingDown   Phase = "WINDING_DOWN"
	PhaseEmergencyStop Phase = "EMERGENCY_STOP"
)
