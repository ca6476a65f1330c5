package alerts

import (
	"strings"
	"testing"
)

func TestCycleSummaryRender(t *testing.T) {
	event := CycleSummary{
		Cycle:       7,
		Phase:       "BUILDING",
		Safety:      "NORMAL",
		Action:      "BUILD",
		NetExposure: "0",
	}
	out := event.Render()
	for _, want := range []string{"cycle 7", "phase=BUILDING", "safety=NORMAL", "action=BUILD", "net=0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render %q missing %q", out, want)
		}
	}
}

func TestCycleSummarySkipped(t *testing.T) {
	out := CycleSummary{Cycle: 3, Phase: "IDLE", Safety: "PAUSE", Skipped: true, Detail: "venue position over max"}.Render()
	if !strings.Contains(out, "(skipped)") || !strings.Contains(out, "venue position over max") {
		t.Fatalf("render %q missing skip marker or detail", out)
	}
}

func TestSafetyEscalationRender(t *testing.T) {
	out := SafetyEscalation{Level: "EMERGENCY", Reason: "total exposure 1.3 exceeds cap 1.0"}.Render()
	if !strings.Contains(out, "EMERGENCY") || !strings.Contains(out, "exceeds cap") {
		t.Fatalf("render %q", out)
	}
}

func TestLegResultRender(t *testing.T) {
	ok := LegResult{Venue: "grvt", Side: "buy", Quantity: "0.1", Status: "FILLED"}.Render()
	if !strings.Contains(ok, "BUY 0.1 on grvt") || !strings.Contains(ok, "FILLED") {
		t.Fatalf("render %q", ok)
	}
	failed := LegResult{Venue: "lighter", Side: "sell", Quantity: "0.1", Err: "order rejected"}.Render()
	if !strings.Contains(failed, "FAILED") || !strings.Contains(failed, "order rejected") {
		t.Fatalf("render %q", failed)
	}
}
