package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const notifyTimeout = 10 * time.Second

// Event is a structured notification rendered to text at send time.
type Event interface {
	Render() string
}

// CycleSummary reports the outcome of one control-loop cycle, including
// cycles where no action was taken.
type CycleSummary struct {
	Cycle       uint64
	Phase       string
	Safety      string
	Action      string
	NetExposure string
	Skipped     bool
	Detail      string
}

func (e CycleSummary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle %d: phase=%s safety=%s", e.Cycle, e.Phase, e.Safety)
	if e.Action != "" {
		fmt.Fprintf(&b, " action=%s", e.Action)
	}
	if e.Skipped {
		b.WriteString(" (skipped)")
	}
	if e.NetExposure != "" {
		fmt.Fprintf(&b, " net=%s", e.NetExposure)
	}
	if e.Detail != "" {
		b.WriteString("\n")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// SafetyEscalation fires when a cycle evaluates above NORMAL.
type SafetyEscalation struct {
	Level  string
	Reason string
}

func (e SafetyEscalation) Render() string {
	return fmt.Sprintf("safety %s: %s", e.Level, e.Reason)
}

// LegResult reports one executed leg, successful or not.
type LegResult struct {
	Venue    string
	Side     string
	Quantity string
	Status   string
	Err      string
}

func (e LegResult) Render() string {
	if e.Err != "" {
		return fmt.Sprintf("leg %s %s on %s FAILED: %s", strings.ToUpper(e.Side), e.Quantity, e.Venue, e.Err)
	}
	return fmt.Sprintf("leg %s %s on %s: %s", strings.ToUpper(e.Side), e.Quantity, e.Venue, e.Status)
}

// Notifier delivers events without ever blocking the caller: each Notify
// spawns a bounded-timeout send and failures are logged, not returned.
type Notifier struct {
	telegram *Telegram
	log      *zap.Logger
}

func NewNotifier(telegram *Telegram, log *zap.Logger) *Notifier {
	return &Notifier{telegram: telegram, log: log}
}

func (n *Notifier) Notify(event Event) {
	if n == nil || n.telegram == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.telegram.Send(ctx, event.Render()); err != nil {
			n.log.Warn("notification failed", zap.Error(err))
		}
	}()
}
