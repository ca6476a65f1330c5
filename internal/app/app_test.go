package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"funding-hedge-bot/internal/config"
	"funding-hedge-bot/internal/domain"
	"funding-hedge-bot/internal/state/sqlite"
	"funding-hedge-bot/internal/venue"
	"funding-hedge-bot/internal/venue/paper"
)

const testYAML = `
log:
  level: error
exchanges:
  - name: grvt
    driver: paper
  - name: lighter
    driver: paper
strategy:
  symbol:
    base: BTC
    quote: USDT
  trade_size: "0.1"
  build_threshold_apr: "0.05"
  close_threshold_apr: "0.02"
  max_position: "2.0"
  cycle_target: 10
  cycle_hold_time: 1h
  check_interval: 1s
  collect_timeout: 2s
  exec_timeout: 2s
  reference_exchange: grvt
safety:
  max_open_orders: 1
  rebalance_tolerance: "0.1"
  max_total_exposure: "1.0"
`

var testSymbol = domain.Symbol{Base: "BTC", Quote: "USDT", Contract: domain.ContractPerpetual}

type harness struct {
	app     *App
	clients map[string]*paper.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, testYAML, "grvt", "lighter")
}

func newHarnessWith(t *testing.T, body string, names ...string) *harness {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	clients := make(map[string]*paper.Client, len(names))
	for _, name := range names {
		clients[name] = paper.New(name)
	}
	var ops []*venue.Operations
	for name, client := range clients {
		ops = append(ops, venue.NewOperations(domain.NewExchangeID(name, ""), testSymbol, client, zap.NewNop()))
	}
	reg, err := venue.NewRegistry(ops...)
	require.NoError(t, err)
	require.NoError(t, reg.ConnectAll(context.Background()))

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	a, err := newApp(cfg, reg, store, zap.NewNop())
	require.NoError(t, err)

	// Wide spread by default: grvt 0.1095 APR vs lighter 4.38 APR.
	for name, client := range clients {
		raw := "0.0001"
		interval := int64(8)
		if name == "lighter" {
			raw = "0.0005"
			interval = 1
		}
		client.SetFunding("BTC-USDT", decimal.RequireFromString(raw), interval)
		client.SetBook("BTC-USDT", decimal.RequireFromString("50000"), decimal.RequireFromString("50001"))
	}
	return &harness{app: a, clients: clients}
}

func (h *harness) position(t *testing.T, name string) decimal.Decimal {
	t.Helper()
	pos, err := h.clients[name].SignedPosition(context.Background(), "BTC-USDT")
	require.NoError(t, err)
	return pos
}

func TestCycleBuildsHedge(t *testing.T) {
	h := newHarness(t)

	h.app.cycle(context.Background())

	require.True(t, h.position(t, "grvt").Equal(decimal.RequireFromString("0.1")),
		"lower-rate venue goes long, got %s", h.position(t, "grvt"))
	require.True(t, h.position(t, "lighter").Equal(decimal.RequireFromString("-0.1")),
		"higher-rate venue goes short, got %s", h.position(t, "lighter"))

	snap := h.app.Snapshot()
	require.EqualValues(t, 1, snap.Cycle)
	require.Equal(t, domain.PhaseIdle, snap.Phase)
	require.False(t, snap.Halted)
}

func TestRebalanceRunsAlone(t *testing.T) {
	h := newHarness(t)
	h.clients["grvt"].SetPosition("BTC-USDT", decimal.RequireFromString("0.5"))
	h.clients["lighter"].SetPosition("BTC-USDT", decimal.RequireFromString("-0.2"))

	h.app.cycle(context.Background())

	// One corrective sell of 0.1 on the largest long; no arbitrage legs in
	// the same cycle.
	require.True(t, h.position(t, "grvt").Equal(decimal.RequireFromString("0.4")),
		"got %s", h.position(t, "grvt"))
	require.True(t, h.position(t, "lighter").Equal(decimal.RequireFromString("-0.2")),
		"got %s", h.position(t, "lighter"))
}

func TestQuorumLossSkipsCycle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.clients["lighter"].Disconnect(context.Background()))

	h.app.cycle(context.Background())

	require.True(t, h.position(t, "grvt").IsZero(), "no trades on a skipped cycle")
	snap := h.app.Snapshot()
	require.EqualValues(t, 1, snap.Cycle)
	require.Empty(t, snap.Positions)
}

func TestHoldingSkipsArbitrage(t *testing.T) {
	h := newHarness(t)
	h.clients["grvt"].SetPosition("BTC-USDT", decimal.RequireFromString("1.0"))
	h.clients["lighter"].SetPosition("BTC-USDT", decimal.RequireFromString("-1.0"))
	h.app.mu.Lock()
	h.app.lastSizeChange = time.Now().UTC().Add(-10 * time.Minute)
	h.app.mu.Unlock()

	h.app.cycle(context.Background())

	require.True(t, h.position(t, "grvt").Equal(decimal.RequireFromString("1.0")),
		"HOLDING must not trade, got %s", h.position(t, "grvt"))
	require.Equal(t, domain.PhaseHolding, h.app.Snapshot().Phase)
}

func TestEmergencyLatchesAndClears(t *testing.T) {
	h := newHarness(t)
	h.clients["grvt"].SetPosition("BTC-USDT", decimal.RequireFromString("1.5"))
	h.clients["lighter"].SetPosition("BTC-USDT", decimal.RequireFromString("-0.2"))
	h.clients["grvt"].SetOpenOrders("BTC-USDT", 2)

	h.app.cycle(context.Background())

	snap := h.app.Snapshot()
	require.True(t, snap.Halted, "total exposure 1.3 over cap 1.0 must halt")
	count, _ := h.clients["grvt"].OpenOrderCount(context.Background(), "BTC-USDT")
	require.Zero(t, count, "emergency cancels resting orders everywhere")

	// Still over the cap next cycle: stays halted.
	h.app.cycle(context.Background())
	require.True(t, h.app.Snapshot().Halted)

	// A clean NORMAL evaluation opens the latch.
	h.clients["grvt"].SetPosition("BTC-USDT", decimal.RequireFromString("0.3"))
	h.clients["lighter"].SetPosition("BTC-USDT", decimal.RequireFromString("-0.3"))
	h.app.cycle(context.Background())
	require.False(t, h.app.Snapshot().Halted)
}

func TestMissingReferenceDerivesIdlePhase(t *testing.T) {
	body := strings.Replace(testYAML,
		"  - name: lighter\n    driver: paper\n",
		"  - name: lighter\n    driver: paper\n  - name: binance\n    driver: paper\n", 1)
	h := newHarnessWith(t, body, "grvt", "lighter", "binance")
	// Equal rates on the survivors keep the cycle from trading.
	h.clients["binance"].SetFunding("BTC-USDT", decimal.RequireFromString("0.0005"), 1)
	require.NoError(t, h.clients["grvt"].Disconnect(context.Background()))

	h.app.cycle(context.Background())

	snap := h.app.Snapshot()
	require.Equal(t, domain.PhaseIdle, snap.Phase, "absent reference reads as flat")
	require.Len(t, snap.Positions, 2)
	_, ok := snap.Positions["grvt"]
	require.False(t, ok, "omitted venue must not appear in the snapshot")
	require.False(t, snap.Halted)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, h.app.Run(ctx), context.Canceled)
}

func TestSnapshotCarriesCycleData(t *testing.T) {
	h := newHarness(t)
	h.app.cycle(context.Background())

	snap := h.app.Snapshot()
	require.Equal(t, "4.38", snap.AnnualRates["lighter"])
	require.Equal(t, "0.1095", snap.AnnualRates["grvt"])
	require.Equal(t, "50000.5", snap.MidPrices["grvt"])
	require.Equal(t, "0", snap.NetExposure)
}
