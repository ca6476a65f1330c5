package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"funding-hedge-bot/internal/domain"
	"funding-hedge-bot/internal/metrics"
	"funding-hedge-bot/internal/venue"
	"funding-hedge-bot/internal/venue/paper"
)

type countingCounter struct{ n int }

func (c *countingCounter) Inc() { c.n++ }

var testSymbol = domain.Symbol{Base: "BTC", Quote: "USDT", Contract: domain.ContractPerpetual}

func newTestRegistry(t *testing.T, names ...string) (*venue.Registry, map[string]*paper.Client) {
	t.Helper()
	clients := make(map[string]*paper.Client, len(names))
	ops := make([]*venue.Operations, 0, len(names))
	for _, name := range names {
		client := paper.New(name)
		clients[name] = client
		id := domain.NewExchangeID(name, "")
		ops = append(ops, venue.NewOperations(id, testSymbol, client, zap.NewNop()))
	}
	reg, err := venue.NewRegistry(ops...)
	require.NoError(t, err)
	return reg, clients
}

func TestFundingRatesFanOut(t *testing.T) {
	reg, clients := newTestRegistry(t, "grvt", "lighter")
	require.NoError(t, reg.ConnectAll(context.Background()))

	clients["grvt"].SetFunding("BTC-USDT", decimal.RequireFromString("0.0001"), 8)
	clients["lighter"].SetFunding("BTC-USDT", decimal.RequireFromString("0.0005"), 1)

	c := NewCollector(reg, time.Second, metrics.NewNoop().VenueErrors, zap.NewNop())
	rates, err := c.FundingRates(context.Background())
	require.NoError(t, err)
	require.Len(t, rates, 2)

	grvt := rates[domain.NewExchangeID("grvt", "")]
	require.True(t, grvt.Rate.Equal(decimal.RequireFromString("0.0001")))
	require.EqualValues(t, 8, grvt.IntervalHours)
}

func TestFailingVenueIsOmitted(t *testing.T) {
	reg, clients := newTestRegistry(t, "grvt", "lighter", "aster")
	require.NoError(t, reg.ConnectAll(context.Background()))

	for _, name := range []string{"grvt", "lighter", "aster"} {
		clients[name].SetFunding("BTC-USDT", decimal.RequireFromString("0.0001"), 8)
	}
	// Drop one venue mid-flight; the other two still form a quorum.
	require.NoError(t, clients["aster"].Disconnect(context.Background()))

	errs := &countingCounter{}
	c := NewCollector(reg, time.Second, errs, zap.NewNop())
	rates, err := c.FundingRates(context.Background())
	require.NoError(t, err)
	require.Len(t, rates, 2)
	_, ok := rates[domain.NewExchangeID("aster", "")]
	require.False(t, ok)
	require.Equal(t, 1, errs.n, "each omitted venue counts once")
}

func TestQuorumLoss(t *testing.T) {
	reg, clients := newTestRegistry(t, "grvt", "lighter")
	require.NoError(t, reg.ConnectAll(context.Background()))
	clients["grvt"].SetFunding("BTC-USDT", decimal.RequireFromString("0.0001"), 8)
	require.NoError(t, clients["lighter"].Disconnect(context.Background()))

	c := NewCollector(reg, time.Second, metrics.NewNoop().VenueErrors, zap.NewNop())
	_, err := c.FundingRates(context.Background())
	require.ErrorIs(t, err, domain.ErrInsufficientVenueData)
}

func TestPositionsAndExposure(t *testing.T) {
	reg, clients := newTestRegistry(t, "grvt", "lighter")
	require.NoError(t, reg.ConnectAll(context.Background()))

	clients["grvt"].SetPosition("BTC-USDT", decimal.RequireFromString("0.3"))
	clients["lighter"].SetPosition("BTC-USDT", decimal.RequireFromString("-0.2"))

	c := NewCollector(reg, time.Second, metrics.NewNoop().VenueErrors, zap.NewNop())
	positions, err := c.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)

	net := TotalExposure(positions)
	require.True(t, net.Equal(decimal.RequireFromString("0.1")), "net %s", net)
}

func TestPendingOrderCounts(t *testing.T) {
	reg, clients := newTestRegistry(t, "grvt", "lighter")
	require.NoError(t, reg.ConnectAll(context.Background()))

	clients["grvt"].SetOpenOrders("BTC-USDT", 2)

	c := NewCollector(reg, time.Second, metrics.NewNoop().VenueErrors, zap.NewNop())
	counts, err := c.PendingOrderCounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, counts[domain.NewExchangeID("grvt", "")])
	require.Equal(t, 0, counts[domain.NewExchangeID("lighter", "")])
}
