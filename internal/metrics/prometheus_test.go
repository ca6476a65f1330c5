package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusCountersExposed(t *testing.T) {
	p := NewPrometheus()
	p.Metrics.Cycles.Inc()
	p.Metrics.Cycles.Inc()
	p.Metrics.OrdersFailed.Inc()

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	out := string(body)
	if !strings.Contains(out, "funding_hedge_bot_cycles_total 2") {
		t.Fatalf("cycles counter missing from scrape:\n%s", out)
	}
	if !strings.Contains(out, "funding_hedge_bot_orders_failed_total 1") {
		t.Fatalf("orders failed counter missing from scrape:\n%s", out)
	}
}

func TestNoopMetricsDoNotPanic(t *testing.T) {
	m := NewNoop()
	m.Cycles.Inc()
	m.CyclesSkipped.Inc()
	m.OrdersPlaced.Inc()
	m.OrdersFailed.Inc()
	m.LegsTimedOut.Inc()
	m.Rebalances.Inc()
	m.SafetyEscalations.Inc()
	m.VenueErrors.Inc()
}
