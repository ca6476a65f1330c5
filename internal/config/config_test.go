package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
log:
  level: debug
exchanges:
  - name: grvt
    driver: paper
  - name: lighter
    driver: paper
strategy:
  symbol:
    base: BTC
  trade_size: "0.1"
  build_threshold_apr: "0.05"
  close_threshold_apr: "0.01"
  max_position: "1.0"
  cycle_target: 10
  cycle_hold_time: 2h
  check_interval: 15s
safety:
  max_open_orders: 1
  rebalance_tolerance: "0.1"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug, got %s", cfg.Log.Level)
	}
	if len(cfg.Exchanges) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(cfg.Exchanges))
	}
	arb := cfg.Arbitrage()
	if arb.TradeSize.String() != "0.1" {
		t.Fatalf("expected trade size 0.1, got %s", arb.TradeSize)
	}
	if arb.ReferenceExchange != "grvt" {
		t.Fatalf("expected first exchange as reference default, got %s", arb.ReferenceExchange)
	}
	if arb.MaxTotalExposure.String() != "1" {
		t.Fatalf("expected exposure cap 10x trade size, got %s", arb.MaxTotalExposure)
	}
	if cfg.Strategy.CheckInterval != 15*time.Second {
		t.Fatalf("expected 15s interval, got %s", cfg.Strategy.CheckInterval)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, strings.Replace(validYAML, "level: debug", "", 1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected info default, got %s", cfg.Log.Level)
	}
	if cfg.Strategy.Symbol.Quote != "USDT" || cfg.Strategy.Symbol.Contract != "PERP" {
		t.Fatalf("expected symbol defaults, got %+v", cfg.Strategy.Symbol)
	}
	if cfg.Strategy.CollectTimeout != 5*time.Second {
		t.Fatalf("expected 5s collect timeout, got %s", cfg.Strategy.CollectTimeout)
	}
	if cfg.Safety.MaxOpenOrders != 1 {
		t.Fatalf("expected max open orders 1, got %d", cfg.Safety.MaxOpenOrders)
	}
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	body := strings.Replace(validYAML, `build_threshold_apr: "0.05"`, `build_threshold_apr: "0.01"`, 1)
	body = strings.Replace(body, `close_threshold_apr: "0.01"`, `close_threshold_apr: "0.05"`, 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error when build threshold <= close threshold")
	}
}

func TestLoadRejectsEqualThresholds(t *testing.T) {
	body := strings.Replace(validYAML, `close_threshold_apr: "0.01"`, `close_threshold_apr: "0.05"`, 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error when thresholds are equal")
	}
}

func TestLoadRequiresTwoExchanges(t *testing.T) {
	body := strings.Replace(validYAML, "  - name: lighter\n    driver: paper\n", "", 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error with fewer than 2 exchanges")
	}
}

func TestLoadRejectsUnknownReference(t *testing.T) {
	body := validYAML + "  max_total_exposure: \"2\"\n"
	body = strings.Replace(body, "check_interval: 15s", "check_interval: 15s\n  reference_exchange: binance", 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for unconfigured reference exchange")
	}
}

func TestLoadRejectsNonPositiveSize(t *testing.T) {
	body := strings.Replace(validYAML, `trade_size: "0.1"`, `trade_size: "0"`, 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for zero trade size")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
