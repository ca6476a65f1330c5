package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig    `yaml:"log"`
	Exchanges []ExchangeConfig `yaml:"exchanges"`
	Strategy  StrategyConfig   `yaml:"strategy"`
	Safety    SafetyConfig     `yaml:"safety"`
	State     StateConfig      `yaml:"state"`
	Telegram  TelegramConfig   `yaml:"telegram"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Timescale TimescaleConfig  `yaml:"timescale"`

	arb Arbitrage
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type ExchangeConfig struct {
	Name     string        `yaml:"name"`
	Instance string        `yaml:"instance"`
	Driver   string        `yaml:"driver"`
	BaseURL  string        `yaml:"base_url"`
	WSURL    string        `yaml:"ws_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SymbolConfig struct {
	Base     string `yaml:"base"`
	Quote    string `yaml:"quote"`
	Contract string `yaml:"contract"`
}

// Decimal thresholds are carried as strings in YAML and parsed exactly;
// binary floats drift at comparison boundaries.
type StrategyConfig struct {
	Symbol            SymbolConfig  `yaml:"symbol"`
	TradeSize         string        `yaml:"trade_size"`
	BuildThresholdAPR string        `yaml:"build_threshold_apr"`
	CloseThresholdAPR string        `yaml:"close_threshold_apr"`
	MaxPosition       string        `yaml:"max_position"`
	CycleTarget       int           `yaml:"cycle_target"`
	CycleHoldTime     time.Duration `yaml:"cycle_hold_time"`
	CheckInterval     time.Duration `yaml:"check_interval"`
	CollectTimeout    time.Duration `yaml:"collect_timeout"`
	ExecTimeout       time.Duration `yaml:"exec_timeout"`
	ReferenceExchange string        `yaml:"reference_exchange"`
}

type SafetyConfig struct {
	MaxOpenOrders      int    `yaml:"max_open_orders"`
	RebalanceTolerance string `yaml:"rebalance_tolerance"`
	MaxTotalExposure   string `yaml:"max_total_exposure"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueueSize       int           `yaml:"queue_size"`
}

// Arbitrage holds the strategy settings after exact decimal parsing.
type Arbitrage struct {
	TradeSize          decimal.Decimal
	BuildThresholdAPR  decimal.Decimal
	CloseThresholdAPR  decimal.Decimal
	MaxPosition        decimal.Decimal
	RebalanceTolerance decimal.Decimal
	MaxTotalExposure   decimal.Decimal
	MaxOpenOrders      int
	CycleTarget        int
	CycleHoldTime      time.Duration
	ReferenceExchange  string
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Arbitrage returns the parsed strategy settings. Valid after Load.
func (c *Config) Arbitrage() Arbitrage {
	return c.arb
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	for i := range cfg.Exchanges {
		if cfg.Exchanges[i].Driver == "" {
			cfg.Exchanges[i].Driver = "rest"
		}
		if cfg.Exchanges[i].Timeout == 0 {
			cfg.Exchanges[i].Timeout = 10 * time.Second
		}
	}
	if cfg.Strategy.Symbol.Quote == "" {
		cfg.Strategy.Symbol.Quote = "USDT"
	}
	if cfg.Strategy.Symbol.Contract == "" {
		cfg.Strategy.Symbol.Contract = "PERP"
	}
	if cfg.Strategy.CycleTarget == 0 {
		cfg.Strategy.CycleTarget = 10
	}
	if cfg.Strategy.CycleHoldTime == 0 {
		cfg.Strategy.CycleHoldTime = time.Hour
	}
	if cfg.Strategy.CheckInterval == 0 {
		cfg.Strategy.CheckInterval = 30 * time.Second
	}
	if cfg.Strategy.CollectTimeout == 0 {
		cfg.Strategy.CollectTimeout = 5 * time.Second
	}
	if cfg.Strategy.ExecTimeout == 0 {
		cfg.Strategy.ExecTimeout = 30 * time.Second
	}
	if cfg.Safety.MaxOpenOrders == 0 {
		cfg.Safety.MaxOpenOrders = 1
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/funding-hedge-bot.db"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
}

func validate(cfg *Config) error {
	if len(cfg.Exchanges) < 2 {
		return errors.New("at least 2 exchanges are required to compare funding rates")
	}
	seen := make(map[string]struct{}, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		if ex.Name == "" {
			return errors.New("exchange name is required")
		}
		key := ex.Name
		if ex.Instance != "" {
			key += ":" + ex.Instance
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate exchange %s", key)
		}
		seen[key] = struct{}{}
		switch ex.Driver {
		case "rest", "paper":
		default:
			return fmt.Errorf("exchange %s: unknown driver %q", ex.Name, ex.Driver)
		}
		if ex.Driver == "rest" && ex.BaseURL == "" {
			return fmt.Errorf("exchange %s: base_url is required for the rest driver", ex.Name)
		}
	}
	if cfg.Strategy.Symbol.Base == "" {
		return errors.New("strategy.symbol.base is required")
	}

	arb := Arbitrage{
		MaxOpenOrders:     cfg.Safety.MaxOpenOrders,
		CycleTarget:       cfg.Strategy.CycleTarget,
		CycleHoldTime:     cfg.Strategy.CycleHoldTime,
		ReferenceExchange: strings.TrimSpace(cfg.Strategy.ReferenceExchange),
	}
	var err error
	if arb.TradeSize, err = parsePositive("strategy.trade_size", cfg.Strategy.TradeSize); err != nil {
		return err
	}
	if arb.BuildThresholdAPR, err = parsePositive("strategy.build_threshold_apr", cfg.Strategy.BuildThresholdAPR); err != nil {
		return err
	}
	if arb.CloseThresholdAPR, err = parsePositive("strategy.close_threshold_apr", cfg.Strategy.CloseThresholdAPR); err != nil {
		return err
	}
	if arb.MaxPosition, err = parsePositive("strategy.max_position", cfg.Strategy.MaxPosition); err != nil {
		return err
	}
	if arb.BuildThresholdAPR.LessThanOrEqual(arb.CloseThresholdAPR) {
		return errors.New("strategy.build_threshold_apr must exceed strategy.close_threshold_apr, otherwise build and winddown trigger together")
	}
	if arb.RebalanceTolerance, err = parsePositive("safety.rebalance_tolerance", cfg.Safety.RebalanceTolerance); err != nil {
		return err
	}
	if cfg.Safety.MaxTotalExposure == "" {
		// Default critical cap: ten trade sizes of net drift.
		arb.MaxTotalExposure = arb.TradeSize.Mul(decimal.NewFromInt(10))
	} else if arb.MaxTotalExposure, err = parsePositive("safety.max_total_exposure", cfg.Safety.MaxTotalExposure); err != nil {
		return err
	}
	if arb.CycleTarget < 1 {
		return errors.New("strategy.cycle_target must be >= 1")
	}
	if arb.ReferenceExchange == "" {
		arb.ReferenceExchange = cfg.Exchanges[0].Name
	}
	if _, ok := seen[arb.ReferenceExchange]; !ok {
		return fmt.Errorf("strategy.reference_exchange %q is not a configured exchange", arb.ReferenceExchange)
	}
	cfg.arb = arb
	return nil
}

func parsePositive(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	val, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	if !val.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be > 0", field)
	}
	return val, nil
}
