// Package app wires the venues, the decision engine and the executor into one
// strictly sequential control loop. The loop owns all venue connections for
// the process lifetime; everything it trades on is an immutable per-cycle
// snapshot, so no locks are needed beyond the published Snapshot copy.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"funding-hedge-bot/internal/aggregate"
	"funding-hedge-bot/internal/alerts"
	"funding-hedge-bot/internal/config"
	"funding-hedge-bot/internal/domain"
	"funding-hedge-bot/internal/exec"
	"funding-hedge-bot/internal/metrics"
	"funding-hedge-bot/internal/state"
	"funding-hedge-bot/internal/state/sqlite"
	"funding-hedge-bot/internal/timescale"
	"funding-hedge-bot/internal/venue"
	"funding-hedge-bot/internal/venue/paper"
	"funding-hedge-bot/internal/venue/rest"
)

type App struct {
	cfg       *config.Config
	arb       config.Arbitrage
	log       *zap.Logger
	reg       *venue.Registry
	collector *aggregate.Collector
	executor  *exec.Executor
	store     state.Store
	metrics   *metrics.Metrics
	metricsH  http.Handler
	notifier  *alerts.Notifier
	writer    *timescale.Writer
	reference domain.ExchangeID
	now       func() time.Time

	mu             sync.RWMutex
	cycleCount     uint64
	halted         bool
	lastSizeChange time.Time
	snapshot       Snapshot
}

// Snapshot is the read-only view served to hosting layers. Quantities are
// decimal strings keyed by exchange id.
type Snapshot struct {
	Cycle        uint64            `json:"cycle"`
	Time         time.Time         `json:"time"`
	Phase        domain.Phase      `json:"phase"`
	Safety       string            `json:"safety"`
	SafetyReason string            `json:"safety_reason,omitempty"`
	Halted       bool              `json:"halted"`
	Positions    map[string]string `json:"positions,omitempty"`
	AnnualRates  map[string]string `json:"annual_rates,omitempty"`
	MidPrices    map[string]string `json:"mid_prices,omitempty"`
	NetExposure  string            `json:"net_exposure"`
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	symbol := domain.Symbol{
		Base:     cfg.Strategy.Symbol.Base,
		Quote:    cfg.Strategy.Symbol.Quote,
		Contract: cfg.Strategy.Symbol.Contract,
	}
	ops := make([]*venue.Operations, 0, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		var client venue.Client
		switch ex.Driver {
		case "paper":
			client = paper.New(ex.Name)
		default:
			client = rest.New(ex.Name, ex.BaseURL, ex.WSURL, ex.Timeout, log)
		}
		id := domain.NewExchangeID(ex.Name, ex.Instance)
		ops = append(ops, venue.NewOperations(id, symbol, client, log))
	}
	reg, err := venue.NewRegistry(ops...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	app, err := newApp(cfg, reg, store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	app.writer = writer
	return app, nil
}

// newApp finishes construction from an already-built registry. Split out so
// tests can inject paper venues they hold handles to.
func newApp(cfg *config.Config, reg *venue.Registry, store state.Store, log *zap.Logger) (*App, error) {
	arb := cfg.Arbitrage()
	reference, err := resolveReference(reg, arb.ReferenceExchange)
	if err != nil {
		return nil, err
	}

	m := metrics.NewNoop()
	var metricsH http.Handler
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheus()
		m = prom.Metrics
		metricsH = prom.Handler()
	}

	return &App{
		cfg:       cfg,
		arb:       arb,
		log:       log,
		reg:       reg,
		collector: aggregate.NewCollector(reg, cfg.Strategy.CollectTimeout, m.VenueErrors, log),
		executor:  exec.New(reg, cfg.Strategy.ExecTimeout, log),
		store:     store,
		metrics:   m,
		metricsH:  metricsH,
		notifier:  alerts.NewNotifier(alerts.NewTelegram(cfg.Telegram, log), log),
		reference: reference,
		now:       time.Now,
	}, nil
}

func resolveReference(reg *venue.Registry, name string) (domain.ExchangeID, error) {
	for _, id := range reg.IDs() {
		if id.Name == name {
			return id, nil
		}
	}
	return domain.ExchangeID{}, fmt.Errorf("reference exchange %q is not registered", name)
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.writer.Close()

	if err := a.reg.ConnectAll(ctx); err != nil {
		return err
	}
	defer a.reg.DisconnectAll(context.Background())

	last, err := state.LoadLastSizeChange(ctx, a.store)
	if err != nil {
		a.log.Warn("hold-timer anchor load failed", zap.Error(err))
	}
	a.mu.Lock()
	a.lastSizeChange = last
	a.mu.Unlock()

	a.writer.Start(ctx)
	if a.cfg.Metrics.Enabled {
		go a.serveHTTP(ctx)
	}

	a.log.Info("control loop started",
		zap.Int("venues", a.reg.Len()),
		zap.String("reference", a.reference.String()),
		zap.Duration("interval", a.cfg.Strategy.CheckInterval))

	ticker := time.NewTicker(a.cfg.Strategy.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.cycle(ctx)
		}
	}
}

// Snapshot returns a copy of the latest published cycle view.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap := a.snapshot
	snap.Positions = copyMap(a.snapshot.Positions)
	snap.AnnualRates = copyMap(a.snapshot.AnnualRates)
	snap.MidPrices = copyMap(a.snapshot.MidPrices)
	return snap
}

func (a *App) serveHTTP(ctx context.Context) {
	mux := http.NewServeMux()
	if a.metricsH != nil {
		mux.Handle("/metrics", a.metricsH)
	}
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.Snapshot()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	srv := &http.Server{Addr: a.cfg.Metrics.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Error("http server failed", zap.Error(err))
	}
}

func copyMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
