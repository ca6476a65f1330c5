// Package timescale records funding samples and cycle outcomes into a
// TimescaleDB/Postgres instance for offline analysis. Writes are queued and
// drained by a background goroutine; a full queue drops the sample rather
// than backpressuring the control loop.
package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"funding-hedge-bot/internal/config"
)

const writeTimeout = 3 * time.Second

// FundingSample is one venue's funding quote at collection time. Rates travel
// as decimal strings to keep exact precision in the NUMERIC columns.
type FundingSample struct {
	Time          time.Time
	Exchange      string
	Symbol        string
	Rate          string
	IntervalHours int64
	AnnualRate    string
}

// CycleRecord summarizes one control-loop cycle.
type CycleRecord struct {
	Time        time.Time
	Cycle       uint64
	Phase       string
	Safety      string
	Action      string
	NetExposure string
	LegsPlaced  int
	LegsFailed  int
	Skipped     bool
}

type Writer struct {
	db       *sql.DB
	log      *zap.Logger
	schema   string
	funding  chan FundingSample
	cycles   chan CycleRecord
	started  atomic.Bool
	dropFund atomic.Uint64
	dropCyc  atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:      db,
		log:     log,
		schema:  schema,
		funding: make(chan FundingSample, queueSize),
		cycles:  make(chan CycleRecord, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueFunding(sample FundingSample) {
	if w == nil {
		return
	}
	select {
	case w.funding <- sample:
		return
	default:
		if w.dropFund.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale funding queue full")
		}
	}
}

func (w *Writer) EnqueueCycle(record CycleRecord) {
	if w == nil {
		return
	}
	select {
	case w.cycles <- record:
		return
	default:
		if w.dropCyc.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale cycle queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample := <-w.funding:
			w.writeFunding(ctx, sample)
		case record := <-w.cycles:
			w.writeCycle(ctx, record)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		exchange TEXT NOT NULL,
		symbol TEXT NOT NULL,
		rate NUMERIC NOT NULL,
		interval_hours BIGINT NOT NULL,
		annual_rate NUMERIC NOT NULL,
		PRIMARY KEY (ts, exchange, symbol)
	)`, w.table("funding_samples"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		cycle BIGINT NOT NULL,
		phase TEXT NOT NULL,
		safety TEXT NOT NULL,
		action TEXT NOT NULL,
		net_exposure NUMERIC NOT NULL,
		legs_placed INTEGER NOT NULL,
		legs_failed INTEGER NOT NULL,
		skipped BOOLEAN NOT NULL
	)`, w.table("cycle_records"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("funding_samples"))); err != nil && w.log != nil {
		w.log.Warn("timescale funding_samples hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("cycle_records"))); err != nil && w.log != nil {
		w.log.Warn("timescale cycle_records hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeFunding(ctx context.Context, sample FundingSample) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, exchange, symbol, rate, interval_hours, annual_rate
	) VALUES ($1,$2,$3,$4,$5,$6)
	ON CONFLICT (ts, exchange, symbol) DO UPDATE SET
		rate = EXCLUDED.rate,
		interval_hours = EXCLUDED.interval_hours,
		annual_rate = EXCLUDED.annual_rate`, w.table("funding_samples"))
	if _, err := w.db.ExecContext(ctx, query,
		sample.Time,
		sample.Exchange,
		sample.Symbol,
		sample.Rate,
		sample.IntervalHours,
		sample.AnnualRate,
	); err != nil && w.log != nil {
		w.log.Warn("timescale funding insert failed", zap.Error(err))
	}
}

func (w *Writer) writeCycle(ctx context.Context, record CycleRecord) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, cycle, phase, safety, action, net_exposure, legs_placed, legs_failed, skipped
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, w.table("cycle_records"))
	if _, err := w.db.ExecContext(ctx, query,
		record.Time,
		record.Cycle,
		record.Phase,
		record.Safety,
		record.Action,
		record.NetExposure,
		record.LegsPlaced,
		record.LegsFailed,
		record.Skipped,
	); err != nil && w.log != nil {
		w.log.Warn("timescale cycle insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
