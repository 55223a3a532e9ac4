// Package journal persists finished backtest runs and their trades to a
// SQLite database so results survive the process and can be compared across
// runs.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/backtest"
	"github.com/rmarquis/roboquant/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Journal records backtest results in a SQLite database.
type Journal struct {
	db *sql.DB
}

// Run is one recorded backtest run.
type Run struct {
	ID             string
	Strategy       string
	InitialDeposit decimal.Decimal
	FinalEquity    decimal.Decimal
	TotalReturn    float64
	MaxDrawdown    float64
	TotalTrades    int
	WinRate        float64
	ProfitFactor   float64
	RecordedAt     time.Time
}

// Open opens (or creates) the journal database at path and ensures its
// schema exists.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			strategy        TEXT NOT NULL,
			initial_deposit TEXT NOT NULL,
			final_equity    TEXT NOT NULL,
			total_return    REAL NOT NULL,
			max_drawdown    REAL NOT NULL,
			total_trades    INTEGER NOT NULL,
			win_rate        REAL NOT NULL,
			profit_factor   REAL NOT NULL,
			recorded_at     TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trades (
			run_id   TEXT NOT NULL REFERENCES runs(id),
			time     TEXT NOT NULL,
			symbol   TEXT NOT NULL,
			currency TEXT NOT NULL,
			size     TEXT NOT NULL,
			price    TEXT NOT NULL,
			fee      TEXT NOT NULL,
			pnl      TEXT NOT NULL,
			order_id TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
	`)
	return err
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// SaveResult records a finished run and its full trade history in one
// transaction.
func (j *Journal) SaveResult(ctx context.Context, result *backtest.Result) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, strategy, initial_deposit, final_equity,
			total_return, max_drawdown, total_trades, win_rate,
			profit_factor, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.Strategy,
		result.InitialDeposit.String(),
		result.FinalEquity.String(),
		result.TotalReturn,
		result.MaxDrawdown,
		result.TotalTrades,
		result.WinRate,
		result.ProfitFactor,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", result.RunID, err)
	}

	for _, t := range result.Account.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trades (run_id, time, symbol, currency, size,
				price, fee, pnl, order_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID,
			t.Time.UTC().Format(time.RFC3339),
			t.Asset.Symbol,
			t.Asset.Currency,
			t.Size.String(),
			t.Price.String(),
			t.Fee.String(),
			t.PNL.String(),
			t.OrderID,
		)
		if err != nil {
			return fmt.Errorf("inserting trade for run %s: %w", result.RunID, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns all recorded runs, most recent first.
func (j *Journal) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, strategy, initial_deposit, final_equity, total_return,
			max_drawdown, total_trades, win_rate, profit_factor, recorded_at
		FROM runs ORDER BY recorded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r               Run
			deposit, equity string
			recordedAt      string
		)
		if err := rows.Scan(&r.ID, &r.Strategy, &deposit, &equity,
			&r.TotalReturn, &r.MaxDrawdown, &r.TotalTrades, &r.WinRate,
			&r.ProfitFactor, &recordedAt); err != nil {
			return nil, err
		}
		if r.InitialDeposit, err = decimal.NewFromString(deposit); err != nil {
			return nil, fmt.Errorf("run %s: bad initial deposit %q: %w", r.ID, deposit, err)
		}
		if r.FinalEquity, err = decimal.NewFromString(equity); err != nil {
			return nil, fmt.Errorf("run %s: bad final equity %q: %w", r.ID, equity, err)
		}
		if r.RecordedAt, err = time.Parse(time.RFC3339, recordedAt); err != nil {
			return nil, fmt.Errorf("run %s: bad timestamp %q: %w", r.ID, recordedAt, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Trades returns the recorded trades of one run, in execution order.
func (j *Journal) Trades(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, symbol, currency, size, price, fee, pnl, order_id
		FROM trades WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			ts, symbol, currency  string
			size, price, fee, pnl string
			orderID               string
		)
		if err := rows.Scan(&ts, &symbol, &currency, &size, &price, &fee, &pnl, &orderID); err != nil {
			return nil, err
		}

		t := domain.Trade{
			Asset:   domain.NewAsset(symbol, currency),
			OrderID: orderID,
		}
		if t.Time, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("trade for run %s: bad timestamp %q: %w", runID, ts, err)
		}
		if t.Size, err = decimal.NewFromString(size); err != nil {
			return nil, err
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if t.Fee, err = decimal.NewFromString(fee); err != nil {
			return nil, err
		}
		if t.PNL, err = decimal.NewFromString(pnl); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
