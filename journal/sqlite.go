package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite journals into a single database file. Times are stored in UTC.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite journal: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, position_id, phase, side, contract, quantity, entry_price, exit_price, open_time, close_time, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.PositionID, t.Phase, t.Side, t.Contract, t.Quantity, t.EntryPrice,
		t.ExitPrice, t.OpenTime.UTC(), t.CloseTime.UTC(), t.RealizedPL, t.Reason,
	)
	if err != nil {
		return fmt.Errorf("record trade %s: %w", t.TradeID, err)
	}
	return nil
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, phase, balance, equity, margin_used, free_margin, floating_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UTC(), e.Phase, e.Balance, e.Equity, e.MarginUsed, e.FreeMargin, e.FloatingPL,
	)
	if err != nil {
		return fmt.Errorf("record equity: %w", err)
	}
	return nil
}

func (j *SQLite) RecordEvent(e EventRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO events (time, kind, phase, next_phase, message)
		VALUES (?, ?, ?, ?, ?)`,
		e.Time.UTC(), e.Kind, e.Phase, e.Next, e.Message,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func (j *SQLite) RecordRun(r Run) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs
		(run_id, started, ended, start_phase, end_phase, fully_trained, ticks, trades, wins, losses,
		 net_pl, win_rate, profit_factor, start_balance, end_balance, advances, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Started.UTC(), r.Ended.UTC(), r.StartPhase, r.EndPhase, r.FullyTrained, r.Ticks,
		r.Trades, r.Wins, r.Losses, r.NetPL, r.WinRate, r.ProfitFactor, r.StartBalance, r.EndBalance,
		r.Advances, r.Failures,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// DB exposes the handle for ad hoc queries.
func (j *SQLite) DB() *sql.DB { return j.db }

func utcRange(start, end time.Time) (time.Time, time.Time) {
	return start.UTC(), end.UTC()
}
