package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tradeColumns = `trade_id, position_id, phase, side, contract, quantity, entry_price, exit_price, open_time, close_time, realized_pl, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.PositionID,
		&rec.Phase,
		&rec.Side,
		&rec.Contract,
		&rec.Quantity,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.RealizedPL,
		&rec.Reason,
	)
	return rec, err
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	start, end = utcRange(start, end)
	rows, err := j.db.Query(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBetween returns equity snapshots taken within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	start, end = utcRange(start, end)
	rows, err := j.db.Query(`
		SELECT time, phase, balance, equity, margin_used, free_margin, floating_pl
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(
			&e.Time,
			&e.Phase,
			&e.Balance,
			&e.Equity,
			&e.MarginUsed,
			&e.FreeMargin,
			&e.FloatingPL,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEvents returns challenge events in the order they were recorded.
func (j *SQLite) ListEvents() ([]EventRecord, error) {
	rows, err := j.db.Query(`SELECT time, kind, phase, next_phase, message FROM events ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.Time, &e.Kind, &e.Phase, &e.Next, &e.Message); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) GetRun(runID string) (Run, error) {
	var r Run
	err := j.db.QueryRow(`
		SELECT run_id, started, ended, start_phase, end_phase, fully_trained, ticks, trades, wins, losses,
		       net_pl, win_rate, profit_factor, start_balance, end_balance, advances, failures
		FROM runs WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.Started, &r.Ended, &r.StartPhase, &r.EndPhase, &r.FullyTrained, &r.Ticks,
		&r.Trades, &r.Wins, &r.Losses, &r.NetPL, &r.WinRate, &r.ProfitFactor,
		&r.StartBalance, &r.EndBalance, &r.Advances, &r.Failures,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("run %q not found", runID)
		}
		return Run{}, err
	}
	return r, nil
}

// TradeSummary aggregates realized P&L over a set of records.
type TradeSummary struct {
	Trades       int
	Wins         int
	Losses       int
	GrossProfit  float64
	GrossLoss    float64 // positive
	NetPL        float64
	ProfitFactor float64 // 0 when there are no losses
}

func SummarizeTrades(recs []TradeRecord) TradeSummary {
	var s TradeSummary
	for _, r := range recs {
		s.Trades++
		s.NetPL += r.RealizedPL
		switch {
		case r.RealizedPL > 0:
			s.Wins++
			s.GrossProfit += r.RealizedPL
		case r.RealizedPL < 0:
			s.Losses++
			s.GrossLoss -= r.RealizedPL
		}
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s
}
