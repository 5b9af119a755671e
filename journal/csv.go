package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var (
	tradesHeader = []string{"trade_id", "position_id", "phase", "side", "contract", "quantity", "entry_price", "exit_price", "open_time", "close_time", "realized_pl", "reason"}
	equityHeader = []string{"time", "phase", "balance", "equity", "margin_used", "free_margin", "floating_pl"}
	eventsHeader = []string{"time", "kind", "phase", "next_phase", "message"}
)

// CSVJournal writes one file per record kind. Events are dropped when no
// events file is configured.
type CSVJournal struct {
	trades, equity, events *csvFile
}

type csvFile struct {
	f *os.File
	w *csv.Writer
}

func createCSV(path string, header []string) (*csvFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	cf := &csvFile{f: f, w: csv.NewWriter(f)}
	if err := cf.write(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return cf, nil
}

func (c *csvFile) write(row []string) error {
	if c == nil {
		return nil
	}
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvFile) close() error {
	if c == nil {
		return nil
	}
	c.w.Flush()
	return errors.Join(c.w.Error(), c.f.Close())
}

func NewCSV(tradesPath, equityPath, eventsPath string) (*CSVJournal, error) {
	j := &CSVJournal{}
	var err error
	if j.trades, err = createCSV(tradesPath, tradesHeader); err != nil {
		return nil, fmt.Errorf("create trades journal: %w", err)
	}
	if j.equity, err = createCSV(equityPath, equityHeader); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("create equity journal: %w", err)
	}
	if eventsPath != "" {
		if j.events, err = createCSV(eventsPath, eventsHeader); err != nil {
			_ = j.Close()
			return nil, fmt.Errorf("create events journal: %w", err)
		}
	}
	return j, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.trades.write([]string{
		t.TradeID,
		t.PositionID,
		t.Phase,
		t.Side,
		t.Contract,
		strconv.Itoa(t.Quantity),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.OpenTime.UTC().Format(time.RFC3339),
		t.CloseTime.UTC().Format(time.RFC3339),
		f(t.RealizedPL),
		t.Reason,
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return j.equity.write([]string{
		e.Time.UTC().Format(time.RFC3339Nano),
		e.Phase,
		f(e.Balance),
		f(e.Equity),
		f(e.MarginUsed),
		f(e.FreeMargin),
		f(e.FloatingPL),
	})
}

func (j *CSVJournal) RecordEvent(e EventRecord) error {
	return j.events.write([]string{
		e.Time.UTC().Format(time.RFC3339),
		e.Kind,
		e.Phase,
		e.Next,
		e.Message,
	})
}

func (j *CSVJournal) Close() error {
	return errors.Join(j.trades.close(), j.equity.close(), j.events.close())
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}
