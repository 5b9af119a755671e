// Package journal exports closed trades, equity snapshots, challenge events
// and session summaries. A session only ever writes to it.
package journal

import (
	"fmt"
	"time"

	"github.com/rustyeddy/trainer/sim"
)

type TradeRecord struct {
	TradeID    string
	PositionID string
	Phase      string
	Side       string
	Contract   string
	Quantity   int
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

// NewTradeRecord flattens a closed trade taken during phase.
func NewTradeRecord(ct sim.ClosedTrade, phase string) TradeRecord {
	return TradeRecord{
		TradeID:    ct.TradeID,
		PositionID: ct.PositionID,
		Phase:      phase,
		Side:       ct.Side.String(),
		Contract:   string(ct.Contract),
		Quantity:   ct.Quantity,
		EntryPrice: ct.EntryPrice,
		ExitPrice:  ct.ExitPrice,
		OpenTime:   ct.OpenedAt,
		CloseTime:  ct.ClosedAt,
		RealizedPL: ct.RealizedPnL,
		Reason:     string(ct.Reason),
	}
}

type EquitySnapshot struct {
	Time       time.Time
	Phase      string
	Balance    float64
	Equity     float64
	MarginUsed float64
	FreeMargin float64
	FloatingPL float64
}

// EventRecord is a challenge transition or user reset.
type EventRecord struct {
	Time    time.Time
	Kind    string
	Phase   string
	Next    string
	Message string
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	RecordEvent(EventRecord) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) RecordEvent(EventRecord) error { return nil }
func (Nop) Close() error { return nil }

const (
	TypeNone   = "none"
	TypeCSV    = "csv"
	TypeSQLite = "sqlite"
)

// Options selects and locates a journal.
type Options struct {
	Type       string
	TradesFile string
	EquityFile string
	EventsFile string
	DBPath     string
}

// Open builds the journal named by o.Type. An empty type is TypeNone.
func Open(o Options) (Journal, error) {
	switch o.Type {
	case "", TypeNone:
		return Nop{}, nil
	case TypeCSV:
		return NewCSV(o.TradesFile, o.EquityFile, o.EventsFile)
	case TypeSQLite:
		return NewSQLite(o.DBPath)
	default:
		return nil, fmt.Errorf("unknown journal type %q", o.Type)
	}
}
