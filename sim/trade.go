package sim

import "time"

type CloseReason string

const (
	ReasonTakeProfit CloseReason = "TakeProfit"
	ReasonStopLoss   CloseReason = "StopLoss"
	ReasonReduced    CloseReason = "Reduced"
	ReasonManual     CloseReason = "Manual"
)

// ClosedTrade is the realized slice of a position. History is append-only;
// a partial reduce produces one ClosedTrade for the slice it closed.
type ClosedTrade struct {
	TradeID    string
	PositionID string
	Side       Side
	Contract   ContractClass
	Quantity   int

	EntryPrice  float64
	ExitPrice   float64
	StopPrice   float64
	TargetPrice float64
	UnitValue   float64

	MarginReleased float64
	RealizedPnL    float64

	OpenedAt time.Time
	ClosedAt time.Time
	Duration time.Duration
	Reason   CloseReason
}

func (t ClosedTrade) Win() bool  { return t.RealizedPnL > 0 }
func (t ClosedTrade) Loss() bool { return t.RealizedPnL < 0 }
