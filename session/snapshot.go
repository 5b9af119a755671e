package session

import (
	"math"
	"time"

	"github.com/rustyeddy/trainer/challenge"
	"github.com/rustyeddy/trainer/market"
	"github.com/rustyeddy/trainer/sim"
)

// Snapshot is a point-in-time copy of the session for display. Nothing in
// it aliases session state.
type Snapshot struct {
	Time time.Time

	Balance         float64
	Equity          float64
	MarginUsed      float64
	MarginAvailable float64
	FloatingPnL     float64
	CurrentPrice    float64

	Contract     sim.ContractClass
	LotSize      int
	StopOffset   float64
	TargetOffset float64

	Open    []sim.Position
	Closed  []sim.ClosedTrade
	Candles []market.Candle

	Challenge challenge.State
	Phase     challenge.Phase
	Progress  float64 // percent of the profit target, capped at 100

	// LotLimit is the phase lot cap in the selected contract's units, 0 when
	// unlimited. LotsOpen and LotsRemaining are in mini lots.
	LotLimit      int
	LotsOpen      float64
	LotsRemaining float64

	Tier      int
	TierCount int

	Stats sim.Stats
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	a := s.acct
	floating := a.FloatingPnL()

	snap := Snapshot{
		Time:            now,
		Balance:         a.Balance,
		Equity:          a.Balance + floating,
		MarginUsed:      a.MarginUsed,
		MarginAvailable: a.MarginAvailable(),
		FloatingPnL:     floating,
		CurrentPrice:    a.CurrentPrice,
		Contract:        a.Contract,
		LotSize:         a.LotSize,
		StopOffset:      a.StopOffset,
		TargetOffset:    a.TargetOffset,
		Open:            make([]sim.Position, 0, len(a.Open)),
		Closed:          append([]sim.ClosedTrade(nil), a.Closed...),
		Candles:         s.series.Candles(),
		Challenge:       s.machine.State(),
		Phase:           s.machine.Phase(),
		Progress:        s.machine.Progress(a.Balance),
		LotLimit:        s.machine.MaxLotSize(a.Contract),
		LotsOpen:        a.LotsInMini(),
		Stats:           sim.Summarize(a.Closed),
	}
	for _, p := range a.Open {
		snap.Open = append(snap.Open, *p)
	}

	if lim := s.machine.Limits(); !lim.Free {
		snap.LotsRemaining = math.Max(0, lim.MaxLots-snap.LotsOpen)
	}
	snap.Tier, snap.TierCount = s.machine.Tier()
	return snap
}
