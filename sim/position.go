package sim

import "time"

// Position is an open trade. Quantity stays positive while it is in the
// book; the contract class is fixed when it opens.
type Position struct {
	ID          string
	Side        Side
	Quantity    int
	EntryPrice  float64
	StopPrice   float64
	TargetPrice float64
	OpenedAt    time.Time

	Contract       ContractClass
	UnitValue      float64
	MarginPerLot   float64
	MarginReserved float64

	// Set once the user drags a bracket. Auto-placement never touches a
	// latched field again.
	StopMoved   bool
	TargetMoved bool
}

// bracket derives stop and target from the entry: long stops below and
// targets above, short the other way round.
func bracket(side Side, entry, stopOffset, targetOffset float64) (stop, target float64) {
	if side == Long {
		return entry - stopOffset, entry + targetOffset
	}
	return entry + stopOffset, entry - targetOffset
}

// rebracket re-derives whichever bracket the user has not moved.
func (p *Position) rebracket(stopOffset, targetOffset float64) {
	stop, target := bracket(p.Side, p.EntryPrice, stopOffset, targetOffset)
	if !p.StopMoved {
		p.StopPrice = stop
	}
	if !p.TargetMoved {
		p.TargetPrice = target
	}
}

// LotsInMini is the position size in mini-equivalent lots.
func (p *Position) LotsInMini() float64 {
	return ToMiniLots(p.Quantity, p.Contract)
}
