package sim

// Default order settings for a fresh account.
const (
	DefaultLotSize      = 1
	DefaultStopOffset   = 10.0
	DefaultTargetOffset = 10.0
)

// Account is the mutable state of one simulated account. Balance only ever
// moves on realized P&L; MarginUsed always equals the sum of MarginReserved
// over Open.
type Account struct {
	Balance      float64
	MarginUsed   float64
	CurrentPrice float64

	Open   []*Position
	Closed []ClosedTrade

	Contract     ContractClass
	LotSize      int
	StopOffset   float64
	TargetOffset float64
}

func NewAccount(balance float64) *Account {
	return &Account{
		Balance:      balance,
		Contract:     Mini,
		LotSize:      DefaultLotSize,
		StopOffset:   DefaultStopOffset,
		TargetOffset: DefaultTargetOffset,
	}
}

// MarginAvailable is the balance not tied up as margin.
func (a *Account) MarginAvailable() float64 {
	return a.Balance - a.MarginUsed
}

// FloatingPnL sums unrealized P&L of the open positions only, marked at the
// current price.
func (a *Account) FloatingPnL() float64 {
	var sum float64
	for _, p := range a.Open {
		sum += UnrealizedPnL(*p, a.CurrentPrice)
	}
	return sum
}

func (a *Account) Equity() float64 {
	return a.Balance + a.FloatingPnL()
}

// LotsInMini is the open size across all positions in mini-equivalent lots.
func (a *Account) LotsInMini() float64 {
	var sum float64
	for _, p := range a.Open {
		sum += p.LotsInMini()
	}
	return sum
}

// OpenQuantity is the number of open lots on side, in their own classes.
func (a *Account) OpenQuantity(side Side) int {
	n := 0
	for _, p := range a.Open {
		if p.Side == side {
			n += p.Quantity
		}
	}
	return n
}

// Reset discards open positions, history and margin and sets the balance.
// Order settings are kept.
func (a *Account) Reset(balance float64) {
	a.Balance = balance
	a.MarginUsed = 0
	a.Open = nil
	a.Closed = nil
}

func (a *Account) position(id string) *Position {
	for _, p := range a.Open {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (a *Account) hasSide(side Side) bool {
	for _, p := range a.Open {
		if p.Side == side {
			return true
		}
	}
	return false
}

func (a *Account) recomputeMargin() {
	var used float64
	for _, p := range a.Open {
		used += p.MarginReserved
	}
	a.MarginUsed = used
}
