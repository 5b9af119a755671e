package sim

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/rustyeddy/trainer/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var roomy = Limits{MaxLots: 100}

func newBook(t *testing.T) (*Book, *testClock) {
	t.Helper()
	clk := &testClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	n := 0
	b := NewBook(
		WithClock(clk.now),
		WithIDs(func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		}),
	)
	return b, clk
}

func newAccount(balance, price float64) *Account {
	a := NewAccount(balance)
	a.CurrentPrice = price
	return a
}

func place(t *testing.T, b *Book, a *Account, side Side, qty int, price float64, lim Limits) Fill {
	t.Helper()
	fill, err := b.Place(a, side, qty, price, lim)
	require.NoError(t, err)
	assertMarginInvariant(t, a)
	return fill
}

func assertMarginInvariant(t *testing.T, a *Account) {
	t.Helper()
	var sum float64
	for _, p := range a.Open {
		assert.Greater(t, p.Quantity, 0)
		assert.InDelta(t, float64(p.Quantity)*p.MarginPerLot, p.MarginReserved, 1e-6)
		sum += p.MarginReserved
	}
	assert.InDelta(t, sum, a.MarginUsed, 1e-6)
}

type accountState struct {
	balance   float64
	margin    float64
	closed    int
	positions []Position
}

func capture(a *Account) accountState {
	s := accountState{balance: a.Balance, margin: a.MarginUsed, closed: len(a.Closed)}
	for _, p := range a.Open {
		s.positions = append(s.positions, *p)
	}
	return s
}

func TestOpenBrackets(t *testing.T) {
	t.Parallel()

	t.Run("long stops below and targets above", func(t *testing.T) {
		b, _ := newBook(t)
		a := newAccount(100000, 4200)
		a.StopOffset, a.TargetOffset = 10, 15

		fill := place(t, b, a, Long, 1, 4200, roomy)
		require.NotNil(t, fill.Position)
		assert.InDelta(t, 4190.0, fill.Position.StopPrice, 1e-9)
		assert.InDelta(t, 4215.0, fill.Position.TargetPrice, 1e-9)
		assert.False(t, fill.Merged)
		assert.Equal(t, Mini, fill.Position.Contract)
		assert.InDelta(t, 10000.0, a.MarginUsed, 1e-9)
	})

	t.Run("short is inverted", func(t *testing.T) {
		b, _ := newBook(t)
		a := newAccount(100000, 4200)
		a.StopOffset, a.TargetOffset = 10, 15

		fill := place(t, b, a, Short, 1, 4200, roomy)
		assert.InDelta(t, 4210.0, fill.Position.StopPrice, 1e-9)
		assert.InDelta(t, 4185.0, fill.Position.TargetPrice, 1e-9)
	})
}

func TestScaleInWeightedEntry(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(100000, 100)

	place(t, b, a, Long, 1, 100, roomy)
	fill := place(t, b, a, Long, 3, 104, roomy)

	require.Len(t, a.Open, 1)
	p := a.Open[0]
	assert.True(t, fill.Merged)
	assert.Same(t, p, fill.Position)
	assert.Equal(t, 4, p.Quantity)
	assert.InDelta(t, (1*100.0+3*104.0)/4, p.EntryPrice, 1e-12)
	assert.InDelta(t, 93.0, p.StopPrice, 1e-9)
	assert.InDelta(t, 113.0, p.TargetPrice, 1e-9)
	assert.InDelta(t, 40000.0, a.MarginUsed, 1e-9)
	assert.InDelta(t, 100000.0, a.Balance, 1e-9)
}

func TestScaleInWeightedEntryProperty(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		b, _ := newBook(t)
		a := newAccount(1e9, 100)
		q1, q2 := 1+rng.Intn(20), 1+rng.Intn(20)
		p1, p2 := 1000+rng.Float64()*100, 1000+rng.Float64()*100
		side := Long
		if rng.Intn(2) == 0 {
			side = Short
		}

		place(t, b, a, side, q1, p1, roomy)
		place(t, b, a, side, q2, p2, roomy)

		require.Len(t, a.Open, 1)
		want := (float64(q1)*p1 + float64(q2)*p2) / float64(q1+q2)
		assert.InDelta(t, want, a.Open[0].EntryPrice, 1e-9)
		assert.Equal(t, q1+q2, a.Open[0].Quantity)
	}
}

func TestScaleInKeepsManualBrackets(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(100000, 100)

	fill := place(t, b, a, Long, 1, 100, roomy)
	require.NoError(t, b.MoveStop(a, fill.Position.ID, 95))

	place(t, b, a, Long, 1, 110, roomy)
	p := a.Open[0]
	assert.InDelta(t, 105.0, p.EntryPrice, 1e-9)
	assert.InDelta(t, 95.0, p.StopPrice, 1e-9, "manual stop must survive scale-in")
	assert.InDelta(t, 115.0, p.TargetPrice, 1e-9)
	assert.True(t, p.StopMoved)
	assert.False(t, p.TargetMoved)

	require.NoError(t, b.MoveTarget(a, p.ID, 130))
	place(t, b, a, Long, 2, 90, roomy)
	assert.InDelta(t, 97.5, p.EntryPrice, 1e-9)
	assert.InDelta(t, 95.0, p.StopPrice, 1e-9)
	assert.InDelta(t, 130.0, p.TargetPrice, 1e-9)
}

func TestEvaluateRealizesBrackets(t *testing.T) {
	t.Parallel()

	t.Run("long take profit", func(t *testing.T) {
		b, clk := newBook(t)
		a := newAccount(100000, 100)
		place(t, b, a, Long, 2, 100, roomy)

		clk.advance(5 * time.Second)
		a.CurrentPrice = 110
		closed := b.Evaluate(a)

		require.Len(t, closed, 1)
		ct := closed[0]
		assert.Equal(t, ReasonTakeProfit, ct.Reason)
		assert.InDelta(t, 400.0, ct.RealizedPnL, 1e-9)
		assert.InDelta(t, 20000.0, ct.MarginReleased, 1e-9)
		assert.Equal(t, 5*time.Second, ct.Duration)
		assert.InDelta(t, 100400.0, a.Balance, 1e-9)
		assert.Empty(t, a.Open)
		assert.InDelta(t, 0.0, a.MarginUsed, 1e-9)
		assert.Equal(t, []ClosedTrade{ct}, a.Closed)
	})

	t.Run("short stop loss", func(t *testing.T) {
		b, _ := newBook(t)
		a := newAccount(100000, 100)
		place(t, b, a, Short, 1, 100, roomy)

		a.CurrentPrice = 110.5
		closed := b.Evaluate(a)

		require.Len(t, closed, 1)
		assert.Equal(t, ReasonStopLoss, closed[0].Reason)
		assert.InDelta(t, 110.5, closed[0].ExitPrice, 1e-9)
		assert.InDelta(t, -210.0, closed[0].RealizedPnL, 1e-9)
		assert.InDelta(t, 99790.0, a.Balance, 1e-9)
	})

	t.Run("micro uses its own unit value", func(t *testing.T) {
		b, _ := newBook(t)
		a := newAccount(100000, 100)
		a.Contract = Micro
		place(t, b, a, Long, 3, 100, roomy)
		assert.InDelta(t, 1500.0, a.MarginUsed, 1e-9)

		a.CurrentPrice = 90
		closed := b.Evaluate(a)
		require.Len(t, closed, 1)
		assert.InDelta(t, -60.0, closed[0].RealizedPnL, 1e-9)
		assert.InDelta(t, 1500.0, closed[0].MarginReleased, 1e-9)
	})
}

func TestEvaluateInsertionOrderAndUntouched(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(1000000, 100)
	free := Limits{Free: true}

	place(t, b, a, Long, 1, 100, free)
	place(t, b, a, Short, 1, 100, free)
	a.TargetOffset = 50
	untouched := place(t, b, a, Long, 1, 100, free).Position

	a.CurrentPrice = 110
	closed := b.Evaluate(a)

	require.Len(t, closed, 2)
	assert.Equal(t, Long, closed[0].Side)
	assert.Equal(t, ReasonTakeProfit, closed[0].Reason)
	assert.Equal(t, Short, closed[1].Side)
	assert.Equal(t, ReasonStopLoss, closed[1].Reason)

	require.Len(t, a.Open, 1)
	assert.Same(t, untouched, a.Open[0])
	assertMarginInvariant(t, a)
}

func TestEvaluateIdempotent(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(100000, 100)
	place(t, b, a, Long, 1, 100, roomy)
	place(t, b, a, Long, 1, 102, roomy)

	a.CurrentPrice = 103
	assert.Empty(t, b.Evaluate(a))
	before := capture(a)
	assert.Empty(t, b.Evaluate(a))
	assert.Equal(t, before, capture(a))
}

func TestEvaluateWithoutPriceIsNoop(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(100000, 100)
	place(t, b, a, Long, 1, 100, roomy)

	a.CurrentPrice = 0
	assert.Nil(t, b.Evaluate(a))
	assert.Len(t, a.Open, 1)
}

func TestReversal(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(100000, 100)
	lim := Limits{MaxLots: 10}

	place(t, b, a, Long, 3, 100, lim)
	fill := place(t, b, a, Short, 5, 105, lim)

	require.Len(t, fill.Reduced, 1)
	red := fill.Reduced[0]
	assert.Equal(t, ReasonReduced, red.Reason)
	assert.Equal(t, 3, red.Quantity)
	assert.Equal(t, Long, red.Side)
	assert.InDelta(t, (105.0-100.0)*3*20, red.RealizedPnL, 1e-9)

	require.NotNil(t, fill.Position)
	require.Len(t, a.Open, 1)
	p := a.Open[0]
	assert.Equal(t, Short, p.Side)
	assert.Equal(t, 2, p.Quantity)
	assert.InDelta(t, 105.0, p.EntryPrice, 1e-9)
	assert.InDelta(t, 115.0, p.StopPrice, 1e-9)
	assert.InDelta(t, 95.0, p.TargetPrice, 1e-9)
	assert.InDelta(t, 20000.0, a.MarginUsed, 1e-9)
	assert.InDelta(t, 100300.0, a.Balance, 1e-9)
	assert.Len(t, a.Closed, 1)
}

func TestPartialReduce(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(100000, 100)

	place(t, b, a, Long, 3, 100, roomy)
	fill := place(t, b, a, Short, 1, 102, roomy)

	assert.Nil(t, fill.Position)
	require.Len(t, fill.Reduced, 1)
	assert.InDelta(t, 40.0, fill.Reduced[0].RealizedPnL, 1e-9)
	assert.InDelta(t, 10000.0, fill.Reduced[0].MarginReleased, 1e-9)

	require.Len(t, a.Open, 1)
	assert.Equal(t, Long, a.Open[0].Side)
	assert.Equal(t, 2, a.Open[0].Quantity)
	assert.InDelta(t, 100.0, a.Open[0].EntryPrice, 1e-9)
	assert.InDelta(t, 20000.0, a.MarginUsed, 1e-9)
	assert.InDelta(t, 100040.0, a.Balance, 1e-9)
}

func TestReduceAcrossPositionsInBookOrder(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(1000000, 100)

	first := place(t, b, a, Short, 2, 100, Limits{Free: true}).Position
	second := place(t, b, a, Short, 2, 104, Limits{Free: true}).Position

	fill := place(t, b, a, Long, 3, 102, roomy)
	require.Len(t, fill.Reduced, 2)
	assert.Equal(t, first.ID, fill.Reduced[0].PositionID)
	assert.Equal(t, 2, fill.Reduced[0].Quantity)
	assert.InDelta(t, -80.0, fill.Reduced[0].RealizedPnL, 1e-9)
	assert.Equal(t, second.ID, fill.Reduced[1].PositionID)
	assert.Equal(t, 1, fill.Reduced[1].Quantity)
	assert.InDelta(t, 40.0, fill.Reduced[1].RealizedPnL, 1e-9)

	require.Len(t, a.Open, 1)
	assert.Same(t, second, a.Open[0])
	assert.Equal(t, 1, second.Quantity)
	assert.Nil(t, fill.Position)
}

func TestReversalRemainderWithoutMarginKeepsReductions(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(15000, 100)

	place(t, b, a, Long, 1, 100, roomy)
	fill, err := b.Place(a, Short, 3, 100, roomy)

	require.Error(t, err)
	assert.ErrorIs(t, err, risk.ErrMargin)
	assert.Contains(t, err.Error(), "need $20000.00")
	require.Len(t, fill.Reduced, 1)
	assert.Nil(t, fill.Position)

	assert.Empty(t, a.Open)
	assert.Len(t, a.Closed, 1)
	assert.InDelta(t, 0.0, a.MarginUsed, 1e-9)
	assert.InDelta(t, 15000.0, a.Balance, 1e-9)
}

func TestLotLimit(t *testing.T) {
	t.Parallel()

	t.Run("standard lots rejected without partial fill", func(t *testing.T) {
		b, _ := newBook(t)
		a := newAccount(100000, 100)
		lim := Limits{MaxLots: 4}

		place(t, b, a, Long, 3, 100, lim)
		before := capture(a)

		_, err := b.Place(a, Long, 2, 101, lim)
		require.Error(t, err)
		assert.ErrorIs(t, err, risk.ErrLotLimit)
		assert.Contains(t, err.Error(), "limit is 4")
		assert.Equal(t, before, capture(a))
		assert.Equal(t, 3, a.Open[0].Quantity)
	})

	t.Run("opposing exposure counts toward the limit", func(t *testing.T) {
		b, _ := newBook(t)
		a := newAccount(100000, 100)
		lim := Limits{MaxLots: 4}

		place(t, b, a, Long, 3, 100, lim)
		before := capture(a)
		_, err := b.Place(a, Short, 2, 100, lim)
		assert.ErrorIs(t, err, risk.ErrLotLimit)
		assert.Equal(t, before, capture(a))
	})

	t.Run("same class mini path", func(t *testing.T) {
		b, _ := newBook(t)
		a := newAccount(100000, 100)
		lim := Limits{MaxLots: 2}

		place(t, b, a, Long, 2, 100, lim)
		_, err := b.Place(a, Long, 1, 100, lim)
		assert.ErrorIs(t, err, risk.ErrLotLimit)
	})

	t.Run("micro converts ten to one", func(t *testing.T) {
		b, _ := newBook(t)
		a := newAccount(100000, 100)
		a.Contract = Micro
		lim := Limits{MaxLots: 2}

		place(t, b, a, Long, 15, 100, lim)
		place(t, b, a, Long, 5, 100, lim)
		assert.InDelta(t, 2.0, a.LotsInMini(), 1e-9)

		_, err := b.Place(a, Long, 1, 100, lim)
		require.Error(t, err)
		assert.ErrorIs(t, err, risk.ErrLotLimit)
		assert.Contains(t, err.Error(), "attempted 2.10")
		assert.Equal(t, 20, a.Open[0].Quantity)
	})

	t.Run("mixed classes normalize to mini", func(t *testing.T) {
		b, _ := newBook(t)
		a := newAccount(100000, 100)
		lim := Limits{MaxLots: 2}

		place(t, b, a, Long, 1, 100, lim)
		a.Contract = Micro
		place(t, b, a, Long, 10, 100, lim)
		require.Len(t, a.Open, 2, "classes never share a position")
		assert.InDelta(t, 2.0, a.LotsInMini(), 1e-9)

		_, err := b.Place(a, Long, 1, 100, lim)
		assert.ErrorIs(t, err, risk.ErrLotLimit)
	})
}

func TestMarginRejectionLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	t.Run("new entry", func(t *testing.T) {
		b, _ := newBook(t)
		a := newAccount(5000, 100)
		before := capture(a)

		_, err := b.Place(a, Long, 1, 100, roomy)
		require.Error(t, err)
		assert.ErrorIs(t, err, risk.ErrMargin)
		assert.Equal(t, "not enough margin: need $10000.00, have $5000.00", err.Error())
		assert.Equal(t, before, capture(a))
	})

	t.Run("scale in checks only the increment", func(t *testing.T) {
		b, _ := newBook(t)
		a := newAccount(25000, 100)
		place(t, b, a, Long, 2, 100, roomy)
		before := capture(a)

		_, err := b.Place(a, Long, 1, 100, roomy)
		assert.ErrorIs(t, err, risk.ErrMargin)
		assert.Equal(t, before, capture(a))

		a.Balance = 30000
		place(t, b, a, Long, 1, 100, roomy)
		assert.Equal(t, 3, a.Open[0].Quantity)
	})
}

func TestFreeModeSkipsLotLimitButNotMargin(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(1000000, 100)
	free := Limits{Free: true}

	place(t, b, a, Long, 50, 100, free)
	place(t, b, a, Long, 10, 100, free)
	require.Len(t, a.Open, 2, "free mode opens independent positions")
	assert.InDelta(t, 600000.0, a.MarginUsed, 1e-9)

	before := capture(a)
	_, err := b.Place(a, Long, 41, 100, free)
	assert.ErrorIs(t, err, risk.ErrMargin)
	assert.Equal(t, before, capture(a))
}

func TestPlaceValidation(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(100000, 100)

	_, err := b.Place(a, Long, 0, 100, roomy)
	assert.ErrorIs(t, err, risk.ErrLotSize)

	_, err = b.Place(a, Long, 1, 0, roomy)
	assert.ErrorIs(t, err, risk.ErrPrice)

	_, err = b.Place(a, Side(0), 1, 100, roomy)
	assert.Error(t, err)

	a.Contract = "nano"
	_, err = b.Place(a, Long, 1, 100, roomy)
	assert.Error(t, err)
	assert.Empty(t, a.Open)
}

func TestCloseAll(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(1000000, 100)
	place(t, b, a, Long, 2, 100, Limits{Free: true})
	place(t, b, a, Short, 1, 101, Limits{Free: true})

	a.CurrentPrice = 103
	closed, err := b.CloseAll(a)
	require.NoError(t, err)
	require.Len(t, closed, 2)
	for _, ct := range closed {
		assert.Equal(t, ReasonManual, ct.Reason)
		assert.InDelta(t, 103.0, ct.ExitPrice, 1e-9)
	}
	assert.InDelta(t, 120.0, closed[0].RealizedPnL, 1e-9)
	assert.InDelta(t, -40.0, closed[1].RealizedPnL, 1e-9)
	assert.InDelta(t, 1000080.0, a.Balance, 1e-9)
	assert.Empty(t, a.Open)
	assert.InDelta(t, 0.0, a.MarginUsed, 1e-9)

	closed, err = b.CloseAll(a)
	assert.NoError(t, err)
	assert.Nil(t, closed)
}

func TestCloseAllNeedsPrice(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(100000, 100)
	place(t, b, a, Long, 1, 100, roomy)

	a.CurrentPrice = 0
	_, err := b.CloseAll(a)
	require.Error(t, err)
	assert.ErrorIs(t, err, risk.ErrPrice)
	assert.Len(t, a.Open, 1)
}

func TestMoveBracketErrors(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(100000, 100)
	p := place(t, b, a, Long, 1, 100, roomy).Position

	assert.Error(t, b.MoveStop(a, "missing", 90))
	assert.ErrorIs(t, b.MoveTarget(a, p.ID, -1), risk.ErrPrice)
	assert.False(t, p.TargetMoved)

	require.NoError(t, b.MoveTarget(a, p.ID, 101))
	a.CurrentPrice = 101
	closed := b.Evaluate(a)
	require.Len(t, closed, 1)
	assert.Equal(t, ReasonTakeProfit, closed[0].Reason)
}

func TestFloatingPnLOpenPositionsOnly(t *testing.T) {
	t.Parallel()

	b, _ := newBook(t)
	a := newAccount(100000, 100)
	place(t, b, a, Long, 3, 100, roomy)
	place(t, b, a, Short, 1, 104, roomy)

	a.CurrentPrice = 98
	assert.InDelta(t, (98.0-100.0)*2*20, a.FloatingPnL(), 1e-9)
	assert.InDelta(t, a.Balance+a.FloatingPnL(), a.Equity(), 1e-9)
}

func TestMarginInvariantRandomSequence(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(2024))
	b, _ := newBook(t)
	a := newAccount(500000, 4200)
	lim := Limits{MaxLots: 12}

	for i := 0; i < 2000; i++ {
		a.CurrentPrice += rng.Float64()*4 - 2
		switch op := rng.Intn(10); {
		case op < 6:
			side := Long
			if rng.Intn(2) == 0 {
				side = Short
			}
			if rng.Intn(3) == 0 && len(a.Open) == 0 {
				if rng.Intn(2) == 0 {
					a.Contract = Micro
				} else {
					a.Contract = Mini
				}
			}
			_, _ = b.Place(a, side, 1+rng.Intn(4), a.CurrentPrice, lim)
		case op < 9:
			b.Evaluate(a)
		default:
			_, err := b.CloseAll(a)
			require.NoError(t, err)
		}
		assertMarginInvariant(t, a)
		assert.LessOrEqual(t, a.LotsInMini(), 12.0+1e-9)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	trades := []ClosedTrade{
		{RealizedPnL: 300, Duration: 4 * time.Second},
		{RealizedPnL: -100, Duration: 2 * time.Second},
		{RealizedPnL: 100, Duration: 2 * time.Second},
		{RealizedPnL: 0},
	}

	s := Summarize(trades)
	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 50.0, s.WinRate, 1e-9)
	assert.InDelta(t, 300.0, s.TotalPnL, 1e-9)
	assert.InDelta(t, 200.0, s.AvgWin, 1e-9)
	assert.InDelta(t, -100.0, s.AvgLoss, 1e-9)
	assert.InDelta(t, 4.0, s.ProfitFactor, 1e-9)
	assert.Equal(t, 3*time.Second, s.AvgWinDuration)
	assert.Equal(t, 2*time.Second, s.AvgLossDuration)

	assert.Equal(t, Stats{}, Summarize(nil))
}
