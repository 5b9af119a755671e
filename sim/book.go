package sim

import (
	"fmt"
	"time"

	"github.com/rustyeddy/trainer/internal/id"
	"github.com/rustyeddy/trainer/risk"
)

// Limits is the size envelope an order is checked against.
type Limits struct {
	MaxLots float64 // mini-equivalent lots across all open positions
	Free    bool    // no lot cap, margin only
}

// Fill describes what a placement did to the book.
type Fill struct {
	Side      Side
	Requested int

	// Reduced holds the slices of opposing positions closed by this order.
	Reduced []ClosedTrade

	// Position is the position opened or scaled into, nil if the order only
	// reduced opposing exposure.
	Position *Position
	Merged   bool
}

// Book implements order placement and exits against an Account. It holds no
// account state of its own.
type Book struct {
	contracts map[ContractClass]ContractSpec
	newID     func() string
	now       func() time.Time
}

// BookOption configures a Book.
type BookOption func(*Book)

// WithIDs replaces the ULID generator used for positions and trades.
func WithIDs(fn func() string) BookOption {
	return func(b *Book) { b.newID = fn }
}

// WithClock sets the time source for open and close stamps.
func WithClock(fn func() time.Time) BookOption {
	return func(b *Book) { b.now = fn }
}

// WithContracts overrides the contract table.
func WithContracts(specs map[ContractClass]ContractSpec) BookOption {
	return func(b *Book) { b.contracts = specs }
}

// NewBook returns a Book using the default contracts, ULIDs and wall clock.
func NewBook(opts ...BookOption) *Book {
	b := &Book{
		contracts: Contracts,
		newID:     id.New,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Spec looks up contract class c.
func (b *Book) Spec(c ContractClass) (ContractSpec, error) {
	spec, ok := b.contracts[c]
	if !ok {
		return ContractSpec{}, fmt.Errorf("unknown contract class %q", c)
	}
	return spec, nil
}

// Place is the single placement entry point. It checks the lot limit, then
// reduces or reverses opposing exposure, scales into same-side exposure, or
// opens a new position. Rejections leave acct untouched, with one exception:
// when a reversal's remainder fails the margin check the reductions already
// realized stand and are returned in the Fill alongside the error.
func (b *Book) Place(acct *Account, side Side, qty int, price float64, lim Limits) (Fill, error) {
	if side != Long && side != Short {
		return Fill{}, fmt.Errorf("place: invalid side %d", side)
	}
	if err := risk.CheckLotSize(qty, 0); err != nil {
		return Fill{}, err
	}
	if err := risk.CheckPrice(price); err != nil {
		return Fill{}, err
	}
	spec, err := b.Spec(acct.Contract)
	if err != nil {
		return Fill{}, err
	}

	if lim.Free {
		return b.openNew(acct, side, qty, price, spec)
	}

	if err := risk.CheckLotLimit(acct.LotsInMini(), ToMiniLots(qty, acct.Contract), lim.MaxLots); err != nil {
		return Fill{}, err
	}

	if acct.hasSide(side.Opposite()) {
		return b.reduceOrReverse(acct, side, qty, price, spec)
	}
	for _, p := range acct.Open {
		if p.Side == side && p.Contract == spec.Class {
			return b.scaleIn(acct, p, qty, price, spec)
		}
	}
	return b.openNew(acct, side, qty, price, spec)
}

func (b *Book) openNew(acct *Account, side Side, qty int, price float64, spec ContractSpec) (Fill, error) {
	required := RequiredMargin(qty, spec)
	if err := risk.CheckMargin(required, acct.MarginAvailable()); err != nil {
		return Fill{}, err
	}
	p := b.open(acct, side, qty, price, spec)
	return Fill{Side: side, Requested: qty, Position: p}, nil
}

func (b *Book) open(acct *Account, side Side, qty int, price float64, spec ContractSpec) *Position {
	stop, target := bracket(side, price, acct.StopOffset, acct.TargetOffset)
	p := &Position{
		ID:             b.newID(),
		Side:           side,
		Quantity:       qty,
		EntryPrice:     price,
		StopPrice:      stop,
		TargetPrice:    target,
		OpenedAt:       b.now(),
		Contract:       spec.Class,
		UnitValue:      spec.UnitValue,
		MarginPerLot:   spec.MarginPerLot,
		MarginReserved: RequiredMargin(qty, spec),
	}
	acct.Open = append(acct.Open, p)
	acct.recomputeMargin()
	return p
}

func (b *Book) scaleIn(acct *Account, p *Position, qty int, price float64, spec ContractSpec) (Fill, error) {
	add := RequiredMargin(qty, spec)
	if err := risk.CheckMargin(add, acct.MarginAvailable()); err != nil {
		return Fill{}, err
	}

	total := p.Quantity + qty
	p.EntryPrice = (p.EntryPrice*float64(p.Quantity) + price*float64(qty)) / float64(total)
	p.Quantity = total
	p.MarginReserved += add
	p.rebracket(acct.StopOffset, acct.TargetOffset)
	acct.recomputeMargin()

	return Fill{Side: p.Side, Requested: qty, Position: p, Merged: true}, nil
}

func (b *Book) reduceOrReverse(acct *Account, side Side, qty int, price float64, spec ContractSpec) (Fill, error) {
	fill := Fill{Side: side, Requested: qty}
	now := b.now()

	remaining := qty
	for _, p := range acct.Open {
		if remaining == 0 {
			break
		}
		if p.Side == side {
			continue
		}
		n := min(remaining, p.Quantity)
		fill.Reduced = append(fill.Reduced, b.realize(acct, p, n, price, now, ReasonReduced))
		remaining -= n
	}
	acct.Open = compact(acct.Open)
	acct.recomputeMargin()

	if remaining == 0 {
		return fill, nil
	}

	required := RequiredMargin(remaining, spec)
	if err := risk.CheckMargin(required, acct.MarginAvailable()); err != nil {
		return fill, err
	}
	fill.Position = b.open(acct, side, remaining, price, spec)
	return fill, nil
}

// realize closes n lots of p at exit, books the P&L and appends history.
// The caller removes p from the book once its quantity reaches zero.
func (b *Book) realize(acct *Account, p *Position, n int, exit float64, now time.Time, reason CloseReason) ClosedTrade {
	released := float64(n) * p.MarginPerLot
	if n >= p.Quantity {
		released = p.MarginReserved
	}
	pnl := PnL(p.Side, p.EntryPrice, exit, n, p.UnitValue)

	ct := ClosedTrade{
		TradeID:        b.newID(),
		PositionID:     p.ID,
		Side:           p.Side,
		Contract:       p.Contract,
		Quantity:       n,
		EntryPrice:     p.EntryPrice,
		ExitPrice:      exit,
		StopPrice:      p.StopPrice,
		TargetPrice:    p.TargetPrice,
		UnitValue:      p.UnitValue,
		MarginReleased: released,
		RealizedPnL:    pnl,
		OpenedAt:       p.OpenedAt,
		ClosedAt:       now,
		Duration:       now.Sub(p.OpenedAt),
		Reason:         reason,
	}

	p.Quantity -= n
	p.MarginReserved -= released
	acct.Balance += pnl
	acct.Closed = append(acct.Closed, ct)
	return ct
}

// Evaluate closes every position whose target or stop the current price has
// reached, in insertion order. Untouched positions stay as they are.
func (b *Book) Evaluate(acct *Account) []ClosedTrade {
	price := acct.CurrentPrice
	if price <= 0 || len(acct.Open) == 0 {
		return nil
	}

	now := b.now()
	var closed []ClosedTrade
	for _, p := range acct.Open {
		reason, hit := exitReason(p, price)
		if !hit {
			continue
		}
		closed = append(closed, b.realize(acct, p, p.Quantity, price, now, reason))
	}
	if len(closed) > 0 {
		acct.Open = compact(acct.Open)
		acct.recomputeMargin()
	}
	return closed
}

// CloseAll flattens the book at the current price.
func (b *Book) CloseAll(acct *Account) ([]ClosedTrade, error) {
	if len(acct.Open) == 0 {
		return nil, nil
	}
	if err := risk.CheckPrice(acct.CurrentPrice); err != nil {
		return nil, fmt.Errorf("close all: %w", err)
	}

	now := b.now()
	closed := make([]ClosedTrade, 0, len(acct.Open))
	for _, p := range acct.Open {
		closed = append(closed, b.realize(acct, p, p.Quantity, acct.CurrentPrice, now, ReasonManual))
	}
	acct.Open = nil
	acct.recomputeMargin()
	return closed, nil
}

// MoveStop repositions a position's stop and latches the manual flag.
func (b *Book) MoveStop(acct *Account, positionID string, price float64) error {
	p, err := b.find(acct, positionID, price)
	if err != nil {
		return fmt.Errorf("move stop: %w", err)
	}
	p.StopPrice = price
	p.StopMoved = true
	return nil
}

// MoveTarget repositions a position's target and latches the manual flag.
func (b *Book) MoveTarget(acct *Account, positionID string, price float64) error {
	p, err := b.find(acct, positionID, price)
	if err != nil {
		return fmt.Errorf("move target: %w", err)
	}
	p.TargetPrice = price
	p.TargetMoved = true
	return nil
}

func (b *Book) find(acct *Account, positionID string, price float64) (*Position, error) {
	if err := risk.CheckPrice(price); err != nil {
		return nil, err
	}
	p := acct.position(positionID)
	if p == nil {
		return nil, fmt.Errorf("position %q not found", positionID)
	}
	return p, nil
}

func compact(open []*Position) []*Position {
	kept := open[:0]
	for _, p := range open {
		if p.Quantity > 0 {
			kept = append(kept, p)
		}
	}
	clear(open[len(kept):])
	if len(kept) == 0 {
		return nil
	}
	return kept
}
