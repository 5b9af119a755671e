package session

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/trainer/challenge"
	"github.com/rustyeddy/trainer/risk"
	"github.com/rustyeddy/trainer/sim"
)

// PlaceTrade submits the current lot size on side at the current price.
// When a reversal's remainder is rejected for margin, the Fill still
// carries the reductions that were realized.
func (s *Session) PlaceTrade(side sim.Side) (sim.Fill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	phaseKey := s.machine.State().PhaseKey
	qty := s.acct.LotSize
	fill, err := s.book.Place(s.acct, side, qty, s.acct.CurrentPrice, s.machine.Limits())

	var errs []error
	for _, ct := range fill.Reduced {
		errs = append(errs, s.recordCloseLocked(ct, phaseKey))
	}
	if err != nil {
		return fill, errors.Join(append([]error{s.reject("place trade", err)}, errs...)...)
	}

	fields := logrus.Fields{"phase": phaseKey, "side": side.String(), "qty": qty, "price": s.acct.CurrentPrice}
	if fill.Position != nil {
		p := *fill.Position
		fill.Position = &p
		fields["position"] = p.ID
		fields["merged"] = fill.Merged
	}
	s.log.WithFields(fields).Info("order filled")
	return fill, errors.Join(errs...)
}

// CloseAll flattens every open position at the current price.
func (s *Session) CloseAll() ([]sim.ClosedTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	phaseKey := s.machine.State().PhaseKey
	closed, err := s.book.CloseAll(s.acct)
	if err != nil {
		return nil, s.reject("close all", err)
	}
	var errs []error
	for _, ct := range closed {
		errs = append(errs, s.recordCloseLocked(ct, phaseKey))
	}
	return closed, errors.Join(errs...)
}

// SetLotSize sets the per-order size in units of the selected contract.
// Outside free mode it may not exceed the phase cap.
func (s *Session) SetLotSize(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLotSizeLocked(n)
}

// AdjustLotSize moves the lot size by delta and returns the result.
func (s *Session) AdjustLotSize(delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.setLotSizeLocked(s.acct.LotSize + delta)
	return s.acct.LotSize, err
}

func (s *Session) setLotSizeLocked(n int) error {
	if err := risk.CheckLotSize(n, s.machine.MaxLotSize(s.acct.Contract)); err != nil {
		return s.reject("set lot size", err)
	}
	s.acct.LotSize = n
	return nil
}

// SetContractClass switches between micro and mini. It is refused while any
// position is open; the lot size is clamped to the new class's cap.
func (s *Session) SetContractClass(c sim.ContractClass) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !c.Valid() {
		return fmt.Errorf("set contract: unknown contract class %q", c)
	}
	if c == s.acct.Contract {
		return nil
	}
	if len(s.acct.Open) > 0 {
		return s.reject("set contract", &risk.Violation{
			Code: risk.CodeContractLocked,
			Msg:  "close all positions before switching contract",
		})
	}
	s.acct.Contract = c
	s.clampLotSizeLocked()
	s.log.WithFields(logrus.Fields{"contract": c, "lot_size": s.acct.LotSize}).Info("contract switched")
	return nil
}

// SetStopOffset sets the default stop distance for new positions.
func (s *Session) SetStopOffset(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := risk.CheckOffset("stop", v); err != nil {
		return s.reject("set stop offset", err)
	}
	s.acct.StopOffset = v
	return nil
}

// SetTargetOffset sets the default target distance for new positions.
func (s *Session) SetTargetOffset(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := risk.CheckOffset("target", v); err != nil {
		return s.reject("set target offset", err)
	}
	s.acct.TargetOffset = v
	return nil
}

// ResetPhase discards the account and restarts the current phase.
func (s *Session) ResetPhase() (challenge.Phase, error) {
	s.mu.Lock()
	now := s.now()
	p := s.machine.ResetPhase(s.acct)
	s.clampLotSizeLocked()

	e := Event{
		Kind:     PhaseReset,
		PhaseKey: p.Key,
		Level:    p.Level,
		Ordinal:  p.Ordinal,
		Message:  "phase reset by user",
		Time:     now,
	}
	err := s.recordEventLocked(e)
	s.log.WithField("phase", p.Key).Info(string(PhaseReset))
	s.mu.Unlock()

	s.notify([]Event{e})
	return p, err
}

// MoveStop moves the stop of an open position. A manual stop survives scale-ins.
func (s *Session) MoveStop(positionID string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.book.MoveStop(s.acct, positionID, price); err != nil {
		return s.reject("move stop", err)
	}
	return nil
}

// MoveTarget moves the target of an open position. A manual target survives scale-ins.
func (s *Session) MoveTarget(positionID string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.book.MoveTarget(s.acct, positionID, price); err != nil {
		return s.reject("move target", err)
	}
	return nil
}
