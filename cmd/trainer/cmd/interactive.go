package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rustyeddy/trainer/risk"
	"github.com/rustyeddy/trainer/session"
	"github.com/rustyeddy/trainer/sim"
)

type action int

const (
	actNone action = iota
	actPlace
	actCloseAll
	actLot
	actAdjustLot
	actContract
	actStopOffset
	actTargetOffset
	actMoveStop
	actMoveTarget
	actReset
	actStatus
	actHelp
	actQuit
)

type command struct {
	action   action
	side     sim.Side
	n        int
	value    float64
	id       string
	contract sim.ContractClass
}

const helpText = `Commands:
  b, buy            buy the current lot size at market
  s, sell           sell the current lot size at market
  x, close          close every open position
  +, -              raise or lower the lot size by one
  lot N             set the lot size
  contract C        switch to micro or mini
  stop P, target P  set the default stop/target distance in points
  ms ID PRICE       move a position's stop
  mt ID PRICE       move a position's target
  r, reset          restart the current phase
  p, status         print the account report
  q, quit           stop the session`

var errUsage = errors.New("usage")

// parseCommand reads one line of interactive input.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return command{}, nil
	}
	args := fields[1:]

	switch fields[0] {
	case "b", "buy", "long":
		return command{action: actPlace, side: sim.Long}, nil
	case "s", "sell", "short":
		return command{action: actPlace, side: sim.Short}, nil
	case "x", "close":
		return command{action: actCloseAll}, nil
	case "+":
		return command{action: actAdjustLot, n: 1}, nil
	case "-":
		return command{action: actAdjustLot, n: -1}, nil
	case "lot":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%w: lot N", errUsage)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return command{}, fmt.Errorf("lot size %q: %w", args[0], err)
		}
		return command{action: actLot, n: n}, nil
	case "contract":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%w: contract micro|mini", errUsage)
		}
		c, err := sim.ParseContractClass(args[0])
		if err != nil {
			return command{}, err
		}
		return command{action: actContract, contract: c}, nil
	case "stop", "target":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%w: %s POINTS", errUsage, fields[0])
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return command{}, fmt.Errorf("%s offset %q: %w", fields[0], args[0], err)
		}
		act := actStopOffset
		if fields[0] == "target" {
			act = actTargetOffset
		}
		return command{action: act, value: v}, nil
	case "ms", "mt":
		if len(args) != 2 {
			return command{}, fmt.Errorf("%w: %s ID PRICE", errUsage, fields[0])
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return command{}, fmt.Errorf("price %q: %w", args[1], err)
		}
		act := actMoveStop
		if fields[0] == "mt" {
			act = actMoveTarget
		}
		return command{action: act, id: strings.ToUpper(args[0]), value: v}, nil
	case "r", "reset":
		return command{action: actReset}, nil
	case "p", "status":
		return command{action: actStatus}, nil
	case "h", "help", "?":
		return command{action: actHelp}, nil
	case "q", "quit", "exit":
		return command{action: actQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

// apply executes c against s and writes the outcome to w.
func apply(s *session.Session, c command, w io.Writer) error {
	switch c.action {
	case actNone, actQuit:
		return nil
	case actPlace:
		fill, err := s.PlaceTrade(c.side)
		for _, ct := range fill.Reduced {
			fmt.Fprintf(w, "closed %d %s @ %.2f  P/L %.2f\n", ct.Quantity, ct.Contract, ct.ExitPrice, ct.RealizedPnL)
		}
		if err != nil {
			return err
		}
		if p := fill.Position; p != nil {
			fmt.Fprintf(w, "%s %d %s @ %.2f  SL %.2f  TP %.2f  (%s)\n",
				p.Side, p.Quantity, p.Contract, p.EntryPrice, p.StopPrice, p.TargetPrice, p.ID)
		}
	case actCloseAll:
		closed, err := s.CloseAll()
		var total float64
		for _, ct := range closed {
			total += ct.RealizedPnL
		}
		fmt.Fprintf(w, "closed %d position(s)  P/L %.2f\n", len(closed), total)
		return err
	case actLot:
		if err := s.SetLotSize(c.n); err != nil {
			return err
		}
		fmt.Fprintf(w, "lot size %d\n", c.n)
	case actAdjustLot:
		n, err := s.AdjustLotSize(c.n)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "lot size %d\n", n)
	case actContract:
		if err := s.SetContractClass(c.contract); err != nil {
			return err
		}
		snap := s.Snapshot()
		fmt.Fprintf(w, "contract %s x%d\n", snap.Contract, snap.LotSize)
	case actStopOffset:
		if err := s.SetStopOffset(c.value); err != nil {
			return err
		}
		fmt.Fprintf(w, "stop offset %.2f\n", c.value)
	case actTargetOffset:
		if err := s.SetTargetOffset(c.value); err != nil {
			return err
		}
		fmt.Fprintf(w, "target offset %.2f\n", c.value)
	case actMoveStop:
		return s.MoveStop(c.id, c.value)
	case actMoveTarget:
		return s.MoveTarget(c.id, c.value)
	case actReset:
		p, err := s.ResetPhase()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s balance %.2f\n", p.Name, p.StartBalance)
	case actStatus:
		session.WriteReport(w, s.Snapshot())
	case actHelp:
		fmt.Fprintln(w, helpText)
	}
	return nil
}

// readCommands applies each input line until EOF or quit, then calls done.
func readCommands(r io.Reader, s *session.Session, w io.Writer, done func()) {
	defer done()

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		c, err := parseCommand(sc.Text())
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			continue
		}
		if c.action == actQuit {
			return
		}
		if err := apply(s, c, w); err != nil {
			if risk.IsViolation(err) {
				fmt.Fprintf(w, "rejected: %v\n", err)
				continue
			}
			fmt.Fprintf(w, "error: %v\n", err)
		}
	}
}
