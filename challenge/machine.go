package challenge

import (
	"fmt"
	"math"

	"github.com/rustyeddy/trainer/sim"
)

// DefaultDebounceTicks keeps the machine quiet for 1.5s at a 100ms tick
// after every transition.
const DefaultDebounceTicks = 15

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeFailed
	OutcomeAdvanced
	OutcomeTrainingComplete
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeFailed:
		return "failed"
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeTrainingComplete:
		return "training_complete"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// State is the challenge progress of one account.
type State struct {
	PhaseKey        string
	Level           string
	Ordinal         int
	ProfitTarget    float64
	MaxTotalLoss    float64
	StartingBalance float64

	// FullyTrained is set once, after the last phase's target is met.
	FullyTrained bool
	// Transitioning is true while the post-transition cooldown runs.
	Transitioning bool
}

// Transition reports what one evaluation did.
type Transition struct {
	Outcome Outcome
	From    Phase
	To      Phase // zero unless Outcome is OutcomeAdvanced or OutcomeFailed
	Reason  string
}

// Machine is the phase state machine. It is not safe for concurrent use;
// the owning session serializes access.
type Machine struct {
	table    *Table
	state    State
	debounce int
	cooldown int
}

type Option func(*Machine)

// WithDebounce sets how many evaluations are skipped after a transition.
func WithDebounce(ticks int) Option {
	return func(m *Machine) {
		if ticks >= 0 {
			m.debounce = ticks
		}
	}
}

// New starts the machine at start, or at the ladder's first phase when
// start is empty.
func New(table *Table, start string, opts ...Option) (*Machine, error) {
	if table == nil {
		table = DefaultTable()
	}
	m := &Machine{table: table, debounce: DefaultDebounceTicks}
	for _, opt := range opts {
		opt(m)
	}

	p := table.First()
	if start != "" {
		var ok bool
		if p, ok = table.Get(start); !ok {
			return nil, fmt.Errorf("unknown start phase %q", start)
		}
	}
	m.enter(p)
	return m, nil
}

func (m *Machine) Table() *Table { return m.table }

func (m *Machine) State() State {
	s := m.state
	s.Transitioning = m.cooldown > 0
	return s
}

// Phase returns the current phase definition. In free mode this is the
// last phase completed.
func (m *Machine) Phase() Phase {
	p, _ := m.table.Get(m.state.PhaseKey)
	return p
}

func (m *Machine) FullyTrained() bool { return m.state.FullyTrained }

// Limits is the order envelope for the current state.
func (m *Machine) Limits() sim.Limits {
	if m.state.FullyTrained {
		return sim.Limits{Free: true}
	}
	return sim.Limits{MaxLots: float64(m.Phase().MaxLots)}
}

// MaxLotSize is the per-order lot cap in units of class c, 0 in free mode.
func (m *Machine) MaxLotSize(c sim.ContractClass) int {
	if m.state.FullyTrained {
		return 0
	}
	return m.Phase().MaxLots * sim.LotsPerMini(c)
}

// Progress is the share of the profit target earned, capped at 100.
func (m *Machine) Progress(balance float64) float64 {
	if m.state.ProfitTarget <= 0 {
		return 0
	}
	pct := (balance - m.state.StartingBalance) / m.state.ProfitTarget * 100
	return math.Min(100, pct)
}

// Tier is the zero-based index of the current level and the level count.
func (m *Machine) Tier() (index, count int) {
	return m.table.TierIndex(m.state.Level), len(m.table.levels)
}

// Evaluate runs one tick of the challenge rules against acct. Loss is
// checked before profit, so a failure wins when both hold. Failures and
// advances reset acct. The debounce window drains in free mode too.
func (m *Machine) Evaluate(acct *sim.Account) Transition {
	if m.cooldown > 0 {
		m.cooldown--
		return Transition{}
	}
	if m.state.FullyTrained {
		return Transition{}
	}

	cur := m.Phase()
	start := m.state.StartingBalance
	maxLoss := m.state.MaxTotalLoss

	if acct.Balance <= start-maxLoss {
		return m.fail(acct, cur, "realized loss limit reached")
	}
	if start-(acct.Balance+acct.FloatingPnL()) >= maxLoss {
		return m.fail(acct, cur, "floating loss limit reached")
	}

	if acct.Balance-start >= m.state.ProfitTarget {
		next, ok := m.table.Successor(cur.Key)
		if !ok {
			m.state.FullyTrained = true
			m.cooldown = m.debounce
			return Transition{Outcome: OutcomeTrainingComplete, From: cur, Reason: "ladder complete"}
		}
		m.enter(next)
		acct.Reset(next.StartBalance)
		m.cooldown = m.debounce
		return Transition{Outcome: OutcomeAdvanced, From: cur, To: next, Reason: "profit target reached"}
	}
	return Transition{}
}

func (m *Machine) fail(acct *sim.Account, cur Phase, reason string) Transition {
	first := m.Restart(acct)
	return Transition{Outcome: OutcomeFailed, From: cur, To: first, Reason: reason}
}

// Restart puts the machine and acct back at the first phase of the ladder.
func (m *Machine) Restart(acct *sim.Account) Phase {
	first := m.table.First()
	m.state.FullyTrained = false
	m.enter(first)
	acct.Reset(first.StartBalance)
	m.cooldown = m.debounce
	return first
}

// ResetPhase restarts the current phase. Free mode is kept.
func (m *Machine) ResetPhase(acct *sim.Account) Phase {
	cur := m.Phase()
	acct.Reset(cur.StartBalance)
	m.cooldown = m.debounce
	return cur
}

func (m *Machine) enter(p Phase) {
	m.state.PhaseKey = p.Key
	m.state.Level = p.Level
	m.state.Ordinal = p.Ordinal
	m.state.ProfitTarget = p.ProfitTarget
	m.state.MaxTotalLoss = p.MaxLoss
	m.state.StartingBalance = p.StartBalance
}
