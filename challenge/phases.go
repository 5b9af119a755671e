package challenge

import (
	"errors"
	"fmt"
)

// Phase is one rung of the funding ladder. Phases are defined once at
// startup and never mutated.
type Phase struct {
	Key          string  `json:"key" yaml:"key"`
	Name         string  `json:"name" yaml:"name"`
	Level        string  `json:"level" yaml:"level"`     // e.g. "25K"
	Ordinal      int     `json:"ordinal" yaml:"ordinal"` // 1 or 2 within the level
	ProfitTarget float64 `json:"profit_target" yaml:"profit_target"`
	MaxLoss      float64 `json:"max_loss" yaml:"max_loss"`
	MaxLots      int     `json:"max_lots" yaml:"max_lots"` // mini lots
	StartBalance float64 `json:"start_balance" yaml:"start_balance"`
	Next         string  `json:"next,omitempty" yaml:"next,omitempty"`
}

// Last reports whether the phase has no successor.
func (p Phase) Last() bool { return p.Next == "" }

func (p Phase) validate() error {
	switch {
	case p.Key == "":
		return errors.New("phase key is required")
	case p.Level == "":
		return fmt.Errorf("phase %q: level is required", p.Key)
	case p.Ordinal != 1 && p.Ordinal != 2:
		return fmt.Errorf("phase %q: ordinal must be 1 or 2", p.Key)
	case p.ProfitTarget <= 0:
		return fmt.Errorf("phase %q: profit_target must be positive", p.Key)
	case p.MaxLoss <= 0:
		return fmt.Errorf("phase %q: max_loss must be positive", p.Key)
	case p.MaxLots < 1:
		return fmt.Errorf("phase %q: max_lots must be at least 1", p.Key)
	case p.StartBalance <= 0:
		return fmt.Errorf("phase %q: start_balance must be positive", p.Key)
	case p.MaxLoss >= p.StartBalance:
		return fmt.Errorf("phase %q: max_loss must be below start_balance", p.Key)
	}
	return nil
}

// Table is an immutable ladder of phases linked through Next.
type Table struct {
	phases map[string]Phase
	chain  []string
	levels []string
}

// NewTable validates the ladder. The first element is where the ladder
// starts; every phase must be reachable from it through Next and the chain
// must end.
func NewTable(phases []Phase) (*Table, error) {
	if len(phases) == 0 {
		return nil, errors.New("phase table is empty")
	}

	t := &Table{phases: make(map[string]Phase, len(phases))}
	for _, p := range phases {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := t.phases[p.Key]; dup {
			return nil, fmt.Errorf("duplicate phase %q", p.Key)
		}
		t.phases[p.Key] = p
	}

	seen := map[string]bool{}
	for key := phases[0].Key; key != ""; {
		if seen[key] {
			return nil, fmt.Errorf("phase chain loops at %q", key)
		}
		p, ok := t.phases[key]
		if !ok {
			return nil, fmt.Errorf("unknown next phase %q", key)
		}
		seen[key] = true
		t.chain = append(t.chain, key)
		if len(t.levels) == 0 || t.levels[len(t.levels)-1] != p.Level {
			t.levels = append(t.levels, p.Level)
		}
		key = p.Next
	}
	for _, p := range phases {
		if !seen[p.Key] {
			return nil, fmt.Errorf("phase %q is unreachable from %q", p.Key, phases[0].Key)
		}
	}
	return t, nil
}

// MustTable is NewTable for ladders known to be valid.
func MustTable(phases []Phase) *Table {
	t, err := NewTable(phases)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Get(key string) (Phase, bool) {
	p, ok := t.phases[key]
	return p, ok
}

func (t *Table) First() Phase {
	return t.phases[t.chain[0]]
}

// Successor returns the phase after key, false when key is last or unknown.
func (t *Table) Successor(key string) (Phase, bool) {
	p, ok := t.phases[key]
	if !ok || p.Last() {
		return Phase{}, false
	}
	return t.phases[p.Next], true
}

// Phases returns the ladder in chain order.
func (t *Table) Phases() []Phase {
	out := make([]Phase, 0, len(t.chain))
	for _, key := range t.chain {
		out = append(out, t.phases[key])
	}
	return out
}

// Levels returns the distinct levels in ladder order.
func (t *Table) Levels() []string {
	return append([]string(nil), t.levels...)
}

// TierIndex is the zero-based position of level in Levels, -1 if absent.
func (t *Table) TierIndex(level string) int {
	for i, l := range t.levels {
		if l == level {
			return i
		}
	}
	return -1
}

// DefaultPhases is the stock 25K to 1M ladder, two phases per level.
func DefaultPhases() []Phase {
	type rung struct {
		key    string
		level  string
		target float64
		loss   float64
		lots   int
		start  float64
	}
	rungs := []rung{
		{"25k", "25K", 1250, 1500, 2, 25000},
		{"50k", "50K", 2500, 3000, 5, 50000},
		{"100k", "100K", 6000, 6000, 12, 100000},
		{"150k", "150K", 9000, 7500, 15, 150000},
		{"300k", "300K", 18000, 12000, 25, 300000},
		{"1m", "1M", 40000, 25000, 40, 1000000},
	}

	var out []Phase
	for i, r := range rungs {
		next := ""
		if i+1 < len(rungs) {
			next = rungs[i+1].key + "_phase1"
		}
		out = append(out,
			Phase{
				Key:          r.key + "_phase1",
				Name:         r.level + " Challenge - Phase 1",
				Level:        r.level,
				Ordinal:      1,
				ProfitTarget: r.target,
				MaxLoss:      r.loss,
				MaxLots:      r.lots,
				StartBalance: r.start,
				Next:         r.key + "_phase2",
			},
			Phase{
				Key:          r.key + "_phase2",
				Name:         r.level + " Challenge - Phase 2 (Sim Funded)",
				Level:        r.level,
				Ordinal:      2,
				ProfitTarget: r.target,
				MaxLoss:      r.loss,
				MaxLots:      r.lots,
				StartBalance: r.start,
				Next:         next,
			},
		)
	}
	return out
}

// DefaultTable is the stock ladder.
func DefaultTable() *Table {
	return MustTable(DefaultPhases())
}
