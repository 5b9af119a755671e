// Package session runs one simulated account through the funding
// challenge: it feeds prices to the position book, applies the phase rules
// and serves the user's commands.
package session

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/trainer/challenge"
	"github.com/rustyeddy/trainer/journal"
	"github.com/rustyeddy/trainer/market"
	"github.com/rustyeddy/trainer/metrics"
	"github.com/rustyeddy/trainer/risk"
	"github.com/rustyeddy/trainer/sim"
)

// Config is the session setup. The zero value of a field means its
// default, except DebounceTicks where 0 disables the cooldown.
type Config struct {
	Phases     []challenge.Phase // nil for the stock ladder
	StartPhase string

	Contract     sim.ContractClass
	LotSize      int
	StopOffset   float64
	TargetOffset float64

	// StartPrice marks the account before the first tick and anchors the
	// backfilled chart.
	StartPrice     float64
	HistoryBars    int
	CandleBucket   time.Duration
	CandleCapacity int
	DebounceTicks  int
	Seed           int64
}

func DefaultConfig() Config {
	return Config{
		Contract:       sim.Mini,
		LotSize:        sim.DefaultLotSize,
		StopOffset:     sim.DefaultStopOffset,
		TargetOffset:   sim.DefaultTargetOffset,
		StartPrice:     market.DefaultStartPrice,
		HistoryBars:    100,
		CandleBucket:   market.DefaultBucket,
		CandleCapacity: market.DefaultCapacity,
		DebounceTicks:  challenge.DefaultDebounceTicks,
		Seed:           1,
	}
}

// Session owns one account and serializes every tick and command on a
// single mutex.
type Session struct {
	mu sync.Mutex

	acct    *sim.Account
	book    *sim.Book
	machine *challenge.Machine
	series  *market.CandleSeries

	notifier Notifier
	journal  journal.Journal
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	now      func() time.Time

	bookOpts []sim.BookOption
	totals   totals
}

// totals accumulate across phase resets, which clear the account history.
type totals struct {
	started      time.Time
	startPhase   string
	startBalance float64
	ticks        int
	closed       []sim.ClosedTrade
	advances     int
	failures     int
}

type Option func(*Session)

func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithJournal(j journal.Journal) Option {
	return func(s *Session) {
		if j != nil {
			s.journal = j
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the time source for ticks, fills and events.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBookOptions passes options through to the position book.
func WithBookOptions(opts ...sim.BookOption) Option {
	return func(s *Session) { s.bookOpts = append(s.bookOpts, opts...) }
}

func New(cfg Config, opts ...Option) (*Session, error) {
	def := DefaultConfig()
	if cfg.Contract == "" {
		cfg.Contract = def.Contract
	}
	if !cfg.Contract.Valid() {
		return nil, fmt.Errorf("new session: unknown contract class %q", cfg.Contract)
	}
	if cfg.LotSize == 0 {
		cfg.LotSize = def.LotSize
	}
	if cfg.StopOffset == 0 {
		cfg.StopOffset = def.StopOffset
	}
	if cfg.TargetOffset == 0 {
		cfg.TargetOffset = def.TargetOffset
	}
	if err := errors.Join(
		risk.CheckLotSize(cfg.LotSize, 0),
		risk.CheckOffset("stop", cfg.StopOffset),
		risk.CheckOffset("target", cfg.TargetOffset),
	); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	table := challenge.DefaultTable()
	if len(cfg.Phases) > 0 {
		var err error
		if table, err = challenge.NewTable(cfg.Phases); err != nil {
			return nil, fmt.Errorf("new session: %w", err)
		}
	}
	machine, err := challenge.New(table, cfg.StartPhase, challenge.WithDebounce(cfg.DebounceTicks))
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	s := &Session{
		machine:  machine,
		series:   market.NewCandleSeries(cfg.CandleBucket, cfg.CandleCapacity),
		notifier: nopNotifier{},
		journal:  journal.Nop{},
		log:      logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.book = sim.NewBook(append([]sim.BookOption{sim.WithClock(s.now)}, s.bookOpts...)...)

	phase := machine.Phase()
	s.acct = sim.NewAccount(phase.StartBalance)
	s.acct.Contract = cfg.Contract
	s.acct.LotSize = cfg.LotSize
	s.acct.StopOffset = cfg.StopOffset
	s.acct.TargetOffset = cfg.TargetOffset
	s.clampLotSizeLocked()

	now := s.now()
	if cfg.StartPrice > 0 {
		s.acct.CurrentPrice = cfg.StartPrice
		if cfg.HistoryBars > 0 {
			s.series.Backfill(cfg.StartPrice, cfg.HistoryBars, now, rand.New(rand.NewSource(cfg.Seed)))
		}
	}

	s.totals = totals{started: now, startPhase: phase.Key, startBalance: phase.StartBalance}
	if s.metrics != nil {
		s.metrics.SetPhase(phase.Key)
		s.metrics.Account(s.acct.Balance, s.acct.Equity(), 0, 0)
	}
	return s, nil
}

// Tick advances the simulation by one price. A rejected price leaves the
// session untouched. Journal failures are returned but do not undo the tick.
func (s *Session) Tick(price float64) (Snapshot, error) {
	if err := risk.CheckPrice(price); err != nil {
		return Snapshot{}, fmt.Errorf("tick: %w", err)
	}

	s.mu.Lock()
	now := s.now()
	s.acct.CurrentPrice = price
	s.series.Update(price, now)
	s.totals.ticks++

	phaseKey := s.machine.State().PhaseKey
	var errs []error
	for _, ct := range s.book.Evaluate(s.acct) {
		errs = append(errs, s.recordCloseLocked(ct, phaseKey))
	}

	tr := s.machine.Evaluate(s.acct)
	events := s.transitionLocked(tr, now)
	for _, e := range events {
		errs = append(errs, s.recordEventLocked(e))
	}

	snap := s.snapshotLocked(now)
	errs = append(errs, s.recordEquityLocked(snap))
	if s.metrics != nil {
		s.metrics.Ticks.Inc()
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"price": price, "equity": snap.Equity}).Debug("tick")
	s.notify(events)
	return snap, errors.Join(errs...)
}

func (s *Session) transitionLocked(tr challenge.Transition, now time.Time) []Event {
	if tr.Outcome == challenge.OutcomeNone {
		return nil
	}
	if s.metrics != nil {
		s.metrics.Transition(tr.Outcome.String())
	}

	var e Event
	switch tr.Outcome {
	case challenge.OutcomeAdvanced:
		s.totals.advances++
		e = Event{Kind: PhaseAdvanced, Level: tr.To.Level, Ordinal: tr.To.Ordinal, NextKey: tr.To.Key}
	case challenge.OutcomeFailed:
		s.totals.failures++
		e = Event{Kind: ChallengeFailed, Level: tr.From.Level, Ordinal: tr.From.Ordinal, NextKey: tr.To.Key}
	case challenge.OutcomeTrainingComplete:
		e = Event{Kind: TrainingComplete, Level: tr.From.Level, Ordinal: tr.From.Ordinal}
	}
	e.PhaseKey = tr.From.Key
	e.Message = tr.Reason
	e.Time = now

	s.clampLotSizeLocked()
	s.log.WithFields(logrus.Fields{
		"phase":  tr.From.Key,
		"next":   e.NextKey,
		"reason": tr.Reason,
	}).Info(string(e.Kind))
	return []Event{e}
}

// clampLotSizeLocked keeps the order size within the phase cap after the
// cap or the contract class changes.
func (s *Session) clampLotSizeLocked() {
	if limit := s.machine.MaxLotSize(s.acct.Contract); limit > 0 && s.acct.LotSize > limit {
		s.acct.LotSize = limit
	}
}

func (s *Session) notify(events []Event) {
	for _, e := range events {
		s.notifier.Notify(e)
	}
}

func (s *Session) recordCloseLocked(ct sim.ClosedTrade, phaseKey string) error {
	s.totals.closed = append(s.totals.closed, ct)
	if s.metrics != nil {
		s.metrics.TradeClosed(ct.Side.String(), string(ct.Reason), ct.RealizedPnL)
	}
	s.log.WithFields(logrus.Fields{
		"phase":  phaseKey,
		"side":   ct.Side.String(),
		"qty":    ct.Quantity,
		"price":  ct.ExitPrice,
		"reason": ct.Reason,
		"pnl":    ct.RealizedPnL,
	}).Info("trade closed")

	if err := s.journal.RecordTrade(journal.NewTradeRecord(ct, phaseKey)); err != nil {
		s.log.WithError(err).Warn("journal trade")
		return err
	}
	return nil
}

func (s *Session) recordEventLocked(e Event) error {
	err := s.journal.RecordEvent(journal.EventRecord{
		Time:    e.Time,
		Kind:    string(e.Kind),
		Phase:   e.PhaseKey,
		Next:    e.NextKey,
		Message: e.Message,
	})
	if err != nil {
		s.log.WithError(err).Warn("journal event")
	}
	return err
}

func (s *Session) recordEquityLocked(snap Snapshot) error {
	if s.metrics != nil {
		s.metrics.Account(snap.Balance, snap.Equity, snap.FloatingPnL, snap.MarginUsed)
		s.metrics.SetPhase(snap.Challenge.PhaseKey)
	}
	err := s.journal.RecordEquity(journal.EquitySnapshot{
		Time:       snap.Time,
		Phase:      snap.Challenge.PhaseKey,
		Balance:    snap.Balance,
		Equity:     snap.Equity,
		MarginUsed: snap.MarginUsed,
		FreeMargin: snap.MarginAvailable,
		FloatingPL: snap.FloatingPnL,
	})
	if err != nil {
		s.log.WithError(err).Warn("journal equity")
	}
	return err
}

// reject counts and logs a refused command, then returns err unchanged.
func (s *Session) reject(op string, err error) error {
	if v, ok := risk.AsViolation(err); ok {
		if s.metrics != nil {
			s.metrics.Rejected(string(v.Code))
		}
		s.log.WithField("code", v.Code).Warn(op + ": " + v.Msg)
	}
	return err
}

// Snapshot returns the current state without advancing the simulation.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.now())
}
