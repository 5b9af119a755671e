package session

import "time"

type EventKind string

const (
	PhaseAdvanced    EventKind = "PhaseAdvanced"
	ChallengeFailed  EventKind = "ChallengeFailed"
	TrainingComplete EventKind = "TrainingComplete"
	// PhaseReset is a user-invoked restart of the current phase.
	PhaseReset EventKind = "PhaseReset"
)

// Event is a discrete challenge notification. For PhaseAdvanced, Level and
// Ordinal describe the phase entered; otherwise the phase the event concerns.
type Event struct {
	Kind     EventKind
	PhaseKey string // phase the account was in
	Level    string
	Ordinal  int
	NextKey  string // phase entered, empty when the phase is unchanged
	Message  string
	Time     time.Time
}

// Notifier receives events after the session lock is released, so it may
// call back into the session.
type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
