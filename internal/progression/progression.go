package progression

import (
	"log/slog"
	"time"
)

// State is the day-streak record for the installation. The unlock flags are
// always derived from ConsecutiveDays; use withUnlocks after any change.
type State struct {
	StartDate       time.Time  `json:"startDate" yaml:"start_date"`
	ConsecutiveDays int        `json:"consecutiveDays" yaml:"consecutive_days"`
	LastActiveDate  *time.Time `json:"lastActiveDate" yaml:"last_active_date"`
	PleaseUnlocked  bool       `json:"pleaseUnlocked" yaml:"please_unlocked"`
	ReallyUnlocked  bool       `json:"reallyUnlocked" yaml:"really_unlocked"`
}

// Transition describes what a single activity did to the streak.
type Transition int

const (
	// First is the very first recorded activity.
	First Transition = iota
	// SameDay is a repeat activity on the last active calendar day.
	SameDay
	// Continued extends the streak by one day.
	Continued
	// Reset starts a new streak after one or more missed days.
	Reset
	// Rollback is an activity dated before the last active day.
	Rollback
)

func (t Transition) String() string {
	switch t {
	case First:
		return "first"
	case SameDay:
		return "same_day"
	case Continued:
		return "continued"
	case Reset:
		return "reset"
	case Rollback:
		return "rollback"
	}
	return "unknown"
}

// Changed reports whether the transition modifies state.
func (t Transition) Changed() bool {
	return t == First || t == Continued || t == Reset
}

// Advance applies one activity at t to s. Calendar days are taken in loc
// (time.Local when nil). Only First, Continued and Reset return a modified
// state; SameDay and Rollback return s unchanged.
func Advance(s State, t time.Time, loc *time.Location) (State, Transition) {
	if loc == nil {
		loc = time.Local
	}

	var tr Transition
	if s.LastActiveDate == nil {
		tr = First
	} else {
		switch diff := daysBetween(*s.LastActiveDate, t, loc); {
		case diff == 0:
			return s, SameDay
		case diff < 0:
			return s, Rollback
		case diff == 1:
			tr = Continued
		default:
			tr = Reset
		}
	}

	switch tr {
	case First:
		s.ConsecutiveDays = 1
		if s.StartDate.IsZero() {
			s.StartDate = t
		}
	case Continued:
		s.ConsecutiveDays++
	case Reset:
		s.ConsecutiveDays = 1
	}
	last := t
	s.LastActiveDate = &last
	return withUnlocks(s), tr
}

// daysBetween counts whole calendar days from a to b in loc. The difference
// is computed on civil dates so DST shifts do not produce 23h or 25h days.
func daysBetween(a, b time.Time, loc *time.Location) int {
	return int(civilDate(b, loc).Sub(civilDate(a, loc)).Hours() / 24)
}

func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize recomputes derived fields. Loaded state goes through here so
// stale or hand-edited unlock flags cannot disagree with the streak.
func Normalize(s State) State {
	if s.ConsecutiveDays < 0 {
		s.ConsecutiveDays = 0
	}
	return withUnlocks(s)
}

// Tracker owns a State and advances it on activity.
type Tracker struct {
	state  State
	loc    *time.Location
	logger *slog.Logger
}

// NewTracker returns a tracker starting from s.
func NewTracker(s State, loc *time.Location, logger *slog.Logger) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{state: Normalize(s), loc: loc, logger: logger}
}

// Record registers activity at t and reports the transition taken.
func (tr *Tracker) Record(t time.Time) Transition {
	next, how := Advance(tr.state, t, tr.loc)
	switch how {
	case Rollback:
		tr.logger.Warn("activity predates last active day, streak unchanged",
			"activity", t, "last_active", *tr.state.LastActiveDate)
	case Reset:
		tr.logger.Info("streak reset", "previous_days", tr.state.ConsecutiveDays)
	}
	tr.state = next
	return how
}

// State returns a copy of the current state.
func (tr *Tracker) State() State {
	return copyState(tr.state)
}

func copyState(s State) State {
	if s.LastActiveDate != nil {
		last := *s.LastActiveDate
		s.LastActiveDate = &last
	}
	return s
}
