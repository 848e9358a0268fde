package types

import "time"

// Window is the run of consecutive local calendar days the engine plans for,
// starting with the day containing "now".
type Window struct {
	Start time.Time // local midnight of the first day
	N     int
	Loc   *time.Location
}

// NewWindow returns the n-day window starting on now's local day.
func NewWindow(now time.Time, n int, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	if n < 1 {
		n = 1
	}
	return Window{Start: StartOfDay(now, loc), N: n, Loc: loc}
}

// Days returns local midnight of every day in the window. AddDate keeps the
// wall clock at midnight across DST transitions.
func (w Window) Days() []time.Time {
	days := make([]time.Time, w.N)
	for i := range days {
		days[i] = w.Start.AddDate(0, 0, i)
	}
	return days
}

// End returns local midnight of the first day after the window.
func (w Window) End() time.Time {
	return w.Start.AddDate(0, 0, w.N)
}

// Contains reports whether the instant's local day lies inside the window.
func (w Window) Contains(s StartInstant) bool {
	day := s.Day(w.Loc)
	return !day.Before(w.Start) && day.Before(w.End())
}
