package calendar

import (
	"errors"
	"fmt"
)

// ErrInvalidPeriod is returned when a period ends before it starts.
var ErrInvalidPeriod = errors.New("invalid period: end before start")

// =============================================================================
// PERIOD - Inclusive range of days
// =============================================================================

// Period is an inclusive [Start, End] range of days, e.g. a pay period.
type Period struct {
	Start Day `json:"start"`
	End   Day `json:"end"`
}

// NewPeriod builds a validated period.
func NewPeriod(start, end Day) (Period, error) {
	p := Period{Start: start, End: end}
	return p, p.Validate()
}

// ParsePeriod parses both bounds with ParseDay.
func ParsePeriod(start, end string) (Period, error) {
	s, err := ParseDay(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDay(end)
	if err != nil {
		return Period{}, err
	}
	return NewPeriod(s, e)
}

// LastNDays returns the n-day period ending on end (inclusive).
func LastNDays(end Day, n int) Period {
	if n < 1 {
		n = 1
	}
	return Period{Start: end.AddDays(-(n - 1)), End: end}
}

// Validate rejects zero bounds and inverted ranges.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: missing bound", ErrInvalidPeriod)
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Day) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns every day in the period, in order.
func (p Period) Days() []Day {
	var days []Day
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Len returns the number of days in the period.
func (p Period) Len() int {
	return DaysBetween(p.Start, p.End) + 1
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
