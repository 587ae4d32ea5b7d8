/*
Package calendar provides the date types used by costing and timesheets.

PURPOSE:
  Hours are recorded per calendar day, rates become effective on a day, and
  submissions cover an inclusive range of days. None of these care about the
  time of day or the time zone, so everything is normalized to UTC midnight.

KEY CONCEPTS:
  - Day:    A calendar date. Comparable, usable as a map key.
  - Period: An inclusive [Start, End] range of days.

ACCEPTED INPUT FORMATS:
  ParseDay accepts ISO dates (2006-01-02) and US dates (01/02/2006), which
  covers the attendance exports reference totals are imported from.

SEE ALSO:
  - period.go: Period type
  - costing/rate.go: Rate history lookup by day
*/
package calendar

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ISOLayout is the canonical day format used in storage and the API.
	ISOLayout = "2006-01-02"
	// USLayout is the secondary format seen in attendance CSV exports.
	USLayout = "01/02/2006"
)

// ErrInvalidDay is returned when a day string matches no accepted layout.
var ErrInvalidDay = errors.New("invalid day")

// =============================================================================
// DAY - A calendar date with no time-of-day component
// =============================================================================

// Day is a calendar date. The zero value is "no day".
type Day struct {
	t time.Time
}

// NewDay returns the day for year/month/day.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t to its calendar date in t's own location.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// Today returns the current UTC day.
func Today() Day {
	return DayOf(time.Now().UTC())
}

// ParseDay parses an ISO or US formatted date.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{ISOLayout, USLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return DayOf(t), nil
		}
	}
	return Day{}, fmt.Errorf("%w: %q", ErrInvalidDay, s)
}

// MustParseDay is ParseDay for literals in tests and fixtures.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Day) Before(other Day) bool        { return d.t.Before(other.t) }
func (d Day) After(other Day) bool         { return d.t.After(other.t) }
func (d Day) Equal(other Day) bool         { return d.t.Equal(other.t) }
func (d Day) BeforeOrEqual(other Day) bool { return !d.After(other) }
func (d Day) AfterOrEqual(other Day) bool  { return !d.Before(other) }

// Arithmetic
func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Day) Time() time.Time       { return d.t }
func (d Day) Year() int             { return d.t.Year() }
func (d Day) Month() time.Month     { return d.t.Month() }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) IsZero() bool          { return d.t.IsZero() }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(ISOLayout)
}

// DaysBetween returns the number of days from a to b (negative when b is before a).
func DaysBetween(a, b Day) int {
	return int(b.t.Sub(a.t).Hours() / 24)
}

// =============================================================================
// ENCODING
// =============================================================================

func (d Day) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Day) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Day{}
		return nil
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Day) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores days as ISO text so they sort lexicographically in SQL.
func (d Day) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan reads ISO text (or a driver time value) back into a Day.
func (d *Day) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	case time.Time:
		*d = DayOf(v)
		return nil
	case nil:
		*d = Day{}
		return nil
	default:
		return fmt.Errorf("calendar: cannot scan %T into Day", src)
	}
}
