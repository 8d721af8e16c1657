/*
calendar.go - Day-granular calendar helpers for attendance records

PURPOSE:
  Every attendance record is keyed by a calendar day, not an instant.
  Records are stored at 12:00 UTC of their day so that any client offset
  within ±12h still lands on the same date. All lookups go through the
  full UTC day span [00:00:00.000, 23:59:59.999] so that legacy rows
  stored at other hours of the same day are still found.

  There is no per-user timezone: the calendar is UTC.

SEE ALSO:
  - weekdays.go: Weekday enumeration over ranges
  - attendance/store.go: Filters built from spans
*/
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// =============================================================================
// DAY
// =============================================================================

// Day is a UTC calendar date.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDay builds a Day, normalising overflow the way time.Date does
// (e.g. Jan 32 becomes Feb 1).
func NewDay(year int, month time.Month, day int) Day {
	return DayOf(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
}

// DayOf returns the UTC calendar day an instant falls on.
func DayOf(t time.Time) Day {
	u := t.UTC()
	return Day{Year: u.Year(), Month: u.Month(), Day: u.Day()}
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DayOf(t), nil
}

// Today returns the UTC day of now.
func Today(now time.Time) Day { return DayOf(now) }

// Noon is the canonical storage instant of the day.
func (d Day) Noon() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

// Midnight is 00:00 UTC of the day.
func (d Day) Midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Span covers every instant of the day.
func (d Day) Span() Span {
	start := d.Midnight()
	return Span{Start: start, End: start.Add(24*time.Hour - time.Millisecond)}
}

// Comparison
func (d Day) Before(other Day) bool { return d.Midnight().Before(other.Midnight()) }
func (d Day) After(other Day) bool  { return d.Midnight().After(other.Midnight()) }
func (d Day) Equal(other Day) bool  { return d == other }

// Arithmetic
func (d Day) AddDays(n int) Day { return NewDay(d.Year, d.Month, d.Day+n) }

// Properties
func (d Day) IsZero() bool          { return d == Day{} }
func (d Day) Weekday() time.Weekday { return d.Noon().Weekday() }
func (d Day) WeekdayName() string   { return d.Weekday().String() }
func (d Day) IsWeekend() bool       { wd := d.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (d Day) String() string        { return d.Noon().Format(DateLayout) }

// MarshalText encodes the day as YYYY-MM-DD.
func (d Day) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText parses YYYY-MM-DD.
func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// SPAN - Inclusive instant range
// =============================================================================

// Span is an inclusive range of instants.
type Span struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the span.
func (s Span) Contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

// DaySpan covers every instant from the start of from to the end of to.
func DaySpan(from, to Day) Span {
	return Span{Start: from.Span().Start, End: to.Span().End}
}

// MonthSpan covers a whole calendar month.
func MonthSpan(year int, month time.Month) Span {
	return DaySpan(FirstOfMonth(year, month), LastOfMonth(year, month))
}

// YearSpan covers a whole calendar year.
func YearSpan(year int) Span {
	return DaySpan(NewDay(year, time.January, 1), NewDay(year, time.December, 31))
}

func FirstOfMonth(year int, month time.Month) Day { return NewDay(year, month, 1) }
func LastOfMonth(year int, month time.Month) Day  { return NewDay(year, month+1, 0) }

// MonthDays lists every day of the month in order.
func MonthDays(year int, month time.Month) []Day {
	last := LastOfMonth(year, month)
	days := make([]Day, 0, last.Day)
	for d := 1; d <= last.Day; d++ {
		days = append(days, Day{Year: year, Month: month, Day: d})
	}
	return days
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies the current instant. Operations that depend on "today"
// take the day as an argument; handlers obtain it from a Clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// TodayFrom returns the UTC day of the clock's current instant.
func TodayFrom(c Clock) Day { return Today(c.Now()) }
