package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var workWeek = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}

// Weekdays lists every Monday–Friday between from and to inclusive, in
// chronological order. An inverted range yields nothing.
func Weekdays(from, to Day) []Day {
	if to.Before(from) {
		return nil
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   from.Noon(),
		Until:     to.Noon(),
		Byweekday: workWeek,
	})
	if err != nil {
		return weekdaysByStep(from, to)
	}
	instances := rule.All()
	days := make([]Day, 0, len(instances))
	for _, t := range instances {
		days = append(days, DayOf(t))
	}
	return days
}

func weekdaysByStep(from, to Day) []Day {
	var days []Day
	for d := from; !d.After(to); d = d.AddDays(1) {
		if !d.IsWeekend() {
			days = append(days, d)
		}
	}
	return days
}

// CountWeekdays counts Monday–Friday days between from and to inclusive.
func CountWeekdays(from, to Day) int { return len(Weekdays(from, to)) }

// MonthWeekdays lists the weekdays of a calendar month.
func MonthWeekdays(year int, month time.Month) []Day {
	return Weekdays(FirstOfMonth(year, month), LastOfMonth(year, month))
}

// ParseWeekday accepts a full English weekday name in any case.
func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.ToLower(wd.String()) == n {
			return wd, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", name)
}

// WeekdaySet is a lookup of weekday names such as a user's default
// work-from-home days. Unknown names are ignored.
type WeekdaySet map[time.Weekday]bool

// NewWeekdaySet builds a set from weekday names.
func NewWeekdaySet(names []string) WeekdaySet {
	set := make(WeekdaySet, len(names))
	for _, name := range names {
		if wd, err := ParseWeekday(name); err == nil {
			set[wd] = true
		}
	}
	return set
}

// Has reports whether d falls on one of the set's weekdays.
func (s WeekdaySet) Has(d Day) bool { return s[d.Weekday()] }
