package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance/calendar"
)

func TestDay_NoonAndSpan(t *testing.T) {
	d := calendar.NewDay(2025, time.March, 5)

	assert.Equal(t, time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC), d.Noon())

	span := d.Span()
	assert.Equal(t, time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC), span.Start)
	assert.Equal(t, time.Date(2025, time.March, 5, 23, 59, 59, 999_000_000, time.UTC), span.End)
	assert.True(t, span.Contains(d.Noon()))
	assert.True(t, span.Contains(span.End))
	assert.False(t, span.Contains(span.End.Add(time.Millisecond)))
}

func TestDayOf_UsesUTCFields(t *testing.T) {
	// GIVEN: an instant late on the 4th in UTC-5, which is the 5th in UTC
	loc := time.FixedZone("EST", -5*3600)
	instant := time.Date(2025, time.March, 4, 22, 0, 0, 0, loc)

	// THEN: the UTC calendar day is used
	assert.Equal(t, calendar.NewDay(2025, time.March, 5), calendar.DayOf(instant))
}

func TestDayOf_NoonSurvivesOffsets(t *testing.T) {
	d := calendar.NewDay(2025, time.January, 10)
	for _, hours := range []int{-11, -6, 0, 6, 11} {
		shifted := d.Noon().In(time.FixedZone("x", hours*3600))
		assert.Equal(t, d, calendar.DayOf(shifted), "offset %d", hours)
	}
}

func TestParseDay(t *testing.T) {
	d, err := calendar.ParseDay("2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, calendar.NewDay(2025, time.January, 15), d)
	assert.Equal(t, "2025-01-15", d.String())

	_, err = calendar.ParseDay("15/01/2025")
	assert.Error(t, err)

	_, err = calendar.ParseDay("2025-02-30")
	assert.Error(t, err)
}

func TestDay_Weekend(t *testing.T) {
	assert.True(t, calendar.NewDay(2025, time.January, 4).IsWeekend())  // Saturday
	assert.True(t, calendar.NewDay(2025, time.January, 5).IsWeekend())  // Sunday
	assert.False(t, calendar.NewDay(2025, time.January, 6).IsWeekend()) // Monday
	assert.Equal(t, "Thursday", calendar.NewDay(2025, time.January, 2).WeekdayName())
}

func TestDay_ComparisonAndArithmetic(t *testing.T) {
	a := calendar.NewDay(2024, time.December, 31)
	b := a.AddDays(1)

	assert.Equal(t, calendar.NewDay(2025, time.January, 1), b)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(calendar.NewDay(2024, time.December, 31)))
	assert.Equal(t, calendar.NewDay(2025, time.March, 1), calendar.NewDay(2025, time.February, 29))
}

func TestMonthDaysAndSpans(t *testing.T) {
	assert.Len(t, calendar.MonthDays(2024, time.February), 29)
	assert.Len(t, calendar.MonthDays(2025, time.February), 28)

	span := calendar.YearSpan(2025)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), span.Start)
	assert.Equal(t, time.Date(2025, time.December, 31, 23, 59, 59, 999_000_000, time.UTC), span.End)

	month := calendar.MonthSpan(2025, time.January)
	assert.Equal(t, calendar.NewDay(2025, time.January, 31), calendar.DayOf(month.End))
}

func TestWeekdays(t *testing.T) {
	// GIVEN: Mon 3 Mar to Mon 10 Mar 2025
	from := calendar.NewDay(2025, time.March, 3)
	to := calendar.NewDay(2025, time.March, 10)

	// WHEN
	days := calendar.Weekdays(from, to)

	// THEN: weekend skipped, chronological, both ends included
	require.Len(t, days, 6)
	assert.Equal(t, from, days[0])
	assert.Equal(t, calendar.NewDay(2025, time.March, 7), days[4])
	assert.Equal(t, to, days[5])
}

func TestWeekdays_EdgeRanges(t *testing.T) {
	sat := calendar.NewDay(2025, time.March, 8)
	sun := calendar.NewDay(2025, time.March, 9)

	assert.Empty(t, calendar.Weekdays(sat, sun))
	assert.Empty(t, calendar.Weekdays(sun, sat))
	assert.Equal(t, 23, calendar.CountWeekdays(calendar.NewDay(2025, time.January, 1), calendar.NewDay(2025, time.January, 31)))
	assert.Len(t, calendar.MonthWeekdays(2025, time.January), 23)
}

func TestWeekdaySet(t *testing.T) {
	set := calendar.NewWeekdaySet([]string{"Thursday", "friday", "Someday"})

	assert.True(t, set.Has(calendar.NewDay(2025, time.January, 2)))  // Thursday
	assert.True(t, set.Has(calendar.NewDay(2025, time.January, 3)))  // Friday
	assert.False(t, set.Has(calendar.NewDay(2025, time.January, 6))) // Monday

	_, err := calendar.ParseWeekday("Funday")
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	clock := calendar.FixedClock{At: time.Date(2025, time.January, 15, 23, 30, 0, 0, time.UTC)}
	assert.Equal(t, calendar.NewDay(2025, time.January, 15), calendar.TodayFrom(clock))
}
