package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance/attendance"
)

func TestMark_UpsertsDay(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	u := seedUser(t, store, attendance.User{Email: "uma@example.com"})
	d := day(2025, time.January, 6)

	first, err := svc.Mark(ctx, attendance.MarkRequest{UserID: u.ID, Day: d, Status: attendance.StatusPresent})
	require.NoError(t, err)
	assert.Equal(t, d.Noon(), first.Date)
	assert.Equal(t, "uma@example.com", first.UserEmail)

	// Retarget to leave: same record, annotation decoded from notes
	second, err := svc.Mark(ctx, attendance.MarkRequest{UserID: u.ID, Day: d, Status: attendance.StatusAbsent, Notes: "Parental Leave"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.Leave)
	assert.Equal(t, attendance.CategoryParental, second.Leave.Category)

	// Back to work clears the annotation
	third, err := svc.Mark(ctx, attendance.MarkRequest{UserID: u.ID, Day: d, Status: attendance.StatusWFH})
	require.NoError(t, err)
	assert.Nil(t, third.Leave)

	today, err := svc.Today(ctx, u.ID, d)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusWFH, today.Status)

	_, err = svc.Mark(ctx, attendance.MarkRequest{UserID: u.ID, Day: d, Status: "holiday"})
	assert.ErrorIs(t, err, attendance.ErrValidation)
}

func TestMonthlyStats(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	u := seedUser(t, store, attendance.User{Email: "val@example.com"})

	// January 2025 has 23 weekdays
	seedRecord(t, store, u.ID, day(2025, time.January, 6), attendance.StatusPresent, "")
	seedRecord(t, store, u.ID, day(2025, time.January, 7), attendance.StatusWFH, "")
	seedRecord(t, store, u.ID, day(2025, time.January, 8), attendance.StatusAbsent, "Planned Leave")
	seedRecord(t, store, u.ID, day(2025, time.January, 11), attendance.StatusPresent, "") // Saturday, ignored

	stats, err := svc.MonthlyStats(ctx, u.ID, 2025, time.January, day(2025, time.January, 7))
	require.NoError(t, err)
	assert.Equal(t, 23, stats.Weekdays)
	assert.Equal(t, 1, stats.WorkFromOffice)
	assert.Equal(t, 1, stats.WorkFromHome)
	assert.Equal(t, 1, stats.AbsentDays)
	assert.Equal(t, 2, stats.TotalWorkingDays)
	assert.Equal(t, 9, stats.AttendanceRate) // round(2/23*100) = round(8.69)
	require.NotNil(t, stats.TodayStatus)
	assert.Equal(t, attendance.StatusWFH, *stats.TodayStatus)
}

func TestMonthlyReport(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	u := seedUser(t, store, attendance.User{Email: "wes@example.com"})
	seedRecord(t, store, u.ID, day(2025, time.January, 2), attendance.StatusWFH, "")
	seedRecord(t, store, u.ID, day(2025, time.January, 3), attendance.StatusAbsent, "Unplanned Leave")

	report, err := svc.MonthlyReport(ctx, u.ID, 2025, time.January)
	require.NoError(t, err)
	assert.Equal(t, "January", report.MonthName)
	require.Len(t, report.Records, 23)
	assert.Equal(t, attendance.StatusUnmarked, report.Records[0].Status)
	assert.Equal(t, "Wednesday", report.Records[0].DayName)
	assert.Equal(t, attendance.StatusWFH, report.Records[1].Status)
	assert.Equal(t, attendance.MonthlySummary{TotalWorkDays: 23, WorkFromHome: 1, Leaves: 1, Unmarked: 21}, report.Summary)
}

func TestYearlyLeaveReport(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	u := seedUser(t, store, attendance.User{Email: "xia@example.com"})
	seedRecord(t, store, u.ID, day(2025, time.February, 3), attendance.StatusAbsent, "Planned Leave - ski")
	seedRecord(t, store, u.ID, day(2025, time.April, 1), attendance.StatusAbsent, "Unplanned (Unpaid)")
	seedRecord(t, store, u.ID, day(2025, time.April, 2), attendance.StatusPresent, "")

	report, err := svc.YearlyLeaveReport(ctx, u.ID, 2025)
	require.NoError(t, err)
	require.Len(t, report.Leaves, 2)
	assert.Equal(t, "Planned", report.Leaves[0].LeaveType)
	assert.Equal(t, "ski", report.Leaves[0].Text)
	assert.Equal(t, "Unplanned (Unpaid)", report.Leaves[1].LeaveType)
	require.Len(t, report.LeavesByMonth, 2)
	assert.Equal(t, "February", report.LeavesByMonth[0].Name)
	assert.Equal(t, "April", report.LeavesByMonth[1].Name)
	assert.Equal(t, 1, report.Summary.Planned.Used)
	assert.Equal(t, 1, report.Summary.Unpaid)
}

func TestUserMetrics(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	u := seedUser(t, store, attendance.User{Email: "yan@example.com", Settings: wfhThuFri()})

	// Thursdays of January: 2, 9, 16 WFH; 23 present
	for _, d := range []int{2, 9, 16} {
		seedRecord(t, store, u.ID, day(2025, time.January, d), attendance.StatusWFH, "")
	}
	seedRecord(t, store, u.ID, day(2025, time.January, 23), attendance.StatusPresent, "")
	seedRecord(t, store, u.ID, day(2025, time.March, 3), attendance.StatusAbsent, "Planned Leave")

	m, err := svc.UserMetrics(ctx, u.ID, 2025)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusCounts{Present: 1, WFH: 3, Leave: 1}, m.YearlyStats)
	assert.Equal(t, 3, m.MonthlyBreakdown[0].WFH)
	assert.Equal(t, 1, m.MonthlyBreakdown[2].Leave)
	assert.Equal(t, attendance.DayPattern{Total: 4, WFH: 3, Present: 1, WFHShare: 75}, m.DayPattern["Thursday"])
	assert.Len(t, m.DayPattern, 5)
	require.Len(t, m.RecentActivity, 5)
	assert.Equal(t, day(2025, time.March, 3), m.RecentActivity[0].Date)
	assert.Equal(t, 1, m.LeaveQuotas.Planned.Used)
	assert.Equal(t, []string{"Thursday", "Friday"}, m.DefaultWorkFromHomeDays)

	_, err = svc.UserMetrics(ctx, "ghost", 2025)
	assert.True(t, attendance.IsNotFound(err))
}

func TestTodayOverview(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	a := seedUser(t, store, attendance.User{Name: "Ann", Email: "ann@example.com"})
	b := seedUser(t, store, attendance.User{Name: "Bea", Email: "bea@example.com"})
	seedUser(t, store, attendance.User{Name: "Cal", Email: "cal@example.com"})
	today := day(2025, time.January, 6)
	seedRecord(t, store, a.ID, today, attendance.StatusWFH, "")
	seedRecord(t, store, b.ID, today, attendance.StatusAbsent, "Planned Leave")

	o, err := svc.TodayOverview(ctx, today)
	require.NoError(t, err)
	assert.False(t, o.IsWeekend)
	assert.Equal(t, "Monday", o.DayName)
	assert.Equal(t, attendance.TodaySummary{Total: 3, WFH: 1, Absent: 1, Unmarked: 1}, o.Summary)
	require.Len(t, o.Users, 3)
	assert.Equal(t, "Ann", o.Users[0].Name)
	assert.Equal(t, attendance.StatusWFH, o.Users[0].Status)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	u := seedUser(t, store, attendance.User{Email: "zed@example.com"})

	view, err := svc.GetSettings(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.DefaultLeaveQuota(), view.LeaveQuota)
	assert.False(t, view.OnboardingCompleted)
	assert.Equal(t, []string{}, view.DefaultWorkFromHomeDays)

	view, err = svc.UpdateSettings(ctx, u.ID, attendance.LeaveQuota{Planned: 20, Unplanned: 5, Parental: 0}, []string{"Monday"})
	require.NoError(t, err)
	assert.Equal(t, 20, view.LeaveQuota.Planned)
	assert.True(t, view.OnboardingCompleted)

	_, err = svc.UpdateSettings(ctx, u.ID, attendance.LeaveQuota{Planned: -1}, nil)
	assert.ErrorIs(t, err, attendance.ErrValidation)
	_, err = svc.UpdateSettings(ctx, u.ID, attendance.LeaveQuota{}, []string{"Caturday"})
	assert.ErrorIs(t, err, attendance.ErrValidation)
	_, err = svc.UpdateSettings(ctx, "ghost", attendance.LeaveQuota{}, nil)
	assert.True(t, attendance.IsNotFound(err))
}
