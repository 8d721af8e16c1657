/*
report.go - Read-only attendance reports

PURPOSE:
  Aggregations over a user's records for display:

    MonthlyStats       Counts and attendance rate for a month
    MonthlyReport      Every weekday of a month with its status
    YearlyLeaveReport  Every leave day of a year with label and quota summary
    UserMetrics        Yearly/monthly breakdown, weekday pattern, recent activity
    TodayOverview      Every user's status for today

  Only weekdays are counted. Percentages are rounded half away from zero
  to whole numbers.

SEE ALSO:
  - quota.go: QuotaSnapshot used as the leave summary
*/
package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance/calendar"
)

// StatusUnmarked is reported for weekdays without a record.
const StatusUnmarked Status = "unmarked"

// percent returns round(part/whole*100), or 0 when whole is 0.
func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	p := decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		Round(0)
	return int(p.IntPart())
}

// =============================================================================
// MONTHLY STATS
// =============================================================================

// MonthlyStats summarises a month for the dashboard.
type MonthlyStats struct {
	Year             int     `json:"year"`
	Month            int     `json:"month"`
	Weekdays         int     `json:"weekdays"`
	TotalWorkingDays int     `json:"totalWorkingDays"`
	WorkFromOffice   int     `json:"workFromOffice"`
	WorkFromHome     int     `json:"workFromHome"`
	AbsentDays       int     `json:"absentDays"`
	AttendanceRate   int     `json:"attendanceRate"`
	TodayStatus      *Status `json:"todayStatus"`
}

// MonthlyStats counts weekday records of the month. Attendance rate is
// worked days over all weekdays in the month.
func (s *Service) MonthlyStats(ctx context.Context, userID string, year int, month time.Month, today calendar.Day) (*MonthlyStats, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}
	records, err := s.recordsIn(ctx, userID, calendar.MonthSpan(year, month))
	if err != nil {
		return nil, err
	}

	stats := &MonthlyStats{
		Year:     year,
		Month:    int(month),
		Weekdays: len(calendar.MonthWeekdays(year, month)),
	}
	for _, r := range records {
		d := r.Day()
		if d.IsWeekend() {
			continue
		}
		if r.Status.IsWorking() {
			stats.TotalWorkingDays++
		}
		switch {
		case r.Status == StatusPresent:
			stats.WorkFromOffice++
		case r.Status == StatusWFH:
			stats.WorkFromHome++
		case r.Status.IsLeave():
			stats.AbsentDays++
		}
		if d.Equal(today) {
			stats.TodayStatus = ptr(r.Status)
		}
	}
	stats.AttendanceRate = percent(stats.TotalWorkingDays, stats.Weekdays)
	return stats, nil
}

// =============================================================================
// MONTHLY REPORT
// =============================================================================

// ReportDay is one weekday of a monthly report.
type ReportDay struct {
	Date    calendar.Day `json:"date"`
	DayName string       `json:"dayName"`
	Status  Status       `json:"status"`
	Notes   string       `json:"notes,omitempty"`
}

// MonthlySummary counts the weekdays of a monthly report by status.
type MonthlySummary struct {
	TotalWorkDays  int `json:"totalWorkDays"`
	WorkFromOffice int `json:"workFromOffice"`
	WorkFromHome   int `json:"workFromHome"`
	Leaves         int `json:"leaves"`
	Unmarked       int `json:"unmarked"`
}

// MonthlyReport lists every weekday of a month.
type MonthlyReport struct {
	UserID    string         `json:"userId"`
	Year      int            `json:"year"`
	Month     int            `json:"month"`
	MonthName string         `json:"monthName"`
	Records   []ReportDay    `json:"records"`
	Summary   MonthlySummary `json:"summary"`
}

// MonthlyReport builds the weekday-by-weekday report of a month.
func (s *Service) MonthlyReport(ctx context.Context, userID string, year int, month time.Month) (*MonthlyReport, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}
	records, err := s.recordsIn(ctx, userID, calendar.MonthSpan(year, month))
	if err != nil {
		return nil, err
	}
	byDay := make(map[calendar.Day]Record, len(records))
	for _, r := range records {
		byDay[r.Day()] = r
	}

	report := &MonthlyReport{
		UserID:    userID,
		Year:      year,
		Month:     int(month),
		MonthName: month.String(),
		Records:   []ReportDay{},
	}
	for _, d := range calendar.MonthWeekdays(year, month) {
		day := ReportDay{Date: d, DayName: d.WeekdayName(), Status: StatusUnmarked}
		if r, ok := byDay[d]; ok {
			day.Status = r.Status
			day.Notes = r.Notes
		}
		report.Records = append(report.Records, day)

		switch {
		case day.Status == StatusPresent:
			report.Summary.WorkFromOffice++
		case day.Status == StatusWFH:
			report.Summary.WorkFromHome++
		case day.Status == StatusUnmarked:
			report.Summary.Unmarked++
		case day.Status.IsLeave():
			report.Summary.Leaves++
		}
	}
	report.Summary.TotalWorkDays = len(report.Records)
	return report, nil
}

// =============================================================================
// YEARLY LEAVE REPORT
// =============================================================================

// LeaveEntry is one leave day of a yearly report.
type LeaveEntry struct {
	Date      calendar.Day `json:"date"`
	DayName   string       `json:"dayName"`
	LeaveType string       `json:"leaveType"`
	Category  Category     `json:"category"`
	Paid      bool         `json:"paid"`
	Text      string       `json:"text,omitempty"`
	Notes     string       `json:"notes,omitempty"`
}

// MonthLeaves groups the leave days of one month.
type MonthLeaves struct {
	Month  int          `json:"month"`
	Name   string       `json:"name"`
	Leaves []LeaveEntry `json:"leaves"`
}

// YearlyLeaveReport lists a user's leave for a year.
type YearlyLeaveReport struct {
	UserID         string        `json:"userId"`
	Year           int           `json:"year"`
	Leaves         []LeaveEntry  `json:"leaves"`
	LeavesByMonth  []MonthLeaves `json:"leavesByMonth"`
	Summary        QuotaSnapshot `json:"summary"`
	TotalLeaveDays int           `json:"totalLeaveDays"`
}

// YearlyLeaveReport lists every leave day of the year, oldest first, with
// the quota snapshot of the same records.
func (s *Service) YearlyLeaveReport(ctx context.Context, userID string, year int) (*YearlyLeaveReport, error) {
	snap, err := s.YearlyQuota(ctx, userID, year)
	if err != nil {
		return nil, err
	}
	records, err := s.recordsIn(ctx, userID, calendar.YearSpan(year), LeaveStatuses...)
	if err != nil {
		return nil, err
	}

	report := &YearlyLeaveReport{UserID: userID, Year: year, Leaves: []LeaveEntry{}, Summary: *snap}
	months := map[time.Month]*MonthLeaves{}
	for _, r := range records {
		a := r.Annotation()
		d := r.Day()
		entry := LeaveEntry{
			Date:      d,
			DayName:   d.WeekdayName(),
			LeaveType: a.Label(),
			Category:  a.Category,
			Paid:      a.Paid,
			Text:      a.Text,
			Notes:     r.Notes,
		}
		report.Leaves = append(report.Leaves, entry)

		m, ok := months[d.Month]
		if !ok {
			m = &MonthLeaves{Month: int(d.Month), Name: d.Month.String()}
			months[d.Month] = m
		}
		m.Leaves = append(m.Leaves, entry)
	}
	for month := time.January; month <= time.December; month++ {
		if m, ok := months[month]; ok {
			report.LeavesByMonth = append(report.LeavesByMonth, *m)
		}
	}
	report.TotalLeaveDays = len(report.Leaves)
	return report, nil
}

// =============================================================================
// USER METRICS
// =============================================================================

// StatusCounts counts worked and leave days.
type StatusCounts struct {
	Present int `json:"present"`
	WFH     int `json:"wfh"`
	Leave   int `json:"leave"`
}

func (c *StatusCounts) add(s Status) {
	switch {
	case s == StatusPresent:
		c.Present++
	case s == StatusWFH:
		c.WFH++
	case s.IsLeave():
		c.Leave++
	}
}

// MonthCounts is one month of a yearly breakdown.
type MonthCounts struct {
	Month int    `json:"month"`
	Name  string `json:"name"`
	StatusCounts
}

// DayPattern is how a user works on one weekday.
type DayPattern struct {
	Total    int `json:"total"`
	WFH      int `json:"wfh"`
	Present  int `json:"present"`
	WFHShare int `json:"wfhShare"`
}

// Activity is one entry of the recent-activity list.
type Activity struct {
	Date   calendar.Day `json:"date"`
	Status Status       `json:"status"`
	Notes  string       `json:"notes,omitempty"`
}

// UserMetrics is the admin view of one user.
type UserMetrics struct {
	User                    User                  `json:"user"`
	Year                    int                   `json:"year"`
	YearlyStats             StatusCounts          `json:"yearlyStats"`
	MonthlyBreakdown        []MonthCounts         `json:"monthlyBreakdown"`
	LeaveQuotas             QuotaSnapshot         `json:"leaveQuotas"`
	DayPattern              map[string]DayPattern `json:"dayPattern"`
	RecentActivity          []Activity            `json:"recentActivity"`
	DefaultWorkFromHomeDays []string              `json:"defaultWorkFromHomeDays"`
}

// RecentActivityLimit is the number of records in UserMetrics.RecentActivity.
const RecentActivityLimit = 10

// UserMetrics builds the yearly admin view of a user.
func (s *Service) UserMetrics(ctx context.Context, userID string, year int) (*UserMetrics, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.recordsIn(ctx, u.ID, calendar.YearSpan(year))
	if err != nil {
		return nil, err
	}
	snap, err := s.YearlyQuota(ctx, u.ID, year)
	if err != nil {
		return nil, err
	}

	m := &UserMetrics{
		User:                    *u,
		Year:                    year,
		LeaveQuotas:             *snap,
		DayPattern:              map[string]DayPattern{},
		RecentActivity:          []Activity{},
		DefaultWorkFromHomeDays: viewOf(u.Settings).DefaultWorkFromHomeDays,
	}
	m.MonthlyBreakdown = make([]MonthCounts, 12)
	for i := range m.MonthlyBreakdown {
		month := time.Month(i + 1)
		m.MonthlyBreakdown[i] = MonthCounts{Month: int(month), Name: month.String()}
	}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		m.DayPattern[wd.String()] = DayPattern{}
	}

	for _, r := range records {
		d := r.Day()
		m.YearlyStats.add(r.Status)
		m.MonthlyBreakdown[d.Month-1].add(r.Status)
		if d.IsWeekend() {
			continue
		}
		p := m.DayPattern[d.WeekdayName()]
		p.Total++
		switch r.Status {
		case StatusWFH:
			p.WFH++
		case StatusPresent:
			p.Present++
		}
		m.DayPattern[d.WeekdayName()] = p
	}
	for name, p := range m.DayPattern {
		p.WFHShare = percent(p.WFH, p.Total)
		m.DayPattern[name] = p
	}

	recent := append([]Record(nil), records...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date.After(recent[j].Date) })
	for i := 0; i < len(recent) && i < RecentActivityLimit; i++ {
		m.RecentActivity = append(m.RecentActivity, Activity{
			Date:   recent[i].Day(),
			Status: recent[i].Status,
			Notes:  recent[i].Notes,
		})
	}
	return m, nil
}

// =============================================================================
// TODAY OVERVIEW
// =============================================================================

// UserToday is one user's status for today.
type UserToday struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status Status `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// TodaySummary counts users by today's status.
type TodaySummary struct {
	Total    int `json:"total"`
	Present  int `json:"present"`
	WFH      int `json:"wfh"`
	Absent   int `json:"absent"`
	Unmarked int `json:"unmarked"`
}

// TodayOverview is every user's status for one day.
type TodayOverview struct {
	Date      calendar.Day `json:"date"`
	DayName   string       `json:"dayName"`
	IsWeekend bool         `json:"isWeekend"`
	Users     []UserToday  `json:"users"`
	Summary   TodaySummary `json:"summary"`
}

// TodayOverview lists every user's record for today.
func (s *Service) TodayOverview(ctx context.Context, today calendar.Day) (*TodayOverview, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	records, err := s.store.Find(ctx, Filter{}.On(today))
	if err != nil {
		return nil, fmt.Errorf("find records for %s: %w", today, err)
	}
	byUser := make(map[string]Record, len(records))
	for _, r := range records {
		byUser[r.UserID] = r
	}

	o := &TodayOverview{
		Date:      today,
		DayName:   today.WeekdayName(),
		IsWeekend: today.IsWeekend(),
		Users:     make([]UserToday, 0, len(users)),
	}
	for _, u := range users {
		entry := UserToday{UserID: u.ID, Name: u.Name, Email: u.Email, Status: StatusUnmarked}
		if r, ok := byUser[u.ID]; ok {
			entry.Status = r.Status
			entry.Notes = r.Notes
		}
		o.Users = append(o.Users, entry)

		switch {
		case entry.Status == StatusPresent:
			o.Summary.Present++
		case entry.Status == StatusWFH:
			o.Summary.WFH++
		case entry.Status == StatusUnmarked:
			o.Summary.Unmarked++
		case entry.Status.IsLeave():
			o.Summary.Absent++
		}
	}
	o.Summary.Total = len(users)
	return o, nil
}
