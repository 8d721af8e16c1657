package attendance

import (
	"time"

	"github.com/warp/attendance/calendar"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the work status recorded for a day.
type Status string

const (
	StatusPresent Status = "present" // in office
	StatusWFH     Status = "wfh"     // working from home
	StatusAbsent  Status = "absent"  // on leave

	// Legacy statuses still found in older records. All count as leave.
	StatusLeave          Status = "leave"
	StatusPlannedLeave   Status = "planned-leave"
	StatusUnplannedLeave Status = "unplanned-leave"
	StatusParentalLeave  Status = "parental-leave"
)

// MarkableStatuses are the statuses a user can set through Mark.
var MarkableStatuses = []Status{
	StatusPresent, StatusWFH, StatusAbsent,
	StatusLeave, StatusPlannedLeave, StatusUnplannedLeave, StatusParentalLeave,
}

// LeaveStatuses are the statuses that represent a day of leave.
var LeaveStatuses = []Status{
	StatusAbsent, StatusLeave, StatusPlannedLeave, StatusUnplannedLeave, StatusParentalLeave,
}

// IsLeave reports whether the status represents a day of leave.
func (s Status) IsLeave() bool {
	for _, ls := range LeaveStatuses {
		if s == ls {
			return true
		}
	}
	return false
}

// IsWorking reports whether the status represents a worked day.
func (s Status) IsWorking() bool { return s == StatusPresent || s == StatusWFH }

// Valid reports whether the status is one of MarkableStatuses.
func (s Status) Valid() bool {
	for _, ms := range MarkableStatuses {
		if s == ms {
			return true
		}
	}
	return false
}

// =============================================================================
// RECORD
// =============================================================================

// Record is one user's status for one calendar day. Date is always the
// UTC-noon instant of the day; at most one record exists per (UserID, day).
type Record struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	UserEmail string      `json:"userEmail,omitempty"`
	Date      time.Time   `json:"date"`
	Status    Status      `json:"status"`
	Notes     string      `json:"notes,omitempty"`
	Leave     *Annotation `json:"leave,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Day returns the calendar day of the record.
func (r Record) Day() calendar.Day { return calendar.DayOf(r.Date) }

// Annotation resolves the leave annotation of a leave record. Structured
// fields win; otherwise the notes are decoded, and as a last resort the
// legacy status name supplies the category.
func (r Record) Annotation() Annotation {
	if r.Leave != nil {
		return *r.Leave
	}
	a := Decode(r.Notes)
	if a.Category == CategoryOther && a.Paid {
		if c, ok := categoryFromStatus(r.Status); ok {
			a.Category = c
		}
	}
	return a
}

// RecordUpdate lists the fields an Update may change. Nil fields are kept.
type RecordUpdate struct {
	Date   *time.Time
	Status *Status
	Notes  *string
	Leave  *Annotation
	// ClearLeave removes the structured leave annotation.
	ClearLeave bool
}

// =============================================================================
// USER
// =============================================================================

// Default quotas used when a user has not configured any.
const (
	DefaultPlannedQuota   = 15
	DefaultUnplannedQuota = 10
	DefaultParentalQuota  = 0
)

// LeaveQuota is the annual number of paid days per category.
type LeaveQuota struct {
	Planned   int `json:"planned"`
	Unplanned int `json:"unplanned"`
	Parental  int `json:"parentalLeave"`
}

// DefaultLeaveQuota returns the quota applied when none is configured.
func DefaultLeaveQuota() LeaveQuota {
	return LeaveQuota{
		Planned:   DefaultPlannedQuota,
		Unplanned: DefaultUnplannedQuota,
		Parental:  DefaultParentalQuota,
	}
}

// For returns the quota of a category. Other has no quota.
func (q LeaveQuota) For(c Category) int {
	switch c {
	case CategoryPlanned:
		return q.Planned
	case CategoryUnplanned:
		return q.Unplanned
	case CategoryParental:
		return q.Parental
	default:
		return 0
	}
}

// Total is the sum of all category quotas.
func (q LeaveQuota) Total() int { return q.Planned + q.Unplanned + q.Parental }

// Settings are the per-user preferences that drive quota and backfill.
type Settings struct {
	LeaveQuota              *LeaveQuota `json:"leaveQuota,omitempty"`
	DefaultWorkFromHomeDays []string    `json:"defaultWorkFromHomeDays"`
	OnboardingCompleted     bool        `json:"onboardingCompleted"`
}

// Quota returns the configured quota or the defaults. A configured quota
// of zero is kept as zero.
func (s Settings) Quota() LeaveQuota {
	if s.LeaveQuota == nil {
		return DefaultLeaveQuota()
	}
	return *s.LeaveQuota
}

// WorkFromHomeDays returns the default WFH weekdays as a set.
func (s Settings) WorkFromHomeDays() calendar.WeekdaySet {
	return calendar.NewWeekdaySet(s.DefaultWorkFromHomeDays)
}

// User is an employee known to the engine.
type User struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Image    string   `json:"image,omitempty"`
	IsAdmin  bool     `json:"isAdminUser"`
	Settings Settings `json:"settings"`
}

// DefaultStatusFor returns the status backfill and auto-mark write for a day.
func (u User) DefaultStatusFor(d calendar.Day) Status {
	if u.Settings.WorkFromHomeDays().Has(d) {
		return StatusWFH
	}
	return StatusPresent
}
