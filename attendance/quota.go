package attendance

import (
	"context"
	"errors"

	"github.com/warp/attendance/calendar"
)

// =============================================================================
// QUOTA LEDGER
// =============================================================================

// CategoryQuota is the usage of one leave category in a year.
type CategoryQuota struct {
	Used      int `json:"used"`
	Quota     int `json:"quota"`
	Remaining int `json:"remaining"`
}

// QuotaSnapshot is a user's leave usage for one calendar year. It is derived
// from the records on every call and never cached.
type QuotaSnapshot struct {
	UserID    string        `json:"userId"`
	Year      int           `json:"year"`
	Planned   CategoryQuota `json:"planned"`
	Unplanned CategoryQuota `json:"unplanned"`
	Parental  CategoryQuota `json:"parentalLeave"`

	// Unpaid counts unpaid leave days of any category.
	Unpaid int `json:"unpaid"`
	// Other counts paid leave days with no recognised category.
	Other int `json:"other"`

	TotalUsed      int `json:"totalUsed"`
	TotalQuota     int `json:"totalQuota"`
	TotalRemaining int `json:"totalRemaining"`
}

// For returns the usage of a quota category.
func (q QuotaSnapshot) For(c Category) CategoryQuota {
	switch c {
	case CategoryPlanned:
		return q.Planned
	case CategoryUnplanned:
		return q.Unplanned
	case CategoryParental:
		return q.Parental
	}
	return CategoryQuota{}
}

// TotalLeave counts every leave day in the year, paid or not.
func (q QuotaSnapshot) TotalLeave() int { return q.TotalUsed + q.Unpaid + q.Other }

// Tally buckets leave records against a quota. Records that are not leave
// are ignored.
func Tally(records []Record, quota LeaveQuota) QuotaSnapshot {
	var used = map[Category]int{}
	var snap QuotaSnapshot
	for _, r := range records {
		if !r.Status.IsLeave() {
			continue
		}
		a := r.Annotation()
		switch {
		case !a.Paid:
			snap.Unpaid++
		case a.Category.Requestable():
			used[a.Category]++
		default:
			snap.Other++
		}
	}

	bucket := func(c Category) CategoryQuota {
		q := quota.For(c)
		return CategoryQuota{Used: used[c], Quota: q, Remaining: max(0, q-used[c])}
	}
	snap.Planned = bucket(CategoryPlanned)
	snap.Unplanned = bucket(CategoryUnplanned)
	snap.Parental = bucket(CategoryParental)

	snap.TotalUsed = used[CategoryPlanned] + used[CategoryUnplanned] + used[CategoryParental]
	snap.TotalQuota = quota.Total()
	snap.TotalRemaining = max(0, snap.TotalQuota-snap.TotalUsed)
	return snap
}

// YearlyQuota computes a user's leave usage for a calendar year. A user that
// does not exist, or has no quota configured, gets the default quota.
func (s *Service) YearlyQuota(ctx context.Context, userID string, year int) (*QuotaSnapshot, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	quota := DefaultLeaveQuota()
	u, err := s.store.GetUser(ctx, userID)
	switch {
	case err == nil:
		quota = u.Settings.Quota()
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	records, err := s.recordsIn(ctx, userID, calendar.YearSpan(year), LeaveStatuses...)
	if err != nil {
		return nil, err
	}
	snap := Tally(records, quota)
	snap.UserID = userID
	snap.Year = year
	return &snap, nil
}
