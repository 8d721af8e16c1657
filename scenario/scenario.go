/*
Package scenario loads demo data for development and walkthroughs.

AVAILABLE SCENARIOS:

	hybrid-worker:    WFH on Thursday and Friday, current month backfilled
	quota-exhausted:  Planned quota of 2 with a 4-day request split paid/unpaid
	legacy-notes:     Records in the old notes-only format, for migrate
	office-team:      Three users with mixed statuses today

HOW SCENARIOS WORK:
 1. Users are looked up by email and created when missing
 2. Records go through the Service, so every invariant applies
 3. Loading twice is harmless: existing days are skipped or conflict
 4. Reset wipes the store first when a clean slate is wanted

ADDING NEW SCENARIOS:
 1. Add an entry to All with ID, name, description
 2. Write a loader func(ctx, *attendance.Service, calendar.Day) error
*/
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/calendar"
)

// Scenario describes a loadable data set.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	load func(ctx context.Context, svc *attendance.Service, today calendar.Day) error
}

// All lists the available scenarios.
var All = []Scenario{
	{
		ID:          "hybrid-worker",
		Name:        "Hybrid Worker",
		Description: "Works from home Thursday and Friday; past weekdays of the month are backfilled",
		load:        loadHybridWorker,
	},
	{
		ID:          "quota-exhausted",
		Name:        "Quota Exhausted",
		Description: "Planned quota of 2 with a 4-day request: 2 paid, 2 unpaid",
		load:        loadQuotaExhausted,
	},
	{
		ID:          "legacy-notes",
		Name:        "Legacy Notes",
		Description: "Leave stored only as status and notes text, ready for migrate",
		load:        loadLegacyNotes,
	},
	{
		ID:          "office-team",
		Name:        "Office Team",
		Description: "Three users with office, home and leave marked today",
		load:        loadOfficeTeam,
	},
}

// ErrUnknown is returned by Load for an unknown scenario id.
var ErrUnknown = errors.New("unknown scenario")

// ErrResetUnsupported is returned by Reset for stores that cannot be wiped.
var ErrResetUnsupported = errors.New("store does not support reset")

// Lookup returns the scenario with the given id.
func Lookup(id string) (*Scenario, error) {
	for i := range All {
		if All[i].ID == id {
			return &All[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknown, id)
}

// Load runs the scenario with the given id.
func Load(ctx context.Context, svc *attendance.Service, id string, today calendar.Day) error {
	s, err := Lookup(id)
	if err != nil {
		return err
	}
	if err := s.load(ctx, svc, today); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	return nil
}

// Reset deletes all records and users from the store.
func Reset(ctx context.Context, store attendance.Store) error {
	r, ok := store.(attendance.Resetter)
	if !ok {
		return ErrResetUnsupported
	}
	return r.Reset(ctx)
}

// =============================================================================
// LOADERS
// =============================================================================

func loadHybridWorker(ctx context.Context, svc *attendance.Service, today calendar.Day) error {
	u, err := ensureUser(ctx, svc, attendance.User{
		Email: "hana.hybrid@example.com",
		Name:  "Hana Hybrid",
		Settings: attendance.Settings{
			DefaultWorkFromHomeDays: []string{"Thursday", "Friday"},
			OnboardingCompleted:     true,
		},
	})
	if err != nil {
		return err
	}
	_, err = svc.Sync(ctx, u.ID, today.Year, today.Month, today)
	return err
}

func loadQuotaExhausted(ctx context.Context, svc *attendance.Service, today calendar.Day) error {
	u, err := ensureUser(ctx, svc, attendance.User{
		Email: "quinn.quota@example.com",
		Name:  "Quinn Quota",
		Settings: attendance.Settings{
			LeaveQuota:          &attendance.LeaveQuota{Planned: 2, Unplanned: 10, Parental: 0},
			OnboardingCompleted: true,
		},
	})
	if err != nil {
		return err
	}
	start := nextMonday(today)
	_, err = svc.RequestLeave(ctx, attendance.LeaveRequest{
		UserID:   u.ID,
		Start:    start,
		End:      start.AddDays(3),
		Category: attendance.CategoryPlanned,
		Text:     "Family trip",
	})
	return ignoreConflict(err)
}

func loadLegacyNotes(ctx context.Context, svc *attendance.Service, today calendar.Day) error {
	u, err := ensureUser(ctx, svc, attendance.User{
		Email: "lee.legacy@example.com",
		Name:  "Lee Legacy",
	})
	if err != nil {
		return err
	}
	first := calendar.FirstOfMonth(today.Year, today.Month)
	days := calendar.Weekdays(first, calendar.LastOfMonth(today.Year, today.Month))
	legacy := []struct {
		status attendance.Status
		notes  string
	}{
		{attendance.StatusPlannedLeave, "Planned Leave - dentist"},
		{attendance.StatusAbsent, "Unplanned (Unpaid)"},
		{attendance.StatusParentalLeave, ""},
		{attendance.StatusLeave, "Leave"},
	}
	store := svc.Store()
	for i, l := range legacy {
		if i >= len(days) {
			break
		}
		// Written directly so no structured annotation is stored.
		_, err := store.InsertIfAbsent(ctx, attendance.Record{
			UserID:    u.ID,
			UserEmail: u.Email,
			Date:      days[i].Noon(),
			Status:    l.status,
			Notes:     l.notes,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func loadOfficeTeam(ctx context.Context, svc *attendance.Service, today calendar.Day) error {
	team := []struct {
		user   attendance.User
		status attendance.Status
		notes  string
	}{
		{attendance.User{Email: "olga.office@example.com", Name: "Olga Office"}, attendance.StatusPresent, ""},
		{attendance.User{Email: "henry.home@example.com", Name: "Henry Home"}, attendance.StatusWFH, ""},
		{attendance.User{Email: "liam.leave@example.com", Name: "Liam Leave"}, attendance.StatusAbsent, "Unplanned Leave - flu"},
	}
	for _, m := range team {
		u, err := ensureUser(ctx, svc, m.user)
		if err != nil {
			return err
		}
		if today.IsWeekend() {
			continue
		}
		if _, err := svc.Mark(ctx, attendance.MarkRequest{UserID: u.ID, Day: today, Status: m.status, Notes: m.notes}); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func ensureUser(ctx context.Context, svc *attendance.Service, u attendance.User) (*attendance.User, error) {
	store := svc.Store()
	existing, err := store.FindUserByEmail(ctx, u.Email)
	if err == nil {
		return existing, nil
	}
	if !attendance.IsNotFound(err) {
		return nil, err
	}
	return store.SaveUser(ctx, u)
}

func nextMonday(d calendar.Day) calendar.Day {
	d = d.AddDays(1)
	for d.Weekday() != time.Monday {
		d = d.AddDays(1)
	}
	return d
}

func ignoreConflict(err error) error {
	if errors.Is(err, attendance.ErrConflict) {
		return nil
	}
	return err
}
