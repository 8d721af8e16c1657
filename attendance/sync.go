/*
sync.go - Backfill of unmarked past weekdays

PURPOSE:
  Users forget to mark attendance. Sync fills every past weekday of a month
  that has no record with the user's default status: "wfh" on their
  default work-from-home weekdays, "present" otherwise.

RULES:
  - Weekends are never written.
  - Today and later are never written.
  - A day that already has a record is reported as skipped and left alone.
  - Writes go through InsertIfAbsent, so a record created concurrently
    between the month scan and the write is not overwritten.

  Running Sync twice for the same month writes nothing the second time.

SEE ALSO:
  - store.go: InsertIfAbsent
  - api/handlers.go: SyncAttendance, AdminSync
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/attendance/calendar"
)

// SyncResult reports what a backfill wrote for one user.
type SyncResult struct {
	UserID       string         `json:"userId"`
	UserEmail    string         `json:"userEmail"`
	SyncedDates  []calendar.Day `json:"syncedDates"`
	SkippedDates []calendar.Day `json:"skippedDates"`
}

// Synced is the number of days written.
func (r SyncResult) Synced() int { return len(r.SyncedDates) }

// Skipped is the number of past weekdays that already had a record.
func (r SyncResult) Skipped() int { return len(r.SkippedDates) }

// Sync backfills the month for one user. Days on or after today are left
// alone.
func (s *Service) Sync(ctx context.Context, userID string, year int, month time.Month, today calendar.Day) (*SyncResult, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.recordsIn(ctx, userID, calendar.MonthSpan(year, month))
	if err != nil {
		return nil, err
	}
	marked := make(map[calendar.Day]bool, len(existing))
	for _, r := range existing {
		marked[r.Day()] = true
	}

	result := &SyncResult{
		UserID:       u.ID,
		UserEmail:    u.Email,
		SyncedDates:  []calendar.Day{},
		SkippedDates: []calendar.Day{},
	}
	for _, d := range calendar.MonthDays(year, month) {
		if d.IsWeekend() || !d.Before(today) {
			continue
		}
		if marked[d] {
			result.SkippedDates = append(result.SkippedDates, d)
			continue
		}
		written, err := s.store.InsertIfAbsent(ctx, Record{
			UserID:    u.ID,
			UserEmail: u.Email,
			Date:      d.Noon(),
			Status:    u.DefaultStatusFor(d),
			Notes:     NoteSynced,
		})
		if err != nil {
			return nil, fmt.Errorf("sync %s for %s: %w", d, userID, err)
		}
		if written {
			result.SyncedDates = append(result.SyncedDates, d)
		} else {
			result.SkippedDates = append(result.SkippedDates, d)
		}
	}

	s.logger.Info("synced attendance",
		"user", u.ID, "month", fmt.Sprintf("%d-%02d", year, month),
		"synced", result.Synced(), "skipped", result.Skipped())
	return result, nil
}

// =============================================================================
// BATCH SYNC
// =============================================================================

// UserSyncResult is one entry of a batch sync. Error is set when the user
// could not be synced.
type UserSyncResult struct {
	UserID      string         `json:"userId"`
	UserEmail   string         `json:"userEmail,omitempty"`
	Synced      int            `json:"synced"`
	Skipped     int            `json:"skipped"`
	SyncedDates []calendar.Day `json:"syncedDates,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// BatchSyncResult aggregates a multi-user sync.
type BatchSyncResult struct {
	Results      []UserSyncResult `json:"results"`
	TotalUsers   int              `json:"totalUsers"`
	TotalSynced  int              `json:"totalSynced"`
	TotalSkipped int              `json:"totalSkipped"`
	Failed       int              `json:"failed"`
}

// SyncUsers backfills the month for each user. A failure for one user is
// recorded in its result and does not stop the others.
func (s *Service) SyncUsers(ctx context.Context, userIDs []string, year int, month time.Month, today calendar.Day) (*BatchSyncResult, error) {
	if len(userIDs) == 0 {
		return nil, invalid("userIds", "at least one user is required")
	}
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	batch := &BatchSyncResult{Results: make([]UserSyncResult, 0, len(userIDs)), TotalUsers: len(userIDs)}
	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.Sync(ctx, id, year, month, today)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, ErrNotFound) {
				msg = "User not found"
			}
			s.logger.Warn("sync failed", "user", id, "err", err)
			batch.Results = append(batch.Results, UserSyncResult{UserID: id, Error: msg})
			batch.Failed++
			continue
		}
		batch.Results = append(batch.Results, UserSyncResult{
			UserID:      res.UserID,
			UserEmail:   res.UserEmail,
			Synced:      res.Synced(),
			Skipped:     res.Skipped(),
			SyncedDates: res.SyncedDates,
		})
		batch.TotalSynced += res.Synced()
		batch.TotalSkipped += res.Skipped()
	}
	return batch, nil
}

// SyncAll backfills the month for every known user.
func (s *Service) SyncAll(ctx context.Context, year int, month time.Month, today calendar.Day) (*BatchSyncResult, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return s.SyncUsers(ctx, ids, year, month, today)
}

// =============================================================================
// AUTO-MARK
// =============================================================================

// AutoMarkToday writes today's default status if today is a weekday and the
// user has not marked it. The boolean reports whether a record was written.
func (s *Service) AutoMarkToday(ctx context.Context, userID string, today calendar.Day) (*Record, bool, error) {
	if today.IsWeekend() {
		return nil, false, nil
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	rec := Record{
		UserID:    u.ID,
		UserEmail: u.Email,
		Date:      today.Noon(),
		Status:    u.DefaultStatusFor(today),
		Notes:     NoteAutoMarked,
	}
	written, err := s.store.InsertIfAbsent(ctx, rec)
	if err != nil {
		return nil, false, fmt.Errorf("auto-mark %s for %s: %w", today, userID, err)
	}
	if !written {
		return nil, false, nil
	}
	stored, err := s.store.FindOne(ctx, ForUser(u.ID).On(today))
	if err != nil {
		return nil, true, fmt.Errorf("reload auto-marked %s: %w", today, err)
	}
	return stored, true, nil
}

// =============================================================================
// LEGACY MIGRATION
// =============================================================================

// MigrateLegacy decodes the notes of leave records that have no structured
// annotation and stores the result. It returns the number of records updated
// and can be run repeatedly.
func (s *Service) MigrateLegacy(ctx context.Context) (int, error) {
	records, err := s.store.Find(ctx, Filter{Statuses: LeaveStatuses})
	if err != nil {
		return 0, fmt.Errorf("find leave records: %w", err)
	}
	migrated := 0
	for _, r := range records {
		if r.Leave != nil {
			continue
		}
		a := r.Annotation()
		if _, err := s.store.Update(ctx, r.ID, RecordUpdate{Leave: &a}); err != nil {
			return migrated, fmt.Errorf("migrate record %s: %w", r.ID, err)
		}
		migrated++
	}
	s.logger.Info("migrated legacy leave records", "count", migrated)
	return migrated, nil
}
