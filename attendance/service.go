/*
service.go - Attendance engine entry point

PURPOSE:
  Service bundles the operations of the engine over a Store:

    Quota ledger     quota.go    YearlyQuota
    Backfill         sync.go     Sync, SyncUsers, AutoMarkToday, MigrateLegacy
    Leave requests   request.go  RequestLeave, EditLeave, DeleteLeave
    Daily marking    mark.go     Mark, Today
    Settings         settings.go GetSettings, UpdateSettings
    Reports          report.go   MonthlyStats, MonthlyReport, YearlyLeaveReport,
                                 UserMetrics, TodayOverview

  Operations that depend on the current day take it as an argument. The
  service never reads the wall clock.

SEE ALSO:
  - store.go: Persistence contract
  - api/handlers.go: HTTP surface
*/
package attendance

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/warp/attendance/calendar"
)

// Notes written by the engine on records it creates itself.
const (
	NoteSynced     = "Synced"
	NoteAutoMarked = "Auto-marked"
)

// Service implements the attendance operations.
type Service struct {
	store  Store
	logger *log.Logger
}

// NewService creates a service. A nil logger discards output.
func NewService(store Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{store: store, logger: logger.WithPrefix("attendance")}
}

// Store returns the underlying store.
func (s *Service) Store() Store { return s.store }

func (s *Service) user(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return u, nil
}

func validateYear(year int) error {
	if year < 1970 || year > 9999 {
		return invalid("year", "must be between 1970 and 9999, got %d", year)
	}
	return nil
}

func validateMonth(year int, month time.Month) error {
	if err := validateYear(year); err != nil {
		return err
	}
	if month < time.January || month > time.December {
		return invalid("month", "must be between 1 and 12, got %d", month)
	}
	return nil
}

func (s *Service) recordsIn(ctx context.Context, userID string, span calendar.Span, statuses ...Status) ([]Record, error) {
	records, err := s.store.Find(ctx, ForUser(userID).In(span).WithStatuses(statuses...))
	if err != nil {
		return nil, fmt.Errorf("find records for %s: %w", userID, err)
	}
	return records, nil
}

func ptr[T any](v T) *T { return &v }
