package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/calendar"
	"github.com/warp/attendance/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(year int, month time.Month, d int) calendar.Day {
	return calendar.NewDay(year, month, d)
}

func newService(t *testing.T) (*attendance.Service, *memory.TxMemory) {
	t.Helper()
	store := memory.NewTxMemory()
	return attendance.NewService(store, nil), store
}

func seedUser(t *testing.T, store attendance.Store, u attendance.User) *attendance.User {
	t.Helper()
	saved, err := store.SaveUser(context.Background(), u)
	require.NoError(t, err)
	return saved
}

func seedRecord(t *testing.T, store attendance.Store, userID string, d calendar.Day, status attendance.Status, notes string) *attendance.Record {
	t.Helper()
	rec, err := store.Insert(context.Background(), attendance.Record{
		UserID: userID,
		Date:   d.Noon(),
		Status: status,
		Notes:  notes,
	})
	require.NoError(t, err)
	return rec
}

func quota(planned, unplanned, parental int) *attendance.LeaveQuota {
	return &attendance.LeaveQuota{Planned: planned, Unplanned: unplanned, Parental: parental}
}

func recordsOf(t *testing.T, store attendance.Store, userID string, span calendar.Span) []attendance.Record {
	t.Helper()
	records, err := store.Find(context.Background(), attendance.ForUser(userID).In(span))
	require.NoError(t, err)
	return records
}
