package scenario_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/calendar"
	"github.com/warp/attendance/scenario"
	"github.com/warp/attendance/store/memory"
)

var today = calendar.NewDay(2025, time.January, 15)

func TestLoad_AllScenariosTwice(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTxMemory()
	svc := attendance.NewService(store, nil)

	for _, s := range scenario.All {
		require.NoError(t, scenario.Load(ctx, svc, s.ID, today), s.ID)
		require.NoError(t, scenario.Load(ctx, svc, s.ID, today), "reloading %s", s.ID)
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 6)
}

func TestLoad_QuotaExhausted(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTxMemory()
	svc := attendance.NewService(store, nil)

	require.NoError(t, scenario.Load(ctx, svc, "quota-exhausted", today))

	u, err := store.FindUserByEmail(ctx, "quinn.quota@example.com")
	require.NoError(t, err)
	snap, err := svc.YearlyQuota(ctx, u.ID, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Planned.Used)
	assert.Equal(t, 2, snap.Unpaid)
}

func TestLoad_LegacyNotesMigrate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTxMemory()
	svc := attendance.NewService(store, nil)

	require.NoError(t, scenario.Load(ctx, svc, "legacy-notes", today))

	migrated, err := svc.MigrateLegacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, migrated)
}

func TestLoad_Unknown(t *testing.T) {
	svc := attendance.NewService(memory.NewTxMemory(), nil)
	err := scenario.Load(context.Background(), svc, "nope", today)
	assert.ErrorIs(t, err, scenario.ErrUnknown)
}

// plainStore hides every method beyond attendance.Store.
type plainStore struct {
	attendance.Store
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTxMemory()
	svc := attendance.NewService(store, nil)
	require.NoError(t, scenario.Load(ctx, svc, "office-team", today))

	// GIVEN: a store without reset support
	assert.ErrorIs(t, scenario.Reset(ctx, plainStore{store}), scenario.ErrResetUnsupported)

	// WHEN: resetting the memory store
	require.NoError(t, scenario.Reset(ctx, store))

	// THEN: it is empty
	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	records, err := store.Find(ctx, attendance.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLookup(t *testing.T) {
	s, err := scenario.Lookup("legacy-notes")
	require.NoError(t, err)
	assert.Equal(t, "legacy-notes", s.ID)

	_, err = scenario.Lookup("nope")
	assert.ErrorIs(t, err, scenario.ErrUnknown)
}
