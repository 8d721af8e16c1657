/*
handlers_test.go - HTTP tests for the API

Routes are exercised through the full router with an in-memory store, a
static token table and a clock fixed at Wednesday 2025-01-15.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/auth"
	"github.com/warp/attendance/calendar"
	"github.com/warp/attendance/store/memory"
)

const (
	aliceToken = "alice-token"
	bossToken  = "boss-token"
	ghostToken = "ghost-token"
	apiKey     = "sync-key"
)

type fixture struct {
	t      *testing.T
	router http.Handler
	store  *memory.TxMemory
	alice  *attendance.User
	boss   *attendance.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewTxMemory()
	svc := attendance.NewService(store, nil)

	alice, err := store.SaveUser(ctx, attendance.User{
		Name:  "Alice",
		Email: "alice@example.com",
		Settings: attendance.Settings{
			LeaveQuota:              &attendance.LeaveQuota{Planned: 2, Unplanned: 10},
			DefaultWorkFromHomeDays: []string{"Thursday", "Friday"},
		},
	})
	require.NoError(t, err)
	boss, err := store.SaveUser(ctx, attendance.User{Name: "Boss", Email: "boss@example.com", IsAdmin: true})
	require.NoError(t, err)

	tokens := auth.Static{
		aliceToken: {UserID: alice.ID, Email: alice.Email},
		bossToken:  {UserID: boss.ID, Email: boss.Email},
		ghostToken: {UserID: "ghost", Email: "ghost@example.com"},
	}
	clock := calendar.FixedClock{At: time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)}
	h := NewHandler(svc, auth.StoreAdmin{Users: store}, clock, nil)
	router := NewRouter(h, RouterConfig{
		Authenticator:  tokens,
		AdminAPIKey:    apiKey,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return &fixture{t: t, router: router, store: store, alice: alice, boss: boss}
}

func (f *fixture) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuth_RequiresBearerToken(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/attendance/today", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/attendance/today", "wrong", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/user/settings", "", nil).Code)
	assert.Equal(t, http.StatusOK, f.do("GET", "/api/health", "", nil).Code)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestMark_AndToday(t *testing.T) {
	f := newFixture(t)

	// GIVEN: nothing marked; THEN: today is null
	rec := f.do("GET", "/api/attendance/today", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))

	// WHEN: marking today present
	rec = f.do("POST", "/api/attendance/mark", aliceToken, MarkRequest{Date: "2025-01-15", Status: "present"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	marked := decode[attendance.Record](t, rec)
	assert.Equal(t, attendance.StatusPresent, marked.Status)
	assert.Equal(t, "alice@example.com", marked.UserEmail)

	// THEN: today returns it
	today := decode[attendance.Record](t, f.do("GET", "/api/attendance/today", aliceToken, nil))
	assert.Equal(t, marked.ID, today.ID)
}

func TestMark_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do("POST", "/api/attendance/mark", aliceToken, map[string]string{"date": "2025-01-15"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	require.Len(t, body.Fields, 1)
	assert.Equal(t, "status", body.Fields[0].Field)

	rec = f.do("POST", "/api/attendance/mark", aliceToken, MarkRequest{Date: "15/01/2025", Status: "present"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("POST", "/api/attendance/mark", aliceToken, MarkRequest{Date: "2025-01-15", Status: "holiday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("POST", "/api/attendance/mark", ghostToken, MarkRequest{Date: "2025-01-15", Status: "present"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaveRequest_SplitAndConflict(t *testing.T) {
	f := newFixture(t)

	// GIVEN: 2 planned days of quota; WHEN: requesting Mon 3 to Thu 6 March
	rec := f.do("POST", "/api/attendance/leave-request", aliceToken, LeaveRequestRequest{
		LeaveType: "planned-leave",
		StartDate: "2025-03-03",
		EndDate:   "2025-03-06",
		Notes:     "trip",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[LeaveRequestResponse](t, rec)
	assert.Equal(t, 2, res.PaidDays)
	assert.Equal(t, 2, res.UnpaidDays)
	assert.Equal(t, 4, res.DaysCount)

	// WHEN: overlapping request; THEN: 409 with the conflicting dates
	rec = f.do("POST", "/api/attendance/leave-request", aliceToken, LeaveRequestRequest{
		LeaveType: "unplanned-leave",
		StartDate: "2025-03-05",
		EndDate:   "2025-03-07",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[ErrorResponse](t, rec)
	assert.Equal(t, []string{"2025-03-05", "2025-03-06"}, conflict.Conflicts)

	rec = f.do("POST", "/api/attendance/leave-request", aliceToken, LeaveRequestRequest{
		LeaveType: "unpaid-leave",
		StartDate: "2025-03-10",
		EndDate:   "2025-03-10",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("POST", "/api/attendance/leave-request", aliceToken, LeaveRequestRequest{
		LeaveType: "planned-leave",
		StartDate: "2025-03-10",
		EndDate:   "2025-03-07",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeave_EditAndDelete(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do("POST", "/api/attendance/leave-request", aliceToken, LeaveRequestRequest{
		LeaveType: "planned-leave", StartDate: "2025-03-03", EndDate: "2025-03-03", Notes: "dentist",
	}).Code)

	rec := f.do("PUT", "/api/attendance/leave", aliceToken, EditLeaveRequest{
		OriginalDate: "2025-03-03",
		NewDate:      "2025-03-04",
		LeaveType:    "unplanned-leave",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[EditLeaveResponse](t, rec)
	assert.Equal(t, "Unplanned Leave - dentist", edited.Record.Notes)
	assert.Equal(t, calendar.NewDay(2025, time.March, 4), edited.Record.Day())

	rec = f.do("PUT", "/api/attendance/leave", aliceToken, EditLeaveRequest{OriginalDate: "2025-03-03"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusBadRequest, f.do("DELETE", "/api/attendance/leave", aliceToken, nil).Code)
	assert.Equal(t, http.StatusOK, f.do("DELETE", "/api/attendance/leave?date=2025-03-04", aliceToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do("DELETE", "/api/attendance/leave?date=2025-03-04", aliceToken, nil).Code)
}

func TestStats_AutoMarksToday(t *testing.T) {
	f := newFixture(t)

	rec := f.do("GET", "/api/attendance/stats?year=2025&month=1", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[attendance.MonthlyStats](t, rec)
	assert.Equal(t, 23, stats.Weekdays)
	assert.Equal(t, 1, stats.WorkFromOffice, "Wednesday is an office day")
	require.NotNil(t, stats.TodayStatus)
	assert.Equal(t, attendance.StatusPresent, *stats.TodayStatus)

	today := decode[attendance.Record](t, f.do("GET", "/api/attendance/today", aliceToken, nil))
	assert.Equal(t, attendance.NoteAutoMarked, today.Notes)

	assert.Equal(t, http.StatusBadRequest, f.do("GET", "/api/attendance/stats?month=jan", aliceToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do("GET", "/api/attendance/stats?month=13", aliceToken, nil).Code)
}

func TestSync_Idempotent(t *testing.T) {
	f := newFixture(t)

	rec := f.do("POST", "/api/attendance/sync", aliceToken, SyncRequest{Year: 2025, Month: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[SyncResponse](t, rec)
	assert.Equal(t, 10, first.Synced)
	assert.Equal(t, calendar.NewDay(2025, time.January, 1), first.SyncedDates[0])

	second := decode[SyncResponse](t, f.do("POST", "/api/attendance/sync", aliceToken, SyncRequest{Year: 2025, Month: 1}))
	assert.Equal(t, 0, second.Synced)
	assert.Equal(t, 10, second.Skipped)

	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/api/attendance/sync", aliceToken, SyncRequest{Year: 2025}).Code)
}

func TestReports(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do("POST", "/api/attendance/mark", aliceToken,
		MarkRequest{Date: "2025-01-03", Status: "absent", Notes: "Planned Leave - ski"}).Code)

	snap := decode[attendance.QuotaSnapshot](t, f.do("GET", "/api/attendance/leaves?year=2025", aliceToken, nil))
	assert.Equal(t, attendance.CategoryQuota{Used: 1, Quota: 2, Remaining: 1}, snap.Planned)

	monthly := decode[attendance.MonthlyReport](t, f.do("GET", "/api/attendance/monthly-report?year=2025&month=1", aliceToken, nil))
	assert.Len(t, monthly.Records, 23)
	assert.Equal(t, 1, monthly.Summary.Leaves)

	yearly := decode[attendance.YearlyLeaveReport](t, f.do("GET", "/api/attendance/yearly-leaves-report?year=2025", aliceToken, nil))
	require.Len(t, yearly.Leaves, 1)
	assert.Equal(t, "ski", yearly.Leaves[0].Text)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings(t *testing.T) {
	f := newFixture(t)

	view := decode[attendance.SettingsView](t, f.do("GET", "/api/user/settings", aliceToken, nil))
	assert.Equal(t, 2, view.LeaveQuota.Planned)

	rec := f.do("POST", "/api/user/settings", aliceToken, SettingsRequest{
		LeaveQuota:              &QuotaRequest{Planned: 20, Unplanned: 5, ParentalLeave: 0},
		DefaultWorkFromHomeDays: []string{"Monday"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[SettingsResponse](t, rec)
	assert.Equal(t, 20, updated.Settings.LeaveQuota.Planned)
	assert.True(t, updated.Settings.OnboardingCompleted)

	rec = f.do("POST", "/api/user/settings", aliceToken, SettingsRequest{
		LeaveQuota:              &QuotaRequest{},
		DefaultWorkFromHomeDays: []string{"Caturday"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("POST", "/api/user/settings", aliceToken, SettingsRequest{LeaveQuota: &QuotaRequest{Planned: -1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/api/user/settings", aliceToken, map[string]any{}).Code)
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/api/user/settings", ghostToken, nil).Code)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAdmin_Access(t *testing.T) {
	f := newFixture(t)

	assert.False(t, decode[AdminCheckResponse](t, f.do("GET", "/api/admin/check", aliceToken, nil)).IsAdmin)
	assert.True(t, decode[AdminCheckResponse](t, f.do("GET", "/api/admin/check", bossToken, nil)).IsAdmin)

	assert.Equal(t, http.StatusForbidden, f.do("GET", "/api/admin/users", aliceToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/admin/users", "", nil).Code)

	users := decode[UsersResponse](t, f.do("GET", "/api/admin/users", bossToken, nil))
	require.Len(t, users.Users, 2)
	assert.Equal(t, "Alice", users.Users[0].Name)
}

func TestAdmin_Reports(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do("POST", "/api/attendance/mark", aliceToken,
		MarkRequest{Date: "2025-01-15", Status: "wfh"}).Code)

	overview := decode[attendance.TodayOverview](t, f.do("GET", "/api/admin/today", bossToken, nil))
	assert.Equal(t, attendance.TodaySummary{Total: 2, WFH: 1, Unmarked: 1}, overview.Summary)

	assert.Equal(t, http.StatusBadRequest, f.do("GET", "/api/admin/user-metrics", bossToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/api/admin/user-metrics?userId=ghost", bossToken, nil).Code)

	rec := f.do("GET", "/api/admin/user-metrics?year=2025&userId="+f.alice.ID, bossToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	metrics := decode[attendance.UserMetrics](t, rec)
	assert.Equal(t, 1, metrics.YearlyStats.WFH)

	assert.Equal(t, http.StatusNotFound, f.do("GET", "/api/admin/leave-report?userId=ghost", bossToken, nil).Code)
	assert.Equal(t, http.StatusOK, f.do("GET", "/api/admin/leave-report?userId="+f.alice.ID, bossToken, nil).Code)

	work := decode[attendance.MonthlyReport](t, f.do("GET", "/api/admin/work-report?year=2025&month=1&userId="+f.alice.ID, bossToken, nil))
	assert.Equal(t, 1, work.Summary.WorkFromHome)
}

func TestAdmin_Sync(t *testing.T) {
	f := newFixture(t)
	body := AdminSyncRequest{UserIDs: []string{f.alice.ID, "ghost"}, Year: 2025, Month: 1}

	// No credentials, wrong key, non-admin session
	assert.Equal(t, http.StatusUnauthorized, f.do("POST", "/api/admin/sync", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do("POST", "/api/admin/sync", "", body, APIKeyHeader, "nope").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do("POST", "/api/admin/sync", aliceToken, body).Code)

	// API key
	rec := f.do("POST", "/api/admin/sync", "", body, APIKeyHeader, apiKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[AdminSyncResponse](t, rec)
	assert.Equal(t, AdminSyncSummary{TotalUsers: 2, TotalSynced: 10, TotalSkipped: 0, Failed: 1}, res.Summary)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "User not found", res.Results[1].Error)

	// Admin session, second run skips everything
	res = decode[AdminSyncResponse](t, f.do("POST", "/api/admin/sync", bossToken, body))
	assert.Equal(t, 0, res.Summary.TotalSynced)
	assert.Equal(t, 10, res.Summary.TotalSkipped)

	rec = f.do("POST", "/api/admin/sync", bossToken, AdminSyncRequest{Year: 2025, Month: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Scenarios(t *testing.T) {
	f := newFixture(t)

	list := decode[[]map[string]any](t, f.do("GET", "/api/admin/scenarios", bossToken, nil))
	assert.Len(t, list, 4)

	assert.Equal(t, http.StatusNotFound, f.do("POST", "/api/admin/scenarios/load", bossToken, LoadScenarioRequest{ScenarioID: "nope"}).Code)
	assert.Equal(t, http.StatusOK, f.do("POST", "/api/admin/scenarios/load", bossToken, LoadScenarioRequest{ScenarioID: "office-team"}).Code)

	users := decode[UsersResponse](t, f.do("GET", "/api/admin/users", bossToken, nil))
	assert.Len(t, users.Users, 5)

	// WHEN: loading again with reset
	rec := f.do("POST", "/api/admin/scenarios/load", bossToken, LoadScenarioRequest{ScenarioID: "office-team", Reset: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: only the scenario's own users remain
	left, err := f.store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, left, 3)
}

// unreachableStore is a store whose connection check always fails.
type unreachableStore struct {
	*memory.TxMemory
}

func (unreachableStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth_PingsStore(t *testing.T) {
	store := unreachableStore{TxMemory: memory.NewTxMemory()}
	h := NewHandler(attendance.NewService(store, nil), auth.StoreAdmin{Users: store}, nil, nil)
	router := NewRouter(h, RouterConfig{Authenticator: auth.Static{}})

	// GIVEN: a store that cannot be reached; WHEN: checking health
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))

	// THEN: the service reports itself unavailable
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode[map[string]string](t, rec)["status"])
}

func TestWriteServiceError(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil)
	cases := []struct {
		err  error
		code int
	}{
		{&attendance.ValidationError{Field: "date", Message: "bad"}, http.StatusBadRequest},
		{&attendance.NotFoundError{Resource: "user", Key: "u"}, http.StatusNotFound},
		{&attendance.ConflictError{Message: "taken"}, http.StatusConflict},
		{&attendance.PartialWriteError{Written: []calendar.Day{calendar.NewDay(2025, time.March, 3)}, Err: assert.AnError}, http.StatusInternalServerError},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.writeServiceError(rec, tc.err, "failed")
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}

	rec := httptest.NewRecorder()
	h.writeServiceError(rec, &attendance.PartialWriteError{Written: []calendar.Day{calendar.NewDay(2025, time.March, 3)}, Err: assert.AnError}, "failed")
	assert.Equal(t, []string{"2025-03-03"}, decode[ErrorResponse](t, rec).Written)
}
