package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/warp/attendance/scenario"
)

// AdminCheck reports whether the caller is an admin. Non-admins get false,
// not an error.
// GET /api/admin/check
func (h *Handler) AdminCheck(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Admin.IsAdmin(r.Context(), *caller(r))
	if err != nil {
		h.Logger.Warn("admin check failed", "user", caller(r).UserID, "err", err)
		ok = false
	}
	writeJSON(w, http.StatusOK, AdminCheckResponse{IsAdmin: ok})
}

// AdminUsers lists all users.
// GET /api/admin/users
func (h *Handler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.Store().ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch users")
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, UsersResponse{Users: dtos})
}

// AdminToday lists every user's status for today.
// GET /api/admin/today
func (h *Handler) AdminToday(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Service.TodayOverview(r.Context(), h.today())
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch today's attendance")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// AdminUserMetrics returns a user's yearly metrics.
// GET /api/admin/user-metrics?userId=&year=
func (h *Handler) AdminUserMetrics(w http.ResponseWriter, r *http.Request) {
	userID, year, ok := h.userYearParams(w, r)
	if !ok {
		return
	}
	m, err := h.Service.UserMetrics(r.Context(), userID, year)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch user metrics")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// AdminLeaveReport returns a user's yearly leave report.
// GET /api/admin/leave-report?userId=&year=
func (h *Handler) AdminLeaveReport(w http.ResponseWriter, r *http.Request) {
	userID, year, ok := h.userYearParams(w, r)
	if !ok {
		return
	}
	if _, err := h.Service.Store().GetUser(r.Context(), userID); err != nil {
		h.writeServiceError(w, err, "Failed to fetch leave report")
		return
	}
	report, err := h.Service.YearlyLeaveReport(r.Context(), userID, year)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch leave report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// AdminWorkReport returns a user's monthly report.
// GET /api/admin/work-report?userId=&year=&month=
func (h *Handler) AdminWorkReport(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.userYearParams(w, r)
	if !ok {
		return
	}
	year, month, err := yearMonthParams(r, h.today())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if _, err := h.Service.Store().GetUser(r.Context(), userID); err != nil {
		h.writeServiceError(w, err, "Failed to fetch work report")
		return
	}
	report, err := h.Service.MonthlyReport(r.Context(), userID, year, month)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch work report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// AdminSync backfills a month for the listed users. Failures are reported
// per user.
// POST /api/admin/sync
func (h *Handler) AdminSync(w http.ResponseWriter, r *http.Request) {
	var req AdminSyncRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.Service.SyncUsers(r.Context(), req.UserIDs, req.Year, time.Month(req.Month), h.today())
	if err != nil {
		h.writeServiceError(w, err, "Failed to sync attendance")
		return
	}
	writeJSON(w, http.StatusOK, AdminSyncResponse{
		Success: true,
		Summary: AdminSyncSummary{
			TotalUsers:   res.TotalUsers,
			TotalSynced:  res.TotalSynced,
			TotalSkipped: res.TotalSkipped,
			Failed:       res.Failed,
		},
		Results: res.Results,
	})
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ListScenarios returns the demo scenarios.
// GET /api/admin/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenario.All)
}

// LoadScenario loads a demo scenario relative to today.
// POST /api/admin/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if _, err := scenario.Lookup(req.ScenarioID); err != nil {
		writeError(w, http.StatusNotFound, err.Error(), nil)
		return
	}
	if req.Reset {
		err := scenario.Reset(r.Context(), h.Service.Store())
		if errors.Is(err, scenario.ErrResetUnsupported) {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if err != nil {
			h.writeServiceError(w, err, "Failed to reset store")
			return
		}
		h.Logger.Warn("store reset", "scenario", req.ScenarioID)
	}
	if err := scenario.Load(r.Context(), h.Service, req.ScenarioID, h.today()); err != nil {
		h.writeServiceError(w, err, "Failed to load scenario")
		return
	}
	h.Logger.Info("scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Scenario loaded: " + req.ScenarioID})
}

func (h *Handler) userYearParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required", nil)
		return "", 0, false
	}
	year, err := intParam(r, "year", h.today().Year)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return "", 0, false
	}
	return userID, year, true
}
