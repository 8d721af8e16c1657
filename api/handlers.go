/*
handlers.go - HTTP API handlers for attendance and leave

PURPOSE:
  Exposes the attendance engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to attendance.Service.

ENDPOINTS:
  Attendance (authenticated caller):
    POST   /api/attendance/mark                  Mark a day
    GET    /api/attendance/today                 Today's record or null
    GET    /api/attendance/stats                 Auto-mark today, monthly stats
    GET    /api/attendance/leaves                Yearly quota snapshot
    POST   /api/attendance/leave-request         Split and write leave
    PUT    /api/attendance/leave                 Edit one leave day
    DELETE /api/attendance/leave?date=           Delete one leave day
    POST   /api/attendance/sync                  Backfill a month
    GET    /api/attendance/monthly-report        Weekday-by-weekday report
    GET    /api/attendance/yearly-leaves-report  Leave list and quota

  Settings:
    GET    /api/user/settings
    POST   /api/user/settings

  Admin: see admin.go

TODAY:
  Handlers never read the wall clock. Today comes from the injected Clock.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid token
  - 403: Not an admin
  - 404: Resource not found
  - 409: Conflict, with the conflicting dates
  - 500: Internal errors, with written dates after a partial write

SEE ALSO:
  - dto.go: Request/response data structures
  - admin.go: Admin handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/auth"
	"github.com/warp/attendance/calendar"
	"github.com/warp/attendance/logger"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *attendance.Service
	Admin   auth.AdminChecker
	Clock   calendar.Clock
	Logger  *log.Logger
}

// NewHandler creates a handler. A nil clock means the system clock and a nil
// logger discards output.
func NewHandler(svc *attendance.Service, admin auth.AdminChecker, clock calendar.Clock, l *log.Logger) *Handler {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if l == nil {
		l = logger.Discard()
	}
	return &Handler{Service: svc, Admin: admin, Clock: clock, Logger: l}
}

func (h *Handler) today() calendar.Day { return calendar.TodayFrom(h.Clock) }

// caller is set by RequireAuth on every route that uses it.
func caller(r *http.Request) *auth.Identity { return auth.FromContext(r.Context()) }

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// Health reports liveness and, for stores with a connection, pings it.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Service.Store().(attendance.Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			h.Logger.Error("store ping failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Mark records a status for one day.
// POST /api/attendance/mark
func (h *Handler) Mark(w http.ResponseWriter, r *http.Request) {
	var req MarkRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	d, err := calendar.ParseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	rec, err := h.Service.Mark(r.Context(), attendance.MarkRequest{
		UserID: caller(r).UserID,
		Day:    d,
		Status: attendance.Status(req.Status),
		Notes:  req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, err, "Failed to mark attendance")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Today returns the caller's record for today, or null.
// GET /api/attendance/today
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.Today(r.Context(), caller(r).UserID, h.today())
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch today's attendance")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Stats auto-marks today when unmarked and returns monthly statistics.
// GET /api/attendance/stats?year=&month=
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	today := h.today()
	year, month, err := yearMonthParams(r, today)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	id := caller(r)

	if _, written, err := h.Service.AutoMarkToday(r.Context(), id.UserID, today); err != nil {
		h.Logger.Warn("auto-mark failed", "user", id.UserID, "err", err)
	} else if written {
		h.Logger.Debug("auto-marked today", "user", id.UserID, "date", today)
	}

	stats, err := h.Service.MonthlyStats(r.Context(), id.UserID, year, month, today)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch attendance stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Leaves returns the caller's quota snapshot.
// GET /api/attendance/leaves?year=
func (h *Handler) Leaves(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", h.today().Year)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	snap, err := h.Service.YearlyQuota(r.Context(), caller(r).UserID, year)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch leave stats")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RequestLeave writes leave over a date range, paid days first.
// POST /api/attendance/leave-request
func (h *Handler) RequestLeave(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequestRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	category, _, err := attendance.ParseLeaveType(req.LeaveType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	start, err := calendar.ParseDay(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date", err)
		return
	}
	end, err := calendar.ParseDay(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date", err)
		return
	}

	res, err := h.Service.RequestLeave(r.Context(), attendance.LeaveRequest{
		UserID:   caller(r).UserID,
		Start:    start,
		End:      end,
		Category: category,
		Text:     req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, err, "Failed to process leave request")
		return
	}

	n := res.PaidDays + res.UnpaidDays
	writeJSON(w, http.StatusCreated, LeaveRequestResponse{
		Success:    true,
		PaidDays:   res.PaidDays,
		UnpaidDays: res.UnpaidDays,
		DaysCount:  n,
		Days:       res.Days,
		Message:    fmt.Sprintf("Leave marked for %d day(s)", n),
	})
}

// EditLeave moves or re-annotates one leave day.
// PUT /api/attendance/leave
func (h *Handler) EditLeave(w http.ResponseWriter, r *http.Request) {
	var req EditLeaveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	original, err := calendar.ParseDay(req.OriginalDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid original date", err)
		return
	}
	edit := attendance.EditLeaveRequest{
		UserID:       caller(r).UserID,
		OriginalDate: original,
		LeaveType:    req.LeaveType,
		Text:         req.Notes,
	}
	if req.NewDate != "" {
		nd, err := calendar.ParseDay(req.NewDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid new date", err)
			return
		}
		edit.NewDate = &nd
	}

	rec, err := h.Service.EditLeave(r.Context(), edit)
	if err != nil {
		h.writeServiceError(w, err, "Failed to update leave")
		return
	}
	writeJSON(w, http.StatusOK, EditLeaveResponse{Success: true, Message: "Leave updated successfully", Record: rec})
}

// DeleteLeave removes one leave day.
// DELETE /api/attendance/leave?date=YYYY-MM-DD
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Date parameter is required", nil)
		return
	}
	d, err := calendar.ParseDay(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	if err := h.Service.DeleteLeave(r.Context(), caller(r).UserID, d); err != nil {
		h.writeServiceError(w, err, "Failed to delete leave")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Leave deleted successfully"})
}

// Sync backfills past unmarked weekdays of a month for the caller.
// POST /api/attendance/sync
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.Service.Sync(r.Context(), caller(r).UserID, req.Year, time.Month(req.Month), h.today())
	if err != nil {
		h.writeServiceError(w, err, "Failed to sync attendance")
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		Success:      true,
		Synced:       res.Synced(),
		Skipped:      res.Skipped(),
		SyncedDates:  res.SyncedDates,
		SkippedDates: res.SkippedDates,
		Message:      fmt.Sprintf("Synced %d dates, skipped %d already marked dates", res.Synced(), res.Skipped()),
	})
}

// MonthlyReport lists every weekday of a month for the caller.
// GET /api/attendance/monthly-report?year=&month=
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonthParams(r, h.today())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	report, err := h.Service.MonthlyReport(r.Context(), caller(r).UserID, year, month)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch monthly report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// YearlyLeavesReport lists the caller's leave days of a year.
// GET /api/attendance/yearly-leaves-report?year=
func (h *Handler) YearlyLeavesReport(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", h.today().Year)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	report, err := h.Service.YearlyLeaveReport(r.Context(), caller(r).UserID, year)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch yearly leave report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the caller's effective settings.
// GET /api/user/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.GetSettings(r.Context(), caller(r).UserID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch user settings")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateSettings replaces the caller's quota and WFH days.
// POST /api/user/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	quota := attendance.LeaveQuota{
		Planned:   req.LeaveQuota.Planned,
		Unplanned: req.LeaveQuota.Unplanned,
		Parental:  req.LeaveQuota.ParentalLeave,
	}
	view, err := h.Service.UpdateSettings(r.Context(), caller(r).UserID, quota, req.DefaultWorkFromHomeDays)
	if err != nil {
		h.writeServiceError(w, err, "Failed to save user settings")
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{Success: true, Message: "Settings updated successfully", Settings: view})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps service errors to status codes. message is used
// for internal errors only; client errors carry their own text.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, message string) {
	var (
		conflict *attendance.ConflictError
		partial  *attendance.PartialWriteError
	)
	switch {
	case errors.As(err, &partial):
		h.Logger.Error(message, "err", err, "written", len(partial.Written))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   message,
			Details: err.Error(),
			Written: dayStrings(partial.Written),
		})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     conflict.Message,
			Conflicts: dayStrings(conflict.Dates),
		})
	case errors.Is(err, attendance.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case attendance.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, attendance.ErrConflict):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		h.Logger.Error(message, "err", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if fields := validateStruct(dst); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fields[0].Message, Fields: fields})
		return false
	}
	return true
}

// intParam reads an integer query parameter, returning def when absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return n, nil
}

func yearMonthParams(r *http.Request, today calendar.Day) (int, time.Month, error) {
	year, err := intParam(r, "year", today.Year)
	if err != nil {
		return 0, 0, err
	}
	month, err := intParam(r, "month", int(today.Month))
	if err != nil {
		return 0, 0, err
	}
	return year, time.Month(month), nil
}
