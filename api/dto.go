/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON bodies the API accepts and the envelopes it returns.
  Domain types from the attendance package are returned directly where
  their JSON shape already is the wire contract.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Request bodies carry validator tags and are checked by decodeAndValidate
  before reaching the service. Field names in errors are the JSON names.

SEE ALSO:
  - handlers.go: Uses these types
  - attendance/*.go: Domain types returned as-is
*/
package api

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/calendar"
)

// =============================================================================
// REQUESTS
// =============================================================================

// MarkRequest marks one day.
type MarkRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=500"`
}

// LeaveRequestRequest asks for leave over a date range.
type LeaveRequestRequest struct {
	LeaveType string `json:"leaveType" validate:"required,oneof=planned-leave unplanned-leave parental-leave"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Notes     string `json:"notes" validate:"max=500"`
}

// EditLeaveRequest moves or re-annotates one leave day.
type EditLeaveRequest struct {
	OriginalDate string  `json:"originalDate" validate:"required,datetime=2006-01-02"`
	NewDate      string  `json:"newDate" validate:"omitempty,datetime=2006-01-02"`
	LeaveType    string  `json:"leaveType" validate:"omitempty,oneof=planned-leave unplanned-leave parental-leave unpaid-leave"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`
}

// SyncRequest backfills a month for the caller.
type SyncRequest struct {
	Year  int `json:"year" validate:"required,min=1970,max=9999"`
	Month int `json:"month" validate:"required,min=1,max=12"`
}

// AdminSyncRequest backfills a month for several users.
type AdminSyncRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,dive,required"`
	Year    int      `json:"year" validate:"required,min=1970,max=9999"`
	Month   int      `json:"month" validate:"required,min=1,max=12"`
}

// QuotaRequest is the leave quota part of a settings update.
type QuotaRequest struct {
	Planned       int `json:"planned" validate:"min=0"`
	Unplanned     int `json:"unplanned" validate:"min=0"`
	ParentalLeave int `json:"parentalLeave" validate:"min=0"`
}

// SettingsRequest replaces the caller's settings.
type SettingsRequest struct {
	LeaveQuota              *QuotaRequest `json:"leaveQuota" validate:"required"`
	DefaultWorkFromHomeDays []string      `json:"defaultWorkFromHomeDays" validate:"max=7"`
}

// LoadScenarioRequest loads a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId" validate:"required"`
	// Reset wipes every record and user before loading.
	Reset bool `json:"reset"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string        `json:"error"`
	Details   string        `json:"details,omitempty"`
	Fields    []*FieldError `json:"fields,omitempty"`
	Conflicts []string      `json:"conflicts,omitempty"`
	Written   []string      `json:"written,omitempty"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// MessageResponse acknowledges a write.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LeaveRequestResponse reports how a leave request was split.
type LeaveRequestResponse struct {
	Success    bool                  `json:"success"`
	PaidDays   int                   `json:"paidDays"`
	UnpaidDays int                   `json:"unpaidDays"`
	DaysCount  int                   `json:"daysCount"`
	Days       []attendance.LeaveDay `json:"days"`
	Message    string                `json:"message"`
}

// EditLeaveResponse returns the updated record.
type EditLeaveResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Record  *attendance.Record `json:"record"`
}

// SyncResponse reports a single-user backfill.
type SyncResponse struct {
	Success      bool           `json:"success"`
	Synced       int            `json:"synced"`
	Skipped      int            `json:"skipped"`
	SyncedDates  []calendar.Day `json:"syncedDates"`
	SkippedDates []calendar.Day `json:"skippedDates"`
	Message      string         `json:"message"`
}

// AdminSyncResponse reports a multi-user backfill.
type AdminSyncResponse struct {
	Success bool                        `json:"success"`
	Summary AdminSyncSummary            `json:"summary"`
	Results []attendance.UserSyncResult `json:"results"`
}

// AdminSyncSummary totals an admin sync.
type AdminSyncSummary struct {
	TotalUsers   int `json:"totalUsers"`
	TotalSynced  int `json:"totalSynced"`
	TotalSkipped int `json:"totalSkipped"`
	Failed       int `json:"failed"`
}

// UserDTO is a user as listed to admins.
type UserDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Image       string `json:"image,omitempty"`
	IsAdminUser bool   `json:"isAdminUser"`
}

// UsersResponse wraps the user list.
type UsersResponse struct {
	Users []UserDTO `json:"users"`
}

// AdminCheckResponse tells the caller whether they are an admin.
type AdminCheckResponse struct {
	IsAdmin bool `json:"isAdmin"`
}

// SettingsResponse acknowledges a settings update.
type SettingsResponse struct {
	Success  bool                     `json:"success"`
	Message  string                   `json:"message"`
	Settings *attendance.SettingsView `json:"settings"`
}

func toUserDTO(u attendance.User) UserDTO {
	return UserDTO{ID: u.ID, Email: u.Email, Name: u.Name, Image: u.Image, IsAdminUser: u.IsAdmin}
}

func dayStrings(days []calendar.Day) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.String()
	}
	return out
}

// =============================================================================
// VALIDATION
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct returns one FieldError per failed rule, or nil.
func validateStruct(s any) []*FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []*FieldError{{Message: err.Error()}}
	}
	out := make([]*FieldError, 0, len(verrs))
	for _, fe := range verrs {
		e := &FieldError{Field: fe.Field(), Tag: fe.Tag()}
		switch fe.Tag() {
		case "required":
			e.Message = fmt.Sprintf("%s is required", e.Field)
		case "min":
			e.Message = fmt.Sprintf("%s must be at least %s", e.Field, fe.Param())
		case "max":
			e.Message = fmt.Sprintf("%s must be at most %s", e.Field, fe.Param())
		case "oneof":
			e.Message = fmt.Sprintf("%s must be one of: %s", e.Field, fe.Param())
		case "datetime":
			e.Message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", e.Field)
		default:
			e.Message = fmt.Sprintf("%s failed validation for tag %s", e.Field, fe.Tag())
		}
		out = append(out, e)
	}
	return out
}
