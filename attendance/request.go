/*
request.go - Multi-day leave requests

PURPOSE:
  A leave request covers a date range in one category. Only weekdays are
  written. Days are paid while the category's remaining quota lasts and
  unpaid after that:

    quota remaining 2, request Mon..Thu
      Mon  paid
      Tue  paid
      Wed  unpaid
      Thu  unpaid

  The remaining quota is read for the year the request starts in, and the
  whole request is charged against it even if it crosses into the next
  year.

CONFLICTS:
  If any requested weekday already holds leave, the request is rejected
  with ConflictError listing those days and nothing is written. A day that
  holds a present/wfh record is converted to leave in place.

ATOMICITY:
  The writes are collected into a LeavePlan first. On a TxStore the plan
  is applied in one transaction; on other stores it is applied in order
  and a failure part way returns PartialWriteError naming the days already
  written.

SEE ALSO:
  - quota.go: Remaining quota
  - leave.go: Note encoding
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/attendance/calendar"
)

// LeaveRequest asks for leave on every weekday from Start to End inclusive.
type LeaveRequest struct {
	UserID   string
	Start    calendar.Day
	End      calendar.Day
	Category Category
	Text     string
}

// LeaveDay is one written day of a leave request.
type LeaveDay struct {
	Date  calendar.Day `json:"date"`
	Paid  bool         `json:"paid"`
	Notes string       `json:"notes"`
}

// LeaveResult summarises a leave request.
type LeaveResult struct {
	PaidDays   int        `json:"paidDays"`
	UnpaidDays int        `json:"unpaidDays"`
	Days       []LeaveDay `json:"days"`
}

// =============================================================================
// LEAVE PLAN
// =============================================================================

// WriteOp writes one day. Exactly one of Insert or UpdateID is set.
type WriteOp struct {
	Day      calendar.Day
	Insert   *Record
	UpdateID string
	Update   RecordUpdate
}

// LeavePlan is the ordered list of writes for a leave request.
type LeavePlan struct {
	Ops []WriteOp
}

// PlanLeave assigns paid days first in chronological order and builds the
// writes. existing maps days to the record already stored on that day.
func PlanLeave(u User, days []calendar.Day, existing map[calendar.Day]Record, category Category, paid int, text string) (LeavePlan, LeaveResult) {
	plan := LeavePlan{Ops: make([]WriteOp, 0, len(days))}
	result := LeaveResult{Days: make([]LeaveDay, 0, len(days))}

	for i, d := range days {
		a := Annotation{Category: category, Paid: i < paid, Text: strings.TrimSpace(text)}
		notes := a.Notes()

		if rec, ok := existing[d]; ok {
			plan.Ops = append(plan.Ops, WriteOp{
				Day:      d,
				UpdateID: rec.ID,
				Update: RecordUpdate{
					Status: ptr(StatusAbsent),
					Notes:  ptr(notes),
					Leave:  ptr(a),
				},
			})
		} else {
			plan.Ops = append(plan.Ops, WriteOp{
				Day: d,
				Insert: &Record{
					UserID:    u.ID,
					UserEmail: u.Email,
					Date:      d.Noon(),
					Status:    StatusAbsent,
					Notes:     notes,
					Leave:     ptr(a),
				},
			})
		}

		if a.Paid {
			result.PaidDays++
		} else {
			result.UnpaidDays++
		}
		result.Days = append(result.Days, LeaveDay{Date: d, Paid: a.Paid, Notes: notes})
	}
	return plan, result
}

// ApplyTo performs the writes in order and returns the days written before
// any failure.
func (p LeavePlan) ApplyTo(ctx context.Context, store RecordStore) ([]calendar.Day, error) {
	written := make([]calendar.Day, 0, len(p.Ops))
	for _, op := range p.Ops {
		var err error
		if op.Insert != nil {
			_, err = store.Insert(ctx, *op.Insert)
		} else {
			_, err = store.Update(ctx, op.UpdateID, op.Update)
		}
		if err != nil {
			return written, fmt.Errorf("write leave on %s: %w", op.Day, err)
		}
		written = append(written, op.Day)
	}
	return written, nil
}

func (s *Service) applyPlan(ctx context.Context, plan LeavePlan) error {
	if txs, ok := s.store.(TxStore); ok {
		return txs.WithTx(ctx, func(tx Store) error {
			_, err := plan.ApplyTo(ctx, tx)
			return err
		})
	}
	written, err := plan.ApplyTo(ctx, s.store)
	if err == nil {
		return nil
	}
	if len(written) == 0 {
		return err
	}
	return &PartialWriteError{Written: written, Err: err}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// MaxLeaveDays bounds the calendar length of one leave request.
const MaxLeaveDays = 366

// RequestLeave writes a multi-day leave request.
func (s *Service) RequestLeave(ctx context.Context, req LeaveRequest) (*LeaveResult, error) {
	if !req.Category.Requestable() {
		return nil, invalid("leaveType", "must be planned, unplanned or parental")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return nil, invalid("startDate", "start and end dates are required")
	}
	if req.End.Before(req.Start) {
		return nil, invalid("endDate", "must not be before start date")
	}
	if req.End.After(req.Start.AddDays(MaxLeaveDays - 1)) {
		return nil, invalid("endDate", "range must not exceed %d days", MaxLeaveDays)
	}
	days := calendar.Weekdays(req.Start, req.End)
	if len(days) == 0 {
		return nil, invalid("startDate", "range %s..%s contains no weekdays", req.Start, req.End)
	}

	u, err := s.user(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	records, err := s.recordsIn(ctx, u.ID, calendar.DaySpan(req.Start, req.End))
	if err != nil {
		return nil, err
	}
	existing := make(map[calendar.Day]Record, len(records))
	var conflicts []calendar.Day
	for _, r := range records {
		d := r.Day()
		if d.IsWeekend() {
			continue
		}
		if r.Status.IsLeave() {
			conflicts = append(conflicts, d)
			continue
		}
		existing[d] = r
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Message: "leave already exists", Dates: conflicts}
	}

	snap, err := s.YearlyQuota(ctx, u.ID, req.Start.Year)
	if err != nil {
		return nil, err
	}
	paid := min(len(days), snap.For(req.Category).Remaining)

	plan, result := PlanLeave(*u, days, existing, req.Category, paid, req.Text)
	if err := s.applyPlan(ctx, plan); err != nil {
		if errors.Is(err, ErrDuplicateDay) && !errors.As(err, new(*PartialWriteError)) {
			return nil, &ConflictError{Message: "leave conflicts with a record written concurrently"}
		}
		return nil, err
	}

	s.logger.Info("leave requested",
		"user", u.ID, "category", req.Category,
		"from", req.Start, "to", req.End,
		"paid", result.PaidDays, "unpaid", result.UnpaidDays)
	return &result, nil
}

// EditLeaveRequest changes one leave day. Nil fields are kept.
type EditLeaveRequest struct {
	UserID       string
	OriginalDate calendar.Day
	NewDate      *calendar.Day
	// LeaveType is a wire leave type; "unpaid-leave" keeps the category and
	// clears the paid flag. Empty keeps both.
	LeaveType string
	Text      *string
}

// EditLeave moves or re-annotates a leave day. It performs no quota
// arithmetic.
func (s *Service) EditLeave(ctx context.Context, req EditLeaveRequest) (*Record, error) {
	if req.OriginalDate.IsZero() {
		return nil, invalid("originalDate", "is required")
	}
	rec, err := s.findLeave(ctx, req.UserID, req.OriginalDate)
	if err != nil {
		return nil, err
	}

	a := rec.Annotation()
	if req.LeaveType != "" {
		category, paid, err := ParseLeaveType(req.LeaveType)
		if err != nil {
			return nil, err
		}
		if category != "" {
			a.Category = category
		}
		a.Paid = paid
	}
	if req.Text != nil {
		a.Text = strings.TrimSpace(*req.Text)
	}

	update := RecordUpdate{Status: ptr(StatusAbsent), Notes: ptr(a.Notes()), Leave: ptr(a)}
	if req.NewDate != nil && !req.NewDate.Equal(req.OriginalDate) {
		taken, err := s.store.FindOne(ctx, ForUser(req.UserID).On(*req.NewDate))
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", *req.NewDate, err)
		}
		if taken != nil {
			return nil, &ConflictError{Message: "a record already exists on the new date", Dates: []calendar.Day{*req.NewDate}}
		}
		update.Date = ptr(req.NewDate.Noon())
	}

	updated, err := s.store.Update(ctx, rec.ID, update)
	if errors.Is(err, ErrDuplicateDay) && req.NewDate != nil {
		return nil, &ConflictError{Message: "a record already exists on the new date", Dates: []calendar.Day{*req.NewDate}}
	}
	if err != nil {
		return nil, fmt.Errorf("update leave %s: %w", rec.ID, err)
	}
	return updated, nil
}

// DeleteLeave removes the leave record on a day.
func (s *Service) DeleteLeave(ctx context.Context, userID string, day calendar.Day) error {
	rec, err := s.findLeave(ctx, userID, day)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, rec.ID); err != nil {
		return fmt.Errorf("delete leave %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Service) findLeave(ctx context.Context, userID string, day calendar.Day) (*Record, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	rec, err := s.store.FindOne(ctx, ForUser(userID).On(day).WithStatuses(LeaveStatuses...))
	if err != nil {
		return nil, fmt.Errorf("find leave on %s: %w", day, err)
	}
	if rec == nil {
		return nil, &NotFoundError{Resource: "leave record", Key: day.String()}
	}
	return rec, nil
}
