package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/attendance/calendar"
)

// MarkRequest sets a user's status for one day.
type MarkRequest struct {
	UserID string
	Day    calendar.Day
	Status Status
	Notes  string
}

// Mark creates or replaces the record of a day. Any status may be replaced
// by any other; leave statuses get their annotation decoded from the notes.
func (s *Service) Mark(ctx context.Context, req MarkRequest) (*Record, error) {
	if !req.Status.Valid() {
		return nil, invalid("status", "unknown status %q", req.Status)
	}
	if req.Day.IsZero() {
		return nil, invalid("date", "is required")
	}
	u, err := s.user(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	notes := strings.TrimSpace(req.Notes)
	var leave *Annotation
	if req.Status.IsLeave() {
		a := Record{Status: req.Status, Notes: notes}.Annotation()
		leave = &a
	}

	existing, err := s.store.FindOne(ctx, ForUser(u.ID).On(req.Day))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", req.Day, err)
	}
	if existing == nil {
		rec, err := s.store.Insert(ctx, Record{
			UserID:    u.ID,
			UserEmail: u.Email,
			Date:      req.Day.Noon(),
			Status:    req.Status,
			Notes:     notes,
			Leave:     leave,
		})
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrDuplicateDay) {
			return nil, fmt.Errorf("insert %s: %w", req.Day, err)
		}
		// Written concurrently; fall through to update it.
		if existing, err = s.store.FindOne(ctx, ForUser(u.ID).On(req.Day)); err != nil || existing == nil {
			return nil, fmt.Errorf("reload %s: %w", req.Day, errors.Join(ErrDuplicateDay, err))
		}
	}

	return s.store.Update(ctx, existing.ID, RecordUpdate{
		Status:     &req.Status,
		Notes:      &notes,
		Leave:      leave,
		ClearLeave: leave == nil,
	})
}

// Today returns the user's record for today, or nil if unmarked.
func (s *Service) Today(ctx context.Context, userID string, today calendar.Day) (*Record, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	rec, err := s.store.FindOne(ctx, ForUser(userID).On(today))
	if err != nil {
		return nil, fmt.Errorf("find today for %s: %w", userID, err)
	}
	return rec, nil
}
