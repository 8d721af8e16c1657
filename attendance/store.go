/*
store.go - Persistence interface for attendance records and users

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use MongoDB, SQLite, or in-memory storage.

KEY INTERFACES:
  RecordStore:  Attendance records, one per user per day
  UserStore:    Users and their settings
  Store:        Both of the above
  TxStore:      Store that can run a function atomically
  Pinger:       Store with a connection that can be checked
  Resetter:     Store that can drop all of its data

ONE RECORD PER DAY:
  Every implementation rejects a second record for the same user and UTC
  calendar day with ErrDuplicateDay. InsertIfAbsent is the race-free way to
  write a day only when it is still unset.

DAY SPANS:
  Filters select by instant range. Callers always pass whole-day spans
  built by the calendar package, so records stored at any hour of a day
  are found.

IMPLEMENTATIONS:
  - store/mongo:  Production MongoDB
  - store/sqlite: Embedded SQLite
  - store/memory: In-memory for testing

SEE ALSO:
  - errors.go: ErrDuplicateDay, NotFoundError
  - service.go: Uses Store
*/
package attendance

import (
	"context"

	"github.com/warp/attendance/calendar"
)

// Filter selects records. Zero-valued fields do not filter.
type Filter struct {
	UserID   string
	Span     *calendar.Span
	Statuses []Status
}

// ForUser starts a filter for one user.
func ForUser(userID string) Filter { return Filter{UserID: userID} }

// In restricts the filter to a span.
func (f Filter) In(span calendar.Span) Filter {
	f.Span = &span
	return f
}

// On restricts the filter to one calendar day.
func (f Filter) On(d calendar.Day) Filter { return f.In(d.Span()) }

// WithStatuses restricts the filter to the given statuses.
func (f Filter) WithStatuses(statuses ...Status) Filter {
	f.Statuses = statuses
	return f
}

// Matches reports whether a record satisfies the filter. Store
// implementations without a query language use it directly.
func (f Filter) Matches(r Record) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Span != nil && !f.Span.Contains(r.Date) {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if r.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

// RecordStore persists attendance records.
type RecordStore interface {
	// Find returns matching records ordered by Date ascending.
	Find(ctx context.Context, f Filter) ([]Record, error)

	// FindOne returns the first matching record, or nil if there is none.
	FindOne(ctx context.Context, f Filter) (*Record, error)

	// Insert stores a new record and returns it with ID and timestamps set.
	// Returns ErrDuplicateDay if the user already has a record that day.
	Insert(ctx context.Context, r Record) (*Record, error)

	// InsertIfAbsent stores the record only if the user's day is unset.
	// The boolean reports whether it was written.
	InsertIfAbsent(ctx context.Context, r Record) (bool, error)

	// Update changes an existing record. Returns NotFoundError if missing and
	// ErrDuplicateDay if a date change collides with another record.
	Update(ctx context.Context, id string, u RecordUpdate) (*Record, error)

	// Delete removes a record. Returns NotFoundError if missing.
	Delete(ctx context.Context, id string) error
}

// UserStore persists users.
type UserStore interface {
	// GetUser returns NotFoundError if the user does not exist.
	GetUser(ctx context.Context, id string) (*User, error)

	// FindUserByEmail returns NotFoundError if no user has the email.
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers returns all users ordered by name.
	ListUsers(ctx context.Context) ([]User, error)

	// SaveUser creates or replaces a user. An empty ID is assigned.
	SaveUser(ctx context.Context, u User) (*User, error)

	// UpdateSettings replaces a user's settings.
	UpdateSettings(ctx context.Context, id string, s Settings) (*User, error)
}

// Store is the full persistence contract.
type Store interface {
	RecordStore
	UserStore
}

// TxStore runs fn atomically: if fn returns an error nothing it wrote is kept.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// Pinger is implemented by stores that hold a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Resetter is implemented by stores that can delete all records and users.
type Resetter interface {
	Reset(ctx context.Context) error
}
