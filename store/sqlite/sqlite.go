/*
Package sqlite provides a SQLite-backed implementation of attendance.Store.

PURPOSE:
  Embedded store for single-node deployments and integration tests. Implements
  attendance.TxStore, so multi-day leave is written in one transaction.

KEY TABLES:
  attendance:  One row per user per day
  users:       Users and their settings

INDEXES:
  - idx_attendance_user_day:  UNIQUE(user_id, day). Enforces one record per
                              user per calendar day. The day column holds
                              the UTC date (YYYY-MM-DD) of the record.
  - idx_attendance_user_date: Range scans by user and instant

TIMESTAMPS:
  Instants are stored as fixed-width UTC text (2006-01-02T15:04:05.000Z) so
  that string comparison orders them correctly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The connection pool is limited to one
  connection so that ":memory:" databases are shared by every query.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := attendance.NewService(store, logger)

SEE ALSO:
  - attendance/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
  - store/mongo: MongoDB implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/calendar"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// Store implements attendance.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_email TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		day TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		leave_category TEXT,
		leave_paid INTEGER,
		leave_text TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One record per user per calendar day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_user_day
		ON attendance(user_id, day);

	CREATE INDEX IF NOT EXISTS idx_attendance_user_date
		ON attendance(user_id, date);

	CREATE INDEX IF NOT EXISTS idx_attendance_date
		ON attendance(date);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		is_admin INTEGER NOT NULL DEFAULT 0,
		quota_planned INTEGER,
		quota_unplanned INTEGER,
		quota_parental INTEGER,
		wfh_days_json TEXT NOT NULL DEFAULT '[]',
		onboarding_completed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email COLLATE NOCASE);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// RECORDS (attendance.RecordStore interface)
// =============================================================================

func (s *Store) Find(ctx context.Context, f attendance.Filter) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(ctx, s.db, f)
}

func (s *Store) FindOne(ctx context.Context, f attendance.Filter) (*attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findOne(ctx, s.db, f)
}

func (s *Store) Insert(ctx context.Context, r attendance.Record) (*attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insert(ctx, s.db, r)
}

func (s *Store) InsertIfAbsent(ctx context.Context, r attendance.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertIfAbsent(ctx, s.db, r)
}

func (s *Store) Update(ctx context.Context, id string, u attendance.RecordUpdate) (*attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return update(ctx, s.db, id, u)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRecord(ctx, s.db, id)
}

const recordColumns = `id, user_id, user_email, date, status, notes,
	leave_category, leave_paid, leave_text, created_at, updated_at`

func buildWhere(f attendance.Filter) (string, []any) {
	var clauses []string
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Span != nil {
		clauses = append(clauses, "date >= ? AND date <= ?")
		args = append(args, formatTime(f.Span.Start), formatTime(f.Span.End))
	}
	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func find(ctx context.Context, q querier, f attendance.Filter) ([]attendance.Record, error) {
	where, args := buildWhere(f)
	rows, err := q.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM attendance"+where+" ORDER BY date ASC, user_id ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	records := []attendance.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func findOne(ctx context.Context, q querier, f attendance.Filter) (*attendance.Record, error) {
	where, args := buildWhere(f)
	row := q.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM attendance"+where+" ORDER BY date ASC, user_id ASC LIMIT 1", args...)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func getRecord(ctx context.Context, q querier, id string) (*attendance.Record, error) {
	row := q.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM attendance WHERE id = ?", id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &attendance.NotFoundError{Resource: "record", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const insertRecord = `
	INSERT INTO attendance (` + recordColumns + `, day)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertArgs(r *attendance.Record) []any {
	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt, r.UpdatedAt = now, now
	category, paid, text := leaveColumns(r.Leave)
	return []any{
		r.ID, r.UserID, r.UserEmail, formatTime(r.Date), string(r.Status), r.Notes,
		category, paid, text, formatTime(now), formatTime(now),
		calendar.DayOf(r.Date).String(),
	}
}

func insert(ctx context.Context, q querier, r attendance.Record) (*attendance.Record, error) {
	if _, err := q.ExecContext(ctx, insertRecord, insertArgs(&r)...); err != nil {
		if isUniqueConstraintError(err) {
			return nil, attendance.ErrDuplicateDay
		}
		return nil, fmt.Errorf("failed to insert attendance: %w", err)
	}
	r.Date = r.Date.UTC()
	return &r, nil
}

func insertIfAbsent(ctx context.Context, q querier, r attendance.Record) (bool, error) {
	res, err := q.ExecContext(ctx, insertRecord+" ON CONFLICT(user_id, day) DO NOTHING", insertArgs(&r)...)
	if err != nil {
		return false, fmt.Errorf("failed to insert attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func update(ctx context.Context, q querier, id string, u attendance.RecordUpdate) (*attendance.Record, error) {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now().UTC())}
	if u.Date != nil {
		sets = append(sets, "date = ?", "day = ?")
		args = append(args, formatTime(*u.Date), calendar.DayOf(*u.Date).String())
	}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *u.Notes)
	}
	if u.Leave != nil || u.ClearLeave {
		category, paid, text := leaveColumns(u.Leave)
		sets = append(sets, "leave_category = ?", "leave_paid = ?", "leave_text = ?")
		args = append(args, category, paid, text)
	}
	args = append(args, id)

	res, err := q.ExecContext(ctx, "UPDATE attendance SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, attendance.ErrDuplicateDay
		}
		return nil, fmt.Errorf("failed to update attendance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &attendance.NotFoundError{Resource: "record", Key: id}
	}
	return getRecord(ctx, q, id)
}

func deleteRecord(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM attendance WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete attendance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &attendance.NotFoundError{Resource: "record", Key: id}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (attendance.Record, error) {
	var r attendance.Record
	var status, date, createdAt, updatedAt string
	var category, text sql.NullString
	var paid sql.NullBool

	err := sc.Scan(&r.ID, &r.UserID, &r.UserEmail, &date, &status, &r.Notes,
		&category, &paid, &text, &createdAt, &updatedAt)
	if err != nil {
		return r, err
	}
	r.Status = attendance.Status(status)
	r.Date = parseTime(date)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	if category.Valid && attendance.Category(category.String).Valid() {
		r.Leave = &attendance.Annotation{
			Category: attendance.Category(category.String),
			Paid:     paid.Bool,
			Text:     text.String,
		}
	}
	return r, nil
}

func leaveColumns(a *attendance.Annotation) (sql.NullString, sql.NullBool, sql.NullString) {
	if a == nil {
		return sql.NullString{}, sql.NullBool{}, sql.NullString{}
	}
	return sql.NullString{String: string(a.Category), Valid: true},
		sql.NullBool{Bool: a.Paid, Valid: true},
		sql.NullString{String: a.Text, Valid: true}
}

// =============================================================================
// USERS (attendance.UserStore interface)
// =============================================================================

func (s *Store) GetUser(ctx context.Context, id string) (*attendance.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUser(ctx, s.db, "id = ?", id)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*attendance.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUser(ctx, s.db, "email = ? COLLATE NOCASE", email)
}

func (s *Store) ListUsers(ctx context.Context) ([]attendance.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listUsers(ctx, s.db)
}

func (s *Store) SaveUser(ctx context.Context, u attendance.User) (*attendance.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUser(ctx, s.db, u)
}

func (s *Store) UpdateSettings(ctx context.Context, id string, settings attendance.Settings) (*attendance.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateSettings(ctx, s.db, id, settings)
}

const userColumns = `id, email, name, image, is_admin, quota_planned, quota_unplanned,
	quota_parental, wfh_days_json, onboarding_completed`

func getUser(ctx context.Context, q querier, cond string, key string) (*attendance.User, error) {
	row := q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+cond+" LIMIT 1", key)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &attendance.NotFoundError{Resource: "user", Key: key}
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func listUsers(ctx context.Context, q querier) ([]attendance.User, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []attendance.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func saveUser(ctx context.Context, q querier, u attendance.User) (*attendance.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	planned, unplanned, parental := quotaColumns(u.Settings.LeaveQuota)
	wfh, err := json.Marshal(nonNil(u.Settings.DefaultWorkFromHomeDays))
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			image = excluded.image,
			is_admin = excluded.is_admin,
			quota_planned = excluded.quota_planned,
			quota_unplanned = excluded.quota_unplanned,
			quota_parental = excluded.quota_parental,
			wfh_days_json = excluded.wfh_days_json,
			onboarding_completed = excluded.onboarding_completed
	`
	_, err = q.ExecContext(ctx, query,
		u.ID, u.Email, u.Name, u.Image, u.IsAdmin,
		planned, unplanned, parental, string(wfh), u.Settings.OnboardingCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return &u, nil
}

func updateSettings(ctx context.Context, q querier, id string, settings attendance.Settings) (*attendance.User, error) {
	planned, unplanned, parental := quotaColumns(settings.LeaveQuota)
	wfh, err := json.Marshal(nonNil(settings.DefaultWorkFromHomeDays))
	if err != nil {
		return nil, err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE users SET quota_planned = ?, quota_unplanned = ?, quota_parental = ?,
			wfh_days_json = ?, onboarding_completed = ?
		WHERE id = ?`,
		planned, unplanned, parental, string(wfh), settings.OnboardingCompleted, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &attendance.NotFoundError{Resource: "user", Key: id}
	}
	return getUser(ctx, q, "id = ?", id)
}

func scanUser(sc scanner) (attendance.User, error) {
	var u attendance.User
	var planned, unplanned, parental sql.NullInt64
	var wfh string

	err := sc.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.IsAdmin,
		&planned, &unplanned, &parental, &wfh, &u.Settings.OnboardingCompleted)
	if err != nil {
		return u, err
	}
	if planned.Valid || unplanned.Valid || parental.Valid {
		u.Settings.LeaveQuota = &attendance.LeaveQuota{
			Planned:   int(planned.Int64),
			Unplanned: int(unplanned.Int64),
			Parental:  int(parental.Int64),
		}
	}
	if err := json.Unmarshal([]byte(wfh), &u.Settings.DefaultWorkFromHomeDays); err != nil {
		return u, fmt.Errorf("failed to decode wfh days for %s: %w", u.ID, err)
	}
	return u, nil
}

func quotaColumns(q *attendance.LeaveQuota) (sql.NullInt64, sql.NullInt64, sql.NullInt64) {
	if q == nil {
		return sql.NullInt64{}, sql.NullInt64{}, sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(q.Planned), Valid: true},
		sql.NullInt64{Int64: int64(q.Unplanned), Valid: true},
		sql.NullInt64{Int64: int64(q.Parental), Valid: true}
}

// =============================================================================
// TRANSACTIONAL STORE (attendance.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store attendance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Find(ctx context.Context, f attendance.Filter) ([]attendance.Record, error) {
	return find(ctx, ts.tx, f)
}

func (ts *txStore) FindOne(ctx context.Context, f attendance.Filter) (*attendance.Record, error) {
	return findOne(ctx, ts.tx, f)
}

func (ts *txStore) Insert(ctx context.Context, r attendance.Record) (*attendance.Record, error) {
	return insert(ctx, ts.tx, r)
}

func (ts *txStore) InsertIfAbsent(ctx context.Context, r attendance.Record) (bool, error) {
	return insertIfAbsent(ctx, ts.tx, r)
}

func (ts *txStore) Update(ctx context.Context, id string, u attendance.RecordUpdate) (*attendance.Record, error) {
	return update(ctx, ts.tx, id, u)
}

func (ts *txStore) Delete(ctx context.Context, id string) error {
	return deleteRecord(ctx, ts.tx, id)
}

func (ts *txStore) GetUser(ctx context.Context, id string) (*attendance.User, error) {
	return getUser(ctx, ts.tx, "id = ?", id)
}

func (ts *txStore) FindUserByEmail(ctx context.Context, email string) (*attendance.User, error) {
	return getUser(ctx, ts.tx, "email = ? COLLATE NOCASE", email)
}

func (ts *txStore) ListUsers(ctx context.Context) ([]attendance.User, error) {
	return listUsers(ctx, ts.tx)
}

func (ts *txStore) SaveUser(ctx context.Context, u attendance.User) (*attendance.User, error) {
	return saveUser(ctx, ts.tx, u)
}

func (ts *txStore) UpdateSettings(ctx context.Context, id string, settings attendance.Settings) (*attendance.User, error) {
	return updateSettings(ctx, ts.tx, id, settings)
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"attendance", "users"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nonNil(days []string) []string {
	if days == nil {
		return []string{}
	}
	return days
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
