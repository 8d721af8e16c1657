// Package memory provides an in-memory attendance.Store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/attendance/attendance"
	"github.com/warp/attendance/calendar"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st *state
}

type dayKey struct {
	UserID string
	Day    calendar.Day
}

type state struct {
	records map[string]attendance.Record
	days    map[dayKey]string
	users   map[string]attendance.User
}

func newState() *state {
	return &state{
		records: make(map[string]attendance.Record),
		days:    make(map[dayKey]string),
		users:   make(map[string]attendance.User),
	}
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

func (m *Memory) Find(_ context.Context, f attendance.Filter) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.find(f), nil
}

func (m *Memory) FindOne(_ context.Context, f attendance.Filter) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.findOne(f), nil
}

func (m *Memory) Insert(_ context.Context, r attendance.Record) (*attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.insert(r)
}

func (m *Memory) InsertIfAbsent(_ context.Context, r attendance.Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.insertIfAbsent(r)
}

func (m *Memory) Update(_ context.Context, id string, u attendance.RecordUpdate) (*attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.update(id, u)
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.delete(id)
}

func (m *Memory) GetUser(_ context.Context, id string) (*attendance.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.getUser(id)
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*attendance.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.findUserByEmail(email)
}

func (m *Memory) ListUsers(_ context.Context) ([]attendance.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.listUsers(), nil
}

func (m *Memory) SaveUser(_ context.Context, u attendance.User) (*attendance.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.saveUser(u), nil
}

func (m *Memory) UpdateSettings(_ context.Context, id string, s attendance.Settings) (*attendance.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateSettings(id, s)
}

// =============================================================================
// STATE - Unlocked operations shared by Memory and transaction views
// =============================================================================

func (s *state) find(f attendance.Filter) []attendance.Record {
	result := []attendance.Record{}
	for _, r := range s.records {
		if f.Matches(r) {
			result = append(result, cloneRecord(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].UserID < result[j].UserID
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

func (s *state) findOne(f attendance.Filter) *attendance.Record {
	found := s.find(f)
	if len(found) == 0 {
		return nil
	}
	return &found[0]
}

func (s *state) insert(r attendance.Record) (*attendance.Record, error) {
	k := dayKey{UserID: r.UserID, Day: calendar.DayOf(r.Date)}
	if _, taken := s.days[k]; taken {
		return nil, attendance.ErrDuplicateDay
	}
	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt, r.UpdatedAt = now, now
	s.records[r.ID] = cloneRecord(r)
	s.days[k] = r.ID
	return &r, nil
}

func (s *state) insertIfAbsent(r attendance.Record) (bool, error) {
	_, err := s.insert(r)
	if err == attendance.ErrDuplicateDay {
		return false, nil
	}
	return err == nil, err
}

func (s *state) update(id string, u attendance.RecordUpdate) (*attendance.Record, error) {
	r, ok := s.records[id]
	if !ok {
		return nil, &attendance.NotFoundError{Resource: "record", Key: id}
	}
	oldKey := dayKey{UserID: r.UserID, Day: r.Day()}
	if u.Date != nil {
		newKey := dayKey{UserID: r.UserID, Day: calendar.DayOf(*u.Date)}
		if other, taken := s.days[newKey]; taken && other != id {
			return nil, attendance.ErrDuplicateDay
		}
		delete(s.days, oldKey)
		s.days[newKey] = id
		r.Date = *u.Date
	}
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.Notes != nil {
		r.Notes = *u.Notes
	}
	if u.ClearLeave {
		r.Leave = nil
	}
	if u.Leave != nil {
		leave := *u.Leave
		r.Leave = &leave
	}
	r.UpdatedAt = time.Now().UTC()
	s.records[id] = r
	out := cloneRecord(r)
	return &out, nil
}

func (s *state) delete(id string) error {
	r, ok := s.records[id]
	if !ok {
		return &attendance.NotFoundError{Resource: "record", Key: id}
	}
	delete(s.records, id)
	delete(s.days, dayKey{UserID: r.UserID, Day: r.Day()})
	return nil
}

func (s *state) getUser(id string) (*attendance.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, &attendance.NotFoundError{Resource: "user", Key: id}
	}
	u = cloneUser(u)
	return &u, nil
}

func (s *state) findUserByEmail(email string) (*attendance.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, &attendance.NotFoundError{Resource: "user", Key: email}
}

func (s *state) listUsers() []attendance.User {
	users := make([]attendance.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name == users[j].Name {
			return users[i].ID < users[j].ID
		}
		return users[i].Name < users[j].Name
	})
	return users
}

func (s *state) saveUser(u attendance.User) *attendance.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = cloneUser(u)
	return &u
}

func (s *state) updateSettings(id string, settings attendance.Settings) (*attendance.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, &attendance.NotFoundError{Resource: "user", Key: id}
	}
	u.Settings = settings
	s.users[id] = cloneUser(u)
	u = cloneUser(u)
	return &u, nil
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.records {
		c.records[k] = cloneRecord(v)
	}
	for k, v := range s.days {
		c.days[k] = v
	}
	for k, v := range s.users {
		c.users[k] = cloneUser(v)
	}
	return c
}

func cloneRecord(r attendance.Record) attendance.Record {
	if r.Leave != nil {
		leave := *r.Leave
		r.Leave = &leave
	}
	return r
}

func cloneUser(u attendance.User) attendance.User {
	if u.Settings.LeaveQuota != nil {
		q := *u.Settings.LeaveQuota
		u.Settings.LeaveQuota = &q
	}
	u.Settings.DefaultWorkFromHomeDays = append([]string(nil), u.Settings.DefaultWorkFromHomeDays...)
	return u
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = newState()
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(attendance.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.st.clone()
	if err := fn(&txView{st: tm.st}); err != nil {
		tm.st = snapshot
		return err
	}
	return nil
}

// txView runs operations on the locked state without taking the mutex again.
type txView struct {
	st *state
}

func (v *txView) Find(_ context.Context, f attendance.Filter) ([]attendance.Record, error) {
	return v.st.find(f), nil
}

func (v *txView) FindOne(_ context.Context, f attendance.Filter) (*attendance.Record, error) {
	return v.st.findOne(f), nil
}

func (v *txView) Insert(_ context.Context, r attendance.Record) (*attendance.Record, error) {
	return v.st.insert(r)
}

func (v *txView) InsertIfAbsent(_ context.Context, r attendance.Record) (bool, error) {
	return v.st.insertIfAbsent(r)
}

func (v *txView) Update(_ context.Context, id string, u attendance.RecordUpdate) (*attendance.Record, error) {
	return v.st.update(id, u)
}

func (v *txView) Delete(_ context.Context, id string) error {
	return v.st.delete(id)
}

func (v *txView) GetUser(_ context.Context, id string) (*attendance.User, error) {
	return v.st.getUser(id)
}

func (v *txView) FindUserByEmail(_ context.Context, email string) (*attendance.User, error) {
	return v.st.findUserByEmail(email)
}

func (v *txView) ListUsers(_ context.Context) ([]attendance.User, error) {
	return v.st.listUsers(), nil
}

func (v *txView) SaveUser(_ context.Context, u attendance.User) (*attendance.User, error) {
	return v.st.saveUser(u), nil
}

func (v *txView) UpdateSettings(_ context.Context, id string, s attendance.Settings) (*attendance.User, error) {
	return v.st.updateSettings(id, s)
}
