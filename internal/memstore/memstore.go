// Package memstore keeps every record in process memory. It satisfies the
// booking and auth repository interfaces and backs development runs and
// tests that need a full server without MongoDB.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"barberia-backend/internal/booking"
	"barberia-backend/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	mu           sync.RWMutex
	appointments map[string]models.Appointment
	schedules    map[string]models.Schedule
	daysOff      map[string]models.DayOff
	services     map[string]models.Service
	users        map[string]models.User
	sessions     map[string]models.Session
}

func New() *Store {
	return &Store{
		appointments: make(map[string]models.Appointment),
		schedules:    make(map[string]models.Schedule),
		daysOff:      make(map[string]models.DayOff),
		services:     make(map[string]models.Service),
		users:        make(map[string]models.User),
		sessions:     make(map[string]models.Session),
	}
}

var duplicateKey = mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "duplicate key"}}}

func (s *Store) Insert(ctx context.Context, a models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[a.ID]; ok {
		return duplicateKey
	}
	s.appointments[a.ID] = a
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return models.Appointment{}, mongo.ErrNoDocuments
	}
	return a, nil
}

func (s *Store) ListDay(ctx context.Context, specialist, date string) ([]models.Appointment, error) {
	return s.List(ctx, booking.ListFilter{Specialist: specialist, Date: date}, 0, 0)
}

func (s *Store) List(ctx context.Context, filter booking.ListFilter, limit, offset int64) ([]models.Appointment, error) {
	s.mu.RLock()
	items := make([]models.Appointment, 0)
	for _, a := range s.appointments {
		if matches(a, filter) {
			items = append(items, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date < items[j].Date
		}
		return items[i].StartTime < items[j].StartTime
	})
	if offset >= int64(len(items)) {
		return []models.Appointment{}, nil
	}
	items = items[offset:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) Count(ctx context.Context, filter booking.ListFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, a := range s.appointments {
		if matches(a, filter) {
			n++
		}
	}
	return n, nil
}

func matches(a models.Appointment, f booking.ListFilter) bool {
	switch {
	case f.Date != "" && a.Date != f.Date:
		return false
	case f.From != "" && a.Date < f.From:
		return false
	case f.To != "" && a.Date > f.To:
		return false
	case f.Specialist != "" && a.Specialist != f.Specialist:
		return false
	case f.Status != "" && a.Status != f.Status:
		return false
	}
	return true
}

func (s *Store) SetStatus(ctx context.Context, id, status string, now time.Time) (models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return models.Appointment{}, mongo.ErrNoDocuments
	}
	a.Status = status
	a.UpdatedAt = now
	if status == models.StatusCancelled {
		a.CancelledAt = &now
	}
	s.appointments[id] = a
	return a, nil
}

func (s *Store) PendingReminders(ctx context.Context, date string) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.Appointment, 0)
	for _, a := range s.appointments {
		if a.Date == date && a.Status == models.StatusConfirmed && a.ReminderSentAt == nil {
			items = append(items, a)
		}
	}
	return items, nil
}

func (s *Store) MarkReminderSent(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	a.ReminderSentAt = &now
	s.appointments[id] = a
	return nil
}

func (s *Store) Schedules(ctx context.Context, specialist string, weekday int) ([]models.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.Schedule, 0)
	for _, row := range s.schedules {
		if row.Specialist == specialist && row.Weekday == weekday && row.Active {
			items = append(items, row)
		}
	}
	sortSchedules(items)
	return items, nil
}

func (s *Store) ListSchedules(ctx context.Context, specialist string) ([]models.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.Schedule, 0)
	for _, row := range s.schedules {
		if specialist == "" || row.Specialist == specialist {
			items = append(items, row)
		}
	}
	sortSchedules(items)
	return items, nil
}

func sortSchedules(items []models.Schedule) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Specialist != b.Specialist {
			return a.Specialist < b.Specialist
		}
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		return a.Start < b.Start
	})
}

func (s *Store) GetSchedule(ctx context.Context, id string) (models.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.schedules[id]
	if !ok {
		return models.Schedule{}, mongo.ErrNoDocuments
	}
	return row, nil
}

func (s *Store) InsertSchedule(ctx context.Context, row models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[row.ID] = row
	return nil
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) (models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.schedules[id]
	if !ok {
		return models.Schedule{}, mongo.ErrNoDocuments
	}
	delete(s.schedules, id)
	return row, nil
}

func (s *Store) DaysOff(ctx context.Context, date string) ([]models.DayOff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.DayOff, 0)
	for _, d := range s.daysOff {
		if d.Date == date && d.Active {
			items = append(items, d)
		}
	}
	return items, nil
}

func (s *Store) ListDaysOff(ctx context.Context, from string) ([]models.DayOff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.DayOff, 0)
	for _, d := range s.daysOff {
		if from == "" || d.Date >= from {
			items = append(items, d)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Date < items[j].Date })
	return items, nil
}

func (s *Store) InsertDayOff(ctx context.Context, d models.DayOff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daysOff[d.ID] = d
	return nil
}

func (s *Store) GetDayOff(ctx context.Context, id string) (models.DayOff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.daysOff[id]
	if !ok {
		return models.DayOff{}, mongo.ErrNoDocuments
	}
	return d, nil
}

func (s *Store) DeleteDayOff(ctx context.Context, id string) (models.DayOff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.daysOff[id]
	if !ok {
		return models.DayOff{}, mongo.ErrNoDocuments
	}
	delete(s.daysOff, id)
	return d, nil
}

func (s *Store) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.Service, 0, len(s.services))
	for _, svc := range s.services {
		if activeOnly && !svc.Active {
			continue
		}
		items = append(items, svc)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *Store) GetService(ctx context.Context, id string) (models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return models.Service{}, mongo.ErrNoDocuments
	}
	return svc, nil
}

func (s *Store) UpsertService(ctx context.Context, svc models.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
	return nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return models.User{}, mongo.ErrNoDocuments
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		items = append(items, u)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Username < items[j].Username })
	return items, nil
}

func (s *Store) InsertUser(ctx context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return duplicateKey
	}
	s.users[u.Username] = u
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return models.User{}, mongo.ErrNoDocuments
	}
	delete(s.users, username)
	return u, nil
}

func (s *Store) InsertSession(ctx context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return models.Session{}, mongo.ErrNoDocuments
	}
	return session, nil
}

func (s *Store) DeactivateSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		session.Active = false
		s.sessions[id] = session
	}
	return nil
}

func (s *Store) DeleteUserSessions(ctx context.Context, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, session := range s.sessions {
		if session.Username == username {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, session := range s.sessions {
		if !session.Active || !now.Before(session.ExpiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}
