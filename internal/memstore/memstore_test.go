package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"barberia-backend/internal/auth"
	"barberia-backend/internal/booking"
	"barberia-backend/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	_ booking.AppointmentRepository = (*Store)(nil)
	_ booking.CalendarRepository    = (*Store)(nil)
	_ booking.CatalogRepository     = (*Store)(nil)
	_ auth.UserRepository           = (*Store)(nil)
	_ auth.SessionRepository        = (*Store)(nil)
)

func TestListPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, start := range []string{"11:00", "09:00", "10:00"} {
		if err := s.Insert(ctx, models.Appointment{ID: start, Date: "2026-02-02", StartTime: start, Specialist: "Ana"}); err != nil {
			t.Fatalf("Insert error: %v", err)
		}
	}
	items, err := s.List(ctx, booking.ListFilter{Specialist: "Ana"}, 2, 1)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(items) != 2 || items[0].StartTime != "10:00" || items[1].StartTime != "11:00" {
		t.Fatalf("unexpected page: %+v", items)
	}
	if n, _ := s.Count(ctx, booking.ListFilter{Date: "2026-02-02"}); n != 3 {
		t.Fatalf("expected count 3, got %d", n)
	}
}

func TestDuplicateUserIsDuplicateKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.InsertUser(ctx, models.User{Username: "ana"}); err != nil {
		t.Fatalf("InsertUser error: %v", err)
	}
	if err := s.InsertUser(ctx, models.User{Username: "ana"}); !mongo.IsDuplicateKeyError(err) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestExpiredSessionsRemoved(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
	_ = s.InsertSession(ctx, models.Session{ID: "live", Active: true, ExpiresAt: now.Add(time.Hour)})
	_ = s.InsertSession(ctx, models.Session{ID: "old", Active: true, ExpiresAt: now.Add(-time.Minute)})
	_ = s.InsertSession(ctx, models.Session{ID: "closed", Active: false, ExpiresAt: now.Add(time.Hour)})

	removed, err := s.DeleteExpiredSessions(ctx, now)
	if err != nil || removed != 2 {
		t.Fatalf("expected 2 removed, got %d %v", removed, err)
	}
	if _, err := s.GetSession(ctx, "old"); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("expected old session gone, got %v", err)
	}
}
