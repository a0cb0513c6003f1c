package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"barberia-backend/internal/auth"
	"barberia-backend/internal/booking"
	"barberia-backend/internal/cache"
	"barberia-backend/internal/config"
	"barberia-backend/internal/handlers"
	"barberia-backend/internal/memstore"
	"barberia-backend/internal/models"
	"barberia-backend/internal/validation"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	testKey = "test-key"
	hector  = "Héctor"
	monday  = "2026-02-02"
)

func TestMain(m *testing.M) {
	auth.PasswordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func newTestClient(url string) (*Client, *recordedSleeps) {
	c := New(url, testKey, WithLogger(quietLogger()))
	rec := &recordedSleeps{}
	c.sleep = rec.sleep
	return c, rec
}

func TestReadsRetryWithBackoff(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apiKey") != testKey || r.URL.Query().Get("action") != "getTurno" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"turno":{"id":"t1","status":"Confirmado"}}`))
	}))
	defer srv.Close()

	c, rec := newTestClient(srv.URL)
	a, err := c.Appointment(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Appointment error: %v", err)
	}
	if a.ID != "t1" || hits != 3 {
		t.Fatalf("expected t1 after 3 attempts, got %q after %d", a.ID, hits)
	}
	if !reflect.DeepEqual(rec.delays, []time.Duration{500 * time.Millisecond, time.Second}) {
		t.Fatalf("unexpected backoff: %v", rec.delays)
	}
}

func TestReadsGiveUpAfterPolicyRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	_, err := c.Services(context.Background())
	var te *TransportError
	if !errors.As(err, &te) || te.Status != http.StatusBadGateway {
		t.Fatalf("expected TransportError 502, got %v", err)
	}
	if hits != int32(CatalogReads.Retries+1) {
		t.Fatalf("expected %d attempts, got %d", CatalogReads.Retries+1, hits)
	}
}

func TestWritesAreNeverRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Method != http.MethodPost || r.PostFormValue("data") == "" {
			t.Errorf("expected form post with data")
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, rec := newTestClient(srv.URL)
	_, err := c.Book(context.Background(), models.BookingRequest{ClientName: "Juan"})
	if err == nil || hits != 1 || len(rec.delays) != 0 {
		t.Fatalf("expected one failed attempt, got err=%v hits=%d", err, hits)
	}
}

func TestEnvelopeErrorsMapToSentinels(t *testing.T) {
	cases := []struct {
		body   string
		status int
		want   error
	}{
		{`{"success":false,"error":"slot already taken","code":"slot_taken"}`, http.StatusConflict, ErrSlotTaken},
		{`{"success":false,"error":"invalid","code":"invalid_credentials"}`, http.StatusUnauthorized, ErrInvalidCredentials},
		{`{"success":false,"error":"expired","code":"token_expired"}`, http.StatusUnauthorized, ErrTokenExpired},
		{`<html>oops</html>`, http.StatusOK, ErrMalformedResponse},
		{`{"turnos":[]}`, http.StatusOK, ErrMalformedResponse},
	}
	for _, tc := range cases {
		var hits int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		c, _ := newTestClient(srv.URL)
		_, err := c.Appointments(context.Background(), "tok", ListQuery{})
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("body %s: expected %v, got %v", tc.body, tc.want, err)
		}
		if hits != 1 {
			t.Fatalf("body %s: envelope errors must not be retried, got %d attempts", tc.body, hits)
		}
	}
}

func TestCanceledContextStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, testKey, WithLogger(quietLogger()), WithBackoff(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Appointment(ctx, "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCachedServesStaleWhenOffline(t *testing.T) {
	var down atomic.Bool
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"servicios":[{"id":"corte","name":"Corte","price":8000,"durationMinutes":30,"active":true}]}`))
	}))
	defer srv.Close()

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	store := cache.NewMemoryWithClock(func() time.Time { return now })
	base, _ := newTestClient(srv.URL)
	c := NewCached(base, store, time.UTC, 15)
	ctx := context.Background()

	if _, err := c.Services(ctx); err != nil {
		t.Fatalf("Services error: %v", err)
	}
	if _, err := c.Services(ctx); err != nil || hits != 1 {
		t.Fatalf("expected cache hit, got hits=%d err=%v", hits, err)
	}

	now = now.Add(CatalogTTL + time.Second)
	down.Store(true)
	items, err := c.Services(ctx)
	if err != nil || len(items) != 1 || items[0].ID != "corte" {
		t.Fatalf("expected stale services, got %v %v", items, err)
	}

	store.Cleanup()
	if _, err := c.Services(ctx); err == nil {
		t.Fatalf("expected error without a stale entry")
	}
}

type e2e struct {
	url   string
	store *memstore.Store
	now   time.Time
	loc   *time.Location
}

func newE2E(t *testing.T) *e2e {
	t.Helper()
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	log := quietLogger()
	store := memstore.New()
	ctx := context.Background()
	_ = store.InsertSchedule(ctx, models.Schedule{ID: "h-mon", Specialist: hector, Weekday: int(time.Monday), Start: "09:00", End: "19:00", Active: true})
	_ = store.InsertDayOff(ctx, models.DayOff{ID: "lunch", Specialist: hector, Date: monday, Start: "13:00", End: "14:00", Active: true})
	_ = store.UpsertService(ctx, models.Service{ID: "corte", Name: "Corte", Price: 8000, DurationMinutes: 30, Active: true})

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, loc)
	bookings := booking.NewService(store, store, store, booking.Options{
		Location: loc, StepMinutes: 15, Logger: log, Now: func() time.Time { return now },
	})
	sessions := auth.NewService(store, store, &auth.Manager{Secret: []byte("s"), Issuer: "barberia-backend"}, 24*time.Hour, log)
	if _, err := sessions.CreateUser(ctx, auth.NewUser{Username: "hector", Password: "tijeras", Role: "barbero", Specialist: hector}); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	srv := &handlers.Server{
		Cfg:     &config.Config{APIKey: testKey},
		Booking: bookings,
		Auth:    sessions,
		Val:     validation.New(),
		Log:     log,
	}
	r := chi.NewRouter()
	srv.Mount(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return &e2e{url: ts.URL + "/exec", store: store, now: now, loc: loc}
}

func (e *e2e) cached() *Cached {
	base := New(e.url, testKey, WithLogger(quietLogger()))
	c := NewCached(base, cache.NewMemory(), e.loc, 15)
	c.now = func() time.Time { return e.now }
	return c
}

func TestLocalSlotsMatchServer(t *testing.T) {
	env := newE2E(t)
	c := env.cached()
	ctx := context.Background()

	if _, err := c.Book(ctx, models.BookingRequest{
		ClientName: "Juan", ClientEmail: "juan@example.com", ServiceID: "corte",
		Specialist: hector, Date: monday, StartTime: "10:00",
	}); err != nil {
		t.Fatalf("Book error: %v", err)
	}

	remote, err := c.Slots(ctx, hector, monday, "corte", 0)
	if err != nil {
		t.Fatalf("Slots error: %v", err)
	}
	local, err := c.LocalSlots(ctx, hector, monday, 30)
	if err != nil {
		t.Fatalf("LocalSlots error: %v", err)
	}
	if !reflect.DeepEqual(remote.Slots, local) {
		t.Fatalf("local and remote slots differ:\nremote %v\nlocal  %v", remote.Slots, local)
	}
	for _, s := range local {
		if s == "10:00" || s == "09:45" || s == "13:00" || s == "12:45" {
			t.Fatalf("slot %s should be unavailable: %v", s, local)
		}
	}
}

func TestCachedBookingInvalidatesBusy(t *testing.T) {
	env := newE2E(t)
	c := env.cached()
	ctx := context.Background()

	busy, err := c.Busy(ctx, hector, monday)
	if err != nil || len(busy) != 0 {
		t.Fatalf("expected empty day, got %v %v", busy, err)
	}
	req := models.BookingRequest{
		ClientName: "Juan", ClientEmail: "juan@example.com", ServiceID: "corte",
		Specialist: hector, Date: monday, StartTime: "11:00",
	}
	if _, err := c.Book(ctx, req); err != nil {
		t.Fatalf("Book error: %v", err)
	}
	busy, err = c.Busy(ctx, hector, monday)
	if err != nil || len(busy) != 1 || busy[0].Start != "11:00" {
		t.Fatalf("expected the new booking to show, got %v %v", busy, err)
	}

	req.StartTime = "11:15"
	if _, err := c.Book(ctx, req); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
}

func TestLoginAndStaffCalls(t *testing.T) {
	env := newE2E(t)
	c := env.cached()
	ctx := context.Background()

	if _, err := c.Login(ctx, "hector", "mal"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	res, err := c.Login(ctx, "hector", "tijeras")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if res.User.Role != models.RoleBarber || res.User.Specialist != hector || res.Token == "" {
		t.Fatalf("unexpected login result: %+v", res)
	}

	status, err := c.ValidateToken(ctx, res.Token)
	if err != nil || !status.Valid {
		t.Fatalf("expected valid token, got %+v %v", status, err)
	}
	page, err := c.Appointments(ctx, res.Token, ListQuery{Date: monday})
	if err != nil || page.Total != 0 {
		t.Fatalf("Appointments: %+v %v", page, err)
	}
	if _, err := c.Users(ctx, res.Token); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := c.Logout(ctx, res.Token); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if _, err := c.Appointments(ctx, res.Token, ListQuery{Date: monday}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}
}
