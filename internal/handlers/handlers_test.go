package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"barberia-backend/internal/auth"
	"barberia-backend/internal/booking"
	"barberia-backend/internal/config"
	"barberia-backend/internal/memstore"
	"barberia-backend/internal/middleware"
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

type fakeMailer struct {
	mu    sync.Mutex
	sent  chan models.Appointment
	owner []string
}

func (f *fakeMailer) SendBookingConfirmation(ctx context.Context, a models.Appointment) (string, error) {
	f.sent <- a
	return "msg-" + a.ID, nil
}

func (f *fakeMailer) SendOwnerNotification(ctx context.Context, ownerEmail string, a models.Appointment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owner = append(f.owner, ownerEmail)
	return "owner-" + a.ID, nil
}

type testEnv struct {
	handler http.Handler
	store   *memstore.Store
	server  *Server
	mailer  *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	ctx := context.Background()

	_ = store.InsertSchedule(ctx, models.Schedule{ID: "h-mon", Specialist: hector, Weekday: int(time.Monday), Start: "09:00", End: "19:00", Active: true})
	_ = store.InsertSchedule(ctx, models.Schedule{ID: "a-mon", Specialist: "Ana", Weekday: int(time.Monday), Start: "10:00", End: "14:00", Active: true})
	_ = store.UpsertService(ctx, models.Service{ID: "corte", Name: "Corte", Price: 8000, DurationMinutes: 30, Active: true})

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, loc)
	bookings := booking.NewService(store, store, store, booking.Options{
		Location:    loc,
		StepMinutes: 15,
		Logger:      log,
		Now:         func() time.Time { return now },
	})
	tokens := &auth.Manager{Secret: []byte("test-secret"), Issuer: "barberia-backend"}
	sessions := auth.NewService(store, store, tokens, 24*time.Hour, log)
	for _, u := range []auth.NewUser{
		{Username: "admin", Password: "admin-pass", Role: "admin"},
		{Username: "hector", Password: "tijeras", Role: "barbero", Specialist: hector},
		{Username: "caja", Password: "caja-pass", Role: "empleado"},
	} {
		if _, err := sessions.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s) error: %v", u.Username, err)
		}
	}

	mailer := &fakeMailer{sent: make(chan models.Appointment, 8)}
	srv := &Server{
		Cfg:            &config.Config{APIKey: testKey, OwnerEmail: "owner@example.com"},
		Booking:        bookings,
		Auth:           sessions,
		Val:            validation.New(),
		Log:            log,
		Mailer:         mailer,
		BookingLimiter: middleware.NewRateLimiter(100, time.Minute),
		LoginLimiter:   middleware.NewRateLimiter(100, time.Minute),
	}
	r := chi.NewRouter()
	srv.Mount(r)
	return &testEnv{handler: r, store: store, server: srv, mailer: mailer}
}

func (e *testEnv) do(t *testing.T, method string, params url.Values) (int, map[string]interface{}) {
	t.Helper()
	if params.Get("apiKey") == "" {
		params.Set("apiKey", testKey)
	}
	var req *http.Request
	if method == http.MethodGet {
		req = httptest.NewRequest(method, "/exec?"+params.Encode(), nil)
	} else {
		req = httptest.NewRequest(method, "/exec", strings.NewReader(params.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	body := map[string]interface{}{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return rec.Code, body
}

func (e *testEnv) login(t *testing.T, user, pass string) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, url.Values{"action": {"validarLogin"}, "usuario": {user}, "password": {pass}})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d body %v", user, status, body)
	}
	return body["token"].(string)
}

func bookingData(t *testing.T, start string) string {
	t.Helper()
	raw, err := json.Marshal(models.BookingRequest{
		ClientName:  "Juan",
		ClientEmail: "juan@example.com",
		ServiceID:   "corte",
		Specialist:  hector,
		Date:        monday,
		StartTime:   start,
	})
	if err != nil {
		t.Fatalf("marshal booking: %v", err)
	}
	return string(raw)
}

func expectCode(t *testing.T, body map[string]interface{}, code string) {
	t.Helper()
	if body["success"] != false || body["code"] != code {
		t.Fatalf("expected code %q, got %v", code, body)
	}
}

func TestExecRejectsBadAPIKeyAndUnknownAction(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, url.Values{"action": {"getServicios"}, "apiKey": {"wrong"}})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	expectCode(t, body, "invalid_api_key")

	status, body = env.do(t, http.MethodGet, url.Values{"action": {"getEventos"}})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	expectCode(t, body, "unknown_action")

	status, body = env.do(t, http.MethodGet, url.Values{"action": {"crearReserva"}})
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", status)
	}
	expectCode(t, body, "invalid_request")
}

func TestHealthzSkipsAPIKey(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBookAndSlotsOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {bookingData(t, "10:00")}})
	if status != http.StatusCreated || body["success"] != true {
		t.Fatalf("crearReserva: status %d body %v", status, body)
	}
	turno := body["turno"].(map[string]interface{})
	if turno["status"] != models.StatusConfirmed || turno["endTime"] != "10:30" {
		t.Fatalf("unexpected turno: %v", turno)
	}

	select {
	case a := <-env.mailer.sent:
		if a.ID != turno["id"] {
			t.Fatalf("mail sent for wrong appointment: %s", a.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected confirmation mail")
	}

	status, body = env.do(t, http.MethodGet, url.Values{"action": {"getSlots"}, "especialista": {hector}, "fecha": {monday}, "servicio": {"corte"}})
	if status != http.StatusOK {
		t.Fatalf("getSlots: status %d body %v", status, body)
	}
	has := map[string]bool{}
	for _, s := range body["slots"].([]interface{}) {
		has[s.(string)] = true
	}
	if has["09:45"] || has["10:00"] || !has["09:30"] || !has["10:30"] {
		t.Fatalf("unexpected slots: %v", body["slots"])
	}

	status, body = env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {bookingData(t, "09:45")}})
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d %v", status, body)
	}
	expectCode(t, body, "slot_taken")

	status, body = env.do(t, http.MethodGet, url.Values{"action": {"getOcupados"}, "especialista": {hector}, "fecha": {monday}})
	if status != http.StatusOK {
		t.Fatalf("getOcupados: status %d", status)
	}
	busy := body["ocupados"].([]interface{})
	if len(busy) != 1 || busy[0].(map[string]interface{})["inicio"] != "10:00" {
		t.Fatalf("unexpected busy: %v", busy)
	}
	if _, leaked := busy[0].(map[string]interface{})["clientEmail"]; leaked {
		t.Fatalf("busy intervals must not expose client data")
	}
}

func TestBookingValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	expectCode(t, body, "invalid_request")

	status, body = env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {`{"nombreCliente":"Juan","emailCliente":"nope","servicio":"corte","especialista":"x","fecha":"02-02-2026","hora":"10:00"}`}})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	expectCode(t, body, "validation_error")

	past := strings.Replace(bookingData(t, "10:00"), monday, "2026-01-26", 1)
	status, body = env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {past}})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	expectCode(t, body, "date_in_past")

	status, body = env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {bookingData(t, "10:05")}})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	expectCode(t, body, "slot_not_allowed")
}

func TestCancelTwiceSucceeds(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {bookingData(t, "11:00")}})
	id := body["turno"].(map[string]interface{})["id"].(string)

	for i := 0; i < 2; i++ {
		status, body := env.do(t, http.MethodPost, url.Values{"action": {"cancelarTurno"}, "id": {id}})
		if status != http.StatusOK || body["turno"].(map[string]interface{})["status"] != models.StatusCancelled {
			t.Fatalf("cancel #%d: status %d body %v", i+1, status, body)
		}
	}

	status, body := env.do(t, http.MethodPost, url.Values{"action": {"cancelarTurno"}, "id": {"missing"}})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	expectCode(t, body, "not_found")
}

func TestStaffActionsRequireToken(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {bookingData(t, "12:00")}})
	ana := strings.Replace(strings.Replace(bookingData(t, "12:00"), hector, "Ana", 1), "Juan", "Pedro", 1)
	env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {ana}})

	status, body := env.do(t, http.MethodGet, url.Values{"action": {"getTurnos"}})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	expectCode(t, body, "unauthorized")

	status, body = env.do(t, http.MethodGet, url.Values{"action": {"getTurnos"}, "token": {"garbage"}})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	expectCode(t, body, "unauthorized")

	admin := env.login(t, "admin", "admin-pass")
	_, body = env.do(t, http.MethodGet, url.Values{"action": {"getTurnos"}, "token": {admin}})
	if body["total"] != float64(2) {
		t.Fatalf("admin should see both appointments: %v", body)
	}

	barber := env.login(t, "hector", "tijeras")
	_, body = env.do(t, http.MethodGet, url.Values{"action": {"getTurnos"}, "token": {barber}, "especialista": {"Ana"}})
	items := body["turnos"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["specialist"] != hector {
		t.Fatalf("barber must only see own appointments: %v", items)
	}

	cashier := env.login(t, "caja", "caja-pass")
	status, body = env.do(t, http.MethodGet, url.Values{"action": {"getUsuarios"}, "token": {cashier}})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
	expectCode(t, body, "forbidden")
}

func TestUpdateStatusRules(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {bookingData(t, "15:00")}})
	id := body["turno"].(map[string]interface{})["id"].(string)
	barber := env.login(t, "hector", "tijeras")

	status, body := env.do(t, http.MethodPost, url.Values{"action": {"actualizarEstado"}, "token": {barber}, "id": {id}, "estado": {"completado"}})
	if status != http.StatusOK || body["turno"].(map[string]interface{})["status"] != models.StatusCompleted {
		t.Fatalf("expected Completado, got %d %v", status, body)
	}

	env.do(t, http.MethodPost, url.Values{"action": {"cancelarTurno"}, "id": {id}})
	status, body = env.do(t, http.MethodPost, url.Values{"action": {"actualizarEstado"}, "token": {barber}, "id": {id}, "estado": {"Confirmado"}})
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	expectCode(t, body, "invalid_transition")
}

func TestLoginValidateLogout(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, url.Values{"action": {"validarLogin"}, "usuario": {"hector"}, "password": {"mal"}})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	expectCode(t, body, "invalid_credentials")

	token := env.login(t, "HECTOR", "tijeras")
	_, body = env.do(t, http.MethodGet, url.Values{"action": {"validarToken"}, "token": {token}})
	if body["valido"] != true {
		t.Fatalf("expected valid token: %v", body)
	}
	usuario := body["usuario"].(map[string]interface{})
	if usuario["rol"] != models.RoleBarber || usuario["barberoAsignado"] != hector {
		t.Fatalf("unexpected usuario: %v", usuario)
	}

	status, _ = env.do(t, http.MethodPost, url.Values{"action": {"logout"}, "token": {token}})
	if status != http.StatusOK {
		t.Fatalf("logout: status %d", status)
	}
	_, body = env.do(t, http.MethodGet, url.Values{"action": {"validarToken"}, "token": {token}})
	if body["valido"] != false || body["motivo"] != "unauthorized" {
		t.Fatalf("expected invalid token after logout: %v", body)
	}
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin", "admin-pass")

	data := `{"usuario":"nuevo","nombre":"Nuevo","password":"secreto1","rol":"empleado"}`
	status, body := env.do(t, http.MethodPost, url.Values{"action": {"crearUsuario"}, "token": {admin}, "data": {data}})
	if status != http.StatusCreated {
		t.Fatalf("crearUsuario: status %d body %v", status, body)
	}
	if _, leaked := body["usuario"].(map[string]interface{})["passwordHash"]; leaked {
		t.Fatalf("password hash must not be returned")
	}

	status, body = env.do(t, http.MethodPost, url.Values{"action": {"crearUsuario"}, "token": {admin}, "data": {data}})
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	expectCode(t, body, "conflict")

	status, _ = env.do(t, http.MethodPost, url.Values{"action": {"eliminarUsuario"}, "token": {admin}, "id": {"nuevo"}})
	if status != http.StatusOK {
		t.Fatalf("eliminarUsuario: status %d", status)
	}
	status, body = env.do(t, http.MethodPost, url.Values{"action": {"eliminarUsuario"}, "token": {admin}, "id": {"admin"}})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 deleting self, got %d %v", status, body)
	}
}

func TestScheduleAdministration(t *testing.T) {
	env := newTestEnv(t)
	barber := env.login(t, "hector", "tijeras")

	foreign := `{"especialista":"Ana","dia":2,"inicio":"09:00","fin":"12:00"}`
	status, body := env.do(t, http.MethodPost, url.Values{"action": {"crearHorario"}, "token": {barber}, "data": {foreign}})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %v", status, body)
	}

	own := `{"especialista":"Héctor","dia":2,"inicio":"09:00","fin":"12:00"}`
	status, body = env.do(t, http.MethodPost, url.Values{"action": {"crearHorario"}, "token": {barber}, "data": {own}})
	if status != http.StatusCreated {
		t.Fatalf("crearHorario: status %d body %v", status, body)
	}
	_, body = env.do(t, http.MethodGet, url.Values{"action": {"getSlots"}, "especialista": {hector}, "fecha": {"2026-02-03"}, "duracion": {"60"}})
	if got := len(body["slots"].([]interface{})); got != 9 {
		t.Fatalf("expected 9 one-hour slots on tuesday, got %d", got)
	}

	off := `{"especialista":"Héctor","fecha":"2026-02-02","diaCompleto":true,"motivo":"turno medico"}`
	status, body = env.do(t, http.MethodPost, url.Values{"action": {"crearDiaLibre"}, "token": {barber}, "data": {off}})
	if status != http.StatusCreated {
		t.Fatalf("crearDiaLibre: status %d body %v", status, body)
	}
	_, body = env.do(t, http.MethodGet, url.Values{"action": {"getSlots"}, "especialista": {hector}, "fecha": {monday}, "servicio": {"corte"}})
	if got := len(body["slots"].([]interface{})); got != 0 {
		t.Fatalf("expected closed day, got %d slots", got)
	}

	status, body = env.do(t, http.MethodPost, url.Values{"action": {"eliminarHorario"}, "token": {barber}, "id": {"a-mon"}})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 deleting another specialist's schedule, got %d %v", status, body)
	}
	expectCode(t, body, "forbidden")
	_, body = env.do(t, http.MethodGet, url.Values{"action": {"getSlots"}, "especialista": {"Ana"}, "fecha": {monday}, "duracion": {"30"}})
	if got := len(body["slots"].([]interface{})); got != 15 {
		t.Fatalf("expected Ana's schedule intact, got %d slots", got)
	}

	admin := env.login(t, "admin", "admin-pass")
	closure := `{"fecha":"2026-02-09","diaCompleto":true,"motivo":"feriado"}`
	status, body = env.do(t, http.MethodPost, url.Values{"action": {"crearDiaLibre"}, "token": {admin}, "data": {closure}})
	if status != http.StatusCreated {
		t.Fatalf("crearDiaLibre (admin): status %d body %v", status, body)
	}
	closureID := body["diaLibre"].(map[string]interface{})["id"].(string)

	status, body = env.do(t, http.MethodPost, url.Values{"action": {"eliminarDiaLibre"}, "token": {barber}, "id": {closureID}})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 deleting a shop closure, got %d %v", status, body)
	}
	expectCode(t, body, "forbidden")

	status, body = env.do(t, http.MethodPost, url.Values{"action": {"eliminarDiaLibre"}, "token": {barber}, "id": {"missing"}})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown day off, got %d %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, url.Values{"action": {"eliminarDiaLibre"}, "token": {admin}, "id": {closureID}})
	if status != http.StatusOK {
		t.Fatalf("eliminarDiaLibre (admin): status %d body %v", status, body)
	}
	status, body = env.do(t, http.MethodPost, url.Values{"action": {"eliminarHorario"}, "token": {barber}, "id": {"h-mon"}})
	if status != http.StatusOK {
		t.Fatalf("eliminarHorario (own): status %d body %v", status, body)
	}
}

func TestInvalidDurationIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	for _, action := range []url.Values{
		{"action": {"getSlots"}, "especialista": {hector}, "fecha": {monday}},
		{"action": {"getProximoDisponible"}, "especialista": {hector}},
	} {
		for _, raw := range []string{"abc", "0", "-5"} {
			params := url.Values{}
			for k, v := range action {
				params[k] = v
			}
			params.Set("duracion", raw)
			status, body := env.do(t, http.MethodGet, params)
			if status != http.StatusBadRequest {
				t.Fatalf("%s duracion=%q: expected 400, got %d %v", action.Get("action"), raw, status, body)
			}
			expectCode(t, body, "invalid_request")
		}
	}
}

func TestStatsAreScopedToBarber(t *testing.T) {
	env := newTestEnv(t)
	if status, body := env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {bookingData(t, "09:00")}}); status != http.StatusCreated {
		t.Fatalf("crearReserva: status %d body %v", status, body)
	}
	var ana models.BookingRequest
	if err := json.Unmarshal([]byte(bookingData(t, "10:00")), &ana); err != nil {
		t.Fatalf("unmarshal booking: %v", err)
	}
	ana.Specialist = "Ana"
	raw, err := json.Marshal(ana)
	if err != nil {
		t.Fatalf("marshal booking: %v", err)
	}
	if status, body := env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {string(raw)}}); status != http.StatusCreated {
		t.Fatalf("crearReserva (Ana): status %d body %v", status, body)
	}

	stats := func(token string, extra url.Values) map[string]interface{} {
		t.Helper()
		params := url.Values{"action": {"getEstadisticas"}, "token": {token}, "desde": {monday}, "hasta": {monday}}
		for k, v := range extra {
			params[k] = v
		}
		status, body := env.do(t, http.MethodGet, params)
		if status != http.StatusOK {
			t.Fatalf("getEstadisticas: status %d body %v", status, body)
		}
		return body["estadisticas"].(map[string]interface{})
	}

	all := stats(env.login(t, "admin", "admin-pass"), nil)
	if all["total"] != float64(2) {
		t.Fatalf("expected 2 appointments for admin, got %v", all)
	}

	barber := env.login(t, "hector", "tijeras")
	for _, extra := range []url.Values{nil, {"especialista": {"Ana"}}} {
		own := stats(barber, extra)
		bySpecialist := own["porEspecialista"].(map[string]interface{})
		if own["total"] != float64(1) || len(bySpecialist) != 1 || bySpecialist[hector] == nil {
			t.Fatalf("expected only %s's appointments, got %v", hector, own)
		}
	}
}

func TestBookingRateLimit(t *testing.T) {
	env := newTestEnv(t)
	// The action table is built on the first call, so the limiter can still be swapped.
	env.server.BookingLimiter = middleware.NewRateLimiter(1, time.Minute)

	env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {bookingData(t, "16:00")}})
	status, body := env.do(t, http.MethodPost, url.Values{"action": {"crearReserva"}, "data": {bookingData(t, "17:00")}})
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	expectCode(t, body, "rate_limited")
}
