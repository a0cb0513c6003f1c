package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"barberia-backend/internal/booking"
	"barberia-backend/internal/models"
)

type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      models.Principal `json:"usuario"`
}

// TokenStatus is the answer of validarToken. Reason is set when Valid is false.
type TokenStatus struct {
	Valid     bool             `json:"valido"`
	Reason    string           `json:"motivo"`
	User      models.Principal `json:"usuario"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

type SlotsResult struct {
	Date       string   `json:"fecha"`
	Specialist string   `json:"especialista"`
	Duration   int      `json:"duracion"`
	Slots      []string `json:"slots"`
}

type BookingResult struct {
	Appointment models.Appointment `json:"turno"`
	Slots       []string           `json:"slots"`
}

type ListQuery struct {
	Date       string
	From       string
	To         string
	Specialist string
	Status     string
	Limit      int
	Offset     int
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("fecha", q.Date)
	set("desde", q.From)
	set("hasta", q.To)
	set("especialista", q.Specialist)
	set("estado", q.Status)
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

type AppointmentPage struct {
	Items  []models.Appointment `json:"turnos"`
	Total  int64                `json:"total"`
	Limit  int64                `json:"limit"`
	Offset int64                `json:"offset"`
}

func withToken(token string, v url.Values) url.Values {
	if v == nil {
		v = url.Values{}
	}
	v.Set("token", token)
	return v
}

func withData(v url.Values, payload interface{}) (url.Values, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}
	if v == nil {
		v = url.Values{}
	}
	v.Set("data", string(raw))
	return v, nil
}

func slotParams(specialist, date, serviceID string, duration int) url.Values {
	v := url.Values{"especialista": {specialist}}
	if date != "" {
		v.Set("fecha", date)
	}
	if serviceID != "" {
		v.Set("servicio", serviceID)
	}
	if duration > 0 {
		v.Set("duracion", strconv.Itoa(duration))
	}
	return v
}

func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	err := c.post(ctx, "validarLogin", url.Values{"usuario": {username}, "password": {password}}, AuthCalls, &out)
	return out, err
}

func (c *Client) ValidateToken(ctx context.Context, token string) (TokenStatus, error) {
	var out TokenStatus
	err := c.get(ctx, "validarToken", withToken(token, nil), AuthCalls, &out)
	return out, err
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.post(ctx, "logout", withToken(token, nil), AuthCalls, nil)
}

func (c *Client) Services(ctx context.Context) ([]models.Service, error) {
	var out struct {
		Items []models.Service `json:"servicios"`
	}
	err := c.get(ctx, "getServicios", nil, CatalogReads, &out)
	return out.Items, err
}

func (c *Client) Schedules(ctx context.Context, specialist string) ([]models.Schedule, error) {
	var out struct {
		Items []models.Schedule `json:"horarios"`
	}
	v := url.Values{}
	if specialist != "" {
		v.Set("especialista", specialist)
	}
	err := c.get(ctx, "getHorarios", v, CatalogReads, &out)
	return out.Items, err
}

func (c *Client) DaysOff(ctx context.Context, from string) ([]models.DayOff, error) {
	var out struct {
		Items []models.DayOff `json:"diasLibres"`
	}
	v := url.Values{}
	if from != "" {
		v.Set("desde", from)
	}
	err := c.get(ctx, "getDiasLibres", v, CatalogReads, &out)
	return out.Items, err
}

// Slots asks the server for the free start times. serviceID wins over duration.
func (c *Client) Slots(ctx context.Context, specialist, date, serviceID string, duration int) (SlotsResult, error) {
	var out SlotsResult
	err := c.get(ctx, "getSlots", slotParams(specialist, date, serviceID, duration), AppointmentReads, &out)
	return out, err
}

func (c *Client) NextAvailable(ctx context.Context, specialist, from, serviceID string, duration int) (SlotsResult, error) {
	v := slotParams(specialist, "", serviceID, duration)
	if from != "" {
		v.Set("desde", from)
	}
	var out SlotsResult
	err := c.get(ctx, "getProximoDisponible", v, AppointmentReads, &out)
	return out, err
}

func (c *Client) Busy(ctx context.Context, specialist, date string) ([]booking.BusyInterval, error) {
	var out struct {
		Items []booking.BusyInterval `json:"ocupados"`
	}
	err := c.get(ctx, "getOcupados", url.Values{"especialista": {specialist}, "fecha": {date}}, AppointmentReads, &out)
	return out.Items, err
}

func (c *Client) Appointments(ctx context.Context, token string, q ListQuery) (AppointmentPage, error) {
	var out AppointmentPage
	err := c.get(ctx, "getTurnos", withToken(token, q.values()), AppointmentReads, &out)
	return out, err
}

func (c *Client) Appointment(ctx context.Context, id string) (models.Appointment, error) {
	var out struct {
		Item models.Appointment `json:"turno"`
	}
	err := c.get(ctx, "getTurno", url.Values{"id": {id}}, AppointmentReads, &out)
	return out.Item, err
}

func (c *Client) Stats(ctx context.Context, token, from, to string) (booking.Stats, error) {
	var out struct {
		Stats booking.Stats `json:"estadisticas"`
	}
	err := c.get(ctx, "getEstadisticas", withToken(token, url.Values{"desde": {from}, "hasta": {to}}), AppointmentReads, &out)
	return out.Stats, err
}

func (c *Client) Book(ctx context.Context, req models.BookingRequest) (BookingResult, error) {
	v, err := withData(nil, req)
	if err != nil {
		return BookingResult{}, err
	}
	var out BookingResult
	err = c.post(ctx, "crearReserva", v, Writes, &out)
	return out, err
}

func (c *Client) Cancel(ctx context.Context, id string) (models.Appointment, error) {
	var out struct {
		Item models.Appointment `json:"turno"`
	}
	err := c.post(ctx, "cancelarTurno", url.Values{"id": {id}}, Writes, &out)
	return out.Item, err
}

func (c *Client) UpdateStatus(ctx context.Context, token, id, status string) (models.Appointment, error) {
	var out struct {
		Item models.Appointment `json:"turno"`
	}
	err := c.post(ctx, "actualizarEstado", withToken(token, url.Values{"id": {id}, "estado": {status}}), Writes, &out)
	return out.Item, err
}

func (c *Client) Users(ctx context.Context, token string) ([]models.User, error) {
	var out struct {
		Items []models.User `json:"usuarios"`
	}
	err := c.get(ctx, "getUsuarios", withToken(token, nil), CatalogReads, &out)
	return out.Items, err
}

func (c *Client) CreateUser(ctx context.Context, token string, req models.UserRequest) (models.User, error) {
	v, err := withData(withToken(token, nil), req)
	if err != nil {
		return models.User{}, err
	}
	var out struct {
		Item models.User `json:"usuario"`
	}
	err = c.post(ctx, "crearUsuario", v, Writes, &out)
	return out.Item, err
}

func (c *Client) DeleteUser(ctx context.Context, token, username string) error {
	return c.post(ctx, "eliminarUsuario", withToken(token, url.Values{"id": {username}}), Writes, nil)
}

func (c *Client) CreateSchedule(ctx context.Context, token string, req models.ScheduleRequest) (models.Schedule, error) {
	v, err := withData(withToken(token, nil), req)
	if err != nil {
		return models.Schedule{}, err
	}
	var out struct {
		Item models.Schedule `json:"horario"`
	}
	err = c.post(ctx, "crearHorario", v, Writes, &out)
	return out.Item, err
}

func (c *Client) DeleteSchedule(ctx context.Context, token, id string) error {
	return c.post(ctx, "eliminarHorario", withToken(token, url.Values{"id": {id}}), Writes, nil)
}

func (c *Client) CreateDayOff(ctx context.Context, token string, req models.DayOffRequest) (models.DayOff, error) {
	v, err := withData(withToken(token, nil), req)
	if err != nil {
		return models.DayOff{}, err
	}
	var out struct {
		Item models.DayOff `json:"diaLibre"`
	}
	err = c.post(ctx, "crearDiaLibre", v, Writes, &out)
	return out.Item, err
}

func (c *Client) DeleteDayOff(ctx context.Context, token, id string) error {
	return c.post(ctx, "eliminarDiaLibre", withToken(token, url.Values{"id": {id}}), Writes, nil)
}

func (c *Client) CleanupTokens(ctx context.Context, token string) (int64, error) {
	var out struct {
		Cleaned int64 `json:"cleaned"`
	}
	err := c.get(ctx, "cleanupTokens", withToken(token, nil), CatalogReads, &out)
	return out.Cleaned, err
}
