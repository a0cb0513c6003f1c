package client

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"log/slog"
	"strconv"
	"time"

	"barberia-backend/internal/booking"
	"barberia-backend/internal/cache"
	"barberia-backend/internal/models"
	"barberia-backend/internal/schedule"
)

const (
	UsersTTL        = 5 * time.Minute
	AppointmentsTTL = 2 * time.Minute
	CatalogTTL      = 10 * time.Minute
)

const (
	prefixAppointments = "turnos:"
	prefixSchedules    = "horarios:"
	prefixDaysOff      = "diasLibres:"
	keyServices        = "servicios"
	keyUsers           = "usuarios:"
)

// Cached wraps a Client with a local TTL cache. Reads are answered from the
// cache while fresh and fall back to stale entries when the server cannot be
// reached. Writes drop the entries they can change.
type Cached struct {
	*Client
	store    *cache.Memory
	location *time.Location
	step     int
	now      func() time.Time
}

func NewCached(c *Client, store *cache.Memory, loc *time.Location, stepMinutes int) *Cached {
	if store == nil {
		store = cache.NewMemory()
	}
	if loc == nil {
		loc = time.Local
	}
	if stepMinutes <= 0 {
		stepMinutes = schedule.DefaultStepMinutes
	}
	return &Cached{Client: c, store: store, location: loc, step: stepMinutes, now: time.Now}
}

// offline reports errors for which a stale answer beats no answer.
func offline(err error) bool {
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, ErrMalformedResponse)
}

func read[T any](ctx context.Context, c *Cached, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	var value T
	if raw, ok, _ := c.store.Get(ctx, key); ok {
		if err := json.Unmarshal(raw, &value); err == nil {
			return value, nil
		}
	}

	fresh, err := fetch()
	if err == nil {
		if raw, mErr := json.Marshal(fresh); mErr == nil {
			_ = c.store.Set(ctx, key, raw, ttl)
		}
		return fresh, nil
	}

	if offline(err) {
		if raw, ok := c.store.GetStale(key); ok {
			if uErr := json.Unmarshal(raw, &value); uErr == nil {
				c.log.Warn("client cache: serving stale entry", slog.String("key", key), slog.String("error", err.Error()))
				return value, nil
			}
		}
	}
	return value, err
}

func (c *Cached) invalidate(prefixes ...string) {
	for _, p := range prefixes {
		_ = c.store.DeletePrefix(context.Background(), p)
	}
}

// tokenScope keeps entries of different sessions apart without storing the
// token itself as a key.
func tokenScope(token string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return strconv.FormatUint(h.Sum64(), 36)
}

func (c *Cached) Services(ctx context.Context) ([]models.Service, error) {
	return read(ctx, c, keyServices, CatalogTTL, func() ([]models.Service, error) {
		return c.Client.Services(ctx)
	})
}

func (c *Cached) Schedules(ctx context.Context, specialist string) ([]models.Schedule, error) {
	return read(ctx, c, prefixSchedules+specialist, CatalogTTL, func() ([]models.Schedule, error) {
		return c.Client.Schedules(ctx, specialist)
	})
}

func (c *Cached) DaysOff(ctx context.Context, from string) ([]models.DayOff, error) {
	return read(ctx, c, prefixDaysOff+from, CatalogTTL, func() ([]models.DayOff, error) {
		return c.Client.DaysOff(ctx, from)
	})
}

func (c *Cached) Busy(ctx context.Context, specialist, date string) ([]booking.BusyInterval, error) {
	return read(ctx, c, prefixAppointments+"ocupados:"+specialist+":"+date, AppointmentsTTL, func() ([]booking.BusyInterval, error) {
		return c.Client.Busy(ctx, specialist, date)
	})
}

func (c *Cached) Appointments(ctx context.Context, token string, q ListQuery) (AppointmentPage, error) {
	key := prefixAppointments + "lista:" + tokenScope(token) + ":" + q.values().Encode()
	return read(ctx, c, key, AppointmentsTTL, func() (AppointmentPage, error) {
		return c.Client.Appointments(ctx, token, q)
	})
}

func (c *Cached) Appointment(ctx context.Context, id string) (models.Appointment, error) {
	return read(ctx, c, prefixAppointments+"turno:"+id, AppointmentsTTL, func() (models.Appointment, error) {
		return c.Client.Appointment(ctx, id)
	})
}

func (c *Cached) Users(ctx context.Context, token string) ([]models.User, error) {
	return read(ctx, c, keyUsers+tokenScope(token), UsersTTL, func() ([]models.User, error) {
		return c.Client.Users(ctx, token)
	})
}

func (c *Cached) Book(ctx context.Context, req models.BookingRequest) (BookingResult, error) {
	defer c.invalidate(prefixAppointments)
	return c.Client.Book(ctx, req)
}

func (c *Cached) Cancel(ctx context.Context, id string) (models.Appointment, error) {
	defer c.invalidate(prefixAppointments)
	return c.Client.Cancel(ctx, id)
}

func (c *Cached) UpdateStatus(ctx context.Context, token, id, status string) (models.Appointment, error) {
	defer c.invalidate(prefixAppointments)
	return c.Client.UpdateStatus(ctx, token, id, status)
}

func (c *Cached) CreateUser(ctx context.Context, token string, req models.UserRequest) (models.User, error) {
	defer c.invalidate(keyUsers)
	return c.Client.CreateUser(ctx, token, req)
}

func (c *Cached) DeleteUser(ctx context.Context, token, username string) error {
	defer c.invalidate(keyUsers)
	return c.Client.DeleteUser(ctx, token, username)
}

func (c *Cached) CreateSchedule(ctx context.Context, token string, req models.ScheduleRequest) (models.Schedule, error) {
	defer c.invalidate(prefixSchedules)
	return c.Client.CreateSchedule(ctx, token, req)
}

func (c *Cached) DeleteSchedule(ctx context.Context, token, id string) error {
	defer c.invalidate(prefixSchedules)
	return c.Client.DeleteSchedule(ctx, token, id)
}

func (c *Cached) CreateDayOff(ctx context.Context, token string, req models.DayOffRequest) (models.DayOff, error) {
	defer c.invalidate(prefixDaysOff)
	return c.Client.CreateDayOff(ctx, token, req)
}

func (c *Cached) DeleteDayOff(ctx context.Context, token, id string) error {
	defer c.invalidate(prefixDaysOff)
	return c.Client.DeleteDayOff(ctx, token, id)
}

// Logout drops every entry scoped to a session.
func (c *Cached) Logout(ctx context.Context, token string) error {
	defer c.invalidate(prefixAppointments+"lista:", keyUsers)
	return c.Client.Logout(ctx, token)
}

// LocalSlots computes availability from cached schedules, days off and busy
// intervals, without asking the server to do it.
func (c *Cached) LocalSlots(ctx context.Context, specialist, date string, duration int) ([]string, error) {
	day, err := schedule.ParseDate(date, c.location)
	if err != nil {
		return nil, err
	}
	now := c.now()
	if past, _ := schedule.IsDatePast(date, c.location, now); past {
		return []string{}, nil
	}

	rows, err := c.Schedules(ctx, specialist)
	if err != nil {
		return nil, err
	}
	offs, err := c.DaysOff(ctx, date)
	if err != nil {
		return nil, err
	}
	sameDay := make([]models.DayOff, 0, len(offs))
	for _, off := range offs {
		if off.Date == date {
			sameDay = append(sameDay, off)
		}
	}

	loaded, _ := booking.DayFrom(specialist, int(day.Weekday()), rows, sameDay)
	if len(loaded.Windows) > 0 && !loaded.Closed {
		busy, err := c.Busy(ctx, specialist, date)
		if err != nil {
			return nil, err
		}
		for _, b := range busy {
			interval, err := schedule.ParseRange(b.Start, b.End)
			if err != nil {
				continue
			}
			loaded.Booked = append(loaded.Booked, interval)
		}
	}

	slots, err := schedule.AvailableSlots(loaded, duration, c.step)
	if err != nil {
		return nil, err
	}
	if schedule.IsToday(date, c.location, now) {
		return schedule.FilterPastSlots(date, slots, c.location, now)
	}
	return slots, nil
}
