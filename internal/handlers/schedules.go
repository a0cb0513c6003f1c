package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"barberia-backend/internal/models"
	"barberia-backend/internal/transport"
)

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request, c *call) {
	ctx, cancel := storeContext(r)
	defer cancel()

	rows, err := s.Booking.ListSchedules(ctx, c.values.Get("especialista"))
	if err != nil {
		writeServiceError(w, c.log, "schedules list", err)
		return
	}
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"horarios": rows})
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request, c *call) {
	var req models.ScheduleRequest
	if !s.decodeData(w, c, "schedules create", &req) {
		return
	}
	if !s.ownsSpecialist(w, c, "schedules create", req.Specialist) {
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()

	row, err := s.Booking.CreateSchedule(ctx, models.Schedule{
		Specialist: req.Specialist,
		Weekday:    req.Weekday,
		Start:      req.Start,
		End:        req.End,
	})
	if err != nil {
		writeServiceError(w, c.log, "schedules create", err)
		return
	}
	c.log.Info("schedules create: ok", slog.String("schedule_id", row.ID), slog.String("specialist", row.Specialist))
	transport.WriteSuccess(w, http.StatusCreated, map[string]interface{}{"horario": row})
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request, c *call) {
	id := strings.TrimSpace(c.values.Get("id"))
	if id == "" {
		writeInvalid(w, c.log, "schedules delete", "missing id")
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()

	row, err := s.Booking.Schedule(ctx, id)
	if err != nil {
		writeServiceError(w, c.log, "schedules delete", err)
		return
	}
	if !s.ownsSpecialist(w, c, "schedules delete", row.Specialist) {
		return
	}
	if err := s.Booking.DeleteSchedule(ctx, id); err != nil {
		writeServiceError(w, c.log, "schedules delete", err)
		return
	}
	c.log.Info("schedules delete: ok", slog.String("schedule_id", id))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"id": id})
}

func (s *Server) listDaysOff(w http.ResponseWriter, r *http.Request, c *call) {
	ctx, cancel := storeContext(r)
	defer cancel()

	rows, err := s.Booking.ListDaysOff(ctx, c.values.Get("desde"))
	if err != nil {
		writeServiceError(w, c.log, "days off list", err)
		return
	}
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"diasLibres": rows})
}

func (s *Server) createDayOff(w http.ResponseWriter, r *http.Request, c *call) {
	var req models.DayOffRequest
	if !s.decodeData(w, c, "days off create", &req) {
		return
	}
	if !s.ownsSpecialist(w, c, "days off create", req.Specialist) {
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()

	off, err := s.Booking.CreateDayOff(ctx, models.DayOff{
		Specialist: req.Specialist,
		Date:       req.Date,
		AllDay:     req.AllDay,
		Start:      req.Start,
		End:        req.End,
		Reason:     strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeServiceError(w, c.log, "days off create", err)
		return
	}
	c.log.Info("days off create: ok", slog.String("day_off_id", off.ID), slog.String("date", off.Date))
	transport.WriteSuccess(w, http.StatusCreated, map[string]interface{}{"diaLibre": off})
}

func (s *Server) deleteDayOff(w http.ResponseWriter, r *http.Request, c *call) {
	id := strings.TrimSpace(c.values.Get("id"))
	if id == "" {
		writeInvalid(w, c.log, "days off delete", "missing id")
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()

	off, err := s.Booking.DayOff(ctx, id)
	if err != nil {
		writeServiceError(w, c.log, "days off delete", err)
		return
	}
	if !s.ownsSpecialist(w, c, "days off delete", off.Specialist) {
		return
	}
	if err := s.Booking.DeleteDayOff(ctx, id); err != nil {
		writeServiceError(w, c.log, "days off delete", err)
		return
	}
	c.log.Info("days off delete: ok", slog.String("day_off_id", id))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"id": id})
}

// ownsSpecialist keeps barbers from editing another specialist's calendar or
// closing the whole shop.
func (s *Server) ownsSpecialist(w http.ResponseWriter, c *call, op, specialist string) bool {
	p := c.principal
	if p.Role != models.RoleBarber || p.Specialist == "" || p.Has(models.PermAdmin) {
		return true
	}
	if strings.TrimSpace(specialist) == p.Specialist {
		return true
	}
	c.log.Warn(op+": foreign specialist", slog.String("specialist", specialist))
	transport.WriteError(w, http.StatusForbidden, "forbidden", "specialist belongs to another user", nil)
	return false
}
