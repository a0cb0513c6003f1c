package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"barberia-backend/internal/booking"
	"barberia-backend/internal/httpx"
	"barberia-backend/internal/models"
	"barberia-backend/internal/transport"
)

func (s *Server) listAppointments(w http.ResponseWriter, r *http.Request, c *call) {
	limit, offset, err := httpx.ParseLimitOffset(c.values, 100, 500)
	if err != nil {
		writeInvalid(w, c.log, "appointments list", err.Error())
		return
	}
	filter := booking.ListFilter{
		Date:       strings.TrimSpace(c.values.Get("fecha")),
		From:       strings.TrimSpace(c.values.Get("desde")),
		To:         strings.TrimSpace(c.values.Get("hasta")),
		Specialist: c.values.Get("especialista"),
		Status:     strings.TrimSpace(c.values.Get("estado")),
	}
	// Barbers only see their own chair.
	if c.principal.Role == models.RoleBarber && c.principal.Specialist != "" {
		filter.Specialist = c.principal.Specialist
	}

	ctx, cancel := storeContext(r)
	defer cancel()

	items, total, err := s.Booking.List(ctx, filter, limit, offset)
	if err != nil {
		writeServiceError(w, c.log, "appointments list", err)
		return
	}
	c.log.Info("appointments list: ok", slog.Int("count", len(items)), slog.Int64("total", total))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"turnos": items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) getAppointment(w http.ResponseWriter, r *http.Request, c *call) {
	id := strings.TrimSpace(c.values.Get("id"))
	if id == "" {
		writeInvalid(w, c.log, "appointments get", "missing id")
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()

	a, err := s.Booking.Get(ctx, id)
	if err != nil {
		writeServiceError(w, c.log, "appointments get", err)
		return
	}
	c.log.Info("appointments get: ok", slog.String("appointment_id", id))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"turno": a})
}

func (s *Server) createBooking(w http.ResponseWriter, r *http.Request, c *call) {
	var req models.BookingRequest
	if !s.decodeData(w, c, "appointments create", &req) {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()

	appointment, err := s.Booking.Book(ctx, booking.Draft{
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
		ServiceID:   req.ServiceID,
		Specialist:  req.Specialist,
		Date:        req.Date,
		StartTime:   req.StartTime,
		Notes:       req.Notes,
	})
	if err != nil {
		writeServiceError(w, c.log, "appointments create", err)
		return
	}

	if s.Mailer != nil {
		go s.sendBookingEmails(c.log, appointment)
	}

	c.log.Info("appointments create: booked",
		slog.String("appointment_id", appointment.ID),
		slog.String("service_id", appointment.ServiceID),
		slog.String("specialist", appointment.Specialist),
		slog.String("date", appointment.Date),
		slog.String("time", appointment.StartTime),
	)
	slots, err := s.Booking.AvailableSlots(ctx, appointment.Specialist, appointment.Date, appointment.Duration)
	if err != nil {
		c.log.Warn("appointments create: availability compute error", slog.String("error", err.Error()))
		slots = []string{}
	}
	transport.WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"turno": appointment,
		"slots": slots,
	})
}

func (s *Server) sendBookingEmails(log *slog.Logger, a models.Appointment) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	if a.ClientEmail != "" {
		messageID, err := s.Mailer.SendBookingConfirmation(ctx, a)
		if err != nil {
			log.Warn("appointments email: send failed",
				slog.String("appointment_id", a.ID),
				slog.String("email", a.ClientEmail),
				slog.String("error", err.Error()),
			)
		} else {
			log.Info("appointments email: sent",
				slog.String("appointment_id", a.ID),
				slog.String("message_id", messageID),
			)
		}
	}

	if s.Cfg.OwnerEmail == "" {
		return
	}
	if _, err := s.Mailer.SendOwnerNotification(ctx, s.Cfg.OwnerEmail, a); err != nil {
		log.Warn("appointments owner email: send failed",
			slog.String("appointment_id", a.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) cancelAppointment(w http.ResponseWriter, r *http.Request, c *call) {
	id := strings.TrimSpace(c.values.Get("id"))
	if id == "" {
		id = strings.TrimSpace(c.values.Get("eventId"))
	}
	if id == "" {
		writeInvalid(w, c.log, "appointments cancel", "missing id")
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()

	a, err := s.Booking.Cancel(ctx, id)
	if err != nil {
		writeServiceError(w, c.log, "appointments cancel", err)
		return
	}
	c.log.Info("appointments cancel: ok", slog.String("appointment_id", a.ID))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"turno": a})
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request, c *call) {
	id := strings.TrimSpace(c.values.Get("id"))
	status := strings.TrimSpace(c.values.Get("estado"))
	if id == "" || status == "" {
		writeInvalid(w, c.log, "appointments status", "id and estado are required")
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()

	if c.principal.Role == models.RoleBarber && c.principal.Specialist != "" {
		current, err := s.Booking.Get(ctx, id)
		if err != nil {
			writeServiceError(w, c.log, "appointments status", err)
			return
		}
		if current.Specialist != c.principal.Specialist {
			c.log.Warn("appointments status: foreign appointment", slog.String("appointment_id", id))
			transport.WriteError(w, http.StatusForbidden, "forbidden", "appointment belongs to another specialist", nil)
			return
		}
	}

	a, err := s.Booking.UpdateStatus(ctx, id, status)
	if err != nil {
		writeServiceError(w, c.log, "appointments status", err)
		return
	}
	c.log.Info("appointments status: updated", slog.String("appointment_id", a.ID), slog.String("status", a.Status))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"turno": a})
}

func (s *Server) appointmentStats(w http.ResponseWriter, r *http.Request, c *call) {
	from := strings.TrimSpace(c.values.Get("desde"))
	to := strings.TrimSpace(c.values.Get("hasta"))
	if from == "" || to == "" {
		writeInvalid(w, c.log, "appointments stats", "desde and hasta are required")
		return
	}
	specialist := strings.TrimSpace(c.values.Get("especialista"))
	if c.principal.Role == models.RoleBarber && c.principal.Specialist != "" {
		specialist = c.principal.Specialist
	}
	ctx, cancel := storeContext(r)
	defer cancel()

	stats, err := s.Booking.Stats(ctx, from, to, specialist)
	if err != nil {
		writeServiceError(w, c.log, "appointments stats", err)
		return
	}
	c.log.Info("appointments stats: ok", slog.Int("total", stats.Total))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"estadisticas": stats})
}
