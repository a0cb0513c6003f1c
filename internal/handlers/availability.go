package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"barberia-backend/internal/booking"
	"barberia-backend/internal/httpx"
	"barberia-backend/internal/transport"
)

// requestDuration resolves the slot length from "servicio" or "duracion".
func (s *Server) requestDuration(r *http.Request, c *call) (int, error) {
	duration, err := httpx.ParsePositiveInt(c.values.Get("duracion"), 0)
	if err != nil {
		return 0, fmt.Errorf("%w: duracion %q", booking.ErrInvalidDuration, c.values.Get("duracion"))
	}
	ctx, cancel := storeContext(r)
	defer cancel()
	return s.Booking.ResolveDuration(ctx, c.values.Get("servicio"), duration)
}

func (s *Server) availableSlots(w http.ResponseWriter, r *http.Request, c *call) {
	specialist := strings.TrimSpace(c.values.Get("especialista"))
	date := strings.TrimSpace(c.values.Get("fecha"))
	if specialist == "" || date == "" {
		writeInvalid(w, c.log, "availability", "especialista and fecha are required")
		return
	}
	duration, err := s.requestDuration(r, c)
	if err != nil {
		writeServiceError(w, c.log, "availability", err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()

	slots, err := s.Booking.AvailableSlots(ctx, specialist, date, duration)
	if err != nil {
		writeServiceError(w, c.log, "availability", err)
		return
	}
	c.log.Info("availability: ok", slog.String("date", date), slog.String("specialist", specialist), slog.Int("slots", len(slots)))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"fecha":        date,
		"especialista": specialist,
		"duracion":     duration,
		"slots":        slots,
	})
}

func (s *Server) nextAvailable(w http.ResponseWriter, r *http.Request, c *call) {
	specialist := strings.TrimSpace(c.values.Get("especialista"))
	if specialist == "" {
		writeInvalid(w, c.log, "availability next", "especialista is required")
		return
	}
	duration, err := s.requestDuration(r, c)
	if err != nil {
		writeServiceError(w, c.log, "availability next", err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()

	date, slots, err := s.Booking.NextAvailable(ctx, specialist, c.values.Get("desde"), duration)
	if err != nil {
		writeServiceError(w, c.log, "availability next", err)
		return
	}
	c.log.Info("availability next: ok", slog.String("date", date), slog.Int("slots", len(slots)))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"fecha":        date,
		"especialista": specialist,
		"duracion":     duration,
		"slots":        slots,
	})
}

// busyIntervals lists occupied time without any client data.
func (s *Server) busyIntervals(w http.ResponseWriter, r *http.Request, c *call) {
	ctx, cancel := storeContext(r)
	defer cancel()

	busy, err := s.Booking.Busy(ctx, c.values.Get("especialista"), strings.TrimSpace(c.values.Get("fecha")))
	if err != nil {
		writeServiceError(w, c.log, "availability busy", err)
		return
	}
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"ocupados": busy})
}
