package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"barberia-backend/internal/auth"
	"barberia-backend/internal/booking"
	"barberia-backend/internal/transport"
)

const storeTimeout = 8 * time.Second

func storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), storeTimeout)
}

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var serviceErrors = []errorMapping{
	{booking.ErrNotFound, http.StatusNotFound, "not_found", "appointment not found"},
	{booking.ErrServiceNotFound, http.StatusNotFound, "not_found", "service not found"},
	{booking.ErrScheduleNotFound, http.StatusNotFound, "not_found", "schedule not found"},
	{booking.ErrDayOffNotFound, http.StatusNotFound, "not_found", "day off not found"},
	{booking.ErrNoAvailability, http.StatusNotFound, "not_found", "no availability in range"},
	{auth.ErrUserNotFound, http.StatusNotFound, "not_found", "user not found"},
	{booking.ErrDateInPast, http.StatusBadRequest, "date_in_past", "date in the past"},
	{booking.ErrSlotPassed, http.StatusBadRequest, "date_in_past", "slot already passed"},
	{booking.ErrSlotNotAllowed, http.StatusBadRequest, "slot_not_allowed", "slot not available"},
	{booking.ErrSlotTaken, http.StatusConflict, "slot_taken", "slot already taken"},
	{booking.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "cancelled appointments cannot change status"},
	{auth.ErrUserExists, http.StatusConflict, "conflict", "user already exists"},
	{auth.ErrCannotDeleteSelf, http.StatusConflict, "conflict", "cannot delete own user"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid username or password"},
	{auth.ErrTokenExpired, http.StatusUnauthorized, "token_expired", "session expired"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "unauthorized", "invalid token"},
	{booking.ErrMissingSpecialist, http.StatusBadRequest, "invalid_request", "missing specialist"},
	{booking.ErrInvalidDate, http.StatusBadRequest, "invalid_request", "invalid date"},
	{booking.ErrInvalidTime, http.StatusBadRequest, "invalid_request", "invalid time"},
	{booking.ErrInvalidDuration, http.StatusBadRequest, "invalid_request", "invalid duration"},
	{booking.ErrInvalidRange, http.StatusBadRequest, "invalid_request", "invalid range"},
	{booking.ErrInvalidStatus, http.StatusBadRequest, "invalid_request", "invalid status"},
	{booking.ErrInvalidWeekday, http.StatusBadRequest, "invalid_request", "invalid weekday"},
	{auth.ErrInvalidUser, http.StatusBadRequest, "invalid_request", "invalid user"},
}

// writeServiceError maps domain errors to the envelope. Anything unknown is
// logged and reported as internal without details.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			log.Warn(op+": rejected", slog.String("code", m.code), slog.String("error", err.Error()))
			transport.WriteError(w, m.status, m.code, m.message, nil)
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		log.Error(op+": timeout", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusGatewayTimeout, "internal", "store timeout", nil)
		return
	}
	log.Error(op+": failed", slog.String("error", err.Error()))
	transport.WriteError(w, http.StatusInternalServerError, "internal", "internal error", nil)
}

func writeInvalid(w http.ResponseWriter, log *slog.Logger, op, message string) {
	log.Warn(op+": invalid request", slog.String("reason", message))
	transport.WriteError(w, http.StatusBadRequest, "invalid_request", message, nil)
}
