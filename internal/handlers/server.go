package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"barberia-backend/internal/auth"
	"barberia-backend/internal/booking"
	"barberia-backend/internal/config"
	"barberia-backend/internal/middleware"
	"barberia-backend/internal/models"
	"barberia-backend/internal/validation"
	"github.com/go-chi/chi/v5"
)

type BookingMailer interface {
	SendBookingConfirmation(ctx context.Context, a models.Appointment) (string, error)
	SendOwnerNotification(ctx context.Context, ownerEmail string, a models.Appointment) (string, error)
}

type Server struct {
	Cfg     *config.Config
	Booking *booking.Service
	Auth    *auth.Service
	Val     *validation.Validator
	Log     *slog.Logger
	Mailer  BookingMailer

	BookingLimiter *middleware.RateLimiter
	LoginLimiter   *middleware.RateLimiter

	once    sync.Once
	actions map[string]action
}

// Mount registers the action endpoint and the health check.
func (s *Server) Mount(r chi.Router) {
	r.Get("/healthz", s.Health)
	r.Group(func(api chi.Router) {
		api.Use(middleware.APIKey(s.Cfg.APIKey))
		for _, path := range []string{"/exec", "/api/exec"} {
			api.Get(path, s.Exec)
			api.Post(path, s.Exec)
		}
	})
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"success":true,"status":"ok"}`))
}

func (s *Server) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return s.Log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return s.Log.With(slog.String("request_id", id))
	}
	return s.Log
}
