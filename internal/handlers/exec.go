package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"barberia-backend/internal/auth"
	"barberia-backend/internal/httpx"
	"barberia-backend/internal/middleware"
	"barberia-backend/internal/models"
	"barberia-backend/internal/transport"
)

// call carries what an action handler needs about the current request.
type call struct {
	values    url.Values
	principal models.Principal
	token     string
	log       *slog.Logger
}

type actionFunc func(w http.ResponseWriter, r *http.Request, c *call)

type action struct {
	method string
	// auth requires a valid session token; permission, when set, must be
	// granted to the session.
	auth       bool
	permission string
	limiter    *middleware.RateLimiter
	handle     actionFunc
}

func (s *Server) actionTable() map[string]action {
	s.once.Do(func() {
		get, post := http.MethodGet, http.MethodPost
		s.actions = map[string]action{
			"getTurnos":            {method: get, auth: true, permission: models.PermViewAppointments, handle: s.listAppointments},
			"getTurno":             {method: get, handle: s.getAppointment},
			"getOcupados":          {method: get, handle: s.busyIntervals},
			"getEstadisticas":      {method: get, auth: true, permission: models.PermViewAppointments, handle: s.appointmentStats},
			"getSlots":             {method: get, handle: s.availableSlots},
			"getProximoDisponible": {method: get, handle: s.nextAvailable},
			"getServicios":         {method: get, handle: s.listServices},
			"getHorarios":          {method: get, handle: s.listSchedules},
			"getDiasLibres":        {method: get, handle: s.listDaysOff},
			"validarToken":         {method: get, handle: s.validateToken},
			"getUsuarios":          {method: get, auth: true, permission: models.PermManageUsers, handle: s.listUsers},
			"cleanupTokens":        {method: get, auth: true, permission: models.PermAdmin, handle: s.cleanupTokens},

			"validarLogin":     {method: post, limiter: s.LoginLimiter, handle: s.login},
			"logout":           {method: post, handle: s.logout},
			"crearReserva":     {method: post, limiter: s.BookingLimiter, handle: s.createBooking},
			"cancelarTurno":    {method: post, handle: s.cancelAppointment},
			"actualizarEstado": {method: post, auth: true, permission: models.PermManageAppointments, handle: s.updateStatus},
			"crearUsuario":     {method: post, auth: true, permission: models.PermManageUsers, handle: s.createUser},
			"eliminarUsuario":  {method: post, auth: true, permission: models.PermManageUsers, handle: s.deleteUser},
			"crearHorario":     {method: post, auth: true, permission: models.PermManageSchedules, handle: s.createSchedule},
			"eliminarHorario":  {method: post, auth: true, permission: models.PermManageSchedules, handle: s.deleteSchedule},
			"crearDiaLibre":    {method: post, auth: true, permission: models.PermManageSchedules, handle: s.createDayOff},
			"eliminarDiaLibre": {method: post, auth: true, permission: models.PermManageSchedules, handle: s.deleteDayOff},
		}
	})
	return s.actions
}

// Exec dispatches a call on its "action" parameter.
func (s *Server) Exec(w http.ResponseWriter, r *http.Request) {
	values := httpx.Params(r)
	name := strings.TrimSpace(values.Get("action"))
	log := s.logWithRequest(r).With(slog.String("action", name))

	act, ok := s.actionTable()[name]
	if !ok {
		log.Warn("exec: unknown action")
		transport.WriteError(w, http.StatusBadRequest, "unknown_action", "unknown action", nil)
		return
	}
	if r.Method != act.method {
		log.Warn("exec: method not allowed", slog.String("method", r.Method))
		transport.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "action requires "+act.method, nil)
		return
	}
	if act.limiter != nil && !act.limiter.AllowRequest(r, name) {
		log.Warn("exec: rate limited", slog.String("ip", middleware.ClientIP(r)))
		transport.WriteError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", nil)
		return
	}

	c := &call{values: values, token: httpx.BearerToken(r, values), log: log}
	if act.auth {
		if c.token == "" {
			log.Warn("exec: missing token")
			transport.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing token", nil)
			return
		}
		p, err := s.Auth.Validate(r.Context(), c.token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				log.Info("exec: token expired")
				transport.WriteError(w, http.StatusUnauthorized, "token_expired", "session expired", nil)
			case errors.Is(err, auth.ErrInvalidToken):
				log.Warn("exec: invalid token")
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid token", nil)
			default:
				log.Error("exec: token validation failed", slog.String("error", err.Error()))
				transport.WriteError(w, http.StatusInternalServerError, "internal", "internal error", nil)
			}
			return
		}
		if act.permission != "" && !p.Has(act.permission) {
			log.Warn("exec: forbidden", slog.String("username", p.Username), slog.String("permission", act.permission))
			transport.WriteError(w, http.StatusForbidden, "forbidden", "missing permission", nil)
			return
		}
		c.principal = p
		c.log = log.With(slog.String("username", p.Username))
	}

	act.handle(w, r, c)
}
