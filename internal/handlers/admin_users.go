package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"barberia-backend/internal/auth"
	"barberia-backend/internal/models"
	"barberia-backend/internal/transport"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, c *call) {
	ctx, cancel := storeContext(r)
	defer cancel()

	users, err := s.Auth.ListUsers(ctx)
	if err != nil {
		writeServiceError(w, c.log, "users list", err)
		return
	}
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"usuarios": users})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request, c *call) {
	var req models.UserRequest
	if !s.decodeData(w, c, "users create", &req) {
		return
	}
	role, _ := models.NormalizeRole(req.Role)
	if role == models.RoleAdmin && !c.principal.Has(models.PermAdmin) {
		c.log.Warn("users create: admin role requires admin")
		transport.WriteError(w, http.StatusForbidden, "forbidden", "only administrators can create administrators", nil)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()

	user, err := s.Auth.CreateUser(ctx, auth.NewUser{
		Username:    req.Username,
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		Permissions: req.Permissions,
		Specialist:  req.Specialist,
	})
	if err != nil {
		writeServiceError(w, c.log, "users create", err)
		return
	}
	c.log.Info("users create: ok", slog.String("created", user.Username), slog.String("role", user.Role))
	transport.WriteSuccess(w, http.StatusCreated, map[string]interface{}{"usuario": user})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request, c *call) {
	username := strings.TrimSpace(c.values.Get("id"))
	if username == "" {
		username = strings.TrimSpace(c.values.Get("usuarioId"))
	}
	if username == "" {
		writeInvalid(w, c.log, "users delete", "missing id")
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()

	if err := s.Auth.DeleteUser(ctx, c.principal.Username, username); err != nil {
		writeServiceError(w, c.log, "users delete", err)
		return
	}
	c.log.Info("users delete: ok", slog.String("deleted", models.NormalizeUsername(username)))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"id": models.NormalizeUsername(username)})
}
