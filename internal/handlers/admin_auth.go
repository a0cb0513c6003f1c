package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"barberia-backend/internal/auth"
	"barberia-backend/internal/models"
	"barberia-backend/internal/transport"
)

func (s *Server) login(w http.ResponseWriter, r *http.Request, c *call) {
	username := c.values.Get("usuario")
	password := c.values.Get("password")
	if models.NormalizeUsername(username) == "" || password == "" {
		writeInvalid(w, c.log, "auth login", "usuario and password are required")
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()

	res, err := s.Auth.Login(ctx, username, password)
	if err != nil {
		writeServiceError(w, c.log.With(slog.String("username", models.NormalizeUsername(username))), "auth login", err)
		return
	}
	c.log.Info("auth login: ok", slog.String("username", res.Principal.Username), slog.String("role", res.Principal.Role))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
		"usuario":   res.Principal,
	})
}

// validateToken always answers 200 and reports the outcome in "valido".
func (s *Server) validateToken(w http.ResponseWriter, r *http.Request, c *call) {
	if c.token == "" {
		transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"valido": false, "motivo": "unauthorized"})
		return
	}
	ctx, cancel := storeContext(r)
	defer cancel()

	session, err := s.Auth.Session(ctx, c.token)
	switch {
	case err == nil:
		transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{
			"valido":    true,
			"usuario":   auth.PrincipalOf(session),
			"expiresAt": session.ExpiresAt,
		})
	case errors.Is(err, auth.ErrTokenExpired):
		transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"valido": false, "motivo": "token_expired"})
	case errors.Is(err, auth.ErrInvalidToken):
		transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"valido": false, "motivo": "unauthorized"})
	default:
		writeServiceError(w, c.log, "auth validate", err)
	}
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, c *call) {
	ctx, cancel := storeContext(r)
	defer cancel()

	if err := s.Auth.Logout(ctx, c.token); err != nil {
		writeServiceError(w, c.log, "auth logout", err)
		return
	}
	c.log.Info("auth logout: ok")
	transport.WriteSuccess(w, http.StatusOK, nil)
}

func (s *Server) cleanupTokens(w http.ResponseWriter, r *http.Request, c *call) {
	ctx, cancel := storeContext(r)
	defer cancel()

	cleaned, err := s.Auth.CleanupExpired(ctx)
	if err != nil {
		writeServiceError(w, c.log, "auth cleanup", err)
		return
	}
	c.log.Info("auth cleanup: ok", slog.Int64("removed", cleaned))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"cleaned": cleaned})
}
