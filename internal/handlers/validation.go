package handlers

import (
	"log/slog"
	"net/http"

	"barberia-backend/internal/httpx"
	"barberia-backend/internal/transport"
)

// decodeData reads the JSON "data" field into v and validates it. It writes
// the error envelope and returns false on failure.
func (s *Server) decodeData(w http.ResponseWriter, c *call, op string, v interface{}) bool {
	if err := httpx.DecodeData(c.values, v); err != nil {
		c.log.Warn(op+": invalid data", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid data field", nil)
		return false
	}
	if err := s.Val.Struct(v); err != nil {
		c.log.Warn(op + ": validation error")
		details := httpx.ValidationDetails(s.Val.ValidationErrors(err))
		transport.WriteError(w, http.StatusBadRequest, "validation_error", "validation error", details)
		return false
	}
	return true
}
