package handlers

import (
	"log/slog"
	"net/http"

	"barberia-backend/internal/transport"
)

func (s *Server) listServices(w http.ResponseWriter, r *http.Request, c *call) {
	ctx, cancel := storeContext(r)
	defer cancel()

	items, err := s.Booking.ListServices(ctx, c.values.Get("todos") != "true")
	if err != nil {
		writeServiceError(w, c.log, "services list", err)
		return
	}
	c.log.Info("services list: ok", slog.Int("count", len(items)))
	transport.WriteSuccess(w, http.StatusOK, map[string]interface{}{"servicios": items})
}
