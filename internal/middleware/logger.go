package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// responseMeter remembers what the handler sent so the access line can report it.
type responseMeter struct {
	http.ResponseWriter
	code    int
	written int
}

func (m *responseMeter) WriteHeader(code int) {
	if m.code == 0 {
		m.code = code
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(b []byte) (int, error) {
	if m.code == 0 {
		m.code = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(b)
	m.written += n
	return n, err
}

func (m *responseMeter) status() int {
	if m.code == 0 {
		return http.StatusOK
	}
	return m.code
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Logger writes one access line per call. Every action shares /exec, so the
// action name is part of the line.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			meter := &responseMeter{ResponseWriter: w}
			next.ServeHTTP(meter, r)

			action := r.FormValue("action")
			status := meter.status()
			log.LogAttrs(context.Background(), levelFor(status), "exec",
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("action", action),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("ip", ClientIP(r)),
				slog.Int("status", status),
				slog.Int("bytes", meter.written),
				slog.Int64("elapsed_ms", time.Since(began).Milliseconds()),
			)
		})
	}
}
