// Package cli implements the barberctl commands on top of the cached API
// client and the local staff session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"barberia-backend/internal/client"
	"barberia-backend/internal/models"
	"barberia-backend/internal/session"
)

type Context struct {
	Ctx      context.Context
	API      *client.Cached
	Session  *session.Manager
	Location *time.Location
	In       io.Reader
	Out      io.Writer
	Log      *slog.Logger
}

func (c *Context) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

// token returns the stored staff token or a hint to log in.
func (c *Context) token() (string, error) {
	tok, err := c.Session.Token()
	if err != nil {
		return "", errors.New("not logged in, run: barberctl login <usuario>")
	}
	return tok, nil
}

// staff drops the local session when the server says the token is no
// longer good, so the next command asks for a login.
func (c *Context) staff(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && (apiErr.Code == "unauthorized" || apiErr.Code == "token_expired") {
		c.Session.Invalidate()
		return fmt.Errorf("%w (session cleared, log in again)", err)
	}
	return err
}

func (c *Context) today() string {
	return time.Now().In(c.Location).Format("2006-01-02")
}

func formatSlots(slots []string) string {
	if len(slots) == 0 {
		return "no slots available"
	}
	return strings.Join(slots, " ")
}

func formatPrice(amount int) string {
	return fmt.Sprintf("$%d", amount)
}

func printAppointment(c *Context, a models.Appointment) {
	c.printf("  %s  %s %s-%s  %-12s %-20s %s (%s)\n",
		a.ID, a.Date, a.StartTime, a.EndTime, a.Specialist, a.ServiceName, a.ClientName, a.Status)
}
