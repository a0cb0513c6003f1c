package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"barberia-backend/internal/session"
)

type LoginCmd struct {
	Username string `arg:"" name:"usuario" help:"Staff username."`
	Password string `help:"Password. Read from stdin when empty." env:"BARBERCTL_PASSWORD"`
}

func (c *LoginCmd) Run(ctx *Context) error {
	password := c.Password
	if password == "" {
		ctx.printf("Password: ")
		line, err := bufio.NewReader(ctx.In).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	s, err := ctx.Session.Login(ctx.Ctx, c.Username, password)
	if err != nil {
		var locked *session.LockedOutError
		var failed *session.LoginFailedError
		if errors.As(err, &locked) || errors.As(err, &failed) {
			return err
		}
		return fmt.Errorf("login failed: %w", err)
	}
	ctx.printf("Logged in as %s (%s), session valid until %s\n",
		s.Username, s.Role, s.ExpiresAt.In(ctx.Location).Format("2006-01-02 15:04"))
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *Context) error {
	ctx.Session.Logout()
	ctx.Session.Wait()
	ctx.printf("Logged out\n")
	return nil
}

type WhoamiCmd struct {
	Remote bool `help:"Check the token against the server."`
}

func (c *WhoamiCmd) Run(ctx *Context) error {
	s, ok := ctx.Session.Current()
	if !ok {
		ctx.printf("Not logged in (%s)\n", ctx.Session.State())
		return nil
	}
	ctx.printf("%s (%s) %s\n", s.Username, s.Name, s.Role)
	if s.Specialist != "" {
		ctx.printf("  barbero: %s\n", s.Specialist)
	}
	ctx.printf("  permisos: %s\n", strings.Join(s.Permissions, ", "))
	ctx.printf("  expires: %s (in %s)\n", s.ExpiresAt.In(ctx.Location).Format("2006-01-02 15:04"),
		time.Until(s.ExpiresAt).Round(time.Minute))

	if !c.Remote {
		return nil
	}
	status, err := ctx.API.ValidateToken(ctx.Ctx, s.Token)
	if err != nil {
		return err
	}
	if !status.Valid {
		ctx.Session.Invalidate()
		ctx.printf("  server rejected the token: %s\n", status.Reason)
		return nil
	}
	ctx.printf("  server: token valid\n")
	return nil
}
