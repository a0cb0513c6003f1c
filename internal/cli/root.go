package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"

	"barberia-backend/internal/cache"
	"barberia-backend/internal/client"
	"barberia-backend/internal/logging"
	"barberia-backend/internal/session"
)

const keyringService = "barberctl"

type Globals struct {
	Endpoint string `help:"Action endpoint URL." env:"BARBERIA_ENDPOINT" default:"http://localhost:8080/api/exec"`
	APIKey   string `name:"api-key" help:"Shared API key." env:"BARBERIA_API_KEY"`
	Store    string `help:"Where the staff session is kept." enum:"file,keyring" default:"file" env:"BARBERCTL_STORE"`
	StateDir string `help:"Directory for session files and logs." type:"path" default:"~/.config/barberctl" env:"BARBERCTL_DIR"`
	Timezone string `help:"Shop time zone." default:"America/Argentina/Buenos_Aires" env:"TZ_NAME"`
	Step     int    `help:"Slot step in minutes, as configured on the server." default:"15"`
	Debug    bool   `help:"Log to stderr."`
}

type CLI struct {
	Globals
	Version kong.VersionFlag `help:"Print version."`

	Login    LoginCmd    `cmd:"" help:"Log in as staff."`
	Logout   LogoutCmd   `cmd:"" help:"End the staff session."`
	Whoami   WhoamiCmd   `cmd:"" help:"Show the current session."`
	Services ServicesCmd `cmd:"" name:"servicios" help:"List services."`
	Slots    SlotsCmd    `cmd:"" help:"Show free start times for a barber."`
	Book     BookCmd     `cmd:"" name:"reservar" help:"Book an appointment."`
	Cancel   CancelCmd   `cmd:"" name:"cancelar" help:"Cancel an appointment."`
	Show     ShowCmd     `cmd:"" name:"turno" help:"Show one appointment."`

	Appointments AppointmentsCmd  `cmd:"" name:"turnos" help:"List appointments (staff)."`
	Status       StatusCmd        `cmd:"" name:"estado" help:"Change an appointment status (staff)."`
	Stats        StatsCmd         `cmd:"" name:"estadisticas" help:"Appointment statistics (staff)."`
	Cleanup      CleanupTokensCmd `cmd:"" name:"limpiar-sesiones" help:"Remove expired sessions on the server (admin)."`

	Users struct {
		List   UsersListCmd   `cmd:"" default:"1" help:"List users."`
		Add    UsersAddCmd    `cmd:"" help:"Create a user."`
		Delete UsersDeleteCmd `cmd:"" help:"Delete a user."`
	} `cmd:"" name:"usuarios" help:"Manage staff users."`
	Schedules struct {
		List   SchedulesListCmd   `cmd:"" default:"withargs" help:"List weekly schedules."`
		Add    SchedulesAddCmd    `cmd:"" help:"Add a schedule row."`
		Delete SchedulesDeleteCmd `cmd:"" help:"Delete a schedule row."`
	} `cmd:"" name:"horarios" help:"Manage weekly schedules."`
	DaysOff struct {
		List   DaysOffListCmd   `cmd:"" default:"1" help:"List days off."`
		Add    DaysOffAddCmd    `cmd:"" help:"Add a day off."`
		Delete DaysOffDeleteCmd `cmd:"" help:"Delete a day off."`
	} `cmd:"" name:"dias-libres" help:"Manage days off."`
}

// Build wires the client stack for one invocation.
func Build(ctx context.Context, g Globals, in io.Reader, out io.Writer) (*Context, error) {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", g.Timezone, err)
	}
	log, err := logging.NewCLI(filepath.Join(g.StateDir, "logs"), g.Debug)
	if err != nil {
		return nil, err
	}

	var store session.Store
	switch g.Store {
	case "keyring":
		if !session.KeyringAvailable(keyringService) {
			return nil, session.ErrKeyringUnavailable
		}
		store = session.NewKeyringStore(keyringService)
	default:
		store = session.NewFileStore(g.StateDir)
	}

	base := client.New(g.Endpoint, g.APIKey, client.WithLogger(log))
	api := client.NewCached(base, cache.NewMemory(), loc, g.Step)
	return &Context{
		Ctx:      ctx,
		API:      api,
		Session:  session.NewManager(api, store, log),
		Location: loc,
		In:       in,
		Out:      out,
		Log:      log,
	}, nil
}
