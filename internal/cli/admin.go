package cli

import (
	"errors"
	"strings"
	"time"

	"barberia-backend/internal/models"
)

type UsersListCmd struct{}

func (c *UsersListCmd) Run(ctx *Context) error {
	tok, err := ctx.token()
	if err != nil {
		return err
	}
	users, err := ctx.API.Users(ctx.Ctx, tok)
	if err != nil {
		return ctx.staff(err)
	}
	for _, u := range users {
		extra := ""
		if u.Specialist != "" {
			extra = " barbero=" + u.Specialist
		}
		ctx.printf("  %-14s %-24s %-14s%s\n", u.Username, u.Name, u.Role, extra)
	}
	return nil
}

type UsersAddCmd struct {
	Username    string   `arg:"" name:"usuario" help:"Login name."`
	Password    string   `required:"" help:"Initial password." env:"BARBERCTL_NEW_PASSWORD"`
	Name        string   `name:"nombre" help:"Display name."`
	Email       string   `help:"Email address."`
	Role        string   `name:"rol" help:"Administrador, Barbero or Empleado."`
	Permissions []string `name:"permiso" help:"Extra permission, repeatable."`
	Specialist  string   `name:"barbero" help:"Barber this user acts as."`
}

func (c *UsersAddCmd) Run(ctx *Context) error {
	tok, err := ctx.token()
	if err != nil {
		return err
	}
	u, err := ctx.API.CreateUser(ctx.Ctx, tok, models.UserRequest{
		Username:    c.Username,
		Name:        c.Name,
		Email:       c.Email,
		Password:    c.Password,
		Role:        c.Role,
		Permissions: c.Permissions,
		Specialist:  c.Specialist,
	})
	if err != nil {
		return ctx.staff(err)
	}
	ctx.printf("Created user %s (%s): %s\n", u.Username, u.Role, strings.Join(u.Permissions, ", "))
	return nil
}

type UsersDeleteCmd struct {
	Username string `arg:"" name:"usuario" help:"User to delete."`
}

func (c *UsersDeleteCmd) Run(ctx *Context) error {
	tok, err := ctx.token()
	if err != nil {
		return err
	}
	if err := ctx.API.DeleteUser(ctx.Ctx, tok, c.Username); err != nil {
		return ctx.staff(err)
	}
	ctx.printf("Deleted user %s\n", c.Username)
	return nil
}

var weekdays = map[string]int{
	"dom": 0, "domingo": 0,
	"lun": 1, "lunes": 1,
	"mar": 2, "martes": 2,
	"mie": 3, "miercoles": 3, "miércoles": 3,
	"jue": 4, "jueves": 4,
	"vie": 5, "viernes": 5,
	"sab": 6, "sabado": 6, "sábado": 6,
}

// ParseWeekday accepts a Spanish day name or 0-6 with 0 for Sunday.
func ParseWeekday(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, ok := weekdays[s]; ok {
		return d, nil
	}
	if len(s) == 1 && s[0] >= '0' && s[0] <= '6' {
		return int(s[0] - '0'), nil
	}
	return 0, errors.New("invalid weekday: " + s)
}

type SchedulesListCmd struct {
	Specialist string `arg:"" name:"especialista" optional:"" help:"Only this barber."`
}

func (c *SchedulesListCmd) Run(ctx *Context) error {
	rows, err := ctx.API.Schedules(ctx.Ctx, c.Specialist)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		ctx.printf("No schedules found\n")
		return nil
	}
	for _, r := range rows {
		ctx.printf("  %s  %-12s %-9s %s-%s\n", r.ID, r.Specialist, time.Weekday(r.Weekday), r.Start, r.End)
	}
	return nil
}

type SchedulesAddCmd struct {
	Specialist string `arg:"" name:"especialista" help:"Barber name."`
	Day        string `arg:"" name:"dia" help:"Weekday (lunes, mar, 0-6)."`
	Start      string `arg:"" name:"inicio" help:"Opening time (HH:MM)."`
	End        string `arg:"" name:"fin" help:"Closing time (HH:MM)."`
}

func (c *SchedulesAddCmd) Run(ctx *Context) error {
	day, err := ParseWeekday(c.Day)
	if err != nil {
		return err
	}
	tok, err := ctx.token()
	if err != nil {
		return err
	}
	row, err := ctx.API.CreateSchedule(ctx.Ctx, tok, models.ScheduleRequest{
		Specialist: c.Specialist, Weekday: day, Start: c.Start, End: c.End,
	})
	if err != nil {
		return ctx.staff(err)
	}
	ctx.printf("Added %s %s %s-%s (id %s)\n", row.Specialist, time.Weekday(row.Weekday), row.Start, row.End, row.ID)
	return nil
}

type SchedulesDeleteCmd struct {
	ID string `arg:"" help:"Schedule id."`
}

func (c *SchedulesDeleteCmd) Run(ctx *Context) error {
	tok, err := ctx.token()
	if err != nil {
		return err
	}
	if err := ctx.API.DeleteSchedule(ctx.Ctx, tok, c.ID); err != nil {
		return ctx.staff(err)
	}
	ctx.printf("Deleted schedule %s\n", c.ID)
	return nil
}

type DaysOffListCmd struct {
	From string `name:"desde" help:"Only from this date on. Defaults to today."`
}

func (c *DaysOffListCmd) Run(ctx *Context) error {
	from := c.From
	if from == "" {
		from = ctx.today()
	}
	rows, err := ctx.API.DaysOff(ctx.Ctx, from)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		ctx.printf("No days off from %s\n", from)
		return nil
	}
	for _, d := range rows {
		who := d.Specialist
		if who == "" {
			who = "(todos)"
		}
		span := "all day"
		if !d.AllDay {
			span = d.Start + "-" + d.End
		}
		ctx.printf("  %s  %s %-12s %-11s %s\n", d.ID, d.Date, who, span, d.Reason)
	}
	return nil
}

type DaysOffAddCmd struct {
	Date       string `arg:"" name:"fecha" help:"Date (YYYY-MM-DD)."`
	Specialist string `short:"e" name:"especialista" help:"Barber name. Empty closes the shop."`
	Start      string `name:"inicio" help:"Start of a partial day off (HH:MM)."`
	End        string `name:"fin" help:"End of a partial day off (HH:MM)."`
	Reason     string `name:"motivo" help:"Reason shown to staff."`
}

func (c *DaysOffAddCmd) Validate() error {
	if (c.Start == "") != (c.End == "") {
		return errors.New("--inicio and --fin go together")
	}
	return nil
}

func (c *DaysOffAddCmd) Run(ctx *Context) error {
	tok, err := ctx.token()
	if err != nil {
		return err
	}
	off, err := ctx.API.CreateDayOff(ctx.Ctx, tok, models.DayOffRequest{
		Specialist: c.Specialist,
		Date:       c.Date,
		AllDay:     c.Start == "",
		Start:      c.Start,
		End:        c.End,
		Reason:     c.Reason,
	})
	if err != nil {
		return ctx.staff(err)
	}
	ctx.printf("Added day off %s (id %s)\n", off.Date, off.ID)
	return nil
}

type DaysOffDeleteCmd struct {
	ID string `arg:"" help:"Day off id."`
}

func (c *DaysOffDeleteCmd) Run(ctx *Context) error {
	tok, err := ctx.token()
	if err != nil {
		return err
	}
	if err := ctx.API.DeleteDayOff(ctx.Ctx, tok, c.ID); err != nil {
		return ctx.staff(err)
	}
	ctx.printf("Deleted day off %s\n", c.ID)
	return nil
}
