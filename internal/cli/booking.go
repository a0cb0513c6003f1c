package cli

import (
	"errors"
	"fmt"

	"barberia-backend/internal/client"
	"barberia-backend/internal/models"
)

type ServicesCmd struct{}

func (c *ServicesCmd) Run(ctx *Context) error {
	items, err := ctx.API.Services(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to list services: %w", err)
	}
	if len(items) == 0 {
		ctx.printf("No services found\n")
		return nil
	}
	for _, s := range items {
		price := formatPrice(s.Price)
		if s.OfferPrice != nil {
			price = fmt.Sprintf("%s (oferta %s)", price, formatPrice(*s.OfferPrice))
		}
		ctx.printf("  %-16s %-24s %3dm  %s\n", s.ID, s.Name, s.DurationMinutes, price)
	}
	return nil
}

type SlotsCmd struct {
	Specialist string `arg:"" name:"especialista" help:"Barber name."`
	Date       string `arg:"" name:"fecha" optional:"" help:"Date (YYYY-MM-DD). Defaults to today."`
	Service    string `short:"s" name:"servicio" help:"Service id used for the duration."`
	Duration   int    `short:"d" name:"duracion" help:"Duration in minutes."`
	Next       bool   `short:"n" help:"Search forward for the next day with free slots."`
	Local      bool   `help:"Compute slots on this machine from cached schedules."`
}

func (c *SlotsCmd) Validate() error {
	if c.Local && c.Next {
		return errors.New("--local and --next cannot be combined")
	}
	if c.Local && c.Duration <= 0 && c.Service == "" {
		return errors.New("--local needs --duracion or --servicio")
	}
	return nil
}

func (c *SlotsCmd) Run(ctx *Context) error {
	date := c.Date
	if date == "" {
		date = ctx.today()
	}

	if c.Local {
		duration := c.Duration
		if duration <= 0 {
			d, err := c.serviceDuration(ctx)
			if err != nil {
				return err
			}
			duration = d
		}
		slots, err := ctx.API.LocalSlots(ctx.Ctx, c.Specialist, date, duration)
		if err != nil {
			return err
		}
		ctx.printf("%s %s (%dm, local): %s\n", c.Specialist, date, duration, formatSlots(slots))
		return nil
	}

	var res client.SlotsResult
	var err error
	if c.Next {
		res, err = ctx.API.NextAvailable(ctx.Ctx, c.Specialist, date, c.Service, c.Duration)
	} else {
		res, err = ctx.API.Slots(ctx.Ctx, c.Specialist, date, c.Service, c.Duration)
	}
	if err != nil {
		return err
	}
	ctx.printf("%s %s (%dm): %s\n", res.Specialist, res.Date, res.Duration, formatSlots(res.Slots))
	return nil
}

func (c *SlotsCmd) serviceDuration(ctx *Context) (int, error) {
	items, err := ctx.API.Services(ctx.Ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range items {
		if s.ID == c.Service {
			return s.DurationMinutes, nil
		}
	}
	return 0, fmt.Errorf("unknown service %q", c.Service)
}

type BookCmd struct {
	Specialist string `arg:"" name:"especialista" help:"Barber name."`
	Date       string `arg:"" name:"fecha" help:"Date (YYYY-MM-DD)."`
	Time       string `arg:"" name:"hora" help:"Start time (HH:MM)."`
	Service    string `short:"s" name:"servicio" required:"" help:"Service id."`
	Name       string `name:"nombre" required:"" help:"Client name."`
	Email      string `name:"email" required:"" help:"Client email."`
	Phone      string `name:"telefono" help:"Client phone."`
	Notes      string `name:"notas" help:"Notes for the barber."`
}

func (c *BookCmd) Run(ctx *Context) error {
	res, err := ctx.API.Book(ctx.Ctx, models.BookingRequest{
		ClientName:  c.Name,
		ClientEmail: c.Email,
		ClientPhone: c.Phone,
		ServiceID:   c.Service,
		Specialist:  c.Specialist,
		Date:        c.Date,
		StartTime:   c.Time,
		Notes:       c.Notes,
	})
	if err != nil {
		if errors.Is(err, client.ErrSlotTaken) {
			return fmt.Errorf("%s %s is no longer free", c.Date, c.Time)
		}
		return err
	}
	a := res.Appointment
	ctx.printf("Booked %s with %s on %s at %s (id %s)\n", a.ServiceName, a.Specialist, a.Date, a.StartTime, a.ID)
	ctx.printf("Remaining slots: %s\n", formatSlots(res.Slots))
	return nil
}

type CancelCmd struct {
	ID string `arg:"" help:"Appointment id."`
}

func (c *CancelCmd) Run(ctx *Context) error {
	a, err := ctx.API.Cancel(ctx.Ctx, c.ID)
	if err != nil {
		return err
	}
	ctx.printf("Appointment %s is %s\n", a.ID, a.Status)
	return nil
}

type ShowCmd struct {
	ID string `arg:"" help:"Appointment id."`
}

func (c *ShowCmd) Run(ctx *Context) error {
	a, err := ctx.API.Appointment(ctx.Ctx, c.ID)
	if err != nil {
		return err
	}
	printAppointment(ctx, a)
	ctx.printf("    %s %s  %s\n", a.ClientEmail, a.ClientPhone, formatPrice(a.Price))
	if a.Notes != "" {
		ctx.printf("    %s\n", a.Notes)
	}
	return nil
}
