package cli

import (
	"fmt"
	"sort"

	"barberia-backend/internal/client"
)

type AppointmentsCmd struct {
	Date       string `name:"fecha" help:"Single day (YYYY-MM-DD)."`
	From       string `name:"desde" help:"First day of a range."`
	To         string `name:"hasta" help:"Last day of a range."`
	Specialist string `short:"e" name:"especialista" help:"Only this barber."`
	Status     string `name:"estado" help:"Only this status."`
	Limit      int64  `default:"100" help:"Page size."`
	Offset     int64  `default:"0" help:"Rows to skip."`
}

func (c *AppointmentsCmd) Run(ctx *Context) error {
	tok, err := ctx.token()
	if err != nil {
		return err
	}
	page, err := ctx.API.Appointments(ctx.Ctx, tok, client.ListQuery{
		Date:       c.Date,
		From:       c.From,
		To:         c.To,
		Specialist: c.Specialist,
		Status:     c.Status,
		Limit:      int(c.Limit),
		Offset:     int(c.Offset),
	})
	if err != nil {
		return ctx.staff(err)
	}
	if len(page.Items) == 0 {
		ctx.printf("No appointments found\n")
		return nil
	}
	for _, a := range page.Items {
		printAppointment(ctx, a)
	}
	ctx.printf("%d-%d of %d\n", page.Offset+1, page.Offset+int64(len(page.Items)), page.Total)
	return nil
}

type StatusCmd struct {
	ID     string `arg:"" help:"Appointment id."`
	Status string `arg:"" name:"estado" help:"Confirmado, Cancelado, Completado or 'Cliente Ausente'."`
}

func (c *StatusCmd) Run(ctx *Context) error {
	tok, err := ctx.token()
	if err != nil {
		return err
	}
	a, err := ctx.API.UpdateStatus(ctx.Ctx, tok, c.ID, c.Status)
	if err != nil {
		return ctx.staff(err)
	}
	ctx.printf("Appointment %s is %s\n", a.ID, a.Status)
	return nil
}

type StatsCmd struct {
	From string `name:"desde" help:"First day (YYYY-MM-DD)."`
	To   string `name:"hasta" help:"Last day (YYYY-MM-DD)."`
}

func (c *StatsCmd) Run(ctx *Context) error {
	tok, err := ctx.token()
	if err != nil {
		return err
	}
	st, err := ctx.API.Stats(ctx.Ctx, tok, c.From, c.To)
	if err != nil {
		return ctx.staff(err)
	}
	ctx.printf("%s .. %s: %d appointments, %s\n", st.From, st.To, st.Total, formatPrice(st.Revenue))
	for _, k := range sortedKeys(st.ByStatus) {
		ctx.printf("  %-16s %d\n", k, st.ByStatus[k])
	}
	for _, k := range sortedKeys(st.BySpecialist) {
		b := st.BySpecialist[k]
		ctx.printf("  %-16s %d  %s\n", k, b.Count, formatPrice(b.Revenue))
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type CleanupTokensCmd struct{}

func (c *CleanupTokensCmd) Run(ctx *Context) error {
	tok, err := ctx.token()
	if err != nil {
		return err
	}
	n, err := ctx.API.CleanupTokens(ctx.Ctx, tok)
	if err != nil {
		return ctx.staff(err)
	}
	ctx.printf("Removed %s\n", plural(n, "session"))
	return nil
}

func plural(n int64, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
