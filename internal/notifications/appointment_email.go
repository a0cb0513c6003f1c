package notifications

import (
	"bytes"
	"net/url"
	"text/template"

	"barberia-backend/internal/models"
)

const confirmationText = `Hola {{.ClientName}},

Tu turno quedó confirmado.

  Servicio:    {{.ServiceName}}
  Barbero:     {{.Specialist}}
  Fecha:       {{.Date}}
  Hora:        {{.StartTime}} a {{.EndTime}}
  Precio:      ${{.Price}}
  Reserva Nº:  {{.ID}}
{{if .CancelURL}}
Si no podés venir, cancelá acá: {{.CancelURL}}
{{end}}
¡Te esperamos!
`

const ownerText = `Nuevo turno reservado.

  Cliente:   {{.ClientName}} <{{.ClientEmail}}> {{.ClientPhone}}
  Servicio:  {{.ServiceName}}
  Barbero:   {{.Specialist}}
  Fecha:     {{.Date}} {{.StartTime}}-{{.EndTime}}
  Precio:    ${{.Price}}
{{if .Notes}}  Notas:     {{.Notes}}
{{end}}`

const reminderText = `Hola {{.ClientName}},

Te recordamos tu turno de mañana.

  Servicio:  {{.ServiceName}}
  Barbero:   {{.Specialist}}
  Fecha:     {{.Date}}
  Hora:      {{.StartTime}}
{{if .CancelURL}}
Si necesitás cancelarlo: {{.CancelURL}}
{{end}}`

var (
	confirmationTmpl = template.Must(template.New("confirmation").Parse(confirmationText))
	ownerTmpl        = template.Must(template.New("owner").Parse(ownerText))
	reminderTmpl     = template.Must(template.New("reminder").Parse(reminderText))
)

type mailData struct {
	models.Appointment
	CancelURL string
}

func (c *BrevoClient) mailData(a models.Appointment) mailData {
	return mailData{Appointment: a, CancelURL: CancelURL(c.siteURL, a.ID)}
}

// CancelURL builds the public cancellation link for an appointment.
func CancelURL(siteURL, id string) string {
	if siteURL == "" || id == "" {
		return ""
	}
	return siteURL + "/cancelar-turno?id=" + url.QueryEscape(id)
}

func renderText(tmpl *template.Template, data mailData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
