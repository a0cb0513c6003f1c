package models

import "time"

const (
	StatusConfirmed = "Confirmado"
	StatusCancelled = "Cancelado"
	StatusCompleted = "Completado"
	StatusNoShow    = "Cliente Ausente"

	RoleAdmin    = "Administrador"
	RoleBarber   = "Barbero"
	RoleEmployee = "Empleado"

	PermViewAppointments   = "ver_turnos"
	PermManageAppointments = "gestionar_turnos"
	PermManageSchedules    = "gestionar_horarios"
	PermManageUsers        = "gestionar_usuarios"
	PermAdmin              = "admin"
)

// Appointment is a booked turn. Records are soft-cancelled, never removed.
type Appointment struct {
	ID             string     `bson:"_id,omitempty" json:"id"`
	ClientName     string     `bson:"clientName" json:"clientName"`
	ClientEmail    string     `bson:"clientEmail" json:"clientEmail"`
	ClientPhone    string     `bson:"clientPhone,omitempty" json:"clientPhone,omitempty"`
	ServiceID      string     `bson:"serviceId" json:"serviceId"`
	ServiceName    string     `bson:"serviceName" json:"serviceName"`
	Date           string     `bson:"date" json:"date"`
	StartTime      string     `bson:"startTime" json:"startTime"`
	EndTime        string     `bson:"endTime" json:"endTime"`
	Duration       int        `bson:"duration" json:"duration"`
	Specialist     string     `bson:"specialist" json:"specialist"`
	Status         string     `bson:"status" json:"status"`
	Price          int        `bson:"price" json:"price"`
	Notes          string     `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt" json:"updatedAt"`
	CancelledAt    *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	ReminderSentAt *time.Time `bson:"reminderSentAt,omitempty" json:"-"`
}

// BlocksSlot reports whether the appointment still occupies its interval.
func (a Appointment) BlocksSlot() bool {
	return a.Status != StatusCancelled
}

type Schedule struct {
	ID         string `bson:"_id,omitempty" json:"id"`
	Specialist string `bson:"specialist" json:"specialist"`
	Weekday    int    `bson:"weekday" json:"weekday"`
	Start      string `bson:"start" json:"start"`
	End        string `bson:"end" json:"end"`
	Active     bool   `bson:"active" json:"active"`
}

// DayOff removes availability. An empty Specialist applies to everyone.
type DayOff struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	Specialist string    `bson:"specialist,omitempty" json:"specialist,omitempty"`
	Date       string    `bson:"date" json:"date"`
	AllDay     bool      `bson:"allDay" json:"allDay"`
	Start      string    `bson:"start,omitempty" json:"start,omitempty"`
	End        string    `bson:"end,omitempty" json:"end,omitempty"`
	Reason     string    `bson:"reason,omitempty" json:"reason,omitempty"`
	Active     bool      `bson:"active" json:"active"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

func (d DayOff) AppliesTo(specialist string) bool {
	return d.Specialist == "" || d.Specialist == specialist
}

type Service struct {
	ID              string `bson:"_id,omitempty" json:"id"`
	Name            string `bson:"name" json:"name"`
	Description     string `bson:"description,omitempty" json:"description,omitempty"`
	Price           int    `bson:"price" json:"price"`
	OfferPrice      *int   `bson:"offerPrice,omitempty" json:"offerPrice,omitempty"`
	DurationMinutes int    `bson:"durationMinutes" json:"durationMinutes"`
	Category        string `bson:"category,omitempty" json:"category,omitempty"`
	Active          bool   `bson:"active" json:"active"`
}

// EffectivePrice is the offer price when one is set.
func (s Service) EffectivePrice() int {
	if s.OfferPrice != nil {
		return *s.OfferPrice
	}
	return s.Price
}

type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Username     string    `bson:"username" json:"username"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email,omitempty" json:"email,omitempty"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Role         string    `bson:"role" json:"role"`
	Permissions  []string  `bson:"permissions" json:"permissions"`
	Specialist   string    `bson:"specialist,omitempty" json:"specialist,omitempty"`
	Active       bool      `bson:"active" json:"active"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Session is the server-side record a token points at. Role, permissions and
// specialist are a snapshot taken at login.
type Session struct {
	ID          string    `bson:"_id" json:"id"`
	UserID      string    `bson:"userId" json:"userId"`
	Username    string    `bson:"username" json:"username"`
	Name        string    `bson:"name" json:"name"`
	Role        string    `bson:"role" json:"role"`
	Permissions []string  `bson:"permissions" json:"permissions"`
	Specialist  string    `bson:"specialist,omitempty" json:"specialist,omitempty"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	ExpiresAt   time.Time `bson:"expiresAt" json:"expiresAt"`
	Active      bool      `bson:"active" json:"active"`
}

// Principal is the authenticated caller resolved from a token.
type Principal struct {
	Username    string   `json:"usuario"`
	Name        string   `json:"nombre"`
	Role        string   `json:"rol"`
	Permissions []string `json:"permisos"`
	Specialist  string   `json:"barberoAsignado,omitempty"`
}

func (p Principal) Has(permission string) bool {
	return HasPermission(p.Permissions, permission)
}

func HasPermission(granted []string, permission string) bool {
	for _, g := range granted {
		if g == permission || g == PermAdmin {
			return true
		}
	}
	return false
}
