package models

// Payloads carried JSON-encoded in the "data" field of write actions. The
// client sends them and the server decodes them, so both sides share the
// field names.

type BookingRequest struct {
	ClientName  string `json:"nombreCliente" validate:"required,max=120"`
	ClientEmail string `json:"emailCliente" validate:"required,email"`
	ClientPhone string `json:"telefono,omitempty" validate:"omitempty,phone"`
	ServiceID   string `json:"servicio" validate:"required"`
	Specialist  string `json:"especialista" validate:"required"`
	Date        string `json:"fecha" validate:"required,date"`
	StartTime   string `json:"hora" validate:"required,clock"`
	Notes       string `json:"notas,omitempty" validate:"max=500"`
}

type UserRequest struct {
	Username    string   `json:"usuario" validate:"required,max=60"`
	Name        string   `json:"nombre" validate:"max=120"`
	Email       string   `json:"email,omitempty" validate:"omitempty,email"`
	Password    string   `json:"password" validate:"required,min=6"`
	Role        string   `json:"rol,omitempty" validate:"omitempty,role"`
	Permissions []string `json:"permisos,omitempty"`
	Specialist  string   `json:"barberoAsignado,omitempty"`
}

type ScheduleRequest struct {
	Specialist string `json:"especialista" validate:"required"`
	Weekday    int    `json:"dia" validate:"weekday"`
	Start      string `json:"inicio" validate:"required,clock"`
	End        string `json:"fin" validate:"required,clock"`
}

type DayOffRequest struct {
	Specialist string `json:"especialista,omitempty"`
	Date       string `json:"fecha" validate:"required,date"`
	AllDay     bool   `json:"diaCompleto"`
	Start      string `json:"inicio,omitempty" validate:"omitempty,clock"`
	End        string `json:"fin,omitempty" validate:"omitempty,clock"`
	Reason     string `json:"motivo,omitempty" validate:"max=200"`
}
