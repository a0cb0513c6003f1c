package models

import (
	"strings"
	"time"
)

var statusAliases = map[string]string{
	"confirmado":      StatusConfirmed,
	"cancelado":       StatusCancelled,
	"completado":      StatusCompleted,
	"cliente ausente": StatusNoShow,
	"cliente_ausente": StatusNoShow,
	"no_show":         StatusNoShow,
	"no show":         StatusNoShow,
}

// NormalizeStatus maps any accepted spelling to its canonical value. The
// second return is false for unknown statuses.
func NormalizeStatus(raw string) (string, bool) {
	s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]
	return s, ok
}

var roleAliases = map[string]string{
	"administrador": RoleAdmin,
	"admin":         RoleAdmin,
	"barbero":       RoleBarber,
	"empleado":      RoleEmployee,
}

func NormalizeRole(raw string) (string, bool) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(raw))]
	return r, ok
}

// DefaultPermissions returns what a role gets when no explicit set is stored.
func DefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{PermAdmin}
	case RoleBarber:
		return []string{PermViewAppointments, PermManageAppointments, PermManageSchedules}
	default:
		return []string{PermViewAppointments}
	}
}

var knownPermissions = map[string]bool{
	PermViewAppointments:   true,
	PermManageAppointments: true,
	PermManageSchedules:    true,
	PermManageUsers:        true,
	PermAdmin:              true,
}

// NormalizePermissions trims, de-duplicates and drops unknown entries, falling
// back to the role defaults when nothing valid remains.
func NormalizePermissions(role string, raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.ToLower(strings.TrimSpace(p))
		if !knownPermissions[p] || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return DefaultPermissions(role)
	}
	return out
}

// NormalizeDate accepts YYYY-MM-DD or an RFC3339 timestamp and returns the
// calendar date part.
func NormalizeDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, 'T'); idx > 0 {
		raw = raw[:idx]
	}
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return "", false
	}
	return raw, true
}

func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeUser brings a stored user into canonical form.
func NormalizeUser(u User) User {
	u.Username = NormalizeUsername(u.Username)
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		u.Name = u.Username
	}
	role, ok := NormalizeRole(u.Role)
	if !ok {
		role = RoleEmployee
	}
	u.Role = role
	u.Permissions = NormalizePermissions(role, u.Permissions)
	u.Specialist = strings.TrimSpace(u.Specialist)
	return u
}

// NormalizeAppointment fixes the status spelling and date format of a stored
// appointment. Unknown statuses are kept as confirmed so the slot stays blocked.
func NormalizeAppointment(a Appointment) Appointment {
	if s, ok := NormalizeStatus(a.Status); ok {
		a.Status = s
	} else {
		a.Status = StatusConfirmed
	}
	if d, ok := NormalizeDate(a.Date); ok {
		a.Date = d
	}
	a.Specialist = strings.TrimSpace(a.Specialist)
	a.ClientEmail = strings.TrimSpace(a.ClientEmail)
	return a
}
