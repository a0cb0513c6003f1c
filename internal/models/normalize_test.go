package models

import (
	"reflect"
	"testing"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Confirmado", StatusConfirmed, true},
		{" cancelado ", StatusCancelled, true},
		{"No_Show", StatusNoShow, true},
		{"Cliente Ausente", StatusNoShow, true},
		{"pendiente", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeStatus(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("NormalizeStatus(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalizePermissionsFallsBackToRole(t *testing.T) {
	got := NormalizePermissions(RoleBarber, []string{"  ", "unknown"})
	if !reflect.DeepEqual(got, DefaultPermissions(RoleBarber)) {
		t.Fatalf("expected barber defaults, got %v", got)
	}

	got = NormalizePermissions(RoleEmployee, []string{"VER_TURNOS", "ver_turnos", "gestionar_turnos"})
	want := []string{PermViewAppointments, PermManageAppointments}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNormalizeDate(t *testing.T) {
	if d, ok := NormalizeDate("2025-07-01T03:00:00.000Z"); !ok || d != "2025-07-01" {
		t.Fatalf("unexpected date %q %v", d, ok)
	}
	if _, ok := NormalizeDate("01/07/2025"); ok {
		t.Fatalf("expected invalid date")
	}
}

func TestNormalizeUser(t *testing.T) {
	u := NormalizeUser(User{Username: " Hector ", Role: "barbero", Specialist: " Héctor Medina "})
	if u.Username != "hector" || u.Name != "hector" {
		t.Fatalf("unexpected identity: %+v", u)
	}
	if u.Role != RoleBarber || u.Specialist != "Héctor Medina" {
		t.Fatalf("unexpected role or specialist: %+v", u)
	}
	if !HasPermission(u.Permissions, PermManageSchedules) {
		t.Fatalf("expected barber defaults, got %v", u.Permissions)
	}
}

func TestHasPermissionAdminGrantsAll(t *testing.T) {
	p := Principal{Permissions: []string{PermAdmin}}
	if !p.Has(PermManageUsers) {
		t.Fatalf("admin should grant everything")
	}
	if (Principal{Permissions: []string{PermViewAppointments}}).Has(PermManageUsers) {
		t.Fatalf("view permission must not grant user management")
	}
}

func TestNormalizeAppointmentUnknownStatusKeepsSlotBlocked(t *testing.T) {
	a := NormalizeAppointment(Appointment{Status: "???", Date: "2026-02-02T00:00:00Z"})
	if a.Status != StatusConfirmed || !a.BlocksSlot() {
		t.Fatalf("unexpected appointment %+v", a)
	}
	if a.Date != "2026-02-02" {
		t.Fatalf("unexpected date %q", a.Date)
	}
}
