package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"barberia-backend/internal/models"
)

func TestNewBrevoClientDisabledWithoutKey(t *testing.T) {
	if c := NewBrevoClient("", "turnos@barberia.example", "", "", false); c != nil {
		t.Fatalf("expected nil client without api key")
	}
}

func TestSendBookingConfirmation(t *testing.T) {
	var got brevoSendRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<msg-1>"}`))
	}))
	defer srv.Close()

	c := NewBrevoClient("key-1", "turnos@barberia.example", "Barbería", "https://barberia.example/", true)
	c.endpoint = srv.URL

	id, err := c.SendBookingConfirmation(context.Background(), models.Appointment{
		ID:          "abc123",
		ClientName:  "Juan",
		ClientEmail: "juan@example.com",
		ServiceName: "Corte",
		Specialist:  "Héctor",
		Date:        "2026-02-02",
		StartTime:   "10:00",
		EndTime:     "10:30",
		Price:       8000,
	})
	if err != nil {
		t.Fatalf("SendBookingConfirmation error: %v", err)
	}
	if id != "<msg-1>" || apiKey != "key-1" {
		t.Fatalf("unexpected message id %q or api key %q", id, apiKey)
	}
	if got.To[0].Email != "juan@example.com" || got.Headers["X-Sib-Sandbox"] != "drop" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if !strings.Contains(got.TextContent, "https://barberia.example/cancelar-turno?id=abc123") {
		t.Fatalf("missing cancel link in body:\n%s", got.TextContent)
	}
}

func TestSendFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid_parameter"}`))
	}))
	defer srv.Close()

	c := NewBrevoClient("key-1", "turnos@barberia.example", "", "", false)
	c.endpoint = srv.URL
	if _, err := c.SendReminder(context.Background(), models.Appointment{ClientEmail: "juan@example.com", StartTime: "10:00"}); err == nil {
		t.Fatalf("expected error on 400")
	}
	if _, err := c.SendReminder(context.Background(), models.Appointment{}); err == nil {
		t.Fatalf("expected error without recipient")
	}
}
