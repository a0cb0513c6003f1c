package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestDecodeData(t *testing.T) {
	var out struct {
		Fecha string `json:"fecha"`
	}
	if err := DecodeData(url.Values{"data": {`{"fecha":"2026-02-02"}`}}, &out); err != nil {
		t.Fatalf("DecodeData error: %v", err)
	}
	if out.Fecha != "2026-02-02" {
		t.Fatalf("unexpected value: %+v", out)
	}
	if err := DecodeData(url.Values{}, &out); !errors.Is(err, ErrMissingData) {
		t.Fatalf("expected ErrMissingData, got %v", err)
	}
	if err := DecodeData(url.Values{"data": {`{"otro":1}`}}, &out); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/exec", nil)
	r.Header.Set("Authorization", "Bearer abc")
	if got := BearerToken(r, url.Values{}); got != "abc" {
		t.Fatalf("expected header token, got %q", got)
	}
	if got := BearerToken(r, url.Values{"token": {"xyz"}}); got != "xyz" {
		t.Fatalf("expected param token, got %q", got)
	}
}

func TestParamsMergesFormAndQuery(t *testing.T) {
	body := strings.NewReader(url.Values{"id": {"42"}}.Encode())
	r := httptest.NewRequest(http.MethodPost, "/exec?action=cancelarTurno", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	values := Params(r)
	if values.Get("action") != "cancelarTurno" || values.Get("id") != "42" {
		t.Fatalf("unexpected params: %v", values)
	}
}

func TestParseLimitOffset(t *testing.T) {
	limit, offset, err := ParseLimitOffset(url.Values{"limit": {"500"}, "offset": {"10"}}, 50, 200)
	if err != nil {
		t.Fatalf("ParseLimitOffset error: %v", err)
	}
	if limit != 200 || offset != 10 {
		t.Fatalf("unexpected limit/offset %d %d", limit, offset)
	}
	if _, _, err := ParseLimitOffset(url.Values{"limit": {"0"}}, 50, 200); err == nil {
		t.Fatalf("expected invalid limit")
	}
}
