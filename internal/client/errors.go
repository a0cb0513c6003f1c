package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenExpired       = errors.New("session expired")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrSlotTaken          = errors.New("slot already taken")
	ErrRateLimited        = errors.New("rate limited")
	ErrMalformedResponse  = errors.New("malformed response")
)

// TransportError is a failure to get any answer from the server: network
// errors, timeouts and gateway statuses without an envelope.
type TransportError struct {
	Action string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Action, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same call might succeed.
func (e *TransportError) Temporary() bool {
	switch e.Status {
	case 0, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// APIError is a failure envelope returned by the server.
type APIError struct {
	Action  string
	Status  int
	Code    string
	Message string
	Details map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Action, e.Message, e.Code)
}

var codeErrors = map[string]error{
	"invalid_credentials": ErrInvalidCredentials,
	"unauthorized":        ErrUnauthorized,
	"invalid_api_key":     ErrUnauthorized,
	"token_expired":       ErrTokenExpired,
	"forbidden":           ErrForbidden,
	"not_found":           ErrNotFound,
	"slot_taken":          ErrSlotTaken,
	"rate_limited":        ErrRateLimited,
}

// Unwrap exposes the sentinel matching the envelope code, so callers can use
// errors.Is(err, client.ErrSlotTaken).
func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}
