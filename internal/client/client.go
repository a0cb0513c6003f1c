// Package client talks to the action endpoint. Reads retry transient
// failures with exponential backoff; writes are sent exactly once.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Policy bounds a single operation.
type Policy struct {
	Timeout time.Duration
	Retries int
}

var (
	AppointmentReads = Policy{Timeout: 7 * time.Second, Retries: 2}
	CatalogReads     = Policy{Timeout: 6 * time.Second, Retries: 1}
	AuthCalls        = Policy{Timeout: 8 * time.Second, Retries: 0}
	Writes           = Policy{Timeout: 10 * time.Second, Retries: 0}
)

const (
	DefaultBackoff  = 500 * time.Millisecond
	maxResponseSize = 4 << 20
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithBackoff sets the first retry delay. Each further retry doubles it.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// New builds a client for an endpoint such as https://host/exec.
func New(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
		log:        slog.Default(),
		backoff:    DefaultBackoff,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) get(ctx context.Context, action string, params url.Values, policy Policy, out interface{}) error {
	return c.call(ctx, http.MethodGet, action, params, policy, out)
}

// post never retries: a write that timed out may already have been applied.
func (c *Client) post(ctx context.Context, action string, params url.Values, policy Policy, out interface{}) error {
	policy.Retries = 0
	return c.call(ctx, http.MethodPost, action, params, policy, out)
}

func (c *Client) call(ctx context.Context, method, action string, params url.Values, policy Policy, out interface{}) error {
	for attempt := 0; ; attempt++ {
		err := c.attempt(ctx, method, action, params, policy.Timeout, out)
		if err == nil {
			return nil
		}
		var te *TransportError
		if !errors.As(err, &te) || !te.Temporary() || attempt >= policy.Retries {
			return err
		}
		delay := c.backoff << attempt
		c.log.Warn("client: retrying",
			slog.String("action", action),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

type envelope struct {
	Success *bool             `json:"success"`
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details"`
}

func (c *Client) attempt(ctx context.Context, method, action string, params url.Values, timeout time.Duration, out interface{}) error {
	values := url.Values{}
	for k, v := range params {
		values[k] = v
	}
	values.Set("action", action)
	values.Set("apiKey", c.apiKey)

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(reqCtx, method, c.baseURL+"?"+values.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(reqCtx, method, c.baseURL, strings.NewReader(values.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return fmt.Errorf("%s: build request: %w", action, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{Action: action, Status: resp.StatusCode, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Success == nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return &TransportError{Action: action, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
		}
		c.log.Warn("client: malformed response", slog.String("action", action), slog.Int("status", resp.StatusCode))
		return fmt.Errorf("%s: %w", action, ErrMalformedResponse)
	}
	if !*env.Success {
		return &APIError{Action: action, Status: resp.StatusCode, Code: env.Code, Message: env.Error, Details: env.Details}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.log.Warn("client: malformed payload", slog.String("action", action), slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", action, ErrMalformedResponse)
	}
	return nil
}
