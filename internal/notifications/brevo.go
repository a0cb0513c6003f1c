package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"barberia-backend/internal/models"
)

const defaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type BrevoClient struct {
	apiKey      string
	senderEmail string
	senderName  string
	sandbox     bool
	siteURL     string
	endpoint    string
	httpClient  *http.Client
}

// NewBrevoClient returns nil when the API key or sender is missing, which
// disables mail delivery.
func NewBrevoClient(apiKey, senderEmail, senderName, siteURL string, sandbox bool) *BrevoClient {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(senderEmail) == "" {
		return nil
	}
	if strings.TrimSpace(senderName) == "" {
		senderName = senderEmail
	}
	return &BrevoClient{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		sandbox:     sandbox,
		siteURL:     strings.TrimRight(siteURL, "/"),
		endpoint:    defaultBrevoEndpoint,
		httpClient:  &http.Client{Timeout: 8 * time.Second},
	}
}

func (c *BrevoClient) SendBookingConfirmation(ctx context.Context, a models.Appointment) (string, error) {
	if c == nil {
		return "", errors.New("brevo client is nil")
	}
	body, err := renderText(confirmationTmpl, c.mailData(a))
	if err != nil {
		return "", err
	}
	subject := fmt.Sprintf("Turno confirmado: %s %s", a.Date, a.StartTime)
	return c.sendText(ctx, a.ClientEmail, a.ClientName, subject, body)
}

func (c *BrevoClient) SendOwnerNotification(ctx context.Context, ownerEmail string, a models.Appointment) (string, error) {
	if c == nil {
		return "", errors.New("brevo client is nil")
	}
	body, err := renderText(ownerTmpl, c.mailData(a))
	if err != nil {
		return "", err
	}
	subject := fmt.Sprintf("Nuevo turno: %s con %s", a.ClientName, a.Specialist)
	return c.sendText(ctx, ownerEmail, "", subject, body)
}

func (c *BrevoClient) SendReminder(ctx context.Context, a models.Appointment) (string, error) {
	if c == nil {
		return "", errors.New("brevo client is nil")
	}
	body, err := renderText(reminderTmpl, c.mailData(a))
	if err != nil {
		return "", err
	}
	subject := fmt.Sprintf("Recordatorio: tu turno es mañana a las %s", a.StartTime)
	return c.sendText(ctx, a.ClientEmail, a.ClientName, subject, body)
}

func (c *BrevoClient) sendText(ctx context.Context, toEmail, toName, subject, textBody string) (string, error) {
	if strings.TrimSpace(toEmail) == "" {
		return "", errors.New("missing recipient email")
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("missing subject")
	}
	if strings.TrimSpace(textBody) == "" {
		return "", errors.New("missing body")
	}

	payload := brevoSendRequest{
		Sender: brevoSender{
			Name:  c.senderName,
			Email: c.senderEmail,
		},
		To: []brevoRecipient{
			{
				Email: toEmail,
				Name:  toName,
			},
		},
		Subject:     subject,
		TextContent: textBody,
	}
	if c.sandbox {
		payload.Headers = map[string]string{
			"X-Sib-Sandbox": "drop",
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("brevo marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("brevo create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("brevo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("brevo send failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out brevoSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("brevo decode response: %w", err)
	}
	if strings.TrimSpace(out.MessageID) == "" {
		return "", errors.New("brevo response missing messageId")
	}
	return out.MessageID, nil
}

type brevoSendRequest struct {
	Sender      brevoSender       `json:"sender"`
	To          []brevoRecipient  `json:"to"`
	Subject     string            `json:"subject"`
	TextContent string            `json:"textContent"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type brevoSender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type brevoRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}
