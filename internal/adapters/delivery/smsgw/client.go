package smsgw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pet-medical-access/internal/platform/httpclient"
)

var (
	ErrNotConfigured = errors.New("sms gateway client not configured")
	ErrUpstream      = errors.New("sms gateway upstream error")
)

type Config struct {
	BaseURL string
	APIKey  string

	APIKeyHeader string
	Timeout      time.Duration
}

// Client implementa delivery.Sender contra un gateway HTTP de SMS/email.
// El workflow lo usa fire-and-forget; acá solo importa entregar o fallar.
type Client struct {
	apiKey       string
	apiKeyHeader string
	http         *httpclient.Client
}

func NewClient(cfg Config) (*Client, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}

	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: h,
		http:         hc,
	}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != "" && c.apiKey != ""
}

func (c *Client) SendCode(ctx context.Context, recipientContact, code string) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	recipientContact = strings.TrimSpace(recipientContact)
	if recipientContact == "" || strings.TrimSpace(code) == "" {
		return errors.New("smsgw: recipient and code required")
	}

	const sendPath = "/v1/messages/otp"

	body := map[string]string{
		"to":   recipientContact,
		"code": code,
	}
	headers := map[string]string{
		c.apiKeyHeader: c.apiKey,
	}

	if err := c.http.DoJSON(ctx, http.MethodPost, sendPath, headers, body, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}
