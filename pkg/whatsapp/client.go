package whatsapp

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

	"go.uber.org/multierr"

	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
)

const responseBodyReadLimit int64 = 1024

var errNotConfigured = errors.New("whatsapp api url, token and recipients are required")

// StatusError carries the HTTP status of a rejected send.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("whatsapp status %d: %s", e.StatusCode, e.Body)
}

// Retryable is false for client errors other than throttling.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client sends text messages through the WhatsApp Cloud API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	phoneNumberID string
	recipients    []string
	timeout       time.Duration
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg config.WhatsAppConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		token:         strings.TrimSpace(cfg.Token),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		timeout:       timeout,
	}
	for _, r := range cfg.Recipients {
		if r = strings.TrimSpace(r); r != "" {
			client.recipients = append(client.recipients, r)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Broadcast sends body to every configured recipient. All recipients are
// attempted; the combined error lists each failure.
func (c *Client) Broadcast(ctx context.Context, body string) error {
	var errs error
	for _, to := range c.recipients {
		errs = multierr.Append(errs, c.SendText(ctx, to, body))
	}
	return errs
}

// SendText delivers one message, bounded by the configured timeout.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if c == nil {
		return errNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg := textMessage{MessagingProduct: "whatsapp", To: to, Type: "text"}
	msg.Text.Body = body
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal whatsapp message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseBodyReadLimit))
	return nil
}

func (c *Client) messagesURL() string {
	if c.phoneNumberID == "" {
		return c.baseURL + "/messages"
	}
	return c.baseURL + "/" + c.phoneNumberID + "/messages"
}

// IsRetryable reports whether err is worth another delivery attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, e := range multierr.Errors(err) {
		var status *StatusError
		if !errors.As(e, &status) || status.Retryable() {
			return true
		}
	}
	return false
}
