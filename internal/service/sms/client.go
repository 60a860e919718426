// Package sms sends handset notifications through TiaraConnect.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL   = "https://api.tiaraconnect.io/v1"
	DefaultShortcode = "*123#"
	DefaultTimeout   = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Shortcode  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client delivers SMS messages. Delivery failures are logged and dropped so
// a notification can never break a dialogue.
type Client struct {
	baseURL   string
	apiKey    string
	shortcode string
	http      *http.Client
}

// NewClient builds a Client, applying defaults for unset fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Shortcode == "" {
		cfg.Shortcode = DefaultShortcode
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		shortcode: cfg.Shortcode,
		http:      httpClient,
	}
}

// Shortcode returns the USSD code advertised in messages.
func (c *Client) Shortcode() string {
	return c.shortcode
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

// Send posts message to phoneNumber. It reports whether the gateway
// accepted the message; errors are only logged.
func (c *Client) Send(ctx context.Context, phoneNumber, message string) bool {
	if err := c.send(ctx, phoneNumber, message); err != nil {
		log.Printf("[sms] failed to send to %s: %v", phoneNumber, err)
		return false
	}
	log.Printf("[sms] sent to %s", phoneNumber)
	return true
}

func (c *Client) send(ctx context.Context, phoneNumber, message string) error {
	payload, err := json.Marshal(sendRequest{To: phoneNumber, From: c.shortcode, Message: message})
	if err != nil {
		return fmt.Errorf("encode sms: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sms/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Message != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, body.Message)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// AccountCreationMessage confirms a newly opened account.
func (c *Client) AccountCreationMessage(accountTypeName string) string {
	return fmt.Sprintf("GKash: Your %s account has been created successfully. Dial %s to access your account.",
		accountTypeName, c.shortcode)
}

// TransactionMessage confirms a deposit or withdrawal.
func (c *Client) TransactionMessage(kind string, amount, balance decimal.Decimal) string {
	return fmt.Sprintf("GKash: %s of KES %s successful. New balance: KES %s",
		kind, amount.StringFixed(2), balance.StringFixed(2))
}
