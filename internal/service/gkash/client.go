// Package gkash is the HTTP client for the GKash account backend.
package gkash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gkash/ussd/backend/internal/model/account"
)

const (
	DefaultBaseURL = "http://localhost:4000/api"
	DefaultTimeout = 30 * time.Second

	historyLimit    = 10
	defaultMaxTries = 3
)

var (
	// ErrUnauthorized matches backend rejections of a phone/PIN pair.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")
)

// APIError is a failed backend call. Message is what the backend reported
// and is safe to show on the handset.
type APIError struct {
	Status  int
	Message string
	cause   error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.cause }

// Is maps HTTP statuses onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// MaxTries bounds attempts for idempotent reads. Writes are never retried.
	MaxTries uint
	// RetryInterval is the first backoff delay between read attempts.
	RetryInterval time.Duration
	HTTPClient    *http.Client
}

// Client talks to the GKash REST API.
type Client struct {
	baseURL       string
	http          *http.Client
	maxTries      uint
	retryInterval time.Duration
}

// NewClient builds a Client, applying defaults for unset fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = defaultMaxTries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		http:          httpClient,
		maxTries:      cfg.MaxTries,
		retryInterval: cfg.RetryInterval,
	}
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type createUserRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	IDNumber    string `json:"idNumber"`
	PIN         string `json:"pin"`
}

type loginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	PIN         string `json:"pin"`
}

type loginResponse struct {
	User  account.User `json:"user"`
	Token string       `json:"token,omitempty"`
}

type createAccountRequest struct {
	UserID      string      `json:"userId"`
	AccountType account.Tag `json:"accountType"`
}

type transactionRequest struct {
	AccountID string      `json:"accountId"`
	Amount    json.Number `json:"amount"`
	PIN       string      `json:"pin"`
}

// CreateUser registers a fund holder.
func (c *Client) CreateUser(ctx context.Context, name, phoneNumber, idNumber, pin string) (account.User, error) {
	var user account.User
	err := c.post(ctx, "/users", createUserRequest{
		Name:        name,
		PhoneNumber: phoneNumber,
		IDNumber:    idNumber,
		PIN:         pin,
	}, &user)
	return user, err
}

// Login checks a phone/PIN pair and returns the matching user.
func (c *Client) Login(ctx context.Context, phoneNumber, pin string) (account.User, error) {
	var resp loginResponse
	if err := c.post(ctx, "/auth/login", loginRequest{PhoneNumber: phoneNumber, PIN: pin}, &resp); err != nil {
		return account.User{}, err
	}
	return resp.User, nil
}

// GetUserByPhone returns nil without error when no user owns phoneNumber.
func (c *Client) GetUserByPhone(ctx context.Context, phoneNumber string) (*account.User, error) {
	var user account.User
	err := c.get(ctx, "/users/phone/"+url.PathEscape(phoneNumber), nil, &user)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateAccount opens a fund account of the given type for userID.
func (c *Client) CreateAccount(ctx context.Context, userID string, tag account.Tag) (account.Account, error) {
	var acct account.Account
	err := c.post(ctx, "/accounts", createAccountRequest{UserID: userID, AccountType: tag}, &acct)
	return acct, err
}

// ListAccounts returns the user's accounts in backend order.
func (c *Client) ListAccounts(ctx context.Context, userID string) ([]account.Account, error) {
	var accounts []account.Account
	err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/accounts", nil, &accounts)
	return accounts, err
}

// Deposit credits amount to the account.
func (c *Client) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, pin string) (account.Transaction, error) {
	return c.transact(ctx, "/transactions/deposit", accountID, amount, pin)
}

// Withdraw debits amount from the account. The backend refuses withdrawals
// that would take the balance below the account type's minimum.
func (c *Client) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, pin string) (account.Transaction, error) {
	return c.transact(ctx, "/transactions/withdraw", accountID, amount, pin)
}

func (c *Client) transact(ctx context.Context, path, accountID string, amount decimal.Decimal, pin string) (account.Transaction, error) {
	var tx account.Transaction
	err := c.post(ctx, path, transactionRequest{
		AccountID: accountID,
		Amount:    json.Number(amount.String()),
		PIN:       pin,
	}, &tx)
	return tx, err
}

// GetBalance returns the current balance of an account.
func (c *Client) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var resp struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := c.get(ctx, "/accounts/"+url.PathEscape(accountID)+"/balance", nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Balance, nil
}

// TransactionHistory returns recent transactions, most recent first.
func (c *Client) TransactionHistory(ctx context.Context, accountID string) ([]account.Transaction, error) {
	query := url.Values{"limit": []string{strconv.Itoa(historyLimit)}}
	var txs []account.Transaction
	err := c.get(ctx, "/accounts/"+url.PathEscape(accountID)+"/transactions", query, &txs)
	return txs, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, nil, payload, out)
}

// get retries transient failures; 4xx responses are returned immediately.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval

	_, err := backoff.Retry[struct{}](ctx, func() (struct{}, error) {
		err := c.do(ctx, http.MethodGet, path, query, nil, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(c.maxTries))
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[gkash] %s %s failed: %v", method, path, err)
		return &APIError{Message: "API request failed", cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: "API request failed", cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
		log.Printf("[gkash] %s %s returned %d: %s", method, path, resp.StatusCode, apiErr.Message)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return "API request failed"
}
