package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a fund holder registered on the backend.
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber"`
	IDNumber    string    `json:"idNumber"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Account is a single fund holding owned by a User.
type Account struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Type          Tag             `json:"type"`
	Balance       decimal.Decimal `json:"balance"`
	AccountNumber string          `json:"accountNumber"`
	CreatedAt     time.Time       `json:"createdAt,omitempty"`
}

// TransactionKind distinguishes deposits from withdrawals.
type TransactionKind string

const (
	Deposit  TransactionKind = "deposit"
	Withdraw TransactionKind = "withdraw"
)

// Transaction records a balance movement and the balance it produced.
type Transaction struct {
	ID        string          `json:"id"`
	AccountID string          `json:"accountId"`
	Type      TransactionKind `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	Timestamp time.Time       `json:"timestamp"`
}
