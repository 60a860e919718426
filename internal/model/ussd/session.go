package ussd

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session tracks one in-flight dialogue.
type Session struct {
	ID           string    `json:"sessionId"`
	PhoneNumber  string    `json:"phoneNumber"`
	State        State     `json:"state"`
	Form         Form      `json:"form"`
	LastActivity time.Time `json:"lastActivity"`
}

// Form accumulates multi-step input until the flow completes or aborts.
type Form struct {
	Name        string          `json:"name,omitempty"`
	PhoneNumber string          `json:"phoneNumber,omitempty"`
	IDNumber    string          `json:"idNumber,omitempty"`
	PIN         string          `json:"-"`
	Amount      decimal.Decimal `json:"amount"`
	HasAmount   bool            `json:"hasAmount"`
}

// Form field keys accepted by the session store's generic accessors.
const (
	FieldName        = "name"
	FieldPhoneNumber = "phoneNumber"
	FieldIDNumber    = "idNumber"
	FieldPIN         = "pin"
	FieldAmount      = "amount"
)

// Registration reports whether every account creation field has been captured.
func (f Form) Registration() (name, phone, idNumber, pin string, ok bool) {
	ok = f.Name != "" && f.PhoneNumber != "" && f.IDNumber != "" && f.PIN != ""
	return f.Name, f.PhoneNumber, f.IDNumber, f.PIN, ok
}
