// Package validation holds the pure input checks used by the USSD menus.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	phonePattern = regexp.MustCompile(`^(\+?254|0)[17]\d{8}$`)
	idPattern    = regexp.MustCompile(`^\d{8}$`)
	pinPattern   = regexp.MustCompile(`^\d{4}$`)
	// Plain notation only: exponents would let a short keystroke expand to
	// millions of digits.
	amountPattern = regexp.MustCompile(`^\d{1,12}(\.\d{1,2})?$`)
)

// ErrInvalidAmount is returned by ParseAmount for non-numeric or non-positive input.
var ErrInvalidAmount = errors.New("invalid amount")

// weakPINs lists PINs rejected even though they are well formed.
var weakPINs = map[string]struct{}{
	"0000": {}, "1111": {}, "2222": {}, "3333": {}, "4444": {},
	"5555": {}, "6666": {}, "7777": {}, "8888": {}, "9999": {},
	"1234": {}, "4321": {},
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// ValidPhone reports whether phone is a Kenyan mobile number, with or
// without the 254 country prefix. Whitespace is ignored.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(stripSpaces(phone))
}

// NormalizePhone rewrites a valid number into +254XXXXXXXXX form. Numbers
// already in that form are returned unchanged.
func NormalizePhone(phone string) string {
	phone = stripSpaces(phone)
	switch {
	case strings.HasPrefix(phone, "0"):
		return "+254" + phone[1:]
	case strings.HasPrefix(phone, "254"):
		return "+" + phone
	}
	return phone
}

// ValidNationalID reports whether id is exactly eight digits.
func ValidNationalID(id string) bool {
	return idPattern.MatchString(id)
}

// ValidPIN reports whether pin is four digits and not a trivially guessable sequence.
func ValidPIN(pin string) bool {
	if !pinPattern.MatchString(pin) {
		return false
	}
	_, weak := weakPINs[pin]
	return !weak
}

// ParseAmount parses a strictly positive amount written as plain digits with
// at most two decimal places.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}
