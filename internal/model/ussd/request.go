package ussd

import "strings"

// Request is one gateway round trip after field-name normalization.
type Request struct {
	SessionID   string `json:"sessionId"`
	PhoneNumber string `json:"phoneNumber"`
	Text        string `json:"text"`
	ServiceCode string `json:"serviceCode,omitempty"`
}

// Valid reports whether the request carries the identifiers the dialogue needs.
func (r Request) Valid() bool {
	return r.SessionID != "" && r.PhoneNumber != ""
}

const (
	continuePrefix = "CON "
	endPrefix      = "END "
)

// Continue builds a response that keeps the dialogue open.
func Continue(text string) string {
	return continuePrefix + text
}

// End builds a response that closes the dialogue.
func End(text string) string {
	return endPrefix + text
}

// IsEnd reports whether response terminates the dialogue.
func IsEnd(response string) bool {
	return strings.HasPrefix(response, endPrefix)
}
