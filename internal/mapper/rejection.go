package mapper

import (
	"encoding/json"
	"strings"

	"github.com/Guizzs26/go-pos-sync/pkg/encoding"
)

// Rejection is a non-2xx answer from the remote API, reduced to what
// classification needs
type Rejection struct {
	Status  int
	Code    string
	Message string
}

// ParseRejection accepts the error shapes the backend has used over time:
//
//	{"error": "message"}
//	{"error": {"message": "...", "code": "..."}}
//	{"code": "...", "message": "..."}
func ParseRejection(status int, body []byte) Rejection {
	r := Rejection{Status: status}
	if len(body) == 0 {
		return r
	}

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Code    string          `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		r.Message = strings.TrimSpace(string(body))
		return r
	}
	r.Code = envelope.Code
	r.Message = envelope.Message

	if len(envelope.Error) == 0 {
		return r
	}

	var text string
	if err := json.Unmarshal(envelope.Error, &text); err == nil {
		r.Message = text
		return r
	}

	var nested struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(envelope.Error, &nested); err == nil {
		if nested.Message != "" {
			r.Message = nested.Message
		}
		if nested.Code != "" {
			r.Code = nested.Code
		}
	}
	return r
}

// Structured codes the backend sends for booking slots that can never be
// accepted
var permanentBookingCodes = map[string]bool{
	"OUTSIDE_OPERATING_HOURS": true,
	"PAST_TIME_SLOT":          true,
	"CROSS_DAY":               true,
}

// Older backends only send prose; these phrases are matched case-insensitively
var permanentBookingPhrases = []string{
	"outside room operating hours",
	"outside operating hours",
	"cannot book a past time slot",
	"past time slot",
	"cross-day",
}

// isPermanentBookingRejection is the single place that decides whether a
// booking rejection is final. A recognised code is enough on its own; generic
// or unknown codes fall through to the message text
func isPermanentBookingRejection(r Rejection) bool {
	if permanentBookingCodes[strings.ToUpper(strings.TrimSpace(r.Code))] {
		return true
	}
	return encoding.ContainsAny(r.Message, permanentBookingPhrases...)
}
