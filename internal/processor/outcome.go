package processor

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Guizzs26/go-pos-sync/internal/mapper"
	"github.com/Guizzs26/go-pos-sync/internal/models"
	"github.com/Guizzs26/go-pos-sync/internal/remote"
)

// Error codes recorded in last_error, dead letters and cycle results
const (
	CodeValidationDropped = "VALIDATION_DROPPED"
	CodeAuthExpired       = "AUTH_EXPIRED"
	CodeValidationError   = "VALIDATION_ERROR"
	CodeServerError       = "SERVER_ERROR"
	CodeNetworkError      = "NETWORK_ERROR"
	CodeNoRoomID          = "NO_ROOM_ID"
	CodeUnsupportedType   = "UNSUPPORTED_TYPE"
	CodePayloadInvalid    = "PAYLOAD_INVALID"
)

// ErrUnsupportedType is returned for queue entries whose type has no adapter
var ErrUnsupportedType = errors.New("unsupported mutation type")

// Verdict is what the reconciler does with the head entry after one attempt
type Verdict int

const (
	// VerdictPushed: delete the entry, clear dirty, continue
	VerdictPushed Verdict = iota
	// VerdictDropped: delete the entry, clear dirty, keep a dead letter, continue
	VerdictDropped
	// VerdictAuthExpired: keep the entry untouched and halt
	VerdictAuthExpired
	// VerdictRetry: keep the entry, bump its attempt count and halt
	VerdictRetry
)

func (v Verdict) String() string {
	switch v {
	case VerdictPushed:
		return "pushed"
	case VerdictDropped:
		return "dropped"
	case VerdictAuthExpired:
		return "auth_expired"
	case VerdictRetry:
		return "transient"
	}
	return "unknown"
}

// Outcome is the classified result of one push attempt
type Outcome struct {
	Verdict  Verdict
	Code     string
	Status   int
	Message  string
	RemoteID string
}

// Halts reports whether the drain must stop at this entry
func (o Outcome) Halts() bool {
	return o.Verdict == VerdictAuthExpired || o.Verdict == VerdictRetry
}

func (o Outcome) Detail(outboxID string) models.ErrorDetail {
	return models.ErrorDetail{Code: o.Code, Status: o.Status, Message: o.Message, OutboxID: outboxID}
}

// Classify maps the result of building and sending one mutation to an Outcome.
// err is nil on a 2xx answer; body is the response body in that case
func Classify(adapter mapper.Adapter, body []byte, err error) Outcome {
	if err == nil {
		o := Outcome{Verdict: VerdictPushed}
		if adapter != nil {
			o.RemoteID = adapter.RemoteID(body)
		}
		return o
	}

	switch {
	case errors.Is(err, ErrUnsupportedType):
		return Outcome{Verdict: VerdictRetry, Code: CodeUnsupportedType, Message: err.Error()}
	case errors.Is(err, mapper.ErrInvalidPayload):
		return Outcome{Verdict: VerdictDropped, Code: CodePayloadInvalid, Message: err.Error()}
	case errors.Is(err, mapper.ErrNoRoomID):
		return Outcome{Verdict: VerdictRetry, Code: CodeNoRoomID, Message: err.Error()}
	}

	var statusErr *remote.StatusError
	if !errors.As(err, &statusErr) {
		return Outcome{Verdict: VerdictRetry, Code: CodeNetworkError, Message: err.Error()}
	}

	rej := mapper.ParseRejection(statusErr.Status, statusErr.Body)
	o := Outcome{Status: rej.Status, Message: rej.Message}

	switch {
	case adapter != nil && adapter.Permanent(rej):
		o.Verdict, o.Code = VerdictDropped, CodeValidationDropped
	case rej.Status == http.StatusUnauthorized:
		o.Verdict, o.Code = VerdictAuthExpired, CodeAuthExpired
	case rej.Status == http.StatusBadRequest:
		o.Verdict, o.Code = VerdictRetry, CodeValidationError
	case rej.Status >= http.StatusInternalServerError:
		o.Verdict, o.Code = VerdictRetry, CodeServerError
	default:
		o.Verdict, o.Code = VerdictRetry, fmt.Sprintf("HTTP_%d", rej.Status)
	}
	return o
}
