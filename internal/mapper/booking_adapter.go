package mapper

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Guizzs26/go-pos-sync/internal/models"
)

const (
	DefaultPlayers = 1
	DefaultHours   = 1
	MinHours       = 1
	MaxHours       = 4
)

// BookingCreateAdapter maps booking:create payloads onto POST /api/bookings
type BookingCreateAdapter struct{}

func NewBookingCreateAdapter() *BookingCreateAdapter {
	return &BookingCreateAdapter{}
}

func (a *BookingCreateAdapter) Type() string { return models.MutationBookingCreate }

func (a *BookingCreateAdapter) Build(payload []byte, rooms RoomSource) (Request, error) {
	var p models.BookingCreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(p.StartsAt) == "" {
		return Request{}, fmt.Errorf("%w: startsAt is missing", ErrInvalidPayload)
	}

	// a room chosen at booking time wins over any resolved id
	roomID := p.RoomID
	if roomID == "" && rooms != nil {
		resolved, err := rooms()
		if err != nil {
			return Request{}, err
		}
		roomID = resolved
	}
	if roomID == "" {
		return Request{}, ErrNoRoomID
	}

	players := p.Players
	if players <= 0 {
		players = DefaultPlayers
	}

	body := models.CreateBookingRequest{
		RoomID:       roomID,
		StartTimeISO: p.StartsAt,
		Players:      players,
		Hours:        HoursBetween(p.StartsAt, p.EndsAt),
	}
	return post("/api/bookings", body, p.LocalID), nil
}

// HoursBetween derives the booked duration in whole hours. Anything outside
// 1..4 hours, or unparsable, falls back to DefaultHours instead of failing
func HoursBetween(startsAt, endsAt string) int {
	start, err := parseTimestamp(startsAt)
	if err != nil {
		return DefaultHours
	}
	end, err := parseTimestamp(endsAt)
	if err != nil {
		return DefaultHours
	}

	diff := end.Sub(start).Hours()
	if diff < MinHours || diff > MaxHours {
		return DefaultHours
	}
	return int(math.Round(diff))
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	// browser style ISO without offset
	return time.Parse("2006-01-02T15:04:05.000", s)
}

// Permanent reports rejections that can never succeed on retry, such as a
// slot outside operating hours or already in the past
func (a *BookingCreateAdapter) Permanent(r Rejection) bool {
	if r.Status != http.StatusBadRequest {
		return false
	}
	return isPermanentBookingRejection(r)
}

func (a *BookingCreateAdapter) RemoteID(body []byte) string {
	return remoteID(body, "booking")
}

// remoteID reads {"<wrapper>": {"id": ...}} or a top level {"id": ...}
func remoteID(body []byte, wrapper string) string {
	if len(body) == 0 {
		return ""
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if inner, ok := envelope[wrapper]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err == nil {
			if id := idValue(nested["id"]); id != "" {
				return id
			}
		}
	}
	return idValue(envelope["id"])
}

func idValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
