package mapper

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Guizzs26/go-pos-sync/internal/models"
)

// RoomUpdateAdapter maps room:update payloads onto PATCH /api/bookings/rooms/{id}
type RoomUpdateAdapter struct{}

func NewRoomUpdateAdapter() *RoomUpdateAdapter {
	return &RoomUpdateAdapter{}
}

func (a *RoomUpdateAdapter) Type() string { return models.MutationRoomUpdate }

func (a *RoomUpdateAdapter) Build(payload []byte, _ RoomSource) (Request, error) {
	var p models.RoomUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.RoomID == "" || p.Status == "" {
		return Request{}, fmt.Errorf("%w: roomId and status are required", ErrInvalidPayload)
	}

	return Request{
		Method: http.MethodPatch,
		Path:   "/api/bookings/rooms/" + url.PathEscape(p.RoomID),
		Body:   models.RoomStatusRequest{Status: p.Status},
	}, nil
}

// Permanent treats validation, unknown room and conflict answers as final
func (a *RoomUpdateAdapter) Permanent(r Rejection) bool {
	switch r.Status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict:
		return true
	}
	return false
}

func (a *RoomUpdateAdapter) RemoteID(body []byte) string {
	return remoteID(body, "room")
}
