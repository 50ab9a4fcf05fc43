package models

import "encoding/json"

// Mutation types understood by the reconciler
const (
	MutationBookingCreate = "booking:create"
	MutationRoomUpdate    = "room:update"
)

// QueuedMutation is one row of the sync_queue table
type QueuedMutation struct {
	ID        string
	Type      string
	Payload   json.RawMessage
	CreatedAt int64 // unix milliseconds, FIFO key
	Attempts  int
	LastError string
}

// BookingCreatePayload is what booking:create carries to replay the create remotely
type BookingCreatePayload struct {
	LocalID      string `json:"localId"`
	CustomerName string `json:"customerName"`
	StartsAt     string `json:"startsAt"`
	EndsAt       string `json:"endsAt"`
	RoomID       string `json:"roomId,omitempty"`
	Players      int    `json:"players,omitempty"`
}

// RoomUpdatePayload is what room:update carries
type RoomUpdatePayload struct {
	RoomID string `json:"roomId"`
	Status string `json:"status"`
}

// ErrorDetail describes the last non-success outcome of a push
type ErrorDetail struct {
	Code     string `json:"code"`
	Status   int    `json:"status,omitempty"`
	Message  string `json:"message,omitempty"`
	OutboxID string `json:"outboxId,omitempty"`
}

// DeadLetter is a mutation dropped as a permanent failure
type DeadLetter struct {
	ID           string
	OutboxID     string
	Type         string
	Payload      json.RawMessage
	Code         string
	Status       int
	Message      string
	Attempts     int
	DroppedAt    int64
	Acknowledged bool
}
