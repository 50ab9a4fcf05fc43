package models

// Room as returned by GET /api/bookings/rooms
type Room struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Capacity int    `json:"capacity"`
}

type RoomList struct {
	Rooms []Room `json:"rooms"`
}

// CreateBookingRequest is the body of POST /api/bookings
type CreateBookingRequest struct {
	RoomID       string `json:"roomId"`
	StartTimeISO string `json:"startTimeIso"`
	Players      int    `json:"players"`
	Hours        int    `json:"hours"`
}

// RoomStatusRequest is the body of PATCH /api/bookings/rooms/{id}
type RoomStatusRequest struct {
	Status string `json:"status"`
}
