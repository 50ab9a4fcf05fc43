package models

const BookingStatusPending = "PENDING"

// LocalBooking is the optimistic local copy of a booking
// Dirty stays true until the reconciler confirms (or drops) its create
type LocalBooking struct {
	ID           string
	ServerID     string // empty until the server accepted it
	CustomerName string
	StartTime    string
	EndTime      string
	RoomID       string
	Players      int
	Price        *float64
	Status       string
	UpdatedAt    int64
	Dirty        bool
}
