package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Guizzs26/go-pos-sync/internal/models"
	"github.com/Guizzs26/go-pos-sync/pkg/metrics"
	"github.com/google/uuid"
)

// Timestamps are stored the way browsers serialize dates: UTC with milliseconds
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

var ErrInvalidRoomStatus = errors.New("room id and status are required")

// EnqueueRepository defines the store contract of the enqueuer
type EnqueueRepository interface {
	InsertBookingWithMutation(ctx context.Context, b models.LocalBooking, mutationType string, payload []byte) (string, int, error)
	ReplaceRoomUpdate(ctx context.Context, roomID string, payload []byte) (string, int, int, error)
	QueueSize(ctx context.Context) (int, error)
	ListQueue(ctx context.Context) ([]models.QueuedMutation, error)
}

// BookingInput is an already validated booking taken at the terminal
type BookingInput struct {
	CustomerName string
	StartsAt     time.Time
	EndsAt       time.Time
	Players      int
	RoomID       string
	Price        *float64
}

type EnqueueResult struct {
	BookingID  string `json:"bookingId,omitempty"`
	OutboxID   string `json:"outboxId"`
	QueueSize  int    `json:"queueSize"`
	Superseded int    `json:"superseded,omitempty"`
}

// Enqueuer records local mutations. It never talks to the network
type Enqueuer struct {
	repo   EnqueueRepository
	logger *slog.Logger
}

func NewEnqueuer(repo EnqueueRepository, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{repo: repo, logger: logger}
}

// EnqueueBooking stores the booking optimistically and queues its create.
// Both rows are written in one transaction
func (e *Enqueuer) EnqueueBooking(ctx context.Context, in BookingInput) (EnqueueResult, error) {
	booking := models.LocalBooking{
		ID:           uuid.NewString(),
		CustomerName: strings.TrimSpace(in.CustomerName),
		StartTime:    in.StartsAt.UTC().Format(isoMillis),
		EndTime:      in.EndsAt.UTC().Format(isoMillis),
		RoomID:       in.RoomID,
		Players:      in.Players,
		Price:        in.Price,
		Status:       models.BookingStatusPending,
	}
	if booking.Players <= 0 {
		booking.Players = 1
	}

	payload, err := json.Marshal(models.BookingCreatePayload{
		LocalID:      booking.ID,
		CustomerName: booking.CustomerName,
		StartsAt:     booking.StartTime,
		EndsAt:       booking.EndTime,
		RoomID:       in.RoomID,
		Players:      in.Players,
	})
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("failed to serialize booking payload: %w", err)
	}

	outboxID, size, err := e.repo.InsertBookingWithMutation(ctx, booking, models.MutationBookingCreate, payload)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("enqueue booking failed: %w", err)
	}
	metrics.QueueBacklog.Set(float64(size))

	e.logger.Info("Booking queued", "booking_id", booking.ID, "outbox_id", outboxID, "queue_size", size)
	return EnqueueResult{BookingID: booking.ID, OutboxID: outboxID, QueueSize: size}, nil
}

// EnqueueRoomStatus queues a room status change. An earlier change for the
// same room that was not pushed yet is replaced
func (e *Enqueuer) EnqueueRoomStatus(ctx context.Context, roomID, status string) (EnqueueResult, error) {
	roomID, status = strings.TrimSpace(roomID), strings.TrimSpace(status)
	if roomID == "" || status == "" {
		return EnqueueResult{}, ErrInvalidRoomStatus
	}

	payload, err := json.Marshal(models.RoomUpdatePayload{RoomID: roomID, Status: status})
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("failed to serialize room payload: %w", err)
	}

	outboxID, superseded, size, err := e.repo.ReplaceRoomUpdate(ctx, roomID, payload)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("enqueue room status failed: %w", err)
	}
	metrics.QueueBacklog.Set(float64(size))

	e.logger.Info("Room status queued", "room_id", roomID, "status", status, "outbox_id", outboxID, "superseded", superseded)
	return EnqueueResult{OutboxID: outboxID, QueueSize: size, Superseded: superseded}, nil
}

// QueueSize is the pending-operations count shown at the terminal
func (e *Enqueuer) QueueSize(ctx context.Context) (int, error) {
	n, err := e.repo.QueueSize(ctx)
	if err != nil {
		return 0, err
	}
	metrics.QueueBacklog.Set(float64(n))
	return n, nil
}

func (e *Enqueuer) ListQueue(ctx context.Context) ([]models.QueuedMutation, error) {
	return e.repo.ListQueue(ctx)
}
