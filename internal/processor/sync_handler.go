package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Guizzs26/go-pos-sync/internal/mapper"
	"github.com/Guizzs26/go-pos-sync/internal/models"
	"github.com/Guizzs26/go-pos-sync/pkg/metrics"
)

// MutationStore is the part of the durable store a push attempt writes to
type MutationStore interface {
	CompleteMutation(ctx context.Context, outboxID, localID, serverID string) error
	DropMutation(ctx context.Context, m models.QueuedMutation, localID string, detail models.ErrorDetail) error
	RecordFailure(ctx context.Context, outboxID, lastError string) error
}

// Sender performs one remote call and returns the 2xx body
type Sender interface {
	Send(ctx context.Context, apiBase string, req mapper.Request, idempotencyKey string) ([]byte, error)
}

// RoomResolver yields a remote room id, or "" when none is known
type RoomResolver interface {
	Resolve(ctx context.Context, apiBase string) string
}

// SyncHandler pushes a single queued mutation and persists the outcome
type SyncHandler struct {
	store    MutationStore
	sender   Sender
	rooms    RoomResolver
	registry mapper.Registry
	logger   *slog.Logger
}

func NewSyncHandler(store MutationStore, sender Sender, rooms RoomResolver, registry mapper.Registry, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		store:    store,
		sender:   sender,
		rooms:    rooms,
		registry: registry,
		logger:   logger,
	}
}

// Process makes exactly one attempt at m. The returned error is only set when
// the outcome could not be written back to the store
func (h *SyncHandler) Process(ctx context.Context, apiBase string, m models.QueuedMutation) (Outcome, error) {
	l := h.logger.With("outbox_id", m.ID, "type", m.Type, "attempts", m.Attempts)

	var (
		req  mapper.Request
		body []byte
		err  error
	)

	adapter, ok := h.registry.Lookup(m.Type)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnsupportedType, m.Type)
	} else {
		req, err = adapter.Build(m.Payload, func() (string, error) {
			return h.rooms.Resolve(ctx, apiBase), nil
		})
		if err == nil {
			body, err = h.sender.Send(ctx, apiBase, req, m.ID)
		}
	}

	o := Classify(adapter, body, err)
	metrics.MutationsProcessed.WithLabelValues(o.Verdict.String(), m.Type).Inc()

	localID := req.LocalID
	if localID == "" {
		localID = payloadLocalID(m.Payload)
	}

	switch o.Verdict {
	case VerdictPushed:
		if err := h.store.CompleteMutation(ctx, m.ID, localID, o.RemoteID); err != nil {
			return o, fmt.Errorf("pushed %s but failed to checkpoint: %w", m.ID, err)
		}
		l.Info("Mutation pushed", "remote_id", o.RemoteID)

	case VerdictDropped:
		if err := h.store.DropMutation(ctx, m, localID, o.Detail(m.ID)); err != nil {
			return o, fmt.Errorf("failed to drop %s: %w", m.ID, err)
		}
		l.Warn("Mutation permanently rejected, dropped", "code", o.Code, "status", o.Status, "message", o.Message)

	case VerdictAuthExpired:
		metrics.AuthExpirations.Inc()
		l.Warn("Credential expired, halting drain", "status", o.Status)

	case VerdictRetry:
		if err := h.store.RecordFailure(ctx, m.ID, lastErrorText(o)); err != nil {
			return o, fmt.Errorf("failed to record attempt on %s: %w", m.ID, err)
		}
		l.Warn("Push failed, entry kept for retry", "code", o.Code, "status", o.Status, "message", o.Message)
	}

	return o, nil
}

func lastErrorText(o Outcome) string {
	if o.Message == "" {
		return o.Code
	}
	return o.Code + ": " + o.Message
}

// payloadLocalID reads the local entity id from a payload no adapter could decode
func payloadLocalID(payload []byte) string {
	var p struct {
		LocalID string `json:"localId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return ""
	}
	return p.LocalID
}
