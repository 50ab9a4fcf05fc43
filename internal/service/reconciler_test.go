package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Guizzs26/go-pos-sync/internal/db"
	"github.com/Guizzs26/go-pos-sync/internal/mapper"
	"github.com/Guizzs26/go-pos-sync/internal/models"
	"github.com/Guizzs26/go-pos-sync/internal/processor"
	"github.com/Guizzs26/go-pos-sync/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type pushedRequest struct {
	Body           models.CreateBookingRequest
	IdempotencyKey string
}

// fakeBackend stands in for the booking API. respond decides the answer
// for every POST /api/bookings; rooms is served on GET /api/bookings/rooms
type fakeBackend struct {
	t *testing.T

	mu      sync.Mutex
	respond func(n int) (int, string)
	rooms   string
	pushes  []pushedRequest
	listing int
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/bookings/rooms":
		b.listing++
		_, _ = w.Write([]byte(b.rooms))

	case r.Method == http.MethodPost && r.URL.Path == "/api/bookings":
		var body models.CreateBookingRequest
		assert.NoError(b.t, json.NewDecoder(r.Body).Decode(&body))
		b.pushes = append(b.pushes, pushedRequest{Body: body, IdempotencyKey: r.Header.Get("Idempotency-Key")})

		status, resp := b.respond(len(b.pushes))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *fakeBackend) setRespond(fn func(n int) (int, string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.respond = fn
}

func (b *fakeBackend) setRooms(rooms string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms = rooms
}

func (b *fakeBackend) listings() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listing
}

func (b *fakeBackend) pushed() []pushedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]pushedRequest(nil), b.pushes...)
}

func always(status int, body string) func(int) (int, string) {
	return func(int) (int, string) { return status, body }
}

type harness struct {
	store      *db.Store
	enqueuer   *Enqueuer
	reconciler *Reconciler
	backend    *fakeBackend
	apiBase    string
}

func newHarness(t *testing.T, configuredRoom string) *harness {
	t.Helper()

	store, err := db.Open(t.TempDir(), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	})

	backend := &fakeBackend{t: t, respond: always(http.StatusCreated, `{"booking":{"id":"srv"}}`), rooms: `{"rooms":[]}`}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client := remote.NewClient(nil, 2*time.Second, 2*time.Second, discardLogger())
	rooms := remote.NewRoomResolver(configuredRoom, client, discardLogger())
	handler := processor.NewSyncHandler(store, client, rooms, mapper.DefaultRegistry(), discardLogger())

	return &harness{
		store:      store,
		enqueuer:   NewEnqueuer(store, discardLogger()),
		reconciler: NewReconciler(store, handler, discardLogger()),
		backend:    backend,
		apiBase:    srv.URL,
	}
}

func (h *harness) enqueue(t *testing.T, hours int) EnqueueResult {
	t.Helper()
	start := time.Date(2026, 10, 20, 14, 0, 0, 0, time.UTC)
	res, err := h.enqueuer.EnqueueBooking(context.Background(), BookingInput{
		CustomerName: "Ada",
		StartsAt:     start,
		EndsAt:       start.Add(time.Duration(hours) * time.Hour),
	})
	require.NoError(t, err)
	return res
}

func (h *harness) head(t *testing.T) *models.QueuedMutation {
	t.Helper()
	m, err := h.store.PeekOldest(context.Background())
	require.NoError(t, err)
	return m
}

func TestProcessSyncCycle_DrainsInFIFOOrder(t *testing.T) {
	h := newHarness(t, "room-1")
	ctx := context.Background()

	ids := []string{h.enqueue(t, 1).OutboxID, h.enqueue(t, 2).OutboxID, h.enqueue(t, 3).OutboxID}

	res, err := h.reconciler.ProcessSyncCycle(ctx, h.apiBase)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pushed)
	assert.Zero(t, res.Remaining)
	assert.Nil(t, res.LastError)

	pushes := h.backend.pushed()
	require.Len(t, pushes, 3)
	for i, p := range pushes {
		assert.Equal(t, ids[i], p.IdempotencyKey)
		assert.Equal(t, i+1, p.Body.Hours)
		assert.Equal(t, "room-1", p.Body.RoomID)
	}
}

func TestProcessSyncCycle_TransientHeadBlocksLaterEntries(t *testing.T) {
	h := newHarness(t, "room-1")
	ctx := context.Background()
	h.backend.setRespond(always(http.StatusInternalServerError, `{"error":"boom"}`))

	first := h.enqueue(t, 1)
	h.enqueue(t, 2)
	h.enqueue(t, 3)

	res, err := h.reconciler.ProcessSyncCycle(ctx, h.apiBase)
	require.NoError(t, err)

	assert.Zero(t, res.Pushed)
	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, 3, res.Remaining)
	assert.False(t, res.AuthExpired)
	require.NotNil(t, res.LastError)
	assert.Equal(t, processor.CodeServerError, res.LastError.Code)
	assert.Equal(t, 500, res.LastError.Status)
	assert.Equal(t, first.OutboxID, res.LastError.OutboxID)
	assert.Equal(t, 1, res.HeadAttempts)

	assert.Len(t, h.backend.pushed(), 1, "later entries must not be attempted")

	head := h.head(t)
	assert.Equal(t, first.OutboxID, head.ID)
	assert.Equal(t, 1, head.Attempts)
	assert.Contains(t, head.LastError, processor.CodeServerError)
}

func TestProcessSyncCycle_TimeoutIsTransient(t *testing.T) {
	h := newHarness(t, "room-1")

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	client := remote.NewClient(nil, 50*time.Millisecond, time.Second, discardLogger())
	handler := processor.NewSyncHandler(h.store, client, remote.NewRoomResolver("room-1", client, discardLogger()), mapper.DefaultRegistry(), discardLogger())
	reconciler := NewReconciler(h.store, handler, discardLogger())

	h.enqueue(t, 1)
	res, err := reconciler.ProcessSyncCycle(context.Background(), slow.URL)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failures)
	require.NotNil(t, res.LastError)
	assert.Equal(t, processor.CodeNetworkError, res.LastError.Code)
	assert.Equal(t, 1, h.head(t).Attempts)
}

func TestProcessSyncCycle_UnauthorizedKeepsAttempts(t *testing.T) {
	h := newHarness(t, "room-1")
	h.backend.setRespond(always(http.StatusUnauthorized, `{"error":"Not authenticated"}`))

	h.enqueue(t, 2)
	h.enqueue(t, 2)

	res, err := h.reconciler.ProcessSyncCycle(context.Background(), h.apiBase)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Pushed)
	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, 2, res.Remaining)
	assert.True(t, res.AuthExpired)
	require.NotNil(t, res.LastError)
	assert.Equal(t, processor.CodeAuthExpired, res.LastError.Code)

	assert.Zero(t, h.head(t).Attempts)

	// a second 401 still leaves the counter alone
	_, err = h.reconciler.ProcessSyncCycle(context.Background(), h.apiBase)
	require.NoError(t, err)
	assert.Zero(t, h.head(t).Attempts)
}

func TestProcessSyncCycle_PermanentRejectionDropsAndContinues(t *testing.T) {
	h := newHarness(t, "room-1")
	ctx := context.Background()
	h.backend.setRespond(func(n int) (int, string) {
		if n == 1 {
			return http.StatusBadRequest, `{"error":"Booking is outside room operating hours"}`
		}
		return http.StatusCreated, `{"booking":{"id":"srv-2"}}`
	})

	dropped := h.enqueue(t, 2)
	kept := h.enqueue(t, 2)

	res, err := h.reconciler.ProcessSyncCycle(ctx, h.apiBase)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 1, res.Dropped)
	assert.Zero(t, res.Failures)
	assert.Zero(t, res.Remaining)
	require.NotNil(t, res.LastError)
	assert.Equal(t, processor.CodeValidationDropped, res.LastError.Code)
	require.Len(t, res.DroppedErrors, 1)
	assert.Equal(t, dropped.OutboxID, res.DroppedErrors[0].OutboxID)

	b, err := h.store.GetBooking(ctx, dropped.BookingID)
	require.NoError(t, err)
	assert.False(t, b.Dirty)
	assert.Empty(t, b.ServerID)

	b, err = h.store.GetBooking(ctx, kept.BookingID)
	require.NoError(t, err)
	assert.False(t, b.Dirty)
	assert.Equal(t, "srv-2", b.ServerID)

	letters, err := h.store.ListDeadLetters(ctx, false)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, dropped.OutboxID, letters[0].OutboxID)
	assert.Zero(t, letters[0].Attempts)
}

func TestProcessSyncCycle_RerunAfterRecoveryDrainsRemaining(t *testing.T) {
	h := newHarness(t, "room-1")
	ctx := context.Background()
	h.backend.setRespond(always(http.StatusServiceUnavailable, ``))

	first := h.enqueue(t, 1)
	h.enqueue(t, 1)

	res, err := h.reconciler.ProcessSyncCycle(ctx, h.apiBase)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)

	h.backend.setRespond(always(http.StatusCreated, `{"booking":{"id":"x"}}`))

	res, err = h.reconciler.ProcessSyncCycle(ctx, h.apiBase)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pushed)
	assert.Zero(t, res.Remaining)
	assert.Zero(t, res.Failures)

	pushes := h.backend.pushed()
	require.Len(t, pushes, 3)
	assert.Equal(t, first.OutboxID, pushes[0].IdempotencyKey)
	assert.Equal(t, first.OutboxID, pushes[1].IdempotencyKey, "a retried entry keeps its idempotency key")

	size, err := h.enqueuer.QueueSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)

	// nothing left: a further run is a no-op
	res, err = h.reconciler.ProcessSyncCycle(ctx, h.apiBase)
	require.NoError(t, err)
	assert.Equal(t, CycleResult{}, res)
}

func TestProcessSyncCycle_ThreeHourBookingPushesHoursAndCleans(t *testing.T) {
	h := newHarness(t, "room-1")
	ctx := context.Background()
	h.backend.setRespond(always(http.StatusCreated, `{"success":true,"booking":{"id":"srv-77"}}`))

	queued := h.enqueue(t, 3)

	res, err := h.reconciler.ProcessSyncCycle(ctx, h.apiBase)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)

	pushes := h.backend.pushed()
	require.Len(t, pushes, 1)
	assert.Equal(t, 3, pushes[0].Body.Hours)
	assert.Equal(t, 1, pushes[0].Body.Players)
	assert.Equal(t, "2026-10-20T14:00:00.000Z", pushes[0].Body.StartTimeISO)

	b, err := h.store.GetBooking(ctx, queued.BookingID)
	require.NoError(t, err)
	assert.False(t, b.Dirty)
	assert.Equal(t, "srv-77", b.ServerID)

	lastPush, ok, err := h.store.GetMeta(ctx, MetaLastPushAt)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, lastPush)
}

func TestProcessSyncCycle_NoRoomID(t *testing.T) {
	h := newHarness(t, "")
	h.backend.setRooms(`{"rooms":[]}`)

	queued := h.enqueue(t, 1)

	res, err := h.reconciler.ProcessSyncCycle(context.Background(), h.apiBase)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, 1, res.Remaining)
	require.NotNil(t, res.LastError)
	assert.Equal(t, processor.CodeNoRoomID, res.LastError.Code)
	assert.Equal(t, queued.OutboxID, res.LastError.OutboxID)

	assert.Empty(t, h.backend.pushed(), "no push without a room")
	assert.Equal(t, 1, h.head(t).Attempts)
}

func TestProcessSyncCycle_DiscoversRoomOnce(t *testing.T) {
	h := newHarness(t, "")
	h.backend.setRooms(`{"rooms":[{"id":"idle","active":false},{"id":"live","active":true}]}`)

	h.enqueue(t, 1)
	h.enqueue(t, 1)

	res, err := h.reconciler.ProcessSyncCycle(context.Background(), h.apiBase)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pushed)

	for _, p := range h.backend.pushed() {
		assert.Equal(t, "live", p.Body.RoomID)
	}
	assert.Equal(t, 1, h.backend.listings())
}

func TestProcessSyncCycle_UnsupportedTypeBlocks(t *testing.T) {
	h := newHarness(t, "room-1")
	ctx := context.Background()

	_, err := h.store.Enqueue(ctx, "menu:update", []byte(`{}`))
	require.NoError(t, err)
	h.enqueue(t, 1)

	res, err := h.reconciler.ProcessSyncCycle(ctx, h.apiBase)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, 2, res.Remaining)
	require.NotNil(t, res.LastError)
	assert.Equal(t, processor.CodeUnsupportedType, res.LastError.Code)
	assert.Empty(t, h.backend.pushed())
}

func TestProcessSyncCycle_MalformedPayloadIsDeadLettered(t *testing.T) {
	h := newHarness(t, "room-1")
	ctx := context.Background()

	_, err := h.store.Enqueue(ctx, models.MutationBookingCreate, []byte(`{"localId":"ghost"`))
	require.NoError(t, err)
	h.enqueue(t, 1)

	res, err := h.reconciler.ProcessSyncCycle(ctx, h.apiBase)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 1, res.Pushed)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, processor.CodePayloadInvalid, res.DroppedErrors[0].Code)
}

func TestProcessSyncOnce_AtMostOneAttempt(t *testing.T) {
	h := newHarness(t, "room-1")
	h.enqueue(t, 1)
	h.enqueue(t, 1)

	res, err := h.reconciler.ProcessSyncOnce(context.Background(), h.apiBase)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 1, res.Remaining)
	assert.Len(t, h.backend.pushed(), 1)
}

func TestProcessSyncCycle_OverlappingCallIsSkipped(t *testing.T) {
	h := newHarness(t, "room-1")

	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	defer blocking.Close()

	h.enqueue(t, 1)

	done := make(chan CycleResult)
	go func() {
		res, _ := h.reconciler.ProcessSyncCycle(context.Background(), blocking.URL)
		done <- res
	}()

	<-entered
	assert.True(t, h.reconciler.Syncing())

	res, err := h.reconciler.ProcessSyncCycle(context.Background(), blocking.URL)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	close(release)
	first := <-done
	assert.Equal(t, 1, first.Pushed)
	assert.False(t, h.reconciler.Syncing())
}

func TestReconcilers_DoNotShareGate(t *testing.T) {
	a := NewReconciler(nil, nil, discardLogger())
	b := NewReconciler(nil, nil, discardLogger())

	a.syncing.Store(true)
	assert.True(t, a.Syncing())
	assert.False(t, b.Syncing())
}
