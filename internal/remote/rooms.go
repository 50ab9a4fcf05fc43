package remote

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Guizzs26/go-pos-sync/internal/models"
	"github.com/Guizzs26/go-pos-sync/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// RoomLister is the remote call used for discovery
type RoomLister interface {
	ListRooms(ctx context.Context, apiBase string) ([]models.Room, error)
}

// RoomResolver picks the room id for mutations that do not carry one:
// configured id first, then a previously discovered id, then a live lookup.
// A discovered id is kept for the lifetime of the resolver
type RoomResolver struct {
	configured string
	lister     RoomLister
	logger     *slog.Logger

	mu     sync.RWMutex
	cached string
	group  singleflight.Group
}

func NewRoomResolver(configured string, lister RoomLister, logger *slog.Logger) *RoomResolver {
	return &RoomResolver{configured: configured, lister: lister, logger: logger}
}

// Resolve returns "" when no room could be found; discovery failures are logged, not returned
func (r *RoomResolver) Resolve(ctx context.Context, apiBase string) string {
	if r.configured != "" {
		return r.configured
	}
	if id := r.Cached(); id != "" {
		return id
	}

	v, _, _ := r.group.Do(apiBase, func() (any, error) {
		if id := r.Cached(); id != "" {
			return id, nil
		}
		return r.discover(ctx, apiBase), nil
	})
	return v.(string)
}

func (r *RoomResolver) Cached() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cached
}

func (r *RoomResolver) discover(ctx context.Context, apiBase string) string {
	rooms, err := r.lister.ListRooms(ctx, apiBase)
	if err != nil {
		metrics.RoomDiscoveries.WithLabelValues("error").Inc()
		r.logger.Warn("Room discovery failed", "error", err)
		return ""
	}

	room, ok := pickRoom(rooms)
	if !ok {
		metrics.RoomDiscoveries.WithLabelValues("empty").Inc()
		r.logger.Warn("Room discovery returned no rooms")
		return ""
	}

	metrics.RoomDiscoveries.WithLabelValues("found").Inc()
	r.logger.Info("Discovered room", "room_id", room.ID, "name", room.Name)

	r.mu.Lock()
	r.cached = room.ID
	r.mu.Unlock()
	return room.ID
}

// pickRoom prefers the first active room and falls back to the first one
func pickRoom(rooms []models.Room) (models.Room, bool) {
	if len(rooms) == 0 {
		return models.Room{}, false
	}
	for _, room := range rooms {
		if room.Active {
			return room, true
		}
	}
	return rooms[0], true
}
