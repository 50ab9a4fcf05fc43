package mapper

import (
	"errors"
	"net/http"
)

var (
	// ErrNoRoomID means no room identifier could be resolved for the mutation
	ErrNoRoomID = errors.New("no room id available")

	// ErrInvalidPayload means the queued payload can never be turned into a request
	ErrInvalidPayload = errors.New("invalid mutation payload")
)

// RoomSource resolves a remote room id when the payload does not carry one
type RoomSource func() (string, error)

// Request is a remote call built from a queued payload
type Request struct {
	Method  string
	Path    string
	Body    any
	LocalID string // local entity cleared once the call is confirmed
}

// Adapter translates one mutation type into the remote API's shape and
// knows which remote rejections for that type can never succeed on retry
type Adapter interface {
	Type() string
	Build(payload []byte, rooms RoomSource) (Request, error)
	Permanent(r Rejection) bool
	RemoteID(body []byte) string
}

// Registry maps mutation types to their adapters
type Registry map[string]Adapter

func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Type()] = a
	}
	return r
}

// DefaultRegistry holds every mutation type the client can queue
func DefaultRegistry() Registry {
	return NewRegistry(NewBookingCreateAdapter(), NewRoomUpdateAdapter())
}

func (r Registry) Lookup(mutationType string) (Adapter, bool) {
	a, ok := r[mutationType]
	return a, ok
}

func post(path string, body any, localID string) Request {
	return Request{Method: http.MethodPost, Path: path, Body: body, LocalID: localID}
}
