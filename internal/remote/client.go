package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Guizzs26/go-pos-sync/internal/mapper"
	"github.com/Guizzs26/go-pos-sync/internal/models"
	"github.com/Guizzs26/go-pos-sync/pkg/metrics"
)

// Response bodies above this size are truncated; the API never sends more
const maxBodyBytes = 1 << 20

// Credentials supplies what is attached to every remote call
type Credentials interface {
	AccessToken() string
	SessionCookieHeader() string
}

// StatusError is a non-2xx answer from the remote API
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote answered HTTP %d", e.Status)
}

// Client handles the low-level communication with the booking API
type Client struct {
	http             *http.Client
	creds            Credentials
	pushTimeout      time.Duration
	discoveryTimeout time.Duration
	logger           *slog.Logger
	healthy          atomic.Bool
}

// NewClient builds a client; timeouts are applied per call through the context
func NewClient(creds Credentials, pushTimeout, discoveryTimeout time.Duration, logger *slog.Logger) *Client {
	c := &Client{
		http:             &http.Client{},
		creds:            creds,
		pushTimeout:      pushTimeout,
		discoveryTimeout: discoveryTimeout,
		logger:           logger,
	}
	c.healthy.Store(true)
	metrics.RemoteHealthy.Set(1)
	return c
}

// Send performs one mutation call and returns the body of a 2xx answer.
// Non-2xx answers come back as *StatusError, everything else is a network failure
func (c *Client) Send(ctx context.Context, apiBase string, req mapper.Request, idempotencyKey string) ([]byte, error) {
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.pushTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, joinURL(apiBase, req.Path), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}
	c.authorize(httpReq)

	start := time.Now()
	status, body, err := c.do(httpReq)
	label := "network_error"
	if err == nil {
		label = strconv.Itoa(status)
	}
	metrics.PushDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", req.Method, req.Path, err)
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Status: status, Body: body}
	}
	return body, nil
}

// ListRooms fetches the room catalogue used for room id discovery
func (c *Client) ListRooms(ctx context.Context, apiBase string) ([]models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, c.discoveryTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(apiBase, "/api/bookings/rooms"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.authorize(httpReq)

	status, body, err := c.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("room listing failed: %w", err)
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Status: status, Body: body}
	}

	var list models.RoomList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode room list: %w", err)
	}
	return list.Rooms, nil
}

// IsHealthy returns false when the last call never got an HTTP answer
func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *Client) authorize(r *http.Request) {
	if c.creds == nil {
		return
	}
	if token := c.creds.AccessToken(); token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if cookie := c.creds.SessionCookieHeader(); cookie != "" {
		r.Header.Set("Cookie", cookie)
	}
}

func (c *Client) do(r *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(r)
	if err != nil {
		c.setHealthy(false)
		return 0, nil, err
	}
	defer resp.Body.Close()
	c.setHealthy(true)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.logger.Warn("Failed to read response body", "status", resp.StatusCode, "error", err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) setHealthy(ok bool) {
	if c.healthy.Swap(ok) == ok {
		return
	}
	if ok {
		metrics.RemoteHealthy.Set(1)
		c.logger.Info("Remote API reachable again")
	} else {
		metrics.RemoteHealthy.Set(0)
		c.logger.Warn("Remote API unreachable")
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
