package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// Session holds the credentials attached to remote calls. The access token
// and cookies live in memory only; the refresh token is kept in the OS
// credential store so it survives restarts
type Session struct {
	service string
	account string
	logger  *slog.Logger

	mu          sync.RWMutex
	accessToken string
	cookies     []*http.Cookie
}

func NewSession(service, account string, logger *slog.Logger) *Session {
	return &Session{service: service, account: account, logger: logger}
}

func (s *Session) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) ClearAccessToken() {
	s.SetAccessToken("")
}

// SaveRefreshToken persists the refresh token in the OS credential store
func (s *Session) SaveRefreshToken(token string) error {
	return keyring.Set(s.service, s.account, token)
}

// LoadRefreshToken reads the persisted refresh token. A missing entry and an
// unavailable credential store are both reported as absent
func (s *Session) LoadRefreshToken() (string, bool) {
	token, err := keyring.Get(s.service, s.account)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			s.logger.Warn("Credential store unavailable, no refresh token loaded", "error", err)
		}
		return "", false
	}
	return token, token != ""
}

// ClearRefreshToken removes the persisted refresh token; failures are only logged
func (s *Session) ClearRefreshToken() {
	err := keyring.Delete(s.service, s.account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		s.logger.Warn("Failed to clear refresh token", "error", err)
	}
}

// SetSessionCookies keeps the name/value pairs of cookies set by the API.
// Cookies the server deleted (empty value or negative MaxAge) are skipped
func (s *Session) SetSessionCookies(cookies []*http.Cookie) {
	kept := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" || c.Value == "" || c.MaxAge < 0 {
			continue
		}
		kept = append(kept, &http.Cookie{Name: c.Name, Value: c.Value})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = kept
}

// SessionCookieHeader renders the kept cookies as a Cookie header value, "" when none
func (s *Session) SessionCookieHeader() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.cookies))
	for _, c := range s.cookies {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, "; ")
}

// Clear drops the in-memory credentials after the API rejected them.
// The refresh token stays so the user can be signed back in
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.cookies = nil
}
