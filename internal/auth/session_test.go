package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newTestSession() *Session {
	return NewSession("pos-test", "refresh-token", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSession_AccessToken(t *testing.T) {
	s := newTestSession()
	assert.Empty(t, s.AccessToken())

	s.SetAccessToken("tok")
	assert.Equal(t, "tok", s.AccessToken())

	s.ClearAccessToken()
	assert.Empty(t, s.AccessToken())
}

func TestSession_RefreshTokenRoundTrip(t *testing.T) {
	keyring.MockInit()
	s := newTestSession()

	_, ok := s.LoadRefreshToken()
	assert.False(t, ok)

	require.NoError(t, s.SaveRefreshToken("refresh-1"))
	token, ok := s.LoadRefreshToken()
	assert.True(t, ok)
	assert.Equal(t, "refresh-1", token)

	s.ClearRefreshToken()
	_, ok = s.LoadRefreshToken()
	assert.False(t, ok)

	// clearing twice is harmless
	s.ClearRefreshToken()
}

func TestSession_CredentialStoreUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	s := newTestSession()

	assert.Error(t, s.SaveRefreshToken("x"))

	_, ok := s.LoadRefreshToken()
	assert.False(t, ok)

	s.ClearRefreshToken()
}

func TestSession_Cookies(t *testing.T) {
	s := newTestSession()
	assert.Empty(t, s.SessionCookieHeader())

	s.SetSessionCookies([]*http.Cookie{
		{Name: "session", Value: "abc", HttpOnly: true, Path: "/"},
		{Name: "gone", Value: "", MaxAge: -1},
		{Name: "csrf", Value: "xyz"},
		nil,
	})
	assert.Equal(t, "session=abc; csrf=xyz", s.SessionCookieHeader())

	s.SetSessionCookies(nil)
	assert.Empty(t, s.SessionCookieHeader())
}

func TestSession_ClearKeepsRefreshToken(t *testing.T) {
	keyring.MockInit()
	s := newTestSession()
	require.NoError(t, s.SaveRefreshToken("keep-me"))

	s.SetAccessToken("tok")
	s.SetSessionCookies([]*http.Cookie{{Name: "session", Value: "abc"}})
	s.Clear()

	assert.Empty(t, s.AccessToken())
	assert.Empty(t, s.SessionCookieHeader())
	token, ok := s.LoadRefreshToken()
	assert.True(t, ok)
	assert.Equal(t, "keep-me", token)
}
