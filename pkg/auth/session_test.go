package auth

import (
	"crypto/sha256"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionStore_RoundTrip(t *testing.T) {
	store := NewSessionStore("test-secret", "test_session", false, zap.NewNop())

	// Write the session cookie
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, store.Save(rec, req, map[string]any{"region": "emea", "account": "acct-9"}))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "test_session", cookies[0].Name)

	// Read it back through the middleware
	var got map[string]any
	handler := store.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetSessionValues(r.Context())
	}))

	req = httptest.NewRequest(http.MethodGet, "/api/report/r1", nil)
	req.AddCookie(cookies[0])
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, map[string]any{"region": "emea", "account": "acct-9"}, got)
}

func TestSessionStore_TamperedCookie(t *testing.T) {
	store := NewSessionStore("test-secret", "test_session", false, zap.NewNop())

	var got map[string]any
	var present bool
	handler := store.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, present = GetSessionValues(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "forged"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, present)
	assert.Empty(t, got)
}

func TestSessionStore_DifferentSecretRejected(t *testing.T) {
	writer := NewSessionStore("secret-one", "s", false, zap.NewNop())
	reader := NewSessionStore("secret-two", "s", false, zap.NewNop())

	rec := httptest.NewRecorder()
	require.NoError(t, writer.Save(rec, httptest.NewRequest(http.MethodGet, "/", nil), map[string]any{"k": "v"}))

	var got map[string]any
	handler := reader.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetSessionValues(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, got)
}

func TestSessionStore_EmptySecretIgnoresCookies(t *testing.T) {
	store := NewSessionStore("", "s", false, zap.NewNop())

	// A cookie signed with the key derived from an empty secret.
	emptyKey := sha256.Sum256(nil)
	forger := sessions.NewCookieStore(emptyKey[:])
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	session, err := forger.Get(req, "s")
	require.NoError(t, err)
	session.Values["region"] = "victim-tenant"
	require.NoError(t, session.Save(req, rec))
	forged := rec.Result().Cookies()
	require.Len(t, forged, 1)

	var got map[string]any
	handler := store.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetSessionValues(r.Context())
	}))
	req = httptest.NewRequest(http.MethodGet, "/api/report/r1", nil)
	req.AddCookie(forged[0])
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, got)
	assert.ErrorIs(t, store.Save(httptest.NewRecorder(), req, map[string]any{"k": "v"}), ErrSessionsDisabled)
}
