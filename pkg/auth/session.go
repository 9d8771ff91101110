package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// SessionStore reads the signed cookie session whose values back @session:
// report parameters. The session is written by the host application; this
// engine only reads it, except for Save which tests and tooling use.
// ErrSessionsDisabled is returned by Save on a store created without a secret.
var ErrSessionsDisabled = errors.New("session store has no secret")

type SessionStore struct {
	store      *sessions.CookieStore
	disabled   bool
	cookieName string
	logger     *zap.Logger
}

// NewSessionStore creates a cookie session store.
//
// The secret parameter is used to sign session cookies. It can be any
// passphrase - it will be SHA-256 hashed to derive a 32-byte key.
// The secret must be consistent across server restarts and multiple
// servers in a load-balanced deployment.
//
// An empty secret disables sessions: every cookie is ignored, since a key
// derived from "" is public and anyone could sign session values with it.
func NewSessionStore(secret, cookieName string, secure bool, logger *zap.Logger) *SessionStore {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &SessionStore{
		store:      store,
		disabled:   secret == "",
		cookieName: cookieName,
		logger:     logger.Named("session"),
	}
}

// LoadSession attaches the request's session values to the context.
// A missing or invalid cookie yields an empty session rather than an error.
func (s *SessionStore) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.disabled {
			next.ServeHTTP(w, r.WithContext(WithSessionValues(r.Context(), nil)))
			return
		}

		session, err := s.store.Get(r, s.cookieName)
		if err != nil {
			s.logger.Debug("Ignoring unreadable session cookie",
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}

		var values map[any]any
		if session != nil {
			values = session.Values
		}
		next.ServeHTTP(w, r.WithContext(WithSessionValues(r.Context(), values)))
	})
}

// Save writes values into the session cookie on w.
func (s *SessionStore) Save(w http.ResponseWriter, r *http.Request, values map[string]any) error {
	if s.disabled {
		return ErrSessionsDisabled
	}
	session, err := s.store.Get(r, s.cookieName)
	if err != nil && session == nil {
		return err
	}
	for k, v := range values {
		session.Values[k] = v
	}
	return session.Save(r, w)
}
