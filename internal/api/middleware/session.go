package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Fantasim/nanas/internal/api/httputil"
	"github.com/Fantasim/nanas/internal/config"
)

type adminKey struct{}

// AdminFromContext returns the admin username attached by SessionStore.Middleware.
func AdminFromContext(ctx context.Context) string {
	name, _ := ctx.Value(adminKey{}).(string)
	return name
}

// SessionStore authenticates the single operator account that settles
// cash-outs and edits the reward policy. Sessions live in memory only.
type SessionStore struct {
	username string
	passHash []byte
	now      func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time // token -> expiry
}

// NewSessionStore bcrypt-hashes the admin password and discards the plaintext.
func NewSessionStore(username, password string) (*SessionStore, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	slog.Info("admin session store initialized", "username", username)
	return &SessionStore{
		username: username,
		passHash: hash,
		now:      time.Now,
		expires:  make(map[string]time.Time),
	}, nil
}

// Login checks the credentials and opens a session valid for SessionTimeout.
func (s *SessionStore) Login(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passHash, []byte(password))
	if !userOK || passErr != nil {
		slog.Warn("admin login rejected", "attempted", username)
		return "", config.ErrInvalidCredentials
	}

	token := generateToken()
	if token == "" {
		return "", fmt.Errorf("failed to generate session token")
	}

	now := s.now()
	expiresAt := now.Add(config.SessionTimeout)

	s.mu.Lock()
	for t, exp := range s.expires {
		if now.After(exp) {
			delete(s.expires, t)
		}
	}
	s.expires[token] = expiresAt
	active := len(s.expires)
	s.mu.Unlock()

	slog.Info("admin logged in",
		"username", username,
		"expiresAt", expiresAt.UTC().Format(time.RFC3339),
		"activeSessions", active,
	)
	return token, nil
}

// Validate reports whether token belongs to a live session.
func (s *SessionStore) Validate(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expires[token]
	if !ok {
		return false
	}
	if s.now().After(exp) {
		delete(s.expires, token)
		return false
	}
	return true
}

// Logout ends a session. Unknown tokens are ignored.
func (s *SessionStore) Logout(token string) {
	s.mu.Lock()
	delete(s.expires, token)
	s.mu.Unlock()
	slog.Info("admin logged out")
}

// Middleware answers 401 unless the request carries a live session cookie,
// and records the admin name in the request context.
func (s *SessionStore) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(config.SessionCookieName)
		if err != nil || !s.Validate(cookie.Value) {
			slog.Debug("admin session missing or expired", "path", r.URL.Path, "remoteAddr", r.RemoteAddr)
			httputil.Error(w, http.StatusUnauthorized, config.ErrorUnauthorized, "session required, please log in")
			return
		}

		ctx := context.WithValue(r.Context(), adminKey{}, s.username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
