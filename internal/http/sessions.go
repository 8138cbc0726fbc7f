package http

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"campusledger/internal/auth"
)

const sessionCookieName = "campusledger_session"

// sessionStore keeps authenticated sessions in memory, keyed by an opaque
// token carried in a cookie. Sessions expire after the configured TTL and a
// background sweep removes stale entries. A restart logs everyone out.
type sessionStore struct {
	mu           sync.Mutex
	sessions     map[string]*sessionEntry
	ttl          time.Duration
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type sessionEntry struct {
	session   *auth.Session
	expiresAt time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	st := &sessionStore{
		sessions:    make(map[string]*sessionEntry),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	go st.startCleanup()
	return st
}

func (st *sessionStore) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st.cleanupExpired()
		case <-st.stopCleanup:
			return
		}
	}
}

func (st *sessionStore) cleanupExpired() {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	for token, entry := range st.sessions {
		if now.After(entry.expiresAt) {
			delete(st.sessions, token)
		}
	}
}

func (st *sessionStore) stop() {
	st.shutdownOnce.Do(func() {
		close(st.stopCleanup)
	})
}

// create stores the session and returns its token.
func (st *sessionStore) create(sess *auth.Session) string {
	token := generateToken()

	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[token] = &sessionEntry{
		session:   sess,
		expiresAt: time.Now().Add(st.ttl),
	}
	return token
}

// get returns the session for a token, or nil for unknown or expired tokens.
func (st *sessionStore) get(token string) *auth.Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	entry, ok := st.sessions[token]
	if !ok {
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(st.sessions, token)
		return nil
	}
	return entry.session
}

func (st *sessionStore) delete(token string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, token)
}

// revokeUser drops every session belonging to the given user. Used after a
// password reset so old logins stop working immediately.
func (st *sessionStore) revokeUser(userID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for token, entry := range st.sessions {
		if entry.session.UserID == userID {
			delete(st.sessions, token)
		}
	}
}

func generateToken() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a time-derived token if the entropy source fails.
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(bytes)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.sessions.ttl.Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
