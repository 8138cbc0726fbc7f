// Package http exposes the ledger over a JSON API with cookie sessions.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"campusledger/internal/auth"
	"campusledger/internal/log"
	"campusledger/internal/reports"
	"campusledger/internal/services"
)

type ctxKey int

const sessionCtxKey ctxKey = iota

// Server wires the auth and ledger services behind an http.Server with
// session, rate-limit, and security middleware.
type Server struct {
	http.Server
	authSvc      *auth.Service
	ledger       *services.LedgerService
	exporter     *reports.Exporter
	sessions     *sessionStore
	rateLimiter  *rateLimiter
	logger       *log.Logger
	shutdownOnce sync.Once
}

// Options configures server construction.
type Options struct {
	Addr              string
	SessionTTL        time.Duration
	RequestsPerMinute int
	// Exporter is optional; nil disables the admin export endpoint.
	Exporter *reports.Exporter
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, authSvc *auth.Service, ledger *services.LedgerService, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		authSvc:     authSvc,
		ledger:      ledger,
		exporter:    opts.Exporter,
		sessions:    newSessionStore(opts.SessionTTL),
		rateLimiter: newRateLimiter(opts.RequestsPerMinute),
		logger:      logger.WithComponent(log.ComponentHTTP),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/bootstrap", s.withMiddleware(s.handleBootstrapStatus))
	mux.HandleFunc("POST /api/bootstrap", s.withMiddleware(s.handleBootstrap))
	mux.HandleFunc("POST /api/register", s.withMiddleware(s.handleRegister))
	mux.HandleFunc("POST /api/login", s.withMiddleware(s.handleLogin))
	mux.HandleFunc("POST /api/logout", s.withMiddleware(s.requireSession(s.handleLogout)))
	mux.HandleFunc("POST /api/reset-password", s.withMiddleware(s.handleResetPassword))

	mux.HandleFunc("POST /api/expenses", s.withMiddleware(s.requireSession(s.handleAddExpense)))
	mux.HandleFunc("GET /api/expenses", s.withMiddleware(s.requireSession(s.handleListExpenses)))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.withMiddleware(s.requireSession(s.handleDeleteExpense)))
	mux.HandleFunc("GET /api/dashboard", s.withMiddleware(s.requireSession(s.handleDashboard)))
	mux.HandleFunc("GET /api/profile", s.withMiddleware(s.requireSession(s.handleProfile)))
	mux.HandleFunc("GET /api/leaderboard", s.withMiddleware(s.requireSession(s.handleLeaderboard)))
	mux.HandleFunc("PUT /api/limits", s.withMiddleware(s.requireSession(s.handleSetLimit)))
	mux.HandleFunc("GET /api/limits", s.withMiddleware(s.requireSession(s.handleGetLimit)))

	mux.HandleFunc("GET /api/admin/overview", s.withMiddleware(s.requireOwner(s.handleAdminOverview)))
	mux.HandleFunc("GET /api/admin/champion", s.withMiddleware(s.requireOwner(s.handleChampion)))
	mux.HandleFunc("GET /api/admin/audit", s.withMiddleware(s.requireOwner(s.handleAuditTrail)))
	mux.HandleFunc("POST /api/admin/export", s.withMiddleware(s.requireOwner(s.handleExport)))

	return s
}

// Shutdown stops the background goroutines and the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.sessions.stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds request tracing, rate limiting on mutations, and
// security headers.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		logger := s.logger.With(log.FieldRequestID, requestID)
		ctx := r.Context()

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			respondJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		logger.InfoContext(ctx, "request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

// requireSession rejects requests without a valid session cookie.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}
		sess := s.sessions.get(cookie.Value)
		if sess == nil {
			clearSessionCookie(w)
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "session expired"})
			return
		}
		ctx := context.WithValue(r.Context(), sessionCtxKey, sess)
		next(w, r.WithContext(ctx))
	}
}

// requireOwner rejects requests whose session does not belong to the owner.
func (s *Server) requireOwner(next http.HandlerFunc) http.HandlerFunc {
	return s.requireSession(func(w http.ResponseWriter, r *http.Request) {
		if !sessionFrom(r).IsOwner() {
			respondJSON(w, http.StatusForbidden, errorResponse{Error: "owner access required"})
			return
		}
		next(w, r)
	})
}

// sessionFrom returns the request session. Only valid behind requireSession.
func sessionFrom(r *http.Request) *auth.Session {
	sess, _ := r.Context().Value(sessionCtxKey).(*auth.Session)
	return sess
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
