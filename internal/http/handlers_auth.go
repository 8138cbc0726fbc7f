package http

import (
	"net/http"

	"campusledger/internal/core"
	"campusledger/internal/log"
)

type credentialsRequest struct {
	StudentID string `json:"student_id"`
	Password  string `json:"password"`
}

type userResponse struct {
	UserID    int64  `json:"user_id"`
	StudentID string `json:"student_id"`
	Role      string `json:"role"`
}

// handleBootstrapStatus reports whether the owner account still needs to be
// created, so clients know to show the first-run screen.
func (s *Server) handleBootstrapStatus(w http.ResponseWriter, r *http.Request) {
	needed, err := s.authSvc.NeedsBootstrap(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"bootstrap_required": needed})
}

// handleBootstrap creates the owner account. Succeeds exactly once per store.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	id, err := s.authSvc.Bootstrap(r.Context(), sanitizeInput(req.StudentID), req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.ledger.RecordAction(r.Context(), id, core.ActionBootstrap)
	s.logger.InfoContext(r.Context(), "owner account created", log.FieldUserID, id)
	respondJSON(w, http.StatusCreated, userResponse{UserID: id, StudentID: req.StudentID, Role: string(core.RoleOwner)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	id, err := s.authSvc.Register(r.Context(), sanitizeInput(req.StudentID), req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.ledger.RecordAction(r.Context(), id, core.ActionRegister)
	respondJSON(w, http.StatusCreated, userResponse{UserID: id, StudentID: req.StudentID, Role: string(core.RoleStudent)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	sess, err := s.authSvc.Login(r.Context(), sanitizeInput(req.StudentID), req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	token := s.sessions.create(sess)
	s.setSessionCookie(w, token)

	s.ledger.RecordAction(r.Context(), sess.UserID, core.ActionLogin)
	respondJSON(w, http.StatusOK, userResponse{UserID: sess.UserID, StudentID: sess.StudentID, Role: string(sess.Role)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.sessions.delete(cookie.Value)
	}
	clearSessionCookie(w)

	s.ledger.RecordAction(r.Context(), sess.UserID, core.ActionLogout)
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type resetPasswordRequest struct {
	StudentID   string `json:"student_id"`
	NewPassword string `json:"new_password"`
}

// handleResetPassword replaces a student's password. Existing sessions for
// that user are revoked so the old login stops working immediately.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	studentID := sanitizeInput(req.StudentID)
	if err := s.authSvc.ResetPassword(r.Context(), studentID, req.NewPassword); err != nil {
		s.respondError(w, r, err)
		return
	}

	if user, err := s.authSvc.LookupUser(r.Context(), studentID); err == nil {
		s.sessions.revokeUser(user.ID)
		s.ledger.RecordAction(r.Context(), user.ID, core.ActionResetPassword)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "password reset"})
}
