package http

import (
	"net/http"
	"strconv"
	"time"
)

type overviewRowResponse struct {
	Rank      int    `json:"rank"`
	StudentID string `json:"student_id"`
	Count     int    `json:"count"`
	Total     string `json:"total"`
	Risk      string `json:"risk"`
}

func (s *Server) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	rows, err := s.ledger.AdminOverview(r.Context(), sessionFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]overviewRowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, overviewRowResponse{
			Rank:      row.Rank,
			StudentID: row.StudentID,
			Count:     row.Count,
			Total:     row.Total.String(),
			Risk:      string(row.Risk),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleChampion(w http.ResponseWriter, r *http.Request) {
	winner, ok, err := s.ledger.Champion(r.Context(), sessionFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"champion": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"champion": overviewRowResponse{
			Rank:      1,
			StudentID: winner.StudentID,
			Count:     winner.Count,
			Total:     winner.Total.String(),
		},
	})
}

type auditEventResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	StudentID string `json:"student_id,omitempty"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	events, err := s.ledger.AuditTrail(r.Context(), sessionFrom(r), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]auditEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, auditEventResponse{
			ID:        ev.ID,
			UserID:    ev.UserID,
			StudentID: ev.StudentID,
			Action:    ev.Action,
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// handleExport pushes the current admin overview to the configured
// spreadsheet. Returns 503 when no exporter is configured.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "export not configured"})
		return
	}

	rows, err := s.ledger.AdminOverview(r.Context(), sessionFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.exporter.ExportOverview(r.Context(), rows); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "exported", "rows": len(rows)})
}
