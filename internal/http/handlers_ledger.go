package http

import (
	"net/http"
	"strconv"
	"time"

	"campusledger/internal/core"
	"campusledger/internal/insights"
)

type expenseRequest struct {
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Tags     string `json:"tags"`
	Date     string `json:"date"`
	Note     string `json:"note"`
}

type expenseResponse struct {
	ID       int64  `json:"id"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Class    string `json:"class"`
	Tags     string `json:"tags,omitempty"`
	Date     string `json:"date"`
	Note     string `json:"note,omitempty"`
}

func (s *Server) expenseToResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:       e.ID,
		Amount:   e.Amount.String(),
		Category: string(e.Category),
		Class:    string(s.ledger.ClassifyCategory(e.Category)),
		Tags:     e.Tags.String(),
		Date:     e.Date.String(),
		Note:     e.Note,
	}
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	expense := core.Expense{
		Amount:   core.Money{Cents: cents},
		Category: core.Category(sanitizeInput(req.Category)),
		Tags:     core.ParseTags(sanitizeInput(req.Tags)),
		Date:     date,
		Note:     sanitizeInput(req.Note),
	}

	saved, err := s.ledger.AddExpense(r.Context(), sessionFrom(r), expense)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, s.expenseToResponse(saved))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.ledger.ListExpenses(r.Context(), sessionFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, s.expenseToResponse(e))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid expense id"})
		return
	}

	if err := s.ledger.DeleteExpense(r.Context(), sessionFrom(r), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type limitUsageResponse struct {
	WeekSpend    string `json:"week_spend"`
	MonthSpend   string `json:"month_spend"`
	WeeklyLimit  string `json:"weekly_limit,omitempty"`
	MonthlyLimit string `json:"monthly_limit,omitempty"`
	OverWeekly   bool   `json:"over_weekly"`
	OverMonthly  bool   `json:"over_monthly"`
}

func usageToResponse(u insights.LimitUsage) limitUsageResponse {
	resp := limitUsageResponse{
		WeekSpend:   u.WeekSpend.String(),
		MonthSpend:  u.MonthSpend.String(),
		OverWeekly:  u.OverWeekly,
		OverMonthly: u.OverMonthly,
	}
	if u.Limit.WeeklyCents > 0 {
		resp.WeeklyLimit = core.Money{Cents: u.Limit.WeeklyCents}.String()
	}
	if u.Limit.MonthlyCents > 0 {
		resp.MonthlyLimit = core.Money{Cents: u.Limit.MonthlyCents}.String()
	}
	return resp
}

type dashboardResponse struct {
	Total       string             `json:"total"`
	Count       int                `json:"count"`
	Trend       string             `json:"trend"`
	Personality string             `json:"personality"`
	Badges      []string           `json:"badges"`
	Progress    float64            `json:"progress"`
	Usage       limitUsageResponse `json:"usage"`
	Expenses    []expenseResponse  `json:"expenses"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.ledger.GetDashboard(r.Context(), sessionFrom(r), time.Now().UTC())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := dashboardResponse{
		Total:       d.Summary.Total.String(),
		Count:       d.Summary.Count,
		Trend:       string(d.Trend),
		Personality: string(d.Personality),
		Badges:      d.Badges,
		Progress:    d.Progress,
		Usage:       usageToResponse(d.Usage),
		Expenses:    make([]expenseResponse, 0, len(d.Expenses)),
	}
	if resp.Badges == nil {
		resp.Badges = []string{}
	}
	for _, e := range d.Expenses {
		resp.Expenses = append(resp.Expenses, s.expenseToResponse(e))
	}
	respondJSON(w, http.StatusOK, resp)
}

type profileResponse struct {
	StudentID   string   `json:"student_id"`
	Trend       string   `json:"trend"`
	Personality string   `json:"personality"`
	Badges      []string `json:"badges"`
	Progress    float64  `json:"progress"`
}

// handleProfile returns the gamified slice of the dashboard: trend,
// personality, badges, and badge progress.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	d, err := s.ledger.GetDashboard(r.Context(), sess, time.Now().UTC())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := profileResponse{
		StudentID:   sess.StudentID,
		Trend:       string(d.Trend),
		Personality: string(d.Personality),
		Badges:      d.Badges,
		Progress:    d.Progress,
	}
	if resp.Badges == nil {
		resp.Badges = []string{}
	}
	respondJSON(w, http.StatusOK, resp)
}

type leaderboardRowResponse struct {
	Rank      int    `json:"rank"`
	StudentID string `json:"student_id"`
	Count     int    `json:"count"`
}

// handleLeaderboard exposes the standings to every signed-in user. Spend
// totals and risk flags stay owner-only.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ranked, err := s.ledger.Leaderboard(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]leaderboardRowResponse, 0, len(ranked))
	for _, row := range ranked {
		out = append(out, leaderboardRowResponse{
			Rank:      row.Rank,
			StudentID: row.StudentID,
			Count:     row.Count,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

type limitRequest struct {
	Weekly  string `json:"weekly"`
	Monthly string `json:"monthly"`
}

func parseOptionalAmount(s string) (int64, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	return core.ParseDecimalToCents(s)
}

func (s *Server) handleSetLimit(w http.ResponseWriter, r *http.Request) {
	var req limitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	weekly, err := parseOptionalAmount(req.Weekly)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	monthly, err := parseOptionalAmount(req.Monthly)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.ledger.SetLimit(r.Context(), sessionFrom(r), weekly, monthly); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "limit saved"})
}

func (s *Server) handleGetLimit(w http.ResponseWriter, r *http.Request) {
	limit, err := s.ledger.GetLimit(r.Context(), sessionFrom(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"weekly":  core.Money{Cents: limit.WeeklyCents}.String(),
		"monthly": core.Money{Cents: limit.MonthlyCents}.String(),
	})
}
