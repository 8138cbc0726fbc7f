package services

import (
	"context"
	"fmt"
	"time"

	"campusledger/internal/auth"
	"campusledger/internal/cache"
	"campusledger/internal/core"
	"campusledger/internal/insights"
	"campusledger/internal/log"
	"campusledger/internal/storage"
)

const overviewCacheKey = "admin_overview"

// AuditPublisher publishes audit events to the bus. Satisfied by amqp.Client.
type AuditPublisher interface {
	PublishAuditEvent(ctx context.Context, userID int64, action string) error
}

// Dashboard is the per-student view computed from the full ledger.
type Dashboard struct {
	Expenses    []core.Expense
	Summary     insights.Summary
	Trend       insights.Trend
	Personality insights.Personality
	Badges      []string
	Progress    float64
	Usage       insights.LimitUsage
}

// OverviewRow is one student in the admin overview, ranked by record count.
type OverviewRow struct {
	Rank      int
	StudentID string
	Count     int
	Total     core.Money
	Risk      insights.RiskLevel
}

// AuditEntry pairs a recorded audit event with the student identifier of
// the acting user. StudentID is empty when the user cannot be resolved.
type AuditEntry struct {
	core.AuditEvent
	StudentID string
}

// LedgerService orchestrates ledger operations across storage, the insight
// calculators, and the audit bus. Audit publishing is best-effort: a bus
// failure is logged but never fails the originating request.
type LedgerService struct {
	storage    *storage.Repository
	bus        AuditPublisher
	thresholds insights.Thresholds
	champion   insights.ChampionOrder
	overview   *cache.LRU[[]OverviewRow]
	logger     *log.Logger
}

func NewLedgerService(repo *storage.Repository, bus AuditPublisher, thresholds insights.Thresholds, logger *log.Logger) *LedgerService {
	return &LedgerService{
		storage:    repo,
		bus:        bus,
		thresholds: thresholds,
		champion:   insights.DefaultChampionOrder,
		overview:   cache.NewLRU[[]OverviewRow](4, 30*time.Second),
		logger:     logger.WithComponent(log.ComponentLedger),
	}
}

// SetChampionOrder replaces the tie-break comparator used by Champion.
func (s *LedgerService) SetChampionOrder(order insights.ChampionOrder) {
	if order != nil {
		s.champion = order
	}
}

// AddExpense validates and persists an expense for the session user.
func (s *LedgerService) AddExpense(ctx context.Context, sess *auth.Session, e core.Expense) (core.Expense, error) {
	e.UserID = sess.UserID
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	id, err := s.storage.AddExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	e.ID = id

	s.publishAudit(ctx, sess.UserID, core.ActionAddExpense)
	s.overview.Delete(overviewCacheKey)

	return e, nil
}

// DeleteExpense removes an expense. Only the user who logged the record may
// delete it; anyone else gets ErrNotAuthorized and the record stays put.
func (s *LedgerService) DeleteExpense(ctx context.Context, sess *auth.Session, expenseID int64) error {
	if err := s.storage.DeleteExpense(ctx, expenseID, sess.UserID); err != nil {
		return err
	}

	s.publishAudit(ctx, sess.UserID, core.ActionDeleteExpense)
	s.overview.Delete(overviewCacheKey)

	return nil
}

// ListExpenses returns the session user's records in insertion order.
func (s *LedgerService) ListExpenses(ctx context.Context, sess *auth.Session) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx, sess.UserID)
}

// GetDashboard computes the full per-student view: summary, weekly trend,
// personality, badges, and spend against limits, all relative to now.
func (s *LedgerService) GetDashboard(ctx context.Context, sess *auth.Session, now time.Time) (*Dashboard, error) {
	expenses, err := s.storage.ListExpenses(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	limit, err := s.storage.GetLimit(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("get limit: %w", err)
	}

	summary := insights.Summarize(expenses)
	return &Dashboard{
		Expenses:    expenses,
		Summary:     summary,
		Trend:       insights.WeeklyTrend(expenses, now),
		Personality: s.thresholds.ClassifyPersonality(expenses),
		Badges:      s.thresholds.Badges(summary.Count),
		Progress:    s.thresholds.BadgeProgress(summary.Count),
		Usage:       insights.UsageAgainstLimit(expenses, limit, now),
	}, nil
}

// ClassifyCategory labels a category for display alongside ledger entries.
func (s *LedgerService) ClassifyCategory(c core.Category) insights.SpendClass {
	return s.thresholds.ClassifyCategory(c)
}

// SetLimit stores the session user's spend ceilings.
func (s *LedgerService) SetLimit(ctx context.Context, sess *auth.Session, weeklyCents, monthlyCents int64) error {
	limit := core.Limit{
		UserID:       sess.UserID,
		WeeklyCents:  weeklyCents,
		MonthlyCents: monthlyCents,
	}
	if err := limit.Validate(); err != nil {
		return err
	}

	if err := s.storage.UpsertLimit(ctx, limit); err != nil {
		return fmt.Errorf("save limit: %w", err)
	}

	s.publishAudit(ctx, sess.UserID, core.ActionSetLimit)
	return nil
}

// GetLimit returns the session user's current ceilings. Users without a
// stored limit get zero ceilings, meaning no limit.
func (s *LedgerService) GetLimit(ctx context.Context, sess *auth.Session) (core.Limit, error) {
	return s.storage.GetLimit(ctx, sess.UserID)
}

// Leaderboard returns the dense-ranked standings visible to every signed-in
// user: rank, student id, and record count, but no spend totals or risk flags.
func (s *LedgerService) Leaderboard(ctx context.Context) ([]insights.Ranked, error) {
	totals, err := s.storage.AggregateByStudent(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate by student: %w", err)
	}
	return insights.DenseRank(totals), nil
}

// AdminOverview returns every student ranked by record count with a risk
// flag, owner only. Students with no records appear with zero totals.
// Results are cached briefly; writes invalidate the cache.
func (s *LedgerService) AdminOverview(ctx context.Context, sess *auth.Session) ([]OverviewRow, error) {
	if !sess.IsOwner() {
		return nil, core.ErrNotAuthorized
	}

	if rows, ok := s.overview.Get(overviewCacheKey); ok {
		return rows, nil
	}

	totals, err := s.storage.AggregateByStudent(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate by student: %w", err)
	}

	ranked := insights.DenseRank(totals)
	rows := make([]OverviewRow, len(ranked))
	for i, r := range ranked {
		rows[i] = OverviewRow{
			Rank:      r.Rank,
			StudentID: r.StudentID,
			Count:     r.Count,
			Total:     r.Total,
			Risk:      s.thresholds.ClassifyRisk(r.Total),
		}
	}

	s.overview.Set(overviewCacheKey, rows)
	return rows, nil
}

// Champion returns the top student by the configured comparator, owner only.
// ok is false when no student has any records worth comparing.
func (s *LedgerService) Champion(ctx context.Context, sess *auth.Session) (insights.StudentTotals, bool, error) {
	if !sess.IsOwner() {
		return insights.StudentTotals{}, false, core.ErrNotAuthorized
	}

	totals, err := s.storage.AggregateByStudent(ctx)
	if err != nil {
		return insights.StudentTotals{}, false, fmt.Errorf("aggregate by student: %w", err)
	}

	winner, ok := insights.Champion(totals, s.champion)
	return winner, ok, nil
}

// AuditTrail returns the most recent audit events, owner only.
func (s *LedgerService) AuditTrail(ctx context.Context, sess *auth.Session, limit int) ([]AuditEntry, error) {
	if !sess.IsOwner() {
		return nil, core.ErrNotAuthorized
	}
	events, err := s.storage.ListAuditEvents(ctx, limit)
	if err != nil {
		return nil, err
	}

	// Resolve each distinct actor once; events for unknown users keep an
	// empty student id rather than failing the whole trail.
	names := make(map[int64]string)
	entries := make([]AuditEntry, 0, len(events))
	for _, ev := range events {
		sid, ok := names[ev.UserID]
		if !ok {
			if u, lookupErr := s.storage.GetUserByID(ctx, ev.UserID); lookupErr == nil {
				sid = u.StudentID
			}
			names[ev.UserID] = sid
		}
		entries = append(entries, AuditEntry{AuditEvent: ev, StudentID: sid})
	}
	return entries, nil
}

// RecordAction publishes an audit event for actions that happen outside the
// ledger proper, such as logins and registrations. Registration changes the
// student roster, so it also drops the cached admin overview.
func (s *LedgerService) RecordAction(ctx context.Context, userID int64, action string) {
	if action == core.ActionRegister {
		s.overview.Delete(overviewCacheKey)
	}
	s.publishAudit(ctx, userID, action)
}

func (s *LedgerService) publishAudit(ctx context.Context, userID int64, action string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishAuditEvent(ctx, userID, action); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish audit event",
			log.FieldUserID, userID,
			log.FieldAction, action,
			log.FieldError, err)
	}
}

// Close releases the storage and bus connections.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if closer, ok := s.bus.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}
