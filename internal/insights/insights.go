// Package insights computes summaries and classifications over ledger records.
//
// Every function here is pure: results are recomputed from the expense
// sequence on each call and no state is kept between calls. Time-relative
// classifications take "now" as an argument so callers and tests control it.
package insights

import (
	"time"

	"campusledger/internal/core"
)

type Trend string

const (
	TrendIncreasing Trend = "Increasing"
	TrendDecreasing Trend = "Decreasing"
	TrendStable     Trend = "Stable"
)

type SpendClass string

const (
	ClassNecessary   SpendClass = "Necessary"
	ClassUnnecessary SpendClass = "Unnecessary"
	ClassModerate    SpendClass = "Moderate"
)

type Personality string

const (
	PersonalityFoodLover Personality = "FoodLover"
	PersonalityBalanced  Personality = "BalancedSpender"
	PersonalityModerate  Personality = "Moderate"
	PersonalityNoData    Personality = "NoData"
)

type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskNormal RiskLevel = "Normal"
)

// Badge names awarded by expense count.
const (
	BadgeFirstExpense      = "FirstExpenseLogged"
	BadgeConsistentTracker = "ConsistentTracker"
)

// Thresholds holds the classification configuration. All values are
// configuration, not business law; defaults match the observed behavior.
type Thresholds struct {
	Necessary   map[core.Category]bool
	Unnecessary map[core.Category]bool

	// Personality boundaries as percentages of total spend on Food.
	FoodLoverPercent float64
	BalancedPercent  float64

	// Admin risk flag boundary.
	RiskCents int64

	// Badge award counts and the progress denominator.
	FirstBadgeCount   int
	TrackerBadgeCount int
	ProgressTarget    int
}

// DefaultThresholds returns the standard classification configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Necessary: map[core.Category]bool{
			core.CategoryRent:  true,
			core.CategoryBooks: true,
		},
		Unnecessary: map[core.Category]bool{
			core.CategoryEntertainment: true,
		},
		FoodLoverPercent:  50,
		BalancedPercent:   20,
		RiskCents:         500000,
		FirstBadgeCount:   1,
		TrackerBadgeCount: 10,
		ProgressTarget:    10,
	}
}

// Summary is the basic aggregate over a ledger.
type Summary struct {
	Total core.Money
	Count int
}

// Summarize computes total spend and record count.
func Summarize(expenses []core.Expense) Summary {
	var s Summary
	for _, e := range expenses {
		s.Total = s.Total.Add(e.Amount)
		s.Count++
	}
	return s
}

// WeeklyTrend compares spend in the last 7 days against the preceding 7-day
// window, both relative to now. Records dated today count toward the current
// window; a record exactly 7 days old falls in the previous window.
func WeeklyTrend(expenses []core.Expense, now time.Time) Trend {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var current, previous int64
	for _, e := range expenses {
		age := int(today.Sub(e.Date.Time).Hours() / 24)
		switch {
		case age >= 0 && age < 7:
			current += e.Amount.Cents
		case age >= 7 && age < 14:
			previous += e.Amount.Cents
		}
	}

	switch {
	case current > previous:
		return TrendIncreasing
	case current < previous:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// ClassifyCategory labels a category as Necessary, Unnecessary, or Moderate.
func (t Thresholds) ClassifyCategory(c core.Category) SpendClass {
	if t.Necessary[c] {
		return ClassNecessary
	}
	if t.Unnecessary[c] {
		return ClassUnnecessary
	}
	return ClassModerate
}

// ClassifyPersonality derives a spending personality from the share of total
// spend that goes to Food. Returns NoData for an empty or zero-total ledger
// so callers never divide by zero.
func (t Thresholds) ClassifyPersonality(expenses []core.Expense) Personality {
	var total, food int64
	for _, e := range expenses {
		total += e.Amount.Cents
		if e.Category == core.CategoryFood {
			food += e.Amount.Cents
		}
	}
	if total == 0 {
		return PersonalityNoData
	}

	foodRatio := float64(food) / float64(total) * 100
	switch {
	case foodRatio > t.FoodLoverPercent:
		return PersonalityFoodLover
	case foodRatio < t.BalancedPercent:
		return PersonalityBalanced
	default:
		return PersonalityModerate
	}
}

// Badges returns the badge names earned for the given expense count.
func (t Thresholds) Badges(count int) []string {
	var badges []string
	if count >= t.FirstBadgeCount {
		badges = append(badges, BadgeFirstExpense)
	}
	if count >= t.TrackerBadgeCount {
		badges = append(badges, BadgeConsistentTracker)
	}
	return badges
}

// BadgeProgress returns the progress fraction toward the tracker badge,
// capped at 1.0.
func (t Thresholds) BadgeProgress(count int) float64 {
	if t.ProgressTarget <= 0 {
		return 0
	}
	p := float64(count) / float64(t.ProgressTarget)
	if p > 1.0 {
		return 1.0
	}
	return p
}

// ClassifyRisk flags a student's total spend for the admin view.
func (t Thresholds) ClassifyRisk(total core.Money) RiskLevel {
	if total.Cents > t.RiskCents {
		return RiskHigh
	}
	return RiskNormal
}

// LimitUsage reports spend inside the current windows against a user's
// ceilings. A zero ceiling means no limit and is never flagged.
type LimitUsage struct {
	WeekSpend   core.Money
	MonthSpend  core.Money
	Limit       core.Limit
	OverWeekly  bool
	OverMonthly bool
}

// UsageAgainstLimit computes spend in the last 7 days and the current
// calendar month relative to now, compared to the given ceilings.
func UsageAgainstLimit(expenses []core.Expense, limit core.Limit, now time.Time) LimitUsage {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	u := LimitUsage{Limit: limit}
	for _, e := range expenses {
		age := int(today.Sub(e.Date.Time).Hours() / 24)
		if age >= 0 && age < 7 {
			u.WeekSpend = u.WeekSpend.Add(e.Amount)
		}
		if e.Date.Year() == now.Year() && e.Date.Month() == now.Month() {
			u.MonthSpend = u.MonthSpend.Add(e.Amount)
		}
	}
	u.OverWeekly = limit.WeeklyCents > 0 && u.WeekSpend.Cents > limit.WeeklyCents
	u.OverMonthly = limit.MonthlyCents > 0 && u.MonthSpend.Cents > limit.MonthlyCents
	return u
}
