package insights

import (
	"sort"

	"campusledger/internal/core"
)

// StudentTotals is one row of the cross-user aggregate: a student's expense
// count and total spend, zero-filled for students with no records.
type StudentTotals struct {
	StudentID string
	Count     int
	Total     core.Money
}

// Ranked pairs a student's totals with their leaderboard rank.
type Ranked struct {
	Rank int
	StudentTotals
}

// ChampionOrder compares two rows for champion selection; it reports whether
// a should be ordered before b. The default prefers the highest count and
// breaks ties with the lowest total spend.
type ChampionOrder func(a, b StudentTotals) bool

// DefaultChampionOrder is the standard tie-break: count desc, then total asc.
func DefaultChampionOrder(a, b StudentTotals) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.Total.Cents < b.Total.Cents
}

// DenseRank orders rows by descending expense count and assigns dense ranks:
// equal counts share a rank and the next distinct count takes the immediately
// following integer, with no gaps.
func DenseRank(rows []StudentTotals) []Ranked {
	sorted := make([]StudentTotals, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})

	ranked := make([]Ranked, 0, len(sorted))
	rank := 0
	prevCount := -1
	for _, row := range sorted {
		if row.Count != prevCount {
			rank++
			prevCount = row.Count
		}
		ranked = append(ranked, Ranked{Rank: rank, StudentTotals: row})
	}
	return ranked
}

// Champion picks the monthly champion using the given order, or
// DefaultChampionOrder when order is nil. The second return is false for an
// empty aggregate.
func Champion(rows []StudentTotals, order ChampionOrder) (StudentTotals, bool) {
	if len(rows) == 0 {
		return StudentTotals{}, false
	}
	if order == nil {
		order = DefaultChampionOrder
	}
	best := rows[0]
	for _, row := range rows[1:] {
		if order(row, best) {
			best = row
		}
	}
	return best, true
}
