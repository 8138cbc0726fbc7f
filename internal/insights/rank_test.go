package insights

import (
	"testing"

	"campusledger/internal/core"
)

func TestDenseRank(t *testing.T) {
	rows := []StudentTotals{
		{StudentID: "C", Count: 3, Total: core.Money{Cents: 100}},
		{StudentID: "A", Count: 5, Total: core.Money{Cents: 900}},
		{StudentID: "B", Count: 5, Total: core.Money{Cents: 400}},
	}

	ranked := DenseRank(rows)
	if len(ranked) != 3 {
		t.Fatalf("got %d rows", len(ranked))
	}
	// A and B tie at rank 1, C takes rank 2 with no gap.
	if ranked[0].Rank != 1 || ranked[1].Rank != 1 {
		t.Fatalf("tied students must share rank 1: %+v", ranked)
	}
	if ranked[2].Rank != 2 || ranked[2].StudentID != "C" {
		t.Fatalf("expected C at rank 2, got %+v", ranked[2])
	}
}

func TestDenseRankEmpty(t *testing.T) {
	if ranked := DenseRank(nil); len(ranked) != 0 {
		t.Fatalf("expected empty result")
	}
}

func TestDenseRankDoesNotMutateInput(t *testing.T) {
	rows := []StudentTotals{
		{StudentID: "A", Count: 1},
		{StudentID: "B", Count: 9},
	}
	DenseRank(rows)
	if rows[0].StudentID != "A" {
		t.Fatalf("input order mutated")
	}
}

func TestChampion(t *testing.T) {
	rows := []StudentTotals{
		{StudentID: "A", Count: 5, Total: core.Money{Cents: 900}},
		{StudentID: "B", Count: 5, Total: core.Money{Cents: 400}},
		{StudentID: "C", Count: 3, Total: core.Money{Cents: 100}},
	}

	champ, ok := Champion(rows, nil)
	if !ok {
		t.Fatalf("expected a champion")
	}
	// Highest count wins; B beats A on the lower-total tie-break.
	if champ.StudentID != "B" {
		t.Fatalf("got %s want B", champ.StudentID)
	}

	if _, ok := Champion(nil, nil); ok {
		t.Fatalf("empty aggregate must have no champion")
	}
}

func TestChampionCustomOrder(t *testing.T) {
	rows := []StudentTotals{
		{StudentID: "A", Count: 2, Total: core.Money{Cents: 100}},
		{StudentID: "B", Count: 9, Total: core.Money{Cents: 900}},
	}
	// Order by lowest total regardless of count.
	byTotal := func(a, b StudentTotals) bool { return a.Total.Cents < b.Total.Cents }
	champ, _ := Champion(rows, byTotal)
	if champ.StudentID != "A" {
		t.Fatalf("got %s want A", champ.StudentID)
	}
}
