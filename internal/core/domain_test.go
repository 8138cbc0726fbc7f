package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRoleValid(t *testing.T) {
	if !RoleOwner.Valid() || !RoleStudent.Valid() {
		t.Fatalf("expected owner and student to be valid roles")
	}
	if Role("admin").Valid() {
		t.Fatalf("unexpected valid role")
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories() {
		if !c.Valid() {
			t.Fatalf("category %q should be valid", c)
		}
	}
	if Category("Groceries").Valid() {
		t.Fatalf("unexpected valid category")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2025-03-09" {
		t.Fatalf("round trip mismatch: %s", d.String())
	}
	if _, err := ParseDate("09/03/2025"); err == nil {
		t.Fatalf("expected error for wrong format")
	}
}

func TestParseTags(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"food, campus , food", "food,campus"},
		{"", ""},
		{" , ,", ""},
		{"one", "one"},
	}
	for i, tc := range cases {
		if got := ParseTags(tc.in).String(); got != tc.want {
			t.Fatalf("case %d: got %q want %q", i, got, tc.want)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		UserID:   1,
		Amount:   Money{Cents: 1500},
		Category: CategoryFood,
		Tags:     Tags{"lunch"},
		Date:     NewDate(2025, 3, 9),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{UserID: 1, Amount: Money{Cents: 0}, Category: CategoryFood, Date: NewDate(2025, 3, 9)},
		{UserID: 1, Amount: Money{Cents: -50}, Category: CategoryFood, Date: NewDate(2025, 3, 9)},
		{UserID: 1, Amount: Money{Cents: 100}, Category: "Misc", Date: NewDate(2025, 3, 9)},
		{UserID: 1, Amount: Money{Cents: 100}, Category: CategoryFood, Date: Date{Time: time.Time{}}},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}

	long := good
	long.Note = strings.Repeat("n", 201)
	if err := long.Validate(); !errors.Is(err, ErrNoteTooLong) {
		t.Fatalf("expected ErrNoteTooLong, got %v", err)
	}
	long = good
	long.Tags = Tags{strings.Repeat("t", 41)}
	if err := long.Validate(); !errors.Is(err, ErrTagTooLong) {
		t.Fatalf("expected ErrTagTooLong, got %v", err)
	}
}

func TestUserValidate(t *testing.T) {
	if err := (User{StudentID: "S1", Role: RoleStudent}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (User{StudentID: "  ", Role: RoleStudent}).Validate(); err == nil {
		t.Fatalf("expected error for blank student id")
	}
	if err := (User{StudentID: "S1", Role: "root"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown role")
	}
	long := User{StudentID: strings.Repeat("s", 65), Role: RoleStudent}
	if err := long.Validate(); !errors.Is(err, ErrStudentIDTooLong) {
		t.Fatalf("expected ErrStudentIDTooLong, got %v", err)
	}
}

func TestLimitValidate(t *testing.T) {
	if err := (Limit{WeeklyCents: 0, MonthlyCents: 50000}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Limit{WeeklyCents: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative ceiling")
	}
}
