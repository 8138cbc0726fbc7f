package core

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleOwner   Role = "owner"
	RoleStudent Role = "student"
)

const (
	CategoryFood          Category = "Food"
	CategoryTravel        Category = "Travel"
	CategoryRent          Category = "Rent"
	CategoryBooks         Category = "Books"
	CategoryEntertainment Category = "Entertainment"
	CategoryOther         Category = "Other"
)

// Audit action tags recorded for security-relevant operations.
const (
	ActionBootstrap     = "bootstrap_owner"
	ActionRegister      = "register"
	ActionLogin         = "login"
	ActionLogout        = "logout"
	ActionResetPassword = "reset_password"
	ActionAddExpense    = "add_expense"
	ActionDeleteExpense = "delete_expense"
	ActionSetLimit      = "set_limit"
)

type (
	Role string

	Category string

	// Date is a calendar date with no time-of-day component.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Tags is an unordered set of short labels attached to an expense.
	Tags []string

	User struct {
		ID           int64
		StudentID    string
		PasswordHash string
		Role         Role
		CreatedAt    time.Time
	}

	Expense struct {
		ID       int64
		UserID   int64
		Amount   Money
		Category Category
		Tags     Tags
		Date     Date
		Note     string
	}

	AuditEvent struct {
		ID        int64
		UserID    int64
		Action    string
		Timestamp time.Time
	}

	// Limit holds per-user spend ceilings in cents. Zero means no ceiling.
	Limit struct {
		UserID       int64
		WeeklyCents  int64
		MonthlyCents int64
	}
)

var (
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyStudentID     = errors.New("empty student id")
	ErrStudentIDTooLong   = errors.New("student id too long (max 64 characters)")
	ErrTagTooLong         = errors.New("tag too long (max 40 characters)")
	ErrNoteTooLong        = errors.New("note too long (max 200 characters)")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrNotFound           = errors.New("not found")
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleStudent
}

// Categories returns the closed category set in display order.
func Categories() []Category {
	return []Category{
		CategoryFood,
		CategoryTravel,
		CategoryRent,
		CategoryBooks,
		CategoryEntertainment,
		CategoryOther,
	}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryFood, CategoryTravel, CategoryRent, CategoryBooks, CategoryEntertainment, CategoryOther:
		return true
	}
	return false
}

// NewDate creates a Date at UTC midnight for year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseTags splits a comma-joined label string into a deduplicated tag set.
// Empty labels are dropped; whitespace around labels is trimmed.
func ParseTags(s string) Tags {
	var tags Tags
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		label := strings.TrimSpace(part)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		tags = append(tags, label)
	}
	return tags
}

// String serializes the tag set as a comma-joined string for storage.
func (t Tags) String() string {
	return strings.Join(t, ",")
}

func (t Tags) Validate() error {
	for _, label := range t {
		if len(label) > 40 {
			return ErrTagTooLong
		}
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.StudentID) == "" {
		return ErrEmptyStudentID
	}
	if len(u.StudentID) > 64 {
		return ErrStudentIDTooLong
	}
	if !u.Role.Valid() {
		return errors.New("invalid role")
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if err := e.Tags.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(e.Note) > 200 {
		return ErrNoteTooLong
	}
	return nil
}

func (l Limit) Validate() error {
	if l.WeeklyCents < 0 || l.MonthlyCents < 0 {
		return errors.New("limit cannot be negative")
	}
	return nil
}
