// Package storage persists users, expenses, limits, and audit events in
// SQLite. All statements are parameterized; tags, notes, and student IDs are
// user-controlled input and never concatenated into SQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"campusledger/internal/core"
	"campusledger/internal/insights"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

// NewRepository opens the database at dbPath, creating the parent directory
// and applying migrations as needed.
func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// inTx runs fn inside a transaction, committing on success and rolling back
// on failure so multi-statement writes are never partially applied.
func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser inserts a new user row and returns its ID. A student_id that is
// already taken surfaces as core.ErrDuplicateIdentity.
func (r *Repository) CreateUser(ctx context.Context, studentID, passwordHash string, role core.Role) (int64, error) {
	u := core.User{StudentID: studentID, Role: role}
	if err := u.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (student_id, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
			studentID, passwordHash, string(role), time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return core.ErrDuplicateIdentity
			}
			return fmt.Errorf("insert user: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("user insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "User created", "user_id", id, "student_id", studentID, "role", role)
	return id, nil
}

// GetUserByStudentID returns the user with the given student_id, or
// core.ErrNotFound. Lookup is exact and case-sensitive.
func (r *Repository) GetUserByStudentID(ctx context.Context, studentID string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, student_id, password_hash, role, created_at FROM users WHERE student_id = ?`,
		studentID,
	)
	return scanUser(row)
}

// GetUserByID returns the user with the given row ID, or core.ErrNotFound.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, student_id, password_hash, role, created_at FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	var role, createdAt string
	if err := row.Scan(&u.ID, &u.StudentID, &u.PasswordHash, &role, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = core.Role(role)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		u.CreatedAt = t
	}
	return &u, nil
}

// CountByRole returns the number of users holding the given role.
func (r *Repository) CountByRole(ctx context.Context, role core.Role) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ?`, string(role),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return count, nil
}

// UpdatePasswordHash replaces a user's password verifier. Only students may
// be updated; an owner target returns core.ErrNotAuthorized and a missing
// identity returns core.ErrNotFound.
func (r *Repository) UpdatePasswordHash(ctx context.Context, studentID, newHash string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		var role string
		err := tx.QueryRowContext(ctx,
			`SELECT role FROM users WHERE student_id = ?`, studentID,
		).Scan(&role)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup user role: %w", err)
		}
		if core.Role(role) != core.RoleStudent {
			return core.ErrNotAuthorized
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash = ? WHERE student_id = ?`, newHash, studentID,
		); err != nil {
			return fmt.Errorf("update password hash: %w", err)
		}
		return nil
	})
}

// AddExpense validates and inserts an expense, returning its ID. A
// non-positive amount never reaches the database.
func (r *Repository) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (user_id, amount_cents, category, tags, expense_date, note)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.UserID, e.Amount.Cents, string(e.Category), e.Tags.String(), e.Date.String(), e.Note,
		)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("expense insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Expense saved",
		"expense_id", id,
		"user_id", e.UserID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)
	return id, nil
}

// ListExpenses returns a user's expenses in insertion order.
func (r *Repository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount_cents, category, tags, expense_date, note
		 FROM expenses WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// GetExpense returns a single expense by ID, or core.ErrNotFound.
func (r *Repository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount_cents, category, tags, expense_date, note
		 FROM expenses WHERE id = ?`,
		id,
	)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	return e, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var category, tags, date string
	if err := row.Scan(&e.ID, &e.UserID, &e.Amount.Cents, &category, &tags, &date, &e.Note); err != nil {
		return core.Expense{}, err
	}
	e.Category = core.Category(category)
	e.Tags = core.ParseTags(tags)
	if d, err := core.ParseDate(date); err == nil {
		e.Date = d
	}
	return e, nil
}

// DeleteExpense removes an expense after verifying ownership. Deleting
// another user's record returns core.ErrNotAuthorized and leaves the row in
// place; a missing record returns core.ErrNotFound.
func (r *Repository) DeleteExpense(ctx context.Context, expenseID, requestingUserID int64) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var ownerID int64
		err := tx.QueryRowContext(ctx,
			`SELECT user_id FROM expenses WHERE id = ?`, expenseID,
		).Scan(&ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup expense owner: %w", err)
		}
		if ownerID != requestingUserID {
			return core.ErrNotAuthorized
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, expenseID); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", expenseID, "user_id", requestingUserID)
	return nil
}

// AggregateByStudent returns every student with their expense count and total
// spend, zero-filled for students with no records (left-join semantics).
func (r *Repository) AggregateByStudent(ctx context.Context) ([]insights.StudentTotals, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.student_id, COUNT(e.id), COALESCE(SUM(e.amount_cents), 0)
		 FROM users u
		 LEFT JOIN expenses e ON u.id = e.user_id
		 WHERE u.role = ?
		 GROUP BY u.id
		 ORDER BY u.student_id`,
		string(core.RoleStudent),
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate by student: %w", err)
	}
	defer rows.Close()

	var totals []insights.StudentTotals
	for rows.Next() {
		var st insights.StudentTotals
		if err := rows.Scan(&st.StudentID, &st.Count, &st.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		totals = append(totals, st)
	}
	return totals, rows.Err()
}

// UpsertLimit creates or replaces a user's spend ceilings.
func (r *Repository) UpsertLimit(ctx context.Context, limit core.Limit) error {
	if err := limit.Validate(); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO limits (user_id, weekly_cents, monthly_cents) VALUES (?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET weekly_cents = excluded.weekly_cents,
			                                    monthly_cents = excluded.monthly_cents`,
			limit.UserID, limit.WeeklyCents, limit.MonthlyCents,
		)
		if err != nil {
			return fmt.Errorf("upsert limit: %w", err)
		}
		return nil
	})
}

// GetLimit returns a user's ceilings; a user with no row gets the zero limit.
func (r *Repository) GetLimit(ctx context.Context, userID int64) (core.Limit, error) {
	limit := core.Limit{UserID: userID}
	err := r.db.QueryRowContext(ctx,
		`SELECT weekly_cents, monthly_cents FROM limits WHERE user_id = ?`, userID,
	).Scan(&limit.WeeklyCents, &limit.MonthlyCents)
	if errors.Is(err, sql.ErrNoRows) {
		return limit, nil
	}
	if err != nil {
		return core.Limit{}, fmt.Errorf("get limit: %w", err)
	}
	return limit, nil
}

// InsertAuditEvent appends one audit row. The log is append-only; there is no
// update or delete path.
func (r *Repository) InsertAuditEvent(ctx context.Context, ev core.AuditEvent) error {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (user_id, action, timestamp) VALUES (?, ?, ?)`,
		ev.UserID, ev.Action, ts.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the newest audit rows, up to limit.
func (r *Repository) ListAuditEvents(ctx context.Context, limit int) ([]core.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, timestamp FROM audit_logs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []core.AuditEvent
	for rows.Next() {
		var ev core.AuditEvent
		var ts string
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Action, &ts); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			ev.Timestamp = t
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
