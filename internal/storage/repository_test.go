package storage

import (
	"context"
	"path/filepath"
	"testing"

	"campusledger/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// RepositoryTestSuite provides a test suite for database operations.
type RepositoryTestSuite struct {
	suite.Suite
	repo *Repository
	ctx  context.Context
}

// SetupTest runs before each test.
func (s *RepositoryTestSuite) SetupTest() {
	dbPath := filepath.Join(s.T().TempDir(), "test.db")
	repo, err := NewRepository(dbPath)
	require.NoError(s.T(), err, "failed to create test database")
	s.repo = repo
	s.ctx = context.Background()
}

// TearDownTest runs after each test.
func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) mustCreateStudent(studentID string) int64 {
	id, err := s.repo.CreateUser(s.ctx, studentID, "hash-"+studentID, core.RoleStudent)
	require.NoError(s.T(), err)
	return id
}

func (s *RepositoryTestSuite) mustAddExpense(userID int64, cents int64, cat core.Category) int64 {
	id, err := s.repo.AddExpense(s.ctx, core.Expense{
		UserID:   userID,
		Amount:   core.Money{Cents: cents},
		Category: cat,
		Date:     core.NewDate(2025, 3, 9),
	})
	require.NoError(s.T(), err)
	return id
}

func (s *RepositoryTestSuite) TestCreateUserAndLookup() {
	id := s.mustCreateStudent("S1")
	assert.Greater(s.T(), id, int64(0))

	u, err := s.repo.GetUserByStudentID(s.ctx, "S1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "S1", u.StudentID)
	assert.Equal(s.T(), core.RoleStudent, u.Role)
	assert.False(s.T(), u.CreatedAt.IsZero())
}

func (s *RepositoryTestSuite) TestCreateUserDuplicateIdentity() {
	s.mustCreateStudent("S1")

	before, err := s.repo.CountByRole(s.ctx, core.RoleStudent)
	require.NoError(s.T(), err)

	_, err = s.repo.CreateUser(s.ctx, "S1", "other-hash", core.RoleStudent)
	assert.ErrorIs(s.T(), err, core.ErrDuplicateIdentity)

	// Store must be unchanged after the failed creation.
	after, err := s.repo.CountByRole(s.ctx, core.RoleStudent)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), before, after)
}

func (s *RepositoryTestSuite) TestLookupIsCaseSensitive() {
	s.mustCreateStudent("S1")
	_, err := s.repo.GetUserByStudentID(s.ctx, "s1")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestCountByRole() {
	count, err := s.repo.CountByRole(s.ctx, core.RoleOwner)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0, count)

	_, err = s.repo.CreateUser(s.ctx, "admin", "hash", core.RoleOwner)
	require.NoError(s.T(), err)
	s.mustCreateStudent("S1")
	s.mustCreateStudent("S2")

	count, err = s.repo.CountByRole(s.ctx, core.RoleOwner)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, count)

	count, err = s.repo.CountByRole(s.ctx, core.RoleStudent)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, count)
}

func (s *RepositoryTestSuite) TestUpdatePasswordHash() {
	s.mustCreateStudent("S1")
	_, err := s.repo.CreateUser(s.ctx, "admin", "hash", core.RoleOwner)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.repo.UpdatePasswordHash(s.ctx, "S1", "new-hash"))
	u, err := s.repo.GetUserByStudentID(s.ctx, "S1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "new-hash", u.PasswordHash)

	// Owners cannot be reset through this path.
	err = s.repo.UpdatePasswordHash(s.ctx, "admin", "new-hash")
	assert.ErrorIs(s.T(), err, core.ErrNotAuthorized)

	err = s.repo.UpdatePasswordHash(s.ctx, "ghost", "new-hash")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestAddExpenseRejectsInvalidAmount() {
	userID := s.mustCreateStudent("S1")

	_, err := s.repo.AddExpense(s.ctx, core.Expense{
		UserID:   userID,
		Amount:   core.Money{Cents: 0},
		Category: core.CategoryFood,
		Date:     core.NewDate(2025, 3, 9),
	})
	assert.ErrorIs(s.T(), err, core.ErrInvalidAmount)

	expenses, err := s.repo.ListExpenses(s.ctx, userID)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), expenses, "no row must be persisted for an invalid amount")
}

func (s *RepositoryTestSuite) TestListExpensesInsertionOrderAndRoundTrip() {
	userID := s.mustCreateStudent("S1")
	s.mustAddExpense(userID, 2000, core.CategoryFood)
	s.mustAddExpense(userID, 3500, core.CategoryBooks)
	s.mustAddExpense(userID, 500, core.CategoryTravel)

	expenses, err := s.repo.ListExpenses(s.ctx, userID)
	require.NoError(s.T(), err)
	require.Len(s.T(), expenses, 3)
	assert.Equal(s.T(), int64(2000), expenses[0].Amount.Cents)
	assert.Equal(s.T(), int64(500), expenses[2].Amount.Cents)

	var total int64
	for _, e := range expenses {
		total += e.Amount.Cents
	}
	assert.Equal(s.T(), int64(6000), total)
}

func (s *RepositoryTestSuite) TestExpenseTagsAndDateRoundTrip() {
	userID := s.mustCreateStudent("S1")
	id, err := s.repo.AddExpense(s.ctx, core.Expense{
		UserID:   userID,
		Amount:   core.Money{Cents: 1250},
		Category: core.CategoryOther,
		Tags:     core.Tags{"shared", "campus"},
		Date:     core.NewDate(2025, 2, 28),
		Note:     "group order",
	})
	require.NoError(s.T(), err)

	e, err := s.repo.GetExpense(s.ctx, id)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "shared,campus", e.Tags.String())
	assert.Equal(s.T(), "2025-02-28", e.Date.String())
	assert.Equal(s.T(), "group order", e.Note)
}

func (s *RepositoryTestSuite) TestDeleteExpenseOwnership() {
	owner := s.mustCreateStudent("S1")
	stranger := s.mustCreateStudent("S2")
	expenseID := s.mustAddExpense(owner, 1000, core.CategoryFood)

	// A non-owning user must not remove the record.
	err := s.repo.DeleteExpense(s.ctx, expenseID, stranger)
	assert.ErrorIs(s.T(), err, core.ErrNotAuthorized)

	e, err := s.repo.GetExpense(s.ctx, expenseID)
	require.NoError(s.T(), err, "record must remain retrievable after denied delete")
	assert.Equal(s.T(), owner, e.UserID)

	require.NoError(s.T(), s.repo.DeleteExpense(s.ctx, expenseID, owner))
	_, err = s.repo.GetExpense(s.ctx, expenseID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)

	err = s.repo.DeleteExpense(s.ctx, expenseID, owner)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestAggregateByStudentZeroFilled() {
	_, err := s.repo.CreateUser(s.ctx, "admin", "hash", core.RoleOwner)
	require.NoError(s.T(), err)
	active := s.mustCreateStudent("S1")
	s.mustCreateStudent("S2") // no expenses

	s.mustAddExpense(active, 10000, core.CategoryFood)
	s.mustAddExpense(active, 10000, core.CategoryRent)

	totals, err := s.repo.AggregateByStudent(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), totals, 2, "owner excluded, idle student included")

	assert.Equal(s.T(), "S1", totals[0].StudentID)
	assert.Equal(s.T(), 2, totals[0].Count)
	assert.Equal(s.T(), int64(20000), totals[0].Total.Cents)

	assert.Equal(s.T(), "S2", totals[1].StudentID)
	assert.Equal(s.T(), 0, totals[1].Count)
	assert.Equal(s.T(), int64(0), totals[1].Total.Cents)
}

func (s *RepositoryTestSuite) TestLimitsUpsert() {
	userID := s.mustCreateStudent("S1")

	// Absent row reads as the zero limit.
	limit, err := s.repo.GetLimit(s.ctx, userID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), limit.WeeklyCents)

	require.NoError(s.T(), s.repo.UpsertLimit(s.ctx, core.Limit{UserID: userID, WeeklyCents: 5000, MonthlyCents: 20000}))
	require.NoError(s.T(), s.repo.UpsertLimit(s.ctx, core.Limit{UserID: userID, WeeklyCents: 7000, MonthlyCents: 20000}))

	limit, err = s.repo.GetLimit(s.ctx, userID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(7000), limit.WeeklyCents)
	assert.Equal(s.T(), int64(20000), limit.MonthlyCents)
}

func (s *RepositoryTestSuite) TestAuditEvents() {
	userID := s.mustCreateStudent("S1")

	require.NoError(s.T(), s.repo.InsertAuditEvent(s.ctx, core.AuditEvent{UserID: userID, Action: core.ActionLogin}))
	require.NoError(s.T(), s.repo.InsertAuditEvent(s.ctx, core.AuditEvent{UserID: userID, Action: core.ActionAddExpense}))

	events, err := s.repo.ListAuditEvents(s.ctx, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), events, 2)
	// Newest first.
	assert.Equal(s.T(), core.ActionAddExpense, events[0].Action)
	assert.Equal(s.T(), core.ActionLogin, events[1].Action)
	assert.False(s.T(), events[0].Timestamp.IsZero())
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
