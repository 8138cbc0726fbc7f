// Package auth implements credential verification and the login lifecycle.
//
// Password verifiers are salted bcrypt hashes. The legacy behavior this
// replaces hashed passwords with plain unsalted SHA-256; bcrypt is a
// deliberate upgrade, so identical passwords no longer share a verifier and
// stored hashes cannot be matched offline by equality.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campusledger/internal/core"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrAlreadyBootstrapped is returned when owner creation is attempted
	// after an owner already exists.
	ErrAlreadyBootstrapped = errors.New("owner already exists")

	ErrEmptyPassword = errors.New("password cannot be empty")
)

// HashPassword derives a bcrypt verifier from a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the stored verifier.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Session is the transient identity established by a successful login. It is
// created at login, passed explicitly through the call chain, and discarded
// at logout; nothing about it survives the process.
type Session struct {
	UserID    int64
	StudentID string
	Role      core.Role
	CreatedAt time.Time
}

// IsOwner reports whether the session belongs to the administrator.
func (s *Session) IsOwner() bool {
	return s != nil && s.Role == core.RoleOwner
}

// CredentialStore is the persistence the service needs for identities.
type CredentialStore interface {
	CreateUser(ctx context.Context, studentID, passwordHash string, role core.Role) (int64, error)
	GetUserByStudentID(ctx context.Context, studentID string) (*core.User, error)
	CountByRole(ctx context.Context, role core.Role) (int, error)
	UpdatePasswordHash(ctx context.Context, studentID, newHash string) error
}

type Service struct {
	store CredentialStore
}

func NewService(store CredentialStore) *Service {
	return &Service{store: store}
}

// NeedsBootstrap reports whether no owner exists yet.
func (s *Service) NeedsBootstrap(ctx context.Context) (bool, error) {
	count, err := s.store.CountByRole(ctx, core.RoleOwner)
	if err != nil {
		return false, fmt.Errorf("count owners: %w", err)
	}
	return count == 0, nil
}

// Bootstrap creates the single owner account. The guard is checked once at
// entry; two racing bootstrap attempts could both pass it, which is accepted
// for this single-operator system rather than enforced by the schema.
func (s *Service) Bootstrap(ctx context.Context, studentID, password string) (int64, error) {
	needed, err := s.NeedsBootstrap(ctx)
	if err != nil {
		return 0, err
	}
	if !needed {
		return 0, ErrAlreadyBootstrapped
	}

	id, err := s.createUser(ctx, studentID, password, core.RoleOwner)
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Owner bootstrapped", "user_id", id, "student_id", studentID)
	return id, nil
}

// Register creates a new student account.
func (s *Service) Register(ctx context.Context, studentID, password string) (int64, error) {
	return s.createUser(ctx, studentID, password, core.RoleStudent)
}

func (s *Service) createUser(ctx context.Context, studentID, password string, role core.Role) (int64, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return 0, core.ErrEmptyStudentID
	}
	if password == "" {
		return 0, ErrEmptyPassword
	}

	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}
	return s.store.CreateUser(ctx, studentID, hash, role)
}

// Login verifies credentials and establishes a session identity. An unknown
// identity and a wrong password are indistinguishable to the caller so the
// error never reveals which identities exist.
func (s *Service) Login(ctx context.Context, studentID, password string) (*Session, error) {
	user, err := s.store.GetUserByStudentID(ctx, studentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, core.ErrInvalidCredentials
	}

	slog.InfoContext(ctx, "Login succeeded", "user_id", user.ID, "role", user.Role)
	return &Session{
		UserID:    user.ID,
		StudentID: user.StudentID,
		Role:      user.Role,
		CreatedAt: time.Now(),
	}, nil
}

// ResetPassword replaces a student's verifier without proof of the current
// password. This mirrors the legacy reset flow and remains a known weak
// point; owners can never be reset through it.
func (s *Service) ResetPassword(ctx context.Context, studentID, newPassword string) error {
	if newPassword == "" {
		return ErrEmptyPassword
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, studentID, hash); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Password reset", "student_id", studentID)
	return nil
}

// LookupUser fetches a user record by student id.
func (s *Service) LookupUser(ctx context.Context, studentID string) (*core.User, error) {
	return s.store.GetUserByStudentID(ctx, studentID)
}
