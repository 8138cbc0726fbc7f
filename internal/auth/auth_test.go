package auth

import (
	"context"
	"errors"
	"testing"

	"campusledger/internal/core"
)

// fakeStore is an in-memory CredentialStore for service tests.
type fakeStore struct {
	users  map[string]*core.User
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*core.User)}
}

func (f *fakeStore) CreateUser(_ context.Context, studentID, passwordHash string, role core.Role) (int64, error) {
	if _, exists := f.users[studentID]; exists {
		return 0, core.ErrDuplicateIdentity
	}
	f.nextID++
	f.users[studentID] = &core.User{
		ID:           f.nextID,
		StudentID:    studentID,
		PasswordHash: passwordHash,
		Role:         role,
	}
	return f.nextID, nil
}

func (f *fakeStore) GetUserByStudentID(_ context.Context, studentID string) (*core.User, error) {
	u, ok := f.users[studentID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) CountByRole(_ context.Context, role core.Role) (int, error) {
	count := 0
	for _, u := range f.users {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UpdatePasswordHash(_ context.Context, studentID, newHash string) error {
	u, ok := f.users[studentID]
	if !ok {
		return core.ErrNotFound
	}
	if u.Role != core.RoleStudent {
		return core.ErrNotAuthorized
	}
	u.PasswordHash = newHash
	return nil
}

func TestHashPasswordIsSalted(t *testing.T) {
	h1, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("identical passwords must not share a verifier")
	}
	if !CheckPassword("secret", h1) || !CheckPassword("secret", h2) {
		t.Fatalf("verifiers must validate the original password")
	}
	if CheckPassword("wrong", h1) {
		t.Fatalf("wrong password must not validate")
	}
}

func TestBootstrapOnce(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore())

	needed, err := svc.NeedsBootstrap(ctx)
	if err != nil || !needed {
		t.Fatalf("fresh store must need bootstrap (needed=%v err=%v)", needed, err)
	}

	if _, err := svc.Bootstrap(ctx, "admin", "pw"); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}

	needed, err = svc.NeedsBootstrap(ctx)
	if err != nil || needed {
		t.Fatalf("bootstrap must be done exactly once (needed=%v err=%v)", needed, err)
	}

	if _, err := svc.Bootstrap(ctx, "admin2", "pw"); !errors.Is(err, ErrAlreadyBootstrapped) {
		t.Fatalf("second bootstrap: got %v want ErrAlreadyBootstrapped", err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store)

	if _, err := svc.Register(ctx, "S1", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "S1", "other"); !errors.Is(err, core.ErrDuplicateIdentity) {
		t.Fatalf("duplicate register: got %v", err)
	}

	sess, err := svc.Login(ctx, "S1", "pw1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.Role != core.RoleStudent || sess.StudentID != "S1" {
		t.Fatalf("session: %+v", sess)
	}
	if sess.IsOwner() {
		t.Fatalf("student session must not be owner")
	}

	if _, err := svc.Login(ctx, "S1", "wrong"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	// Unknown identity is indistinguishable from a wrong password.
	if _, err := svc.Login(ctx, "ghost", "pw1"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("unknown identity: got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore())

	if _, err := svc.Register(ctx, "  ", "pw"); !errors.Is(err, core.ErrEmptyStudentID) {
		t.Fatalf("blank id: got %v", err)
	}
	if _, err := svc.Register(ctx, "S1", ""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("empty password: got %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store)

	if _, err := svc.Bootstrap(ctx, "admin", "pw"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := svc.Register(ctx, "S1", "old"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.ResetPassword(ctx, "S1", "new"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.Login(ctx, "S1", "old"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := svc.Login(ctx, "S1", "new"); err != nil {
		t.Fatalf("new password must work: %v", err)
	}

	if err := svc.ResetPassword(ctx, "admin", "new"); !errors.Is(err, core.ErrNotAuthorized) {
		t.Fatalf("owner reset must be refused, got %v", err)
	}
	if err := svc.ResetPassword(ctx, "ghost", "new"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown reset target: got %v", err)
	}
}
