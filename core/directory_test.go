package core

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestDirectory() (*UserDirectory, *memUserRepo) {
	repo := newMemUserRepo()
	return NewUserDirectory(repo, NewPasswordHasher(bcrypt.MinCost)), repo
}

func TestUserDirectoryRegister(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory()

	u, err := dir.Register(ctx, " alice ", "alice@example.com", "password1")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if u.ID == 0 || u.Username != "alice" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if !dir.Hasher().CheckPassword(u, "password1") {
		t.Fatalf("stored hash does not verify")
	}

	if _, err := dir.Register(ctx, "alice", "other@example.com", "password1"); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("duplicate username: got %v", err)
	}
	if _, err := dir.Register(ctx, "bob", "ALICE@example.com", "password1"); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("duplicate email: got %v", err)
	}
	if _, err := dir.Register(ctx, "carol", "carol@example.com", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty password: got %v", err)
	}
}

func TestUserDirectoryRegisterRace(t *testing.T) {
	ctx := context.Background()
	dir, repo := newTestDirectory()

	// another request registers the same name after the availability check
	repo.beforeCreate = func() {
		if _, err := repo.Create(ctx, UserRecord{Username: "dave", Email: "first@example.com", PasswordHash: "x"}); err != nil {
			t.Fatalf("racing create: %v", err)
		}
	}
	if _, err := dir.Register(ctx, "dave", "second@example.com", "password1"); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("got %v, want ErrDuplicateUsername", err)
	}
	if err := registrationFieldError(ErrDuplicateUsername); err == nil {
		t.Fatalf("expected field error")
	}
}

func TestUserDirectoryFindByID(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory()
	if _, err := dir.FindByID(ctx, 0); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("id 0: got %v", err)
	}
	u, err := dir.Register(ctx, "erin", "erin@example.com", "password1")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	got, err := dir.FindByID(ctx, u.ID)
	if err != nil || got.Username != "erin" {
		t.Fatalf("FindByID = %+v, %v", got, err)
	}
}

func TestRepositoryAuthService(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory()
	u, err := dir.Register(ctx, "alice", "alice@example.com", "password1")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	auth := NewRepositoryAuthService(dir)

	caller, err := auth.Authenticate(ctx, "alice", "password1")
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if caller != PrincipalFromUser(*u) {
		t.Fatalf("caller = %+v", caller)
	}

	for _, tc := range []struct{ name, user, pass string }{
		{"wrong password", "alice", "password2"},
		{"unknown user", "nobody", "password1"},
		{"blank", "", ""},
	} {
		c, err := auth.Authenticate(ctx, tc.user, tc.pass)
		if !errors.Is(err, ErrAuthentication) {
			t.Fatalf("%s: got %v, want ErrAuthentication", tc.name, err)
		}
		if c.Authenticated() {
			t.Fatalf("%s: caller should be anonymous", tc.name)
		}
	}
}
