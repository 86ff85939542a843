package core

import (
	"context"
	"errors"
	"strings"
)

// UserDirectory is the uniqueness-checked registry of users.
type UserDirectory struct {
	users  UserRepository
	hasher PasswordHasher
}

func NewUserDirectory(users UserRepository, hasher PasswordHasher) *UserDirectory {
	return &UserDirectory{users: users, hasher: hasher}
}

// Register creates a user with a hashed password.
// The lookups give early, friendly errors; the unique indexes behind
// UserRepository.Create decide races between concurrent registrations.
func (d *UserDirectory) Register(ctx context.Context, username, email, password string) (*UserRecord, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, ErrInvalidInput
	}

	if err := d.checkAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	u := UserRecord{Username: username, Email: email}
	if err := d.hasher.SetPassword(&u, password); err != nil {
		return nil, err
	}
	return d.users.Create(ctx, u)
}

// CheckAvailable reports ErrDuplicateUsername or ErrDuplicateEmail for taken identifiers.
func (d *UserDirectory) CheckAvailable(ctx context.Context, username, email string) error {
	return d.checkAvailable(ctx, strings.TrimSpace(username), strings.TrimSpace(email))
}

func (d *UserDirectory) checkAvailable(ctx context.Context, username, email string) error {
	if _, err := d.users.FindByUsername(ctx, username); err == nil {
		return ErrDuplicateUsername
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if _, err := d.users.FindByEmail(ctx, email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	return nil
}

// FindByUsername returns the user or ErrUserNotFound.
func (d *UserDirectory) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	return d.users.FindByUsername(ctx, strings.TrimSpace(username))
}

// FindByID returns the user or ErrUserNotFound.
func (d *UserDirectory) FindByID(ctx context.Context, id int64) (*UserRecord, error) {
	if id <= 0 {
		return nil, ErrUserNotFound
	}
	return d.users.FindByID(ctx, id)
}

// Hasher exposes the credential store used by the directory.
func (d *UserDirectory) Hasher() PasswordHasher {
	return d.hasher
}
