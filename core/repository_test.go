package core

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapUserInsertError(t *testing.T) {
	unique := func(constraint string) error {
		return &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraint}
	}

	if err := mapUserInsertError(unique(usersUsernameConstraint)); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("username constraint: got %v", err)
	}
	for _, name := range []string{usersEmailConstraint, usersEmailLowerIndexName} {
		if err := mapUserInsertError(unique(name)); !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("%s: got %v", name, err)
		}
	}

	err := mapUserInsertError(unique("users_some_other_key"))
	if errors.Is(err, ErrDuplicateUsername) || errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("unknown constraint mapped to a duplicate error: %v", err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("unknown constraint lost the pg error: %v", err)
	}

	if err := mapUserInsertError(errors.New("conn reset")); errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("non-pg error mapped to duplicate")
	}
}
