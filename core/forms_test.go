package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return verr.Fields
}

func TestPostFormValidate(t *testing.T) {
	cases := []struct {
		name    string
		title   string
		content string
		fields  []string
	}{
		{"valid", "Hi", "0123456789", nil},
		{"title too short", "H", "0123456789", []string{"title"}},
		{"title too long", strings.Repeat("t", 101), "0123456789", []string{"title"}},
		{"content too short", "Hello", "012345678", []string{"content"}},
		{"both missing", "  ", "", []string{"title", "content"}},
	}
	for _, tc := range cases {
		f := PostForm{Title: tc.title, Content: tc.content}
		got := fieldErrors(t, f.Validate())
		if len(got) != len(tc.fields) {
			t.Fatalf("%s: errors = %v, want fields %v", tc.name, got, tc.fields)
		}
		for _, field := range tc.fields {
			if _, ok := got[field]; !ok {
				t.Fatalf("%s: missing error for %s in %v", tc.name, field, got)
			}
		}
	}
}

func TestRegisterFormValidate(t *testing.T) {
	f := RegisterForm{Username: " bob ", Email: "Bob@Example.com", Password: "secret1", Confirm: "secret1"}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if f.Username != "bob" || f.Email != "bob@example.com" {
		t.Fatalf("not normalised: %+v", f)
	}

	f = RegisterForm{Username: "b", Email: "not-an-email", Password: "12345", Confirm: "54321"}
	got := fieldErrors(t, f.Validate())
	for _, field := range []string{"username", "email", "password", "confirm_password"} {
		if _, ok := got[field]; !ok {
			t.Fatalf("missing error for %s in %v", field, got)
		}
	}
	if got["email"] != "Enter a valid email address" {
		t.Fatalf("email message = %q", got["email"])
	}
}

func TestRegisterFormConfirmMismatch(t *testing.T) {
	f := RegisterForm{Username: "bob", Email: "bob@example.com", Password: "secret1", Confirm: "secret2"}
	got := fieldErrors(t, f.Validate())
	if len(got) != 1 || got["confirm_password"] != "Passwords must match" {
		t.Fatalf("errors = %v", got)
	}
}

func TestRegisterFormCheckAvailability(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory()
	if _, err := dir.Register(ctx, "alice", "alice@example.com", "password1"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	f := RegisterForm{Username: "alice", Email: "new@example.com"}
	got := fieldErrors(t, f.CheckAvailability(ctx, dir))
	if !strings.Contains(got["username"], "taken") {
		t.Fatalf("errors = %v", got)
	}

	f = RegisterForm{Username: "zed", Email: "alice@example.com"}
	got = fieldErrors(t, f.CheckAvailability(ctx, dir))
	if !strings.Contains(got["email"], "already registered") {
		t.Fatalf("errors = %v", got)
	}

	f = RegisterForm{Username: "zed", Email: "zed@example.com"}
	if err := f.CheckAvailability(ctx, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatorsStopAtFirstFailure(t *testing.T) {
	verr := &ValidationError{}
	calls := 0
	counting := func(v string) (string, error) { calls++; return v, nil }
	applyValidators(verr, "f", "", Required("required"), counting)
	if calls != 0 || verr.Fields["f"] != "required" {
		t.Fatalf("calls=%d fields=%v", calls, verr.Fields)
	}
	if got := applyValidators(&ValidationError{}, "f", "  x ", Trimmed(), counting); got != "x" || calls != 1 {
		t.Fatalf("got %q calls=%d", got, calls)
	}
}
