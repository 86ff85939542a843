package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Validator accepts a raw value and returns the accepted (possibly normalised) value or a failure.
type Validator func(string) (string, error)

var fieldValidate = validator.New()

// Trimmed strips surrounding whitespace. It never fails.
func Trimmed() Validator {
	return func(v string) (string, error) {
		return strings.TrimSpace(v), nil
	}
}

// Required fails on empty or whitespace-only input.
func Required(msg string) Validator {
	return func(v string) (string, error) {
		if strings.TrimSpace(v) == "" {
			return v, errors.New(msg)
		}
		return v, nil
	}
}

// Length bounds the number of characters; max <= 0 means no upper bound.
func Length(min, max int, msg string) Validator {
	return func(v string) (string, error) {
		n := utf8.RuneCountInString(v)
		if n < min || (max > 0 && n > max) {
			return v, errors.New(msg)
		}
		return v, nil
	}
}

// Email checks address syntax.
func Email(msg string) Validator {
	return func(v string) (string, error) {
		if err := fieldValidate.Var(v, "required,email"); err != nil {
			return v, errors.New(msg)
		}
		return strings.ToLower(v), nil
	}
}

// EqualTo fails unless the value equals other.
func EqualTo(other, msg string) Validator {
	return func(v string) (string, error) {
		if v != other {
			return v, errors.New(msg)
		}
		return v, nil
	}
}

// applyValidators runs vs in order and stops at the first failure, which is recorded on verr.
func applyValidators(verr *ValidationError, field, value string, vs ...Validator) string {
	for _, v := range vs {
		next, err := v(value)
		if err != nil {
			verr.Add(field, err.Error())
			return value
		}
		value = next
	}
	return value
}

// RegisterForm is the registration input.
type RegisterForm struct {
	Username string `form:"username"`
	Email    string `form:"email"`
	Password string `form:"password"`
	Confirm  string `form:"confirm_password"`
}

// Validate normalises the form in place and checks field shapes.
func (f *RegisterForm) Validate() error {
	verr := &ValidationError{}
	f.Username = applyValidators(verr, "username", f.Username,
		Trimmed(), Required("Username is required"), Length(2, 20, "Username must be between 2 and 20 characters"))
	f.Email = applyValidators(verr, "email", f.Email,
		Trimmed(), Required("Email is required"), Email("Enter a valid email address"))
	f.Password = applyValidators(verr, "password", f.Password,
		Required("Password is required"), Length(6, 72, "Password must be between 6 and 72 characters"))
	f.Confirm = applyValidators(verr, "confirm_password", f.Confirm,
		Required("Please confirm your password"), EqualTo(f.Password, "Passwords must match"))
	return verr.errOrNil()
}

// CheckAvailability runs the directory-backed uniqueness checks. Call only after Validate passes.
func (f *RegisterForm) CheckAvailability(ctx context.Context, dir *UserDirectory) error {
	return registrationFieldError(dir.CheckAvailable(ctx, f.Username, f.Email))
}

// registrationFieldError converts duplicate errors into field errors and passes others through.
func registrationFieldError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateUsername):
		return &ValidationError{Fields: map[string]string{"username": "That username is taken. Please choose a different one."}}
	case errors.Is(err, ErrDuplicateEmail):
		return &ValidationError{Fields: map[string]string{"email": "That email is already registered."}}
	case errors.Is(err, ErrInvalidInput):
		return &ValidationError{Fields: map[string]string{"password": "Password cannot be used"}}
	default:
		return fmt.Errorf("check availability: %w", err)
	}
}

// LoginForm is the login input.
type LoginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

func (f *LoginForm) Validate() error {
	verr := &ValidationError{}
	f.Username = applyValidators(verr, "username", f.Username, Trimmed(), Required("Username is required"))
	f.Password = applyValidators(verr, "password", f.Password, Required("Password is required"))
	return verr.errOrNil()
}

// PostForm is the create/edit post input.
type PostForm struct {
	Title   string `form:"title"`
	Content string `form:"content"`
}

func (f *PostForm) Validate() error {
	verr := &ValidationError{}
	f.Title = applyValidators(verr, "title", f.Title,
		Trimmed(), Required("Title is required"), Length(2, 100, "Title must be between 2 and 100 characters"))
	f.Content = applyValidators(verr, "content", f.Content,
		Trimmed(), Required("Content is required"), Length(10, 0, "Content must be at least 10 characters"))
	return verr.errOrNil()
}
