package core

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher owns the bcrypt hashing of user passwords.
type PasswordHasher struct {
	Cost int
}

// NewPasswordHasher returns a hasher using cost, or bcrypt.DefaultCost when cost is out of range.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return PasswordHasher{Cost: cost}
}

// SetPassword hashes plaintext and overwrites u.PasswordHash.
func (h PasswordHasher) SetPassword(u *UserRecord, plaintext string) error {
	if plaintext == "" {
		return fmt.Errorf("%w: empty password", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return fmt.Errorf("%w: password longer than 72 bytes", ErrInvalidInput)
		}
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether candidate matches the stored hash. It never errors.
func (h PasswordHasher) CheckPassword(u *UserRecord, candidate string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(candidate)) == nil
}
