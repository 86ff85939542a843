package core

import (
	"context"
)

// Caller is the identity a request acts as. The zero value is the anonymous caller.
type Caller struct {
	ID       int64
	Username string
}

// Anonymous is the caller of requests without a bound session.
var Anonymous = Caller{}

// Authenticated reports whether the caller is bound to a user.
func (c Caller) Authenticated() bool {
	return c.ID > 0
}

// DisplayName is what templates show for the caller.
func (c Caller) DisplayName() string {
	if !c.Authenticated() {
		return "guest"
	}
	return c.Username
}

// PrincipalFromUser maps a persisted user to the capabilities a session needs.
func PrincipalFromUser(u UserRecord) Caller {
	return Caller{ID: u.ID, Username: u.Username}
}

// AuthService defines authentication behaviour.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (Caller, error)
}
