package core

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// RepositoryAuthService checks credentials against the user directory.
type RepositoryAuthService struct {
	dir *UserDirectory

	dummyOnce sync.Once
	dummy     UserRecord
}

func NewRepositoryAuthService(dir *UserDirectory) *RepositoryAuthService {
	return &RepositoryAuthService{dir: dir}
}

// Authenticate returns the caller for valid credentials and ErrAuthentication otherwise.
// An unknown username still pays for one bcrypt comparison.
func (s *RepositoryAuthService) Authenticate(ctx context.Context, username, password string) (Caller, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return Anonymous, ErrAuthentication
	}

	u, err := s.dir.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return Anonymous, err
		}
		s.dir.Hasher().CheckPassword(s.dummyUser(), password)
		return Anonymous, ErrAuthentication
	}

	if !s.dir.Hasher().CheckPassword(u, password) {
		return Anonymous, ErrAuthentication
	}
	return PrincipalFromUser(*u), nil
}

func (s *RepositoryAuthService) dummyUser() *UserRecord {
	s.dummyOnce.Do(func() {
		_ = s.dir.Hasher().SetPassword(&s.dummy, "dummy-password-for-timing")
	})
	return &s.dummy
}
