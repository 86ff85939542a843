package core

import (
	"errors"
	"testing"
)

func TestAuthorizeMutation(t *testing.T) {
	post := Post{ID: 1, AuthorID: 7}
	alice := Caller{ID: 7, Username: "alice"}
	bob := Caller{ID: 8, Username: "bob"}

	if err := AuthorizeMutation(alice, post); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	if err := AuthorizeMutation(bob, post); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other user: got %v, want ErrForbidden", err)
	}
	if CanMutate(Anonymous, Post{AuthorID: 0}) {
		t.Fatalf("anonymous caller must never own a post")
	}
}
