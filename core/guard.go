package core

// CanMutate reports whether caller may edit or delete post: only its author may.
func CanMutate(caller Caller, post Post) bool {
	return caller.Authenticated() && caller.ID == post.AuthorID
}

// AuthorizeMutation returns ErrForbidden unless CanMutate holds.
func AuthorizeMutation(caller Caller, post Post) error {
	if !CanMutate(caller, post) {
		return ErrForbidden
	}
	return nil
}
