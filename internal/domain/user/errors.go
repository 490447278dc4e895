package user

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("user not found")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrDuplicateInvitation  = errors.New("a pending invitation already exists for this email")
	ErrEmailTaken           = errors.New("a user with this email already exists")
	ErrInvitationNotPending = errors.New("invitation is no longer pending")
	ErrInvitationExpired    = errors.New("invitation has expired")
	ErrForbiddenRole        = errors.New("caller may not assign this role")
	ErrSelfDeactivation     = errors.New("users cannot deactivate themselves")
)

// ValidationError is returned before any persistence call when input is
// malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
