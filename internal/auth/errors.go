package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password so callers cannot tell the two apart.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrValidation is the parent of every registration input error.
	ErrValidation = errors.New("validation failed")

	ErrMissingField     = fmt.Errorf("%w: all fields are required", ErrValidation)
	ErrPasswordMismatch = fmt.Errorf("%w: passwords don't match", ErrValidation)
	ErrUsernameTaken    = fmt.Errorf("%w: username has been registered", ErrValidation)
	ErrInvalidRole      = fmt.Errorf("%w: unknown account type", ErrValidation)
)
