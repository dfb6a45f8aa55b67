// Package autherr holds the authentication error values. It has no
// dependencies so the HTTP error mapping can match them without importing
// the auth service.
package autherr

import "errors"

var (
	// ErrDuplicateAccount is returned when registering with a taken email or username.
	ErrDuplicateAccount   = errors.New("email or username already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidInput       = errors.New("invalid registration input")
)
