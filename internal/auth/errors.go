package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")

	// ErrInvalidToken covers malformed, tampered and expired tokens alike.
	// Callers must not be able to tell the three apart.
	ErrInvalidToken = errors.New("auth: invalid token")
)
