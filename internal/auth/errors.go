package auth

import "errors"

var (
	// ErrInvalidToken covers every token verification failure: bad
	// signature, malformed payload, wrong type, expired. Callers must not
	// be able to tell which one occurred.
	ErrInvalidToken = errors.New("invalid token")

	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("resource conflict")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
