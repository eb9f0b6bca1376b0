package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated occurs when the request carries no actor.
	ErrUnauthenticated = errors.New("actor missing")
	// ErrForbidden occurs when the actor lacks a required permission.
	ErrForbidden = errors.New("forbidden")
)
