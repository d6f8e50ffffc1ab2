package database

import "errors"

// Caller-visible failure conditions. Everything else that can go wrong in
// this package is an internal storage error and is wrapped with context.
var (
	// ErrNotFound is returned for operations on unknown complaint/user ids.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyVoted is returned when a user votes twice on one complaint.
	// It is an expected condition, not a server error.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrInvalidTransition is returned for status changes the lifecycle
	// does not allow, such as moving a resolved complaint back to assigned.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation is returned when required creation fields are missing.
	ErrValidation = errors.New("validation failed")
)
