package models

import "errors"

var (
	// ErrProgressNotFound is returned when an identity has no progress record yet.
	ErrProgressNotFound = errors.New("progress not found")
	// ErrStoreConflict is returned when a save lost an optimistic version check.
	ErrStoreConflict = errors.New("progress was modified concurrently")
	// ErrUserNotFound is returned when no profile exists for an identity.
	ErrUserNotFound = errors.New("user not found")
	// ErrPollNotFound is returned for polls the registry has never seen.
	ErrPollNotFound = errors.New("poll not found")
)
