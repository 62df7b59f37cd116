package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrAccountLocked      = errors.New("account is temporarily locked")

	// Voting errors
	ErrElectionNotActive = errors.New("election is not currently active")
	ErrAlreadyVoted      = errors.New("a vote has already been cast for this position")
	ErrNotEligible       = errors.New("candidate is not eligible for this position")
)
