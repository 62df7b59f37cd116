package models

import "time"

// LoginAttempt is an immutable audit record of a single authentication
// attempt, successful or not. Insertion order is chronological order.
type LoginAttempt struct {
	ID            string
	IPAddress     string
	UserAgent     string
	MatricNumber  *string // nil when the attempt never named an account
	Success       bool
	FailureReason *string
	AttemptTime   time.Time
	ExpiresAt     time.Time
}

// VoteAttempt is an immutable audit record of a vote evaluation. Every pass
// through the vote guard appends exactly one record, pass or fail.
type VoteAttempt struct {
	ID          string
	VoterID     *string // nil when rejected before authentication
	IPAddress   string
	UserAgent   string
	PositionID  *string
	Success     bool
	Reason      string
	AttemptTime time.Time
}
