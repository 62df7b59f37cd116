package services

import "net/http"

// Reason is a stable machine-readable code attached to every admission
// decision. Clients branch on the code, humans read the message.
type Reason string

const (
	ReasonOK Reason = "OK"

	// Login rejections
	ReasonBlockedIP          Reason = "BLOCKED_IP"
	ReasonRateLimited        Reason = "RATE_LIMITED"
	ReasonSuspiciousActivity Reason = "SUSPICIOUS_ACTIVITY"
	ReasonAccountLocked      Reason = "ACCOUNT_LOCKED"
	ReasonAccountDeactivated Reason = "ACCOUNT_DEACTIVATED"
	ReasonInvalidCredentials Reason = "INVALID_CREDENTIALS"

	// Vote rejections
	ReasonElectionNotActive  Reason = "ELECTION_NOT_ACTIVE"
	ReasonAlreadyVoted       Reason = "ALREADY_VOTED"
	ReasonNotEligible        Reason = "NOT_ELIGIBLE"
	ReasonSuspiciousIPChange Reason = "SUSPICIOUS_IP_CHANGE"
	ReasonTooFast            Reason = "TOO_FAST"
	ReasonTooSoon            Reason = "TOO_SOON"
	ReasonOutsideVotingHours Reason = "OUTSIDE_VOTING_HOURS"
	ReasonMultiAccountIP     Reason = "MULTI_ACCOUNT_IP"

	// Bookkeeping reasons recorded on the attempt log, never returned as a
	// rejection to the caller.
	ReasonVoteCast     Reason = "VOTE_CAST"
	ReasonStorageError Reason = "STORAGE_ERROR"
)

// Outcome is the result of evaluating a login or vote attempt.
type Outcome struct {
	Allow      bool
	Reason     Reason
	Message    string
	StatusHint int  // suggested HTTP status for the outer layer
	Transient  bool // throttle-style reject: the caller may back off and retry
}

func allowed() Outcome {
	return Outcome{Allow: true, Reason: ReasonOK, StatusHint: http.StatusOK}
}

// hardReject is terminal for the request: the caller should show the message
// and not retry.
func hardReject(reason Reason, message string, status int) Outcome {
	return Outcome{Reason: reason, Message: message, StatusHint: status}
}

// throttleReject is terminal for this request but transient: the caller may
// retry after backing off.
func throttleReject(reason Reason, message string) Outcome {
	return Outcome{
		Reason:     reason,
		Message:    message,
		StatusHint: http.StatusTooManyRequests,
		Transient:  true,
	}
}
