package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tobioye/ballotgate/internal/models"
	"github.com/tobioye/ballotgate/internal/ratewindow"
	pkglogger "github.com/tobioye/ballotgate/pkg/logger"
)

// VoteServiceConfig holds the post-cast bookkeeping thresholds.
type VoteServiceConfig struct {
	MinVoteInterval      time.Duration
	RapidVoteWindow      time.Duration
	SameCandidateRepeats int
	SameCandidateWindow  time.Duration
}

// VoteResult is the caller-facing result of a cast attempt. Vote is set only
// when the outcome allows, and may reference a previously cast ballot when
// the attempt was an idempotent duplicate.
type VoteResult struct {
	Outcome
	Vote    *models.Vote
	Created bool
}

// VoteService orchestrates one vote attempt end to end: guard evaluation,
// the ledger write, the attempt record, and the rate window bookkeeping.
// Exactly one VoteAttempt row is appended per call, whatever the outcome.
type VoteService struct {
	guard       *VoteGuard
	ledger      *VoteLedger
	attempts    VoteAttemptLog
	limiter     RateLimiter
	config      VoteServiceConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewVoteService(
	guard *VoteGuard,
	ledger *VoteLedger,
	attempts VoteAttemptLog,
	limiter RateLimiter,
	config VoteServiceConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *VoteService {
	return &VoteService{
		guard:       guard,
		ledger:      ledger,
		attempts:    attempts,
		limiter:     limiter,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// SetClock overrides the time source for the service and both stages under
// it. Test hook.
func (s *VoteService) SetClock(now func() time.Time) {
	s.now = now
	s.guard.SetClock(now)
	s.ledger.SetClock(now)
}

// CastVote evaluates and, if admitted, records one vote. Guard rejections
// return the rejecting outcome with a nil error; storage failures on the
// ledger path return the error so the transport layer answers 500 rather
// than a fabricated rejection.
func (s *VoteService) CastVote(ctx context.Context, voter *models.Student, ipAddress, userAgent, positionID, candidateID string) (*VoteResult, error) {
	outcome, err := s.guard.EvaluateVote(ctx, voter, ipAddress, positionID, candidateID)
	if err != nil {
		// An unknown position is a bad request, not an outage; it gets no
		// storage-error entry in the audit trail.
		if !errors.Is(err, models.ErrNotFound) {
			s.recordAttempt(ctx, voter, ipAddress, userAgent, positionID, false, ReasonStorageError)
		}
		return nil, err
	}
	if !outcome.Allow {
		s.recordAttempt(ctx, voter, ipAddress, userAgent, positionID, false, outcome.Reason)
		return &VoteResult{Outcome: outcome}, nil
	}

	result, err := s.ledger.CastVote(ctx, voter.ID, positionID, candidateID)
	if err != nil {
		s.recordAttempt(ctx, voter, ipAddress, userAgent, positionID, false, ReasonStorageError)
		return nil, err
	}

	if !result.Created {
		// Lost a concurrent race after the guard's uniqueness read. The
		// original ballot stands; this attempt records as a rejection.
		s.recordAttempt(ctx, voter, ipAddress, userAgent, positionID, false, ReasonAlreadyVoted)
		duplicate := hardReject(ReasonAlreadyVoted, "You have already voted for this position", http.StatusConflict)
		return &VoteResult{Outcome: duplicate, Vote: result.Vote}, nil
	}

	s.recordAttempt(ctx, voter, ipAddress, userAgent, positionID, true, ReasonVoteCast)
	s.recordWindows(ctx, voter.ID, candidateID, ipAddress)

	return &VoteResult{Outcome: allowed(), Vote: result.Vote, Created: true}, nil
}

// recordAttempt appends the audit trail for one evaluation. Log writes never
// fail the vote itself.
func (s *VoteService) recordAttempt(ctx context.Context, voter *models.Student, ipAddress, userAgent, positionID string, success bool, reason Reason) {
	attempt := &models.VoteAttempt{
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		Success:     success,
		Reason:      string(reason),
		AttemptTime: s.now(),
	}
	if voter != nil {
		attempt.VoterID = &voter.ID
	}
	if positionID != "" {
		attempt.PositionID = &positionID
	}

	if err := s.attempts.RecordAttempt(ctx, attempt); err != nil {
		s.logger.Error("failed to record vote attempt",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
	}

	event := pkglogger.AuditEvent{
		EventType: "vote",
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   success,
	}
	if voter != nil {
		event.UserID = voter.ID
	}
	if !success {
		event.FailureReason = string(reason)
	}
	if positionID != "" {
		event.Metadata = map[string]string{"position_id": positionID}
	}
	s.auditLogger.LogVoteAttempt(event)
}

// recordWindows updates the sliding windows a successful cast feeds: the
// per-voter cooldown and burst buckets, and the same-candidate repeat
// counter. Crossing the repeat threshold flags the pair for review without
// blocking anything.
func (s *VoteService) recordWindows(ctx context.Context, voterID, candidateID, ipAddress string) {
	s.limiter.Record(ctx, voterID, ratewindow.BucketVoteCooldown, s.config.MinVoteInterval)
	s.limiter.Record(ctx, voterID, ratewindow.BucketBurstVote, s.config.RapidVoteWindow)

	pairKey := voterID + "|" + candidateID
	s.limiter.Record(ctx, pairKey, ratewindow.BucketSameCandidate, s.config.SameCandidateWindow)

	repeats := s.limiter.Count(ctx, pairKey, ratewindow.BucketSameCandidate, s.config.SameCandidateWindow)
	if repeats >= s.config.SameCandidateRepeats {
		s.logger.Warn("repeated votes for one candidate",
			slog.String("voter_id", voterID),
			slog.String("candidate_id", candidateID),
			slog.Int("repeats", repeats))
		s.auditLogger.LogSecurityFlag("same_candidate_repeats", voterID, ipAddress, map[string]string{
			"candidate_id": candidateID,
			"repeats":      strconv.Itoa(repeats),
		})
	}
}
