package services

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tobioye/ballotgate/internal/models"
	"github.com/tobioye/ballotgate/internal/ratewindow"
)

// VoteAttemptLog defines the attempt-log operations the vote guard needs
type VoteAttemptLog interface {
	RecordAttempt(ctx context.Context, attempt *models.VoteAttempt) error
	CountSuccessfulSince(ctx context.Context, voterID string, since time.Time) (int, error)
	LastSuccessfulVoteTime(ctx context.Context, voterID string) (*time.Time, error)
	ExistsOtherSuccessfulVoterFromIP(ctx context.Context, ipAddress, voterID string, since time.Time) (bool, error)
}

// PositionFetcher loads a position together with its parent election
type PositionFetcher interface {
	GetPositionWithElection(ctx context.Context, positionID string) (*models.Position, *models.Election, error)
}

// VoteChecker is the fast-path duplicate lookup. The authoritative guarantee
// lives in the votes table constraint, not here.
type VoteChecker interface {
	Exists(ctx context.Context, voterID, positionID string) (bool, error)
}

// VoteGuardConfig holds the vote admission thresholds
type VoteGuardConfig struct {
	MinVoteInterval      time.Duration
	MaxRapidVotes        int
	RapidVoteWindow      time.Duration
	IPChangeVoteWindow   time.Duration
	VotingHoursEnabled   bool
	VotingHourStart      int
	VotingHourEnd        int
	MultiAccountIPBlock  bool
	MultiAccountIPWindow time.Duration
}

// VoteGuard decides whether a vote attempt may proceed to the ledger. Checks
// run in the stated order and short-circuit on the first rejection, cheaper
// reads before heavier heuristics. Storage read failures deny the attempt:
// guessing on a dependency outage could let a duplicate through.
type VoteGuard struct {
	positions   PositionFetcher
	votes       VoteChecker
	attempts    VoteAttemptLog
	eligibility *EligibilityService
	limiter     RateLimiter
	config      VoteGuardConfig
	logger      *slog.Logger
	now         func() time.Time
}

func NewVoteGuard(
	positions PositionFetcher,
	votes VoteChecker,
	attempts VoteAttemptLog,
	eligibility *EligibilityService,
	limiter RateLimiter,
	config VoteGuardConfig,
	logger *slog.Logger,
) *VoteGuard {
	return &VoteGuard{
		positions:   positions,
		votes:       votes,
		attempts:    attempts,
		eligibility: eligibility,
		limiter:     limiter,
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (g *VoteGuard) SetClock(now func() time.Time) {
	g.now = now
}

// EvaluateVote runs the admission pipeline for one vote attempt. It performs
// no writes; the caller records the attempt with the final outcome.
func (g *VoteGuard) EvaluateVote(ctx context.Context, voter *models.Student, ipAddress, positionID, candidateID string) (Outcome, error) {
	now := g.now()

	position, election, err := g.positions.GetPositionWithElection(ctx, positionID)
	if err != nil {
		return Outcome{}, err
	}

	if !election.IsOpen(now) {
		return hardReject(ReasonElectionNotActive, "This election is not currently active.", http.StatusForbidden), nil
	}

	alreadyVoted, err := g.votes.Exists(ctx, voter.ID, positionID)
	if err != nil {
		return Outcome{}, err
	}
	if alreadyVoted {
		return hardReject(ReasonAlreadyVoted, "You have already voted for this position.", http.StatusConflict), nil
	}

	eligible, err := g.eligibility.IsEligible(ctx, voter, position, election, candidateID)
	if err != nil {
		return Outcome{}, err
	}
	if !eligible {
		return hardReject(ReasonNotEligible, "This candidate is not eligible for the selected position.", http.StatusForbidden), nil
	}

	outcome, err := g.checkIPChange(ctx, voter, ipAddress, now)
	if err != nil {
		return Outcome{}, err
	}
	if !outcome.Allow {
		return outcome, nil
	}

	// The current attempt counts toward the burst.
	if g.limiter.Count(ctx, voter.ID, ratewindow.BucketBurstVote, g.config.RapidVoteWindow)+1 >= g.config.MaxRapidVotes {
		g.logger.Warn("burst voting detected", slog.String("voter_id", voter.ID))
		return throttleReject(ReasonTooFast, "You are voting too quickly. Slow down."), nil
	}

	if g.limiter.Count(ctx, voter.ID, ratewindow.BucketVoteCooldown, g.config.MinVoteInterval) > 0 {
		return throttleReject(ReasonTooSoon, "Please wait a few seconds before voting again."), nil
	}
	if g.config.MinVoteInterval > 0 {
		// The window store is best-effort; the attempt log backs the
		// cooldown when the store has restarted or evicted the key.
		last, err := g.attempts.LastSuccessfulVoteTime(ctx, voter.ID)
		if err != nil {
			return Outcome{}, err
		}
		if last != nil && !last.Before(now.Add(-g.config.MinVoteInterval)) {
			return throttleReject(ReasonTooSoon, "Please wait a few seconds before voting again."), nil
		}
	}

	if g.config.VotingHoursEnabled {
		hour := now.Hour()
		if hour < g.config.VotingHourStart || hour >= g.config.VotingHourEnd {
			return hardReject(ReasonOutsideVotingHours, "Voting is closed at this hour.", http.StatusForbidden), nil
		}
	}

	outcome, err = g.checkMultiAccountIP(ctx, voter, ipAddress, now)
	if err != nil {
		return Outcome{}, err
	}
	if !outcome.Allow {
		return outcome, nil
	}

	return allowed(), nil
}

// checkIPChange flags or rejects a session whose IP no longer matches the
// login IP. A switch outside the /24 after the account has already voted is
// treated as account sharing in progress; a switch before any vote is only
// logged, since mobile networks re-address mid-session.
func (g *VoteGuard) checkIPChange(ctx context.Context, voter *models.Student, ipAddress string, now time.Time) (Outcome, error) {
	if voter.LastLoginIP == nil || *voter.LastLoginIP == ipAddress || sameSlash24(*voter.LastLoginIP, ipAddress) {
		return allowed(), nil
	}

	recentVotes, err := g.attempts.CountSuccessfulSince(ctx, voter.ID, now.Add(-g.config.IPChangeVoteWindow))
	if err != nil {
		return Outcome{}, err
	}

	if recentVotes > 0 {
		g.logger.Warn("ip change during voting session",
			slog.String("voter_id", voter.ID),
			slog.String("login_ip", *voter.LastLoginIP),
			slog.String("current_ip", ipAddress))
		return hardReject(ReasonSuspiciousIPChange, "Session verification failed. Please log in again.", http.StatusForbidden), nil
	}

	g.logger.Info("ip change before first vote",
		slog.String("voter_id", voter.ID),
		slog.String("login_ip", *voter.LastLoginIP),
		slog.String("current_ip", ipAddress))
	return allowed(), nil
}

// checkMultiAccountIP applies the one-account-per-IP voting policy. Blocking
// is off by default because shared networks (NAT, campus Wi-Fi) make it prone
// to false positives; when off, violations are logged for the monitoring
// report instead.
func (g *VoteGuard) checkMultiAccountIP(ctx context.Context, voter *models.Student, ipAddress string, now time.Time) (Outcome, error) {
	other, err := g.attempts.ExistsOtherSuccessfulVoterFromIP(ctx, ipAddress, voter.ID, now.Add(-g.config.MultiAccountIPWindow))
	if err != nil {
		return Outcome{}, err
	}
	if !other {
		return allowed(), nil
	}

	if g.config.MultiAccountIPBlock {
		g.logger.Warn("multi-account voting blocked",
			slog.String("voter_id", voter.ID),
			slog.String("ip_address", ipAddress))
		return hardReject(ReasonMultiAccountIP, "Another account has already voted from this network address.", http.StatusForbidden), nil
	}

	g.logger.Warn("multi-account voting flagged",
		slog.String("voter_id", voter.ID),
		slog.String("ip_address", ipAddress))
	return allowed(), nil
}

// sameSlash24 reports whether two IPv4 addresses share their first three
// octets. Non-IPv4 addresses never match.
func sameSlash24(a, b string) bool {
	ipA := net.ParseIP(a).To4()
	ipB := net.ParseIP(b).To4()
	if ipA == nil || ipB == nil {
		return false
	}
	return ipA[0] == ipB[0] && ipA[1] == ipB[1] && ipA[2] == ipB[2]
}
