package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tobioye/ballotgate/internal/repositories"
)

// LoginAttemptReporter provides the aggregate login-attempt reads the
// monitoring sweep consumes
type LoginAttemptReporter interface {
	ListMultiAccountIPs(ctx context.Context, since time.Time, maxAccounts int) (map[string]int, error)
	ListBruteForceIPs(ctx context.Context, since time.Time, maxFailed int) (map[string]int, error)
}

// VoteAttemptReporter provides the aggregate vote-attempt reads
type VoteAttemptReporter interface {
	ListIPViolators(ctx context.Context, since time.Time) ([]repositories.IPViolator, error)
	ListRapidVoters(ctx context.Context, since time.Time, maxVotes int) (map[string]int, error)
}

// MonitorConfig holds the detection thresholds for the periodic sweep
type MonitorConfig struct {
	MaxAccountsPerIP     int
	AccountsPerIPWindow  time.Duration
	MaxFailedLoginsPerIP int
	FailedLoginWindow    time.Duration
	RapidVoteThreshold   int
	RapidVoteReportSpan  time.Duration
}

// SweepReport summarizes one monitoring pass.
type SweepReport struct {
	MultiAccountIPsBlocked int
	BruteForceIPsBlocked   int
	RapidVoters            map[string]int
}

// MonitorService runs the retrospective abuse detection the inline guards
// cannot afford: scanning the whole attempt log for IPs that crossed the
// multi-account or brute-force thresholds and blocking them, and reporting
// accounts voting implausibly fast.
type MonitorService struct {
	loginAttempts LoginAttemptReporter
	voteAttempts  VoteAttemptReporter
	restrictions  *IPRestrictionService
	config        MonitorConfig
	logger        *slog.Logger
	now           func() time.Time
}

func NewMonitorService(
	loginAttempts LoginAttemptReporter,
	voteAttempts VoteAttemptReporter,
	restrictions *IPRestrictionService,
	config MonitorConfig,
	logger *slog.Logger,
) *MonitorService {
	return &MonitorService{
		loginAttempts: loginAttempts,
		voteAttempts:  voteAttempts,
		restrictions:  restrictions,
		config:        config,
		logger:        logger,
		now:           time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *MonitorService) SetClock(now func() time.Time) {
	s.now = now
}

// Sweep runs all detections once. Partial failures are logged and skipped so
// one unavailable query does not starve the others.
func (s *MonitorService) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{RapidVoters: map[string]int{}}
	now := s.now()

	multiAccount, err := s.loginAttempts.ListMultiAccountIPs(ctx, now.Add(-s.config.AccountsPerIPWindow), s.config.MaxAccountsPerIP)
	if err != nil {
		s.logger.Error("multi-account sweep query failed", slog.Any("error", err))
	} else {
		for ip, accounts := range multiAccount {
			reason := fmt.Sprintf("auto-blocked: %d accounts in window", accounts)
			created, err := s.restrictions.AutoBlock(ctx, ip, reason)
			if err != nil {
				s.logger.Error("auto-block failed", slog.String("ip_address", ip), slog.Any("error", err))
				continue
			}
			if created {
				report.MultiAccountIPsBlocked++
			}
		}
	}

	bruteForce, err := s.loginAttempts.ListBruteForceIPs(ctx, now.Add(-s.config.FailedLoginWindow), s.config.MaxFailedLoginsPerIP)
	if err != nil {
		s.logger.Error("brute-force sweep query failed", slog.Any("error", err))
	} else {
		for ip, failures := range bruteForce {
			reason := fmt.Sprintf("auto-blocked: %d failed logins in window", failures)
			created, err := s.restrictions.AutoBlock(ctx, ip, reason)
			if err != nil {
				s.logger.Error("auto-block failed", slog.String("ip_address", ip), slog.Any("error", err))
				continue
			}
			if created {
				report.BruteForceIPsBlocked++
			}
		}
	}

	rapid, err := s.voteAttempts.ListRapidVoters(ctx, now.Add(-s.config.RapidVoteReportSpan), s.config.RapidVoteThreshold)
	if err != nil {
		s.logger.Error("rapid-voter sweep query failed", slog.Any("error", err))
	} else {
		for voterID, votes := range rapid {
			s.logger.Warn("rapid voting detected",
				slog.String("voter_id", voterID),
				slog.Int("votes", votes))
			report.RapidVoters[voterID] = votes
		}
	}

	s.logger.Info("security sweep complete",
		slog.Int("multi_account_ips_blocked", report.MultiAccountIPsBlocked),
		slog.Int("brute_force_ips_blocked", report.BruteForceIPsBlocked),
		slog.Int("rapid_voters", len(report.RapidVoters)))

	return report, nil
}

// IPViolators lists IPs that produced successful votes from more than one
// account within the window. Admin report.
func (s *MonitorService) IPViolators(ctx context.Context, window time.Duration) ([]repositories.IPViolator, error) {
	return s.voteAttempts.ListIPViolators(ctx, s.now().Add(-window))
}
