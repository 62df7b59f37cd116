package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tobioye/ballotgate/internal/models"
	"github.com/tobioye/ballotgate/internal/ratewindow"
	pkglogger "github.com/tobioye/ballotgate/pkg/logger"
)

// LoginAttemptLog defines the attempt-log operations the login guard needs
type LoginAttemptLog interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailedByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountDistinctIdentifiersByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountDistinctSuccessfulAccountsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
}

// StudentFinder looks up the account named by a login attempt
type StudentFinder interface {
	GetByMatricNumber(ctx context.Context, matricNumber string) (*models.Student, error)
}

// IPRegistry is the subset of the restriction registry consulted on login
type IPRegistry interface {
	IsBlocked(ctx context.Context, ipAddress string) (bool, error)
	FlagMultiAccount(ctx context.Context, ipAddress string, accountCount int) error
}

// RateLimiter is the advisory sliding-window limiter
type RateLimiter interface {
	Allow(ctx context.Context, subject, bucket string, limit int, window time.Duration) bool
	Count(ctx context.Context, subject, bucket string, window time.Duration) int
	Record(ctx context.Context, subject, bucket string, window time.Duration)
}

// LoginGuardConfig holds the login admission thresholds
type LoginGuardConfig struct {
	AuthRequestLimit            int
	AuthRequestWindow           time.Duration
	MaxFailedLoginsPerIP        int
	MaxDistinctIdentifiersPerIP int
	FailedLoginWindow           time.Duration
	MaxAccountsPerIP            int
	AccountsPerIPWindow         time.Duration
	AttemptRetention            time.Duration
}

// LoginResult pairs the admission outcome with the authenticated account.
type LoginResult struct {
	Outcome
	Student *models.Student // non-nil only when Allow is true
}

// LoginGuard decides whether a login attempt is admitted. Checks run in a
// fixed order, cheapest first, and short-circuit on the first rejection.
// Every evaluated attempt appends exactly one LoginAttempt record.
type LoginGuard struct {
	attempts    LoginAttemptLog
	students    StudentFinder
	ipRegistry  IPRegistry
	limiter     RateLimiter
	lockout     *LockoutService
	config      LoginGuardConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewLoginGuard(
	attempts LoginAttemptLog,
	students StudentFinder,
	ipRegistry IPRegistry,
	limiter RateLimiter,
	lockout *LockoutService,
	config LoginGuardConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *LoginGuard {
	return &LoginGuard{
		attempts:    attempts,
		students:    students,
		ipRegistry:  ipRegistry,
		limiter:     limiter,
		lockout:     lockout,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (g *LoginGuard) SetClock(now func() time.Time) {
	g.now = now
	g.lockout.SetClock(now)
}

// EvaluateLogin runs the admission pipeline for one login attempt. The
// credential verdict comes from the verify collaborator, consulted only after
// the cheaper checks pass.
func (g *LoginGuard) EvaluateLogin(ctx context.Context, ipAddress, matricNumber, userAgent string, verify func(*models.Student) bool) (*LoginResult, error) {
	blocked, err := g.ipRegistry.IsBlocked(ctx, ipAddress)
	if err != nil {
		g.logger.Error("ip restriction lookup failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if blocked {
		outcome := hardReject(ReasonBlockedIP, "Access denied from this IP address.", http.StatusForbidden)
		return g.finish(ctx, ipAddress, matricNumber, userAgent, outcome), nil
	}

	if !g.limiter.Allow(ctx, ipAddress, ratewindow.BucketAuth, g.config.AuthRequestLimit, g.config.AuthRequestWindow) {
		outcome := throttleReject(ReasonRateLimited, "Too many requests. Please try again later.")
		return g.finish(ctx, ipAddress, matricNumber, userAgent, outcome), nil
	}

	if g.isSuspiciousIP(ctx, ipAddress) {
		outcome := hardReject(ReasonSuspiciousActivity, "Suspicious activity detected from this IP address.", http.StatusForbidden)
		return g.finish(ctx, ipAddress, matricNumber, userAgent, outcome), nil
	}

	student, err := g.students.GetByMatricNumber(ctx, matricNumber)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Same message as a wrong password so account names cannot be probed
			outcome := hardReject(ReasonInvalidCredentials, "Invalid matric number or password.", http.StatusUnauthorized)
			return g.finish(ctx, ipAddress, matricNumber, userAgent, outcome), nil
		}
		g.logger.Error("student lookup failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if g.lockout.IsLocked(student) {
		outcome := g.lockedOutcome(student)
		return g.finish(ctx, ipAddress, matricNumber, userAgent, outcome), nil
	}

	if !verify(student) {
		outcome := g.handleFailure(ctx, student)
		return g.finish(ctx, ipAddress, matricNumber, userAgent, outcome), nil
	}

	if err := g.lockout.RecordSuccess(ctx, student, ipAddress); err != nil {
		g.logger.Error("failed to record login success", slog.String("student_id", student.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	result := g.finish(ctx, ipAddress, matricNumber, userAgent, allowed())
	result.Student = student

	g.checkMultipleAccountsPerIP(ctx, ipAddress)

	return result, nil
}

// isSuspiciousIP applies the brute-force and credential-stuffing signatures
// over the recent attempt log. Read failures fail open: the heuristics are
// advisory and must not lock everyone out when the log is unreachable.
func (g *LoginGuard) isSuspiciousIP(ctx context.Context, ipAddress string) bool {
	since := g.now().Add(-g.config.FailedLoginWindow)

	failed, err := g.attempts.CountFailedByIP(ctx, ipAddress, since)
	if err != nil {
		g.logger.Error("failed-login count failed", slog.Any("error", err))
		return false
	}
	if failed >= g.config.MaxFailedLoginsPerIP {
		g.logger.Warn("brute force signature",
			slog.String("ip_address", ipAddress),
			slog.Int("failed_attempts", failed))
		return true
	}

	identifiers, err := g.attempts.CountDistinctIdentifiersByIP(ctx, ipAddress, since)
	if err != nil {
		g.logger.Error("distinct-identifier count failed", slog.Any("error", err))
		return false
	}
	if identifiers >= g.config.MaxDistinctIdentifiersPerIP {
		g.logger.Warn("credential stuffing signature",
			slog.String("ip_address", ipAddress),
			slog.Int("distinct_identifiers", identifiers))
		return true
	}

	return false
}

func (g *LoginGuard) lockedOutcome(student *models.Student) Outcome {
	if !student.IsActive {
		return hardReject(ReasonAccountDeactivated,
			"Account deactivated after repeated failed attempts. Contact an administrator.",
			http.StatusForbidden)
	}
	return hardReject(ReasonAccountLocked,
		"Account temporarily locked. Try again later.",
		http.StatusForbidden)
}

func (g *LoginGuard) handleFailure(ctx context.Context, student *models.Student) Outcome {
	result, err := g.lockout.RecordFailure(ctx, student)
	if err != nil {
		g.logger.Error("failed to record login failure",
			slog.String("student_id", student.ID),
			slog.Any("error", err))
		// The attempt is still denied; only the counter update was lost.
		return hardReject(ReasonInvalidCredentials, "Invalid matric number or password.", http.StatusUnauthorized)
	}

	switch {
	case result.Deactivated:
		return hardReject(ReasonAccountDeactivated,
			"Account deactivated after repeated failed attempts. Contact an administrator.",
			http.StatusForbidden)
	case result.TempLocked:
		return hardReject(ReasonAccountLocked,
			"Too many failed attempts. Account locked temporarily.",
			http.StatusForbidden)
	default:
		return hardReject(ReasonInvalidCredentials,
			fmt.Sprintf("Invalid matric number or password. %d attempts remaining.", result.Remaining),
			http.StatusUnauthorized)
	}
}

// checkMultipleAccountsPerIP flags the IP the first time more distinct
// accounts than allowed have logged in from it within the window. The flag
// does not block future logins; upgrading it is an admin policy decision.
func (g *LoginGuard) checkMultipleAccountsPerIP(ctx context.Context, ipAddress string) {
	since := g.now().Add(-g.config.AccountsPerIPWindow)

	count, err := g.attempts.CountDistinctSuccessfulAccountsByIP(ctx, ipAddress, since)
	if err != nil {
		g.logger.Error("accounts-per-ip count failed", slog.Any("error", err))
		return
	}
	if count <= g.config.MaxAccountsPerIP {
		return
	}

	if err := g.ipRegistry.FlagMultiAccount(ctx, ipAddress, count); err != nil {
		g.logger.Error("failed to flag multi-account ip",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
	}
}

// finish appends the attempt record and emits the audit event. Called exactly
// once per evaluation.
func (g *LoginGuard) finish(ctx context.Context, ipAddress, matricNumber, userAgent string, outcome Outcome) *LoginResult {
	now := g.now()
	attempt := &models.LoginAttempt{
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		Success:     outcome.Allow,
		AttemptTime: now,
		ExpiresAt:   now.Add(g.config.AttemptRetention),
	}
	if matricNumber != "" {
		attempt.MatricNumber = &matricNumber
	}
	if !outcome.Allow {
		reason := string(outcome.Reason)
		attempt.FailureReason = &reason
	}

	if err := g.attempts.RecordAttempt(ctx, attempt); err != nil {
		g.logger.Error("failed to record login attempt", slog.Any("error", err))
	}

	event := pkglogger.AuditEvent{
		EventType: "login",
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   outcome.Allow,
	}
	if matricNumber != "" {
		event.Metadata = map[string]string{
			"matric_number": pkglogger.SanitizedMatric(matricNumber),
		}
	}
	if !outcome.Allow {
		event.FailureReason = string(outcome.Reason)
	}
	g.auditLogger.LogAuthAttempt(event)

	return &LoginResult{Outcome: outcome}
}
