package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/tobioye/ballotgate/internal/models"
)

// Lockout states
const (
	LockoutStateOK          = "ok"
	LockoutStateWarned      = "warned"
	LockoutStateTempLocked  = "temp_locked"
	LockoutStateDeactivated = "deactivated"
)

// LockoutRepository defines the account mutations the lockout state machine needs
type LockoutRepository interface {
	UpdateLockoutState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time, isActive bool) error
	RecordLoginSuccess(ctx context.Context, id, ipAddress string, at time.Time) error
}

// LockoutConfig holds the failed-attempt thresholds
type LockoutConfig struct {
	MaxFailedAttempts int           // count == max sets a temporary lock
	LockDuration      time.Duration // length of the temporary lock
}

// FailureResult reports the consequence of one more failed login.
type FailureResult struct {
	Remaining   int  // attempts left before the temporary lock
	TempLocked  bool // this failure reached the threshold
	Deactivated bool // this failure exceeded the threshold; manual reactivation required
}

// LockoutService is the per-account failed-attempt state machine. A count at
// the threshold earns a temporary cool-down; one past it deactivates the
// account until an admin intervenes. Concurrent failures for one account may
// race on the counter; the threshold is approximate by design.
type LockoutService struct {
	repo   LockoutRepository
	config LockoutConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewLockoutService(repo LockoutRepository, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *LockoutService) SetClock(now func() time.Time) {
	s.now = now
}

// RecordFailure increments the failure counter and applies the resulting
// transition. The student's in-memory fields are updated to match.
func (s *LockoutService) RecordFailure(ctx context.Context, student *models.Student) (FailureResult, error) {
	count := student.FailedAttempts + 1

	var result FailureResult
	var lockedUntil *time.Time
	isActive := student.IsActive

	switch {
	case count > s.config.MaxFailedAttempts:
		// Past the threshold the short cool-down has already been burned
		// through; stop accepting attempts until an admin reactivates.
		isActive = false
		lockedUntil = student.LockedUntil
		result = FailureResult{Remaining: 0, Deactivated: true}
	case count == s.config.MaxFailedAttempts:
		until := s.now().Add(s.config.LockDuration)
		lockedUntil = &until
		result = FailureResult{Remaining: 0, TempLocked: true}
	default:
		result = FailureResult{Remaining: s.config.MaxFailedAttempts - count}
	}

	if err := s.repo.UpdateLockoutState(ctx, student.ID, count, lockedUntil, isActive); err != nil {
		return FailureResult{}, err
	}

	student.FailedAttempts = count
	student.LockedUntil = lockedUntil
	student.IsActive = isActive

	if result.Deactivated {
		s.logger.Warn("account deactivated after repeated failures",
			slog.String("student_id", student.ID),
			slog.Int("failed_attempts", count))
	} else if result.TempLocked {
		s.logger.Warn("account temporarily locked",
			slog.String("student_id", student.ID),
			slog.Time("locked_until", *lockedUntil))
	}

	return result, nil
}

// RecordSuccess resets the counter, clears any temporary lock and stamps the
// session origin.
func (s *LockoutService) RecordSuccess(ctx context.Context, student *models.Student, ipAddress string) error {
	at := s.now()
	if err := s.repo.RecordLoginSuccess(ctx, student.ID, ipAddress, at); err != nil {
		return err
	}

	student.FailedAttempts = 0
	student.LockedUntil = nil
	student.LastLoginIP = &ipAddress
	student.LastLoginAt = &at
	return nil
}

// IsLocked reports whether the account may not authenticate right now: a
// temporary lock still in the future, or a deactivated account.
func (s *LockoutService) IsLocked(student *models.Student) bool {
	if !student.IsActive {
		return true
	}
	return student.LockedUntil != nil && s.now().Before(*student.LockedUntil)
}

// State names the account's position in the lockout state machine.
func (s *LockoutService) State(student *models.Student) string {
	switch {
	case !student.IsActive:
		return LockoutStateDeactivated
	case student.LockedUntil != nil && s.now().Before(*student.LockedUntil):
		return LockoutStateTempLocked
	case student.FailedAttempts > 0:
		return LockoutStateWarned
	default:
		return LockoutStateOK
	}
}
