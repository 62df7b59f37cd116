package background

import (
	"context"
	"log/slog"
	"time"
)

// AttemptPurger deletes attempt rows older than a cutoff and reports how many
// rows went away.
type AttemptPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper drops expired entries from an in-process store.
type Sweeper interface {
	Sweep()
}

// CleanupManager periodically purges aged attempt records and expired rate
// window entries. Attempt rows feed the monitoring reports, so they are kept
// for the retention period and no longer.
type CleanupManager struct {
	loginAttempts AttemptPurger
	voteAttempts  AttemptPurger
	sweeper       Sweeper // nil when the rate window store lives in Redis
	retention     time.Duration
	logger        *slog.Logger
	interval      time.Duration
	stopCh        chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	loginAttempts AttemptPurger,
	voteAttempts AttemptPurger,
	sweeper Sweeper,
	retention time.Duration,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		loginAttempts: loginAttempts,
		voteAttempts:  voteAttempts,
		sweeper:       sweeper,
		retention:     retention,
		logger:        logger,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup purges attempt rows past retention and sweeps the rate windows
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-cm.retention)

	loginRows, err := cm.loginAttempts.DeleteOlderThan(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to purge login attempts", slog.Any("error", err))
	}

	voteRows, err := cm.voteAttempts.DeleteOlderThan(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to purge vote attempts", slog.Any("error", err))
	}

	if cm.sweeper != nil {
		cm.sweeper.Sweep()
	}

	if loginRows > 0 || voteRows > 0 {
		cm.logger.Info("attempt log cleanup completed",
			slog.Int64("login_rows_deleted", loginRows),
			slog.Int64("vote_rows_deleted", voteRows))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
