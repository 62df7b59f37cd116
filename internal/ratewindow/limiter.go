package ratewindow

import (
	"context"
	"log/slog"
	"time"
)

// Bucket names used across the service. Each pairs with its own limit and
// window from config.
const (
	BucketGeneral       = "general"
	BucketAuth          = "auth"
	BucketVoteCooldown  = "vote_cooldown"
	BucketBurstVote     = "burst_vote"
	BucketSameCandidate = "same_candidate"
)

// Limiter counts recent timestamps per (subject, bucket) key in a Store.
// Store failures fail open: the limiter is a deterrent, and an unavailable
// cache must not lock out legitimate voters.
type Limiter struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewLimiter(store Store, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

func windowKey(subject, bucket string) string {
	return bucket + ":" + subject
}

// Allow reports whether the subject is under limit for the bucket. When under
// limit the current timestamp is recorded; when at or over limit nothing is
// recorded and false is returned.
func (l *Limiter) Allow(ctx context.Context, subject, bucket string, limit int, window time.Duration) bool {
	now := l.now()
	stamps, err := l.fresh(ctx, subject, bucket, window, now)
	if err != nil {
		return true
	}

	if len(stamps) >= limit {
		return false
	}

	stamps = append(stamps, now)
	if err := l.store.Set(ctx, windowKey(subject, bucket), stamps, window); err != nil {
		l.logger.Error("rate window write failed",
			slog.String("bucket", bucket),
			slog.Any("error", err))
	}
	return true
}

// Count returns how many events the subject has in the bucket's window
// without recording a new one.
func (l *Limiter) Count(ctx context.Context, subject, bucket string, window time.Duration) int {
	stamps, err := l.fresh(ctx, subject, bucket, window, l.now())
	if err != nil {
		return 0
	}
	return len(stamps)
}

// Record appends the current timestamp unconditionally. Used for observations
// that are counted but never gate the recording itself, like the
// same-candidate repeat flag.
func (l *Limiter) Record(ctx context.Context, subject, bucket string, window time.Duration) {
	now := l.now()
	stamps, err := l.fresh(ctx, subject, bucket, window, now)
	if err != nil {
		return
	}

	stamps = append(stamps, now)
	if err := l.store.Set(ctx, windowKey(subject, bucket), stamps, window); err != nil {
		l.logger.Error("rate window write failed",
			slog.String("bucket", bucket),
			slog.Any("error", err))
	}
}

// Reset clears the subject's window for a bucket. Admin override.
func (l *Limiter) Reset(ctx context.Context, subject, bucket string) error {
	return l.store.Delete(ctx, windowKey(subject, bucket))
}

// fresh loads the window and keeps only timestamps inside [now-window, now].
// The lower bound is inclusive: a stamp exactly one window old still counts.
func (l *Limiter) fresh(ctx context.Context, subject, bucket string, window time.Duration, now time.Time) ([]time.Time, error) {
	stamps, err := l.store.Get(ctx, windowKey(subject, bucket))
	if err != nil {
		l.logger.Error("rate window read failed",
			slog.String("bucket", bucket),
			slog.Any("error", err))
		return nil, err
	}

	cutoff := now.Add(-window)
	kept := stamps[:0]
	for _, ts := range stamps {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept, nil
}
