package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tobioye/ballotgate/internal/models"
)

// VoteStore defines the transactional vote writes
type VoteStore interface {
	Insert(ctx context.Context, voterID, positionID, candidateID string, castAt time.Time) (*models.Vote, error)
	GetByVoterPosition(ctx context.Context, voterID, positionID string) (*models.Vote, error)
}

// CastResult reports the outcome of an atomic cast. Created is false when a
// concurrent or earlier vote already occupied the (voter, position) slot; the
// existing vote is returned instead of an error.
type CastResult struct {
	Vote    *models.Vote
	Created bool
}

// VoteLedger is the correctness boundary for ballot writes. The insert runs
// in a transaction against the unique (voter_id, position_id) constraint, so
// any number of concurrent casts for one slot leave exactly one row. A
// constraint violation is recovered into an idempotent "already voted"
// result; every other storage failure propagates so the caller denies the
// vote rather than guessing.
type VoteLedger struct {
	store  VoteStore
	logger *slog.Logger
	now    func() time.Time
}

func NewVoteLedger(store VoteStore, logger *slog.Logger) *VoteLedger {
	return &VoteLedger{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (l *VoteLedger) SetClock(now func() time.Time) {
	l.now = now
}

// CastVote writes the vote atomically.
func (l *VoteLedger) CastVote(ctx context.Context, voterID, positionID, candidateID string) (*CastResult, error) {
	vote, err := l.store.Insert(ctx, voterID, positionID, candidateID, l.now())
	if err == nil {
		return &CastResult{Vote: vote, Created: true}, nil
	}

	if !errors.Is(err, models.ErrConflict) {
		return nil, err
	}

	// Lost the race: someone committed first. Not an error.
	existing, lookupErr := l.store.GetByVoterPosition(ctx, voterID, positionID)
	if lookupErr != nil {
		l.logger.Error("duplicate vote lookup failed",
			slog.String("voter_id", voterID),
			slog.String("position_id", positionID),
			slog.Any("error", lookupErr))
		return nil, lookupErr
	}

	l.logger.Info("duplicate vote ignored",
		slog.String("voter_id", voterID),
		slog.String("position_id", positionID))
	return &CastResult{Vote: existing, Created: false}, nil
}
