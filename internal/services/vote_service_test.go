package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobioye/ballotgate/internal/models"
	"github.com/tobioye/ballotgate/internal/ratewindow"
)

type voteServiceFixture struct {
	*voteGuardFixture
	service *VoteService
	store   *MockVoteStore
}

func newVoteServiceFixture(t *testing.T) *voteServiceFixture {
	t.Helper()
	gf := newVoteGuardFixture(t, defaultVoteGuardConfig())

	store := &MockVoteStore{
		InsertFunc: func(ctx context.Context, voterID, positionID, candidateID string, castAt time.Time) (*models.Vote, error) {
			return &models.Vote{ID: "vote-1", VoterID: voterID, PositionID: positionID, CandidateID: candidateID, CastAt: castAt}, nil
		},
	}
	ledger := NewVoteLedger(store, testLogger())

	service := NewVoteService(gf.guard, ledger, gf.attempts, gf.limiter, VoteServiceConfig{
		MinVoteInterval:      10 * time.Second,
		RapidVoteWindow:      20 * time.Second,
		SameCandidateRepeats: 2,
		SameCandidateWindow:  5 * time.Minute,
	}, testLogger(), testAuditLogger())
	service.SetClock(gf.clock)

	return &voteServiceFixture{voteGuardFixture: gf, service: service, store: store}
}

func TestVoteServiceCastRecordsSuccess(t *testing.T) {
	f := newVoteServiceFixture(t)
	ctx := context.Background()

	result, err := f.service.CastVote(ctx, eligibleVoter(), "10.0.0.1", "ua", "pos-1", "cand-1")
	require.NoError(t, err)

	assert.True(t, result.Allow)
	assert.True(t, result.Created)
	require.NotNil(t, result.Vote)

	require.Len(t, f.attempts.Recorded, 1)
	attempt := f.attempts.Recorded[0]
	assert.True(t, attempt.Success)
	assert.Equal(t, string(ReasonVoteCast), attempt.Reason)
	assert.Equal(t, f.now, attempt.AttemptTime)
	require.NotNil(t, attempt.VoterID)
	assert.Equal(t, "voter-1", *attempt.VoterID)

	// The successful cast arms the cooldown and burst windows.
	assert.Equal(t, 1, f.limiter.Count(ctx, "voter-1", ratewindow.BucketVoteCooldown, 10*time.Second))
	assert.Equal(t, 1, f.limiter.Count(ctx, "voter-1", ratewindow.BucketBurstVote, 20*time.Second))
}

func TestVoteServiceGuardRejectionRecordsReason(t *testing.T) {
	f := newVoteServiceFixture(t)
	f.votes.ExistsFunc = func(ctx context.Context, voterID, positionID string) (bool, error) {
		return true, nil
	}

	result, err := f.service.CastVote(context.Background(), eligibleVoter(), "10.0.0.1", "ua", "pos-1", "cand-1")
	require.NoError(t, err)

	assert.False(t, result.Allow)
	assert.Equal(t, ReasonAlreadyVoted, result.Reason)
	require.Len(t, f.attempts.Recorded, 1)
	assert.False(t, f.attempts.Recorded[0].Success)
	assert.Equal(t, string(ReasonAlreadyVoted), f.attempts.Recorded[0].Reason)

	// A rejected attempt must not arm the post-cast windows.
	assert.Equal(t, 0, f.limiter.Count(context.Background(), "voter-1", ratewindow.BucketVoteCooldown, 10*time.Second))
}

func TestVoteServiceImmediateSecondVoteIsIdempotentDuplicate(t *testing.T) {
	f := newVoteServiceFixture(t)
	ctx := context.Background()
	voter := eligibleVoter()

	first, err := f.service.CastVote(ctx, voter, "10.0.0.1", "ua", "pos-1", "cand-1")
	require.NoError(t, err)
	require.True(t, first.Created)

	// Storage now reports the slot as taken.
	f.votes.ExistsFunc = func(ctx context.Context, voterID, positionID string) (bool, error) {
		return true, nil
	}

	f.now = f.now.Add(time.Minute)
	second, err := f.service.CastVote(ctx, voter, "10.0.0.1", "ua", "pos-1", "cand-1")
	require.NoError(t, err)
	assert.False(t, second.Allow)
	assert.Equal(t, ReasonAlreadyVoted, second.Reason)
}

func TestVoteServiceLedgerRaceRecordsDuplicate(t *testing.T) {
	f := newVoteServiceFixture(t)
	existing := &models.Vote{ID: "vote-0", VoterID: "voter-1", PositionID: "pos-1", CandidateID: "cand-1"}
	f.store.InsertFunc = func(ctx context.Context, voterID, positionID, candidateID string, castAt time.Time) (*models.Vote, error) {
		return nil, models.ErrConflict
	}
	f.store.GetByVoterPositionFunc = func(ctx context.Context, voterID, positionID string) (*models.Vote, error) {
		return existing, nil
	}

	result, err := f.service.CastVote(context.Background(), eligibleVoter(), "10.0.0.1", "ua", "pos-1", "cand-1")
	require.NoError(t, err)

	assert.False(t, result.Allow)
	assert.Equal(t, ReasonAlreadyVoted, result.Reason)
	assert.Equal(t, "vote-0", result.Vote.ID)
	require.Len(t, f.attempts.Recorded, 1)
	assert.Equal(t, string(ReasonAlreadyVoted), f.attempts.Recorded[0].Reason)
}

func TestVoteServiceUnknownPositionLeavesNoAttemptRecord(t *testing.T) {
	f := newVoteServiceFixture(t)
	f.positions.GetPositionWithElectionFunc = func(ctx context.Context, positionID string) (*models.Position, *models.Election, error) {
		return nil, nil, models.ErrNotFound
	}

	_, err := f.service.CastVote(context.Background(), eligibleVoter(), "10.0.0.1", "ua", "pos-missing", "cand-1")
	require.ErrorIs(t, err, models.ErrNotFound)

	// A bad position reference is the caller's mistake, not an outage.
	assert.Empty(t, f.attempts.Recorded)
}

func TestVoteServiceStorageFailureRecordsNoSuccess(t *testing.T) {
	f := newVoteServiceFixture(t)
	f.store.InsertFunc = func(ctx context.Context, voterID, positionID, candidateID string, castAt time.Time) (*models.Vote, error) {
		return nil, models.ErrInternalServer
	}

	_, err := f.service.CastVote(context.Background(), eligibleVoter(), "10.0.0.1", "ua", "pos-1", "cand-1")
	require.ErrorIs(t, err, models.ErrInternalServer)

	require.Len(t, f.attempts.Recorded, 1)
	assert.False(t, f.attempts.Recorded[0].Success)
	assert.Equal(t, string(ReasonStorageError), f.attempts.Recorded[0].Reason)
}
