package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobioye/ballotgate/internal/models"
)

func TestVoteLedgerCreatesVote(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &MockVoteStore{
		InsertFunc: func(ctx context.Context, voterID, positionID, candidateID string, castAt time.Time) (*models.Vote, error) {
			return &models.Vote{
				ID:          "vote-1",
				VoterID:     voterID,
				PositionID:  positionID,
				CandidateID: candidateID,
				CastAt:      castAt,
			}, nil
		},
	}
	ledger := NewVoteLedger(store, testLogger())
	ledger.SetClock(func() time.Time { return now })

	result, err := ledger.CastVote(context.Background(), "voter-1", "pos-1", "cand-1")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "vote-1", result.Vote.ID)
	assert.Equal(t, now, result.Vote.CastAt)
}

func TestVoteLedgerConflictIsIdempotent(t *testing.T) {
	existing := &models.Vote{ID: "vote-0", VoterID: "voter-1", PositionID: "pos-1", CandidateID: "cand-9"}
	store := &MockVoteStore{
		InsertFunc: func(ctx context.Context, voterID, positionID, candidateID string, castAt time.Time) (*models.Vote, error) {
			return nil, models.ErrConflict
		},
		GetByVoterPositionFunc: func(ctx context.Context, voterID, positionID string) (*models.Vote, error) {
			return existing, nil
		},
	}
	ledger := NewVoteLedger(store, testLogger())

	result, err := ledger.CastVote(context.Background(), "voter-1", "pos-1", "cand-1")
	require.NoError(t, err)
	assert.False(t, result.Created)
	// The surviving vote is the one that won the race, not the attempted one.
	assert.Equal(t, "cand-9", result.Vote.CandidateID)
}

func TestVoteLedgerStorageErrorFailsClosed(t *testing.T) {
	store := &MockVoteStore{
		InsertFunc: func(ctx context.Context, voterID, positionID, candidateID string, castAt time.Time) (*models.Vote, error) {
			return nil, models.ErrInternalServer
		},
	}
	ledger := NewVoteLedger(store, testLogger())

	_, err := ledger.CastVote(context.Background(), "voter-1", "pos-1", "cand-1")
	require.ErrorIs(t, err, models.ErrInternalServer)
}

// Concurrent casts for one (voter, position) slot leave exactly one created
// result, mirroring the behavior of the unique constraint under load.
func TestVoteLedgerConcurrentCastsCreateOnce(t *testing.T) {
	var mu sync.Mutex
	var winner *models.Vote

	store := &MockVoteStore{
		InsertFunc: func(ctx context.Context, voterID, positionID, candidateID string, castAt time.Time) (*models.Vote, error) {
			mu.Lock()
			defer mu.Unlock()
			if winner != nil {
				return nil, models.ErrConflict
			}
			winner = &models.Vote{ID: "vote-1", VoterID: voterID, PositionID: positionID, CandidateID: candidateID, CastAt: castAt}
			return winner, nil
		},
		GetByVoterPositionFunc: func(ctx context.Context, voterID, positionID string) (*models.Vote, error) {
			mu.Lock()
			defer mu.Unlock()
			return winner, nil
		},
	}
	ledger := NewVoteLedger(store, testLogger())

	const attempts = 16
	results := make([]*CastResult, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ledger.CastVote(context.Background(), "voter-1", "pos-1", "cand-1")
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < attempts; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].Vote)
		assert.Equal(t, "vote-1", results[i].Vote.ID)
		if results[i].Created {
			created++
		}
	}
	assert.Equal(t, 1, created)
}
