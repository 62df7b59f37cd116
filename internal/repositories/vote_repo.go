package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tobioye/ballotgate/internal/database"
	"github.com/tobioye/ballotgate/internal/models"
)

// VoteRepository is the write path for the ballot itself. The votes table
// carries a unique (voter_id, position_id) constraint; that constraint, not
// any application-level check, is what guarantees at most one vote per voter
// per position.
type VoteRepository struct {
	db *database.DB
}

func NewVoteRepository(db *database.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Exists reports whether a vote by the voter for the position already exists.
// Cheap pre-check only; concurrent callers can both see false.
func (r *VoteRepository) Exists(ctx context.Context, voterID, positionID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM votes WHERE voter_id = $1 AND position_id = $2)`

	var exists bool
	err := r.db.Pool.QueryRow(ctx, query, voterID, positionID).Scan(&exists)
	return exists, database.MapPostgresError(err)
}

// GetByVoterPosition returns the existing vote for a (voter, position) pair.
func (r *VoteRepository) GetByVoterPosition(ctx context.Context, voterID, positionID string) (*models.Vote, error) {
	query := `
		SELECT id, voter_id, position_id, candidate_id, cast_at
		FROM votes
		WHERE voter_id = $1 AND position_id = $2
	`

	var v models.Vote
	err := r.db.Pool.QueryRow(ctx, query, voterID, positionID).Scan(
		&v.ID, &v.VoterID, &v.PositionID, &v.CandidateID, &v.CastAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &v, nil
}

// Insert writes the vote inside a transaction. A unique-constraint violation
// surfaces as models.ErrConflict so the ledger can recover it idempotently.
func (r *VoteRepository) Insert(ctx context.Context, voterID, positionID, candidateID string, castAt time.Time) (*models.Vote, error) {
	vote := &models.Vote{
		ID:          uuid.New().String(),
		VoterID:     voterID,
		PositionID:  positionID,
		CandidateID: candidateID,
		CastAt:      castAt,
	}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO votes (id, voter_id, position_id, candidate_id, cast_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		_, err := tx.Exec(ctx, query, vote.ID, vote.VoterID, vote.PositionID, vote.CandidateID, vote.CastAt)
		return database.MapPostgresError(err)
	})
	if err != nil {
		return nil, err
	}
	return vote, nil
}
