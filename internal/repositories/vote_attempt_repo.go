package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tobioye/ballotgate/internal/database"
	"github.com/tobioye/ballotgate/internal/models"
)

// VoteAttemptRepository is the append-only attempt log for vote evaluations.
type VoteAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewVoteAttemptRepository(db *database.DB) *VoteAttemptRepository {
	return &VoteAttemptRepository{pool: db.Pool}
}

// RecordAttempt appends one vote attempt, pass or fail.
func (r *VoteAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.VoteAttempt) error {
	query := `
		INSERT INTO vote_attempts (voter_id, ip_address, user_agent, position_id, success, reason, attempt_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		attempt.VoterID,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.PositionID,
		attempt.Success,
		attempt.Reason,
		attempt.AttemptTime,
	)
	return database.MapPostgresError(err)
}

// CountSuccessfulSince returns how many successful vote attempts the voter
// has made since the given time.
func (r *VoteAttemptRepository) CountSuccessfulSince(ctx context.Context, voterID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM vote_attempts
		WHERE voter_id = $1 AND success = true AND attempt_time >= $2
	`
	var count int
	err := r.pool.QueryRow(ctx, query, voterID, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// LastSuccessfulVoteTime returns when the voter last cast a vote, or nil.
func (r *VoteAttemptRepository) LastSuccessfulVoteTime(ctx context.Context, voterID string) (*time.Time, error) {
	query := `
		SELECT attempt_time FROM vote_attempts
		WHERE voter_id = $1 AND success = true
		ORDER BY attempt_time DESC
		LIMIT 1
	`
	var at time.Time
	err := r.pool.QueryRow(ctx, query, voterID).Scan(&at)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &at, nil
}

// ExistsOtherSuccessfulVoterFromIP reports whether a different account has a
// successful vote attempt from the same IP since the given time. Input to the
// one-account-per-IP vote policy.
func (r *VoteAttemptRepository) ExistsOtherSuccessfulVoterFromIP(ctx context.Context, ipAddress, voterID string, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM vote_attempts
			WHERE ip_address = $1 AND voter_id IS NOT NULL AND voter_id <> $2
			  AND success = true AND attempt_time >= $3
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, ipAddress, voterID, since).Scan(&exists)
	return exists, database.MapPostgresError(err)
}

// IPViolator is one row of the multi-account voting report: an IP from which
// more than one distinct account cast votes, with the account that voted
// first from it.
type IPViolator struct {
	IPAddress       string  `json:"ip_address"`
	DistinctVoters  int     `json:"distinct_voters"`
	InitiatorID     *string `json:"initiator_id"`
	InitiatorName   *string `json:"initiator_name"`
	InitiatorMatric *string `json:"initiator_matric"`
}

// ListIPViolators returns IPs with more than one distinct successful voter
// since the given time, most shared first.
func (r *VoteAttemptRepository) ListIPViolators(ctx context.Context, since time.Time) ([]IPViolator, error) {
	query := `
		SELECT va.ip_address,
		       COUNT(DISTINCT va.voter_id) AS distinct_voters,
		       first_votes.voter_id, s.full_name, s.matric_number
		FROM vote_attempts va
		LEFT JOIN LATERAL (
			SELECT voter_id FROM vote_attempts
			WHERE ip_address = va.ip_address AND success = true
			  AND voter_id IS NOT NULL AND attempt_time >= $1
			ORDER BY attempt_time ASC
			LIMIT 1
		) first_votes ON true
		LEFT JOIN students s ON s.id = first_votes.voter_id
		WHERE va.success = true AND va.voter_id IS NOT NULL AND va.attempt_time >= $1
		GROUP BY va.ip_address, first_votes.voter_id, s.full_name, s.matric_number
		HAVING COUNT(DISTINCT va.voter_id) > 1
		ORDER BY distinct_voters DESC
	`
	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	violators := make([]IPViolator, 0)
	for rows.Next() {
		var v IPViolator
		if err := rows.Scan(&v.IPAddress, &v.DistinctVoters, &v.InitiatorID, &v.InitiatorName, &v.InitiatorMatric); err != nil {
			return nil, database.MapPostgresError(err)
		}
		violators = append(violators, v)
	}
	return violators, rows.Err()
}

// ListRapidVoters returns voter IDs with more than maxVotes successful
// attempts since the given time. Report input for the monitoring sweep.
func (r *VoteAttemptRepository) ListRapidVoters(ctx context.Context, since time.Time, maxVotes int) (map[string]int, error) {
	query := `
		SELECT voter_id, COUNT(*) AS votes
		FROM vote_attempts
		WHERE success = true AND voter_id IS NOT NULL AND attempt_time >= $1
		GROUP BY voter_id
		HAVING COUNT(*) > $2
	`
	rows, err := r.pool.Query(ctx, query, since, maxVotes)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var voterID string
		var count int
		if err := rows.Scan(&voterID, &count); err != nil {
			return nil, database.MapPostgresError(err)
		}
		result[voterID] = count
	}
	return result, rows.Err()
}

// DeleteOlderThan purges attempts past the retention horizon.
func (r *VoteAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM vote_attempts WHERE attempt_time < $1`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
