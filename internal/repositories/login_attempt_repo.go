package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tobioye/ballotgate/internal/database"
	"github.com/tobioye/ballotgate/internal/models"
)

// LoginAttemptRepository is the append-only attempt log for authentication.
// Queries are bounded to a recent window; an external retention job purges
// older rows.
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// RecordAttempt appends one login attempt. Called exactly once per evaluated
// login, whatever the outcome.
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (ip_address, user_agent, matric_number, success, failure_reason, expires_at, attempt_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.MatricNumber,
		attempt.Success,
		attempt.FailureReason,
		attempt.ExpiresAt,
		attempt.AttemptTime,
	)
	return database.MapPostgresError(err)
}

// CountFailedByIP returns the number of failed attempts from an IP since the
// given time (inclusive).
func (r *LoginAttemptRepository) CountFailedByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND success = false AND attempt_time >= $2
	`
	var count int
	err := r.pool.QueryRow(ctx, query, ipAddress, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// CountDistinctIdentifiersByIP returns how many distinct matric numbers have
// attempted login from an IP since the given time. A high count is the
// credential-stuffing signature.
func (r *LoginAttemptRepository) CountDistinctIdentifiersByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(DISTINCT matric_number) FROM login_attempts
		WHERE ip_address = $1 AND matric_number IS NOT NULL AND attempt_time >= $2
	`
	var count int
	err := r.pool.QueryRow(ctx, query, ipAddress, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// CountDistinctSuccessfulAccountsByIP returns how many distinct accounts have
// logged in successfully from an IP since the given time.
func (r *LoginAttemptRepository) CountDistinctSuccessfulAccountsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(DISTINCT matric_number) FROM login_attempts
		WHERE ip_address = $1 AND success = true AND matric_number IS NOT NULL AND attempt_time >= $2
	`
	var count int
	err := r.pool.QueryRow(ctx, query, ipAddress, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// ListMultiAccountIPs returns IPs from which more than maxAccounts distinct
// accounts logged in successfully since the given time, with their counts.
func (r *LoginAttemptRepository) ListMultiAccountIPs(ctx context.Context, since time.Time, maxAccounts int) (map[string]int, error) {
	query := `
		SELECT ip_address, COUNT(DISTINCT matric_number) AS accounts
		FROM login_attempts
		WHERE success = true AND matric_number IS NOT NULL AND attempt_time >= $1
		GROUP BY ip_address
		HAVING COUNT(DISTINCT matric_number) > $2
	`
	rows, err := r.pool.Query(ctx, query, since, maxAccounts)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var ip string
		var count int
		if err := rows.Scan(&ip, &count); err != nil {
			return nil, database.MapPostgresError(err)
		}
		result[ip] = count
	}
	return result, rows.Err()
}

// ListBruteForceIPs returns IPs with more than maxFailed failed attempts
// since the given time.
func (r *LoginAttemptRepository) ListBruteForceIPs(ctx context.Context, since time.Time, maxFailed int) (map[string]int, error) {
	query := `
		SELECT ip_address, COUNT(*) AS failures
		FROM login_attempts
		WHERE success = false AND attempt_time >= $1
		GROUP BY ip_address
		HAVING COUNT(*) > $2
	`
	rows, err := r.pool.Query(ctx, query, since, maxFailed)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var ip string
		var count int
		if err := rows.Scan(&ip, &count); err != nil {
			return nil, database.MapPostgresError(err)
		}
		result[ip] = count
	}
	return result, rows.Err()
}

// DeleteOlderThan purges attempts past the retention horizon.
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempt_time < $1`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
