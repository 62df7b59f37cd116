package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tobioye/ballotgate/internal/database"
	"github.com/tobioye/ballotgate/internal/models"
)

// IPRestrictionRepository maps IP addresses to their restriction state. At
// most one row per IP; the unique index makes concurrent auto-creation a
// first-writer-wins race.
type IPRestrictionRepository struct {
	pool *pgxpool.Pool
}

func NewIPRestrictionRepository(db *database.DB) *IPRestrictionRepository {
	return &IPRestrictionRepository{pool: db.Pool}
}

const ipRestrictionColumns = `id, ip_address, is_blocked, reason, max_accounts_per_ip, created_at, updated_at`

func scanIPRestrictionRow(scanner rowScanner) (*models.IPRestriction, error) {
	var r models.IPRestriction
	err := scanner.Scan(
		&r.ID, &r.IPAddress, &r.IsBlocked, &r.Reason,
		&r.MaxAccountsPerIP, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &r, nil
}

// GetByIP returns the restriction for an IP, or ErrNotFound.
func (r *IPRestrictionRepository) GetByIP(ctx context.Context, ipAddress string) (*models.IPRestriction, error) {
	query := `SELECT ` + ipRestrictionColumns + ` FROM ip_restrictions WHERE ip_address = $1`
	return scanIPRestrictionRow(r.pool.QueryRow(ctx, query, ipAddress))
}

// IsBlocked reports whether the IP has an active block. A missing row means
// not blocked.
func (r *IPRestrictionRepository) IsBlocked(ctx context.Context, ipAddress string) (bool, error) {
	query := `SELECT is_blocked FROM ip_restrictions WHERE ip_address = $1`

	var blocked bool
	err := r.pool.QueryRow(ctx, query, ipAddress).Scan(&blocked)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return blocked, nil
}

// SetBlocked upserts the restriction with the given blocked state. Idempotent
// admin action.
func (r *IPRestrictionRepository) SetBlocked(ctx context.Context, ipAddress string, blocked bool, reason string) error {
	query := `
		INSERT INTO ip_restrictions (ip_address, is_blocked, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (ip_address)
		DO UPDATE SET is_blocked = EXCLUDED.is_blocked, reason = EXCLUDED.reason, updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.pool.Exec(ctx, query, ipAddress, blocked, reason)
	return database.MapPostgresError(err)
}

// CreateIfAbsent inserts a restriction only when no row exists for the IP.
// Returns true when this call created the row; concurrent callers race and
// exactly one wins.
func (r *IPRestrictionRepository) CreateIfAbsent(ctx context.Context, ipAddress string, blocked bool, reason string) (bool, error) {
	query := `
		INSERT INTO ip_restrictions (ip_address, is_blocked, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (ip_address) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query, ipAddress, blocked, reason)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListBlocked returns every actively blocked IP.
func (r *IPRestrictionRepository) ListBlocked(ctx context.Context) ([]*models.IPRestriction, error) {
	query := `SELECT ` + ipRestrictionColumns + ` FROM ip_restrictions WHERE is_blocked = true ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	restrictions := make([]*models.IPRestriction, 0)
	for rows.Next() {
		restriction, err := scanIPRestrictionRow(rows)
		if err != nil {
			return nil, err
		}
		restrictions = append(restrictions, restriction)
	}
	return restrictions, rows.Err()
}
