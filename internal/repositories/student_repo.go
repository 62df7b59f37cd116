package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tobioye/ballotgate/internal/database"
	"github.com/tobioye/ballotgate/internal/models"
)

type StudentRepository struct {
	pool *pgxpool.Pool
}

func NewStudentRepository(db *database.DB) *StudentRepository {
	return &StudentRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const studentColumns = `id, matric_number, full_name, level, status, gender, role, password_hash,
	is_active, failed_attempts, locked_until, last_login_ip, last_login_at, created_at, updated_at`

// scanStudentRow handles nullable fields and populates a Student model from a database row
func scanStudentRow(scanner rowScanner) (*models.Student, error) {
	var student models.Student
	var passwordHash *string

	err := scanner.Scan(
		&student.ID, &student.MatricNumber, &student.FullName, &student.Level,
		&student.Status, &student.Gender, &student.Role, &passwordHash,
		&student.IsActive, &student.FailedAttempts, &student.LockedUntil,
		&student.LastLoginIP, &student.LastLoginAt,
		&student.CreatedAt, &student.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		student.PasswordHash = *passwordHash
	}

	return &student, nil
}

func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	return scanStudentRow(r.pool.QueryRow(ctx, query, id))
}

func (r *StudentRepository) GetByMatricNumber(ctx context.Context, matricNumber string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE matric_number = $1`, studentColumns)
	return scanStudentRow(r.pool.QueryRow(ctx, query, matricNumber))
}

func (r *StudentRepository) Create(ctx context.Context, student *models.Student) (*models.Student, error) {
	query := fmt.Sprintf(`
		INSERT INTO students (id, matric_number, full_name, level, status, gender, role, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s
	`, studentColumns)

	id := uuid.New().String()
	row := r.pool.QueryRow(ctx, query,
		id, student.MatricNumber, student.FullName, student.Level,
		student.Status, student.Gender, student.Role, student.PasswordHash, true,
	)
	return scanStudentRow(row)
}

// UpdateLockoutState persists the failed-attempt counter and the derived
// lockout fields in one write. Concurrent failed logins may race on the
// counter; the threshold is approximate by design.
func (r *StudentRepository) UpdateLockoutState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time, isActive bool) error {
	query := `
		UPDATE students
		SET failed_attempts = $2, locked_until = $3, is_active = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, failedAttempts, lockedUntil, isActive)
	return database.MapPostgresError(err)
}

// RecordLoginSuccess resets the failure counter, clears any temporary lock
// and stamps the session origin.
func (r *StudentRepository) RecordLoginSuccess(ctx context.Context, id, ipAddress string, at time.Time) error {
	query := `
		UPDATE students
		SET failed_attempts = 0, locked_until = NULL, last_login_ip = $2, last_login_at = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, ipAddress, at)
	return database.MapPostgresError(err)
}

// Reactivate is the manual admin override for a deactivated account.
func (r *StudentRepository) Reactivate(ctx context.Context, id string) error {
	query := `
		UPDATE students
		SET is_active = true, failed_attempts = 0, locked_until = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearLock removes a temporary lock without touching the active flag.
func (r *StudentRepository) ClearLock(ctx context.Context, id string) error {
	query := `
		UPDATE students
		SET locked_until = NULL, failed_attempts = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
