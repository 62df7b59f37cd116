package integration

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tobioye/ballotgate/internal/database"
	"github.com/tobioye/ballotgate/internal/models"
	"github.com/tobioye/ballotgate/internal/repositories"
	pkgauth "github.com/tobioye/ballotgate/pkg/auth"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase creates a PostgreSQL testcontainer, runs migrations, returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("ballotgate"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dbWrapper := &database.DB{
		Pool: pool,
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         dbWrapper,
	}, nil
}

// runMigrations executes all goose migrations
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir, err := filepath.Abs("../../migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	// Suppress goose logs
	goose.SetLogger(log.New(nil, "", 0))

	// Goose needs a stdlib DB connection
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, migrationsDir); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all data tables between tests
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"vote_attempts",
		"login_attempts",
		"votes",
		"candidates",
		"positions",
		"elections",
		"ip_restrictions",
		"students",
	}
	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// InitializeRepositories creates all repository instances from database wrapper
func InitializeRepositories(db *database.DB) (
	*repositories.StudentRepository,
	*repositories.ElectionRepository,
	*repositories.VoteRepository,
	*repositories.LoginAttemptRepository,
	*repositories.VoteAttemptRepository,
	*repositories.IPRestrictionRepository,
) {
	return repositories.NewStudentRepository(db),
		repositories.NewElectionRepository(db),
		repositories.NewVoteRepository(db),
		repositories.NewLoginAttemptRepository(db),
		repositories.NewVoteAttemptRepository(db),
		repositories.NewIPRestrictionRepository(db)
}

// SeedStudent inserts a student account with a bcrypt-hashed password
func SeedStudent(ctx context.Context, pool *pgxpool.Pool, matricNumber, password string, level int, gender, role string) (*models.Student, error) {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	student := &models.Student{
		ID:           uuid.New().String(),
		MatricNumber: matricNumber,
		FullName:     "Test Student " + matricNumber,
		Level:        level,
		Status:       models.StatusActive,
		Gender:       gender,
		Role:         role,
		IsActive:     true,
	}

	query := `
		INSERT INTO students (id, matric_number, full_name, level, status, gender, role, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
	`
	_, err = pool.Exec(ctx, query,
		student.ID, student.MatricNumber, student.FullName, student.Level,
		student.Status, student.Gender, student.Role, hash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to seed student: %w", err)
	}
	return student, nil
}

// SeededElection bundles the rows created by SeedOpenElection
type SeededElection struct {
	Election  *models.Election
	Position  *models.Position
	Candidate *models.Candidate
}

// SeedOpenElection inserts a currently open general election with one
// position and one candidate backed by its own student row
func SeedOpenElection(ctx context.Context, pool *pgxpool.Pool) (*SeededElection, error) {
	now := time.Now().UTC()
	election := &models.Election{
		ID:        uuid.New().String(),
		Name:      "Test Election",
		Type:      models.ElectionTypeGeneral,
		StartDate: now.Add(-1 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
		IsActive:  true,
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO elections (id, name, type, min_voter_level, allowed_status, start_date, end_date, is_active)
		VALUES ($1, $2, $3, 0, '', $4, $5, true)
	`, election.ID, election.Name, election.Type, election.StartDate, election.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to seed election: %w", err)
	}

	position := &models.Position{
		ID:         uuid.New().String(),
		ElectionID: election.ID,
		Name:       "President",
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO positions (id, election_id, name) VALUES ($1, $2, $3)
	`, position.ID, position.ElectionID, position.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to seed position: %w", err)
	}

	contestant, err := SeedStudent(ctx, pool, uniqueMatric("CND"), "Candidate#Pass1", 400, "female", models.RoleStudent)
	if err != nil {
		return nil, err
	}

	candidate := &models.Candidate{
		ID:         uuid.New().String(),
		StudentID:  contestant.ID,
		PositionID: position.ID,
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO candidates (id, student_id, position_id) VALUES ($1, $2, $3)
	`, candidate.ID, candidate.StudentID, candidate.PositionID)
	if err != nil {
		return nil, fmt.Errorf("failed to seed candidate: %w", err)
	}

	return &SeededElection{Election: election, Position: position, Candidate: candidate}, nil
}
