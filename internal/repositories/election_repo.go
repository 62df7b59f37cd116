package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tobioye/ballotgate/internal/database"
	"github.com/tobioye/ballotgate/internal/models"
)

type ElectionRepository struct {
	pool *pgxpool.Pool
}

func NewElectionRepository(db *database.DB) *ElectionRepository {
	return &ElectionRepository{pool: db.Pool}
}

const electionColumns = `id, name, type, min_voter_level, allowed_status, start_date, end_date, is_active`

func scanElectionRow(scanner rowScanner) (*models.Election, error) {
	var e models.Election
	var minLevel *int
	var allowedStatus *string

	err := scanner.Scan(
		&e.ID, &e.Name, &e.Type, &minLevel, &allowedStatus,
		&e.StartDate, &e.EndDate, &e.IsActive,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if minLevel != nil {
		e.MinVoterLevel = *minLevel
	}
	if allowedStatus != nil {
		e.AllowedStatus = *allowedStatus
	}
	return &e, nil
}

func (r *ElectionRepository) GetByID(ctx context.Context, id string) (*models.Election, error) {
	query := fmt.Sprintf(`SELECT %s FROM elections WHERE id = $1`, electionColumns)
	return scanElectionRow(r.pool.QueryRow(ctx, query, id))
}

// GetActive returns the election that is flagged active and whose window
// contains the current database time.
func (r *ElectionRepository) GetActive(ctx context.Context) (*models.Election, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM elections
		WHERE is_active = true AND start_date <= CURRENT_TIMESTAMP AND end_date >= CURRENT_TIMESTAMP
		ORDER BY start_date DESC
		LIMIT 1
	`, electionColumns)
	return scanElectionRow(r.pool.QueryRow(ctx, query))
}

// GetPositionWithElection loads a position and its parent election in one
// round trip.
func (r *ElectionRepository) GetPositionWithElection(ctx context.Context, positionID string) (*models.Position, *models.Election, error) {
	query := `
		SELECT p.id, p.election_id, p.name, p.gender_restriction,
		       e.id, e.name, e.type, e.min_voter_level, e.allowed_status, e.start_date, e.end_date, e.is_active
		FROM positions p
		JOIN elections e ON e.id = p.election_id
		WHERE p.id = $1
	`

	var p models.Position
	var e models.Election
	var minLevel *int
	var allowedStatus *string

	err := r.pool.QueryRow(ctx, query, positionID).Scan(
		&p.ID, &p.ElectionID, &p.Name, &p.GenderRestriction,
		&e.ID, &e.Name, &e.Type, &minLevel, &allowedStatus,
		&e.StartDate, &e.EndDate, &e.IsActive,
	)
	if err != nil {
		return nil, nil, database.MapPostgresError(err)
	}

	if minLevel != nil {
		e.MinVoterLevel = *minLevel
	}
	if allowedStatus != nil {
		e.AllowedStatus = *allowedStatus
	}
	return &p, &e, nil
}

// ListPositions returns all positions of an election.
func (r *ElectionRepository) ListPositions(ctx context.Context, electionID string) ([]*models.Position, error) {
	query := `SELECT id, election_id, name, gender_restriction FROM positions WHERE election_id = $1 ORDER BY name`

	rows, err := r.pool.Query(ctx, query, electionID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	positions := make([]*models.Position, 0)
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.ID, &p.ElectionID, &p.Name, &p.GenderRestriction); err != nil {
			return nil, database.MapPostgresError(err)
		}
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

// ListCandidates returns the nominated candidates of a position joined with
// their student records, so eligibility filters can run without extra reads.
func (r *ElectionRepository) ListCandidates(ctx context.Context, positionID string) ([]*models.Candidate, error) {
	query := `
		SELECT c.id, c.student_id, c.position_id, c.bio, c.created_at,
		       s.full_name, s.gender, s.level, s.status
		FROM candidates c
		JOIN students s ON s.id = c.student_id
		WHERE c.position_id = $1
		ORDER BY s.full_name
	`

	rows, err := r.pool.Query(ctx, query, positionID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	candidates := make([]*models.Candidate, 0)
	for rows.Next() {
		var c models.Candidate
		err := rows.Scan(
			&c.ID, &c.StudentID, &c.PositionID, &c.Bio, &c.CreatedAt,
			&c.FullName, &c.Gender, &c.Level, &c.Status,
		)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		candidates = append(candidates, &c)
	}
	return candidates, rows.Err()
}

// GetCandidate returns one candidate joined with its student record.
func (r *ElectionRepository) GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error) {
	query := `
		SELECT c.id, c.student_id, c.position_id, c.bio, c.created_at,
		       s.full_name, s.gender, s.level, s.status
		FROM candidates c
		JOIN students s ON s.id = c.student_id
		WHERE c.id = $1
	`

	var c models.Candidate
	err := r.pool.QueryRow(ctx, query, candidateID).Scan(
		&c.ID, &c.StudentID, &c.PositionID, &c.Bio, &c.CreatedAt,
		&c.FullName, &c.Gender, &c.Level, &c.Status,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &c, nil
}

// Results aggregates vote counts per candidate grouped by position for one
// election, highest count first within each position.
func (r *ElectionRepository) Results(ctx context.Context, electionID string) ([]models.PositionResult, error) {
	query := `
		SELECT p.id, p.name, c.id, s.id, s.full_name, COUNT(v.id) AS vote_count
		FROM votes v
		JOIN positions p ON p.id = v.position_id
		JOIN candidates c ON c.id = v.candidate_id
		JOIN students s ON s.id = c.student_id
		WHERE p.election_id = $1
		GROUP BY p.id, p.name, c.id, s.id, s.full_name
		ORDER BY p.name, vote_count DESC
	`

	rows, err := r.pool.Query(ctx, query, electionID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	results := make([]models.PositionResult, 0)
	index := make(map[string]int)

	for rows.Next() {
		var positionID, positionName string
		var cr models.CandidateResult
		if err := rows.Scan(&positionID, &positionName, &cr.CandidateID, &cr.StudentID, &cr.StudentName, &cr.VoteCount); err != nil {
			return nil, database.MapPostgresError(err)
		}

		i, ok := index[positionID]
		if !ok {
			results = append(results, models.PositionResult{
				PositionID:   positionID,
				PositionName: positionName,
				Candidates:   []models.CandidateResult{},
			})
			i = len(results) - 1
			index[positionID] = i
		}
		results[i].Candidates = append(results[i].Candidates, cr)
	}
	return results, rows.Err()
}
