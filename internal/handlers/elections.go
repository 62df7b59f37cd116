package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tobioye/ballotgate/internal/auth"
	"github.com/tobioye/ballotgate/internal/models"
	pkghttp "github.com/tobioye/ballotgate/pkg/http"
)

// ElectionServiceInterface defines the interface for election reads
type ElectionServiceInterface interface {
	Active(ctx context.Context) (*models.Election, error)
	Positions(ctx context.Context, electionID string) ([]*models.Position, error)
	Results(ctx context.Context, electionID string, isAdmin bool) ([]models.PositionResult, error)
}

// EligibilityServiceInterface filters candidates to what the voter may choose
type EligibilityServiceInterface interface {
	EligibleCandidates(ctx context.Context, voter *models.Student, position *models.Position, election *models.Election) ([]*models.Candidate, error)
}

// PositionFetcher loads a position together with its parent election
type PositionFetcher interface {
	GetPositionWithElection(ctx context.Context, positionID string) (*models.Position, *models.Election, error)
}

// ElectionHandler serves election, position and candidate reads
type ElectionHandler struct {
	elections   ElectionServiceInterface
	eligibility EligibilityServiceInterface
	positions   PositionFetcher
	students    VoterFetcher
}

func NewElectionHandler(elections ElectionServiceInterface, eligibility EligibilityServiceInterface, positions PositionFetcher, students VoterFetcher) *ElectionHandler {
	return &ElectionHandler{
		elections:   elections,
		eligibility: eligibility,
		positions:   positions,
		students:    students,
	}
}

// ElectionResponse represents an election in API responses
type ElectionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
}

// PositionResponse represents a contested position
type PositionResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ElectionID string `json:"election_id"`
}

// CandidateResponse represents a candidate the voter may choose
type CandidateResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Level    int    `json:"level"`
}

// Active handles GET /elections/active
func (h *ElectionHandler) Active(w http.ResponseWriter, r *http.Request) {
	election, err := h.elections.Active(r.Context())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "No active election")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toElectionResponse(election))
}

// Positions handles GET /elections/{electionID}/positions
func (h *ElectionHandler) Positions(w http.ResponseWriter, r *http.Request) {
	electionID := chi.URLParam(r, "electionID")

	positions, err := h.elections.Positions(r.Context(), electionID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := make([]PositionResponse, 0, len(positions))
	for _, p := range positions {
		resp = append(resp, PositionResponse{
			ID:         p.ID,
			Name:       p.Name,
			ElectionID: p.ElectionID,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Results handles GET /elections/{electionID}/results. Tallies stay embargoed
// until the election closes; admins can read them early.
func (h *ElectionHandler) Results(w http.ResponseWriter, r *http.Request) {
	electionID := chi.URLParam(r, "electionID")

	isAdmin := false
	if claims := auth.GetStudentFromContext(r); claims != nil {
		student, err := h.students.GetByID(r.Context(), claims.StudentID)
		if err == nil && student.Role == models.RoleAdmin {
			isAdmin = true
		}
	}

	results, err := h.elections.Results(r.Context(), electionID, isAdmin)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Election not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Results are not available until the election closes")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// Candidates handles GET /positions/{positionID}/candidates. The list is
// filtered to candidates the authenticated voter is eligible to vote for.
func (h *ElectionHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetStudentFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	voter, err := h.students.GetByID(r.Context(), claims.StudentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	positionID := chi.URLParam(r, "positionID")
	position, election, err := h.positions.GetPositionWithElection(r.Context(), positionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Position not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	candidates, err := h.eligibility.EligibleCandidates(r.Context(), voter, position, election)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := make([]CandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		resp = append(resp, CandidateResponse{
			ID:       c.ID,
			FullName: c.FullName,
			Level:    c.Level,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func toElectionResponse(e *models.Election) ElectionResponse {
	return ElectionResponse{
		ID:        e.ID,
		Name:      e.Name,
		StartDate: e.StartDate,
		EndDate:   e.EndDate,
		IsActive:  e.IsActive,
	}
}
