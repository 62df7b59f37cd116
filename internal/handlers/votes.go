package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tobioye/ballotgate/internal/auth"
	"github.com/tobioye/ballotgate/internal/models"
	"github.com/tobioye/ballotgate/internal/services"
	pkghttp "github.com/tobioye/ballotgate/pkg/http"
)

// VoteServiceInterface defines the interface for the vote pipeline
type VoteServiceInterface interface {
	CastVote(ctx context.Context, voter *models.Student, ipAddress, userAgent, positionID, candidateID string) (*services.VoteResult, error)
}

// VoterFetcher loads the authenticated voter's account
type VoterFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
}

// VoteHandler handles ballot submission
type VoteHandler struct {
	service  VoteServiceInterface
	students VoterFetcher
	ipConfig *pkghttp.IPConfig
}

func NewVoteHandler(service VoteServiceInterface, students VoterFetcher, ipConfig *pkghttp.IPConfig) *VoteHandler {
	return &VoteHandler{
		service:  service,
		students: students,
		ipConfig: ipConfig,
	}
}

// CastVoteRequest represents the request body for casting a vote
type CastVoteRequest struct {
	PositionID  string `json:"position_id" validate:"required,uuid4"`
	CandidateID string `json:"candidate_id" validate:"required,uuid4"`
}

// CastVoteResponse confirms the recorded ballot
type CastVoteResponse struct {
	VoteID     string    `json:"vote_id"`
	PositionID string    `json:"position_id"`
	CastAt     time.Time `json:"cast_at"`
}

// Cast handles POST /votes
func (h *VoteHandler) Cast(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetStudentFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
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

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	result, err := h.service.CastVote(r.Context(), voter, ipAddress, userAgent, req.PositionID, req.CandidateID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Position not found")
			return
		}
		pkghttp.WriteInternalError(w, "Unable to record your vote. Please try again.")
		return
	}
	if !result.Allow {
		writeOutcome(w, result.Outcome)
		return
	}

	writeJSON(w, http.StatusCreated, CastVoteResponse{
		VoteID:     result.Vote.ID,
		PositionID: result.Vote.PositionID,
		CastAt:     result.Vote.CastAt,
	})
}
