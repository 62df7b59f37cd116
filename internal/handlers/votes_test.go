package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tobioye/ballotgate/internal/handlers"
	"github.com/tobioye/ballotgate/internal/models"
	"github.com/tobioye/ballotgate/internal/services"
)

const (
	testPositionID  = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	testCandidateID = "9b2d7c1e-5a3f-4d2b-8e1a-6f4c3b2a1d0e"
)

func testVoter() *models.Student {
	return &models.Student{
		ID:           "student-1",
		MatricNumber: "CSC/2021/001",
		FullName:     "Ada Obi",
		IsActive:     true,
	}
}

func newVoteRequest(t *testing.T) *http.Request {
	req := handlers.NewTestRequest(t, "POST", "/votes", handlers.CastVoteRequest{
		PositionID:  testPositionID,
		CandidateID: testCandidateID,
	})
	return handlers.WithAuthContext(req, "student-1", "CSC/2021/001")
}

func TestCastVote_Success(t *testing.T) {
	castAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mockVotes := &handlers.MockVoteService{
		CastVoteFunc: func(ctx context.Context, voter *models.Student, ipAddress, userAgent, positionID, candidateID string) (*services.VoteResult, error) {
			assert.Equal(t, "student-1", voter.ID)
			assert.Equal(t, testPositionID, positionID)
			assert.Equal(t, testCandidateID, candidateID)
			return &services.VoteResult{
				Outcome: allowedOutcome(),
				Vote: &models.Vote{
					ID:          "vote-1",
					VoterID:     voter.ID,
					PositionID:  positionID,
					CandidateID: candidateID,
					CastAt:      castAt,
				},
				Created: true,
			}, nil
		},
	}
	mockStudents := &handlers.MockStudentStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Student, error) {
			return testVoter(), nil
		},
	}

	handler := handlers.NewVoteHandler(mockVotes, mockStudents, nil)
	w := httptest.NewRecorder()
	handler.Cast(w, newVoteRequest(t))

	var resp handlers.CastVoteResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "vote-1", resp.VoteID)
	assert.Equal(t, testPositionID, resp.PositionID)
}

func TestCastVote_Unauthenticated(t *testing.T) {
	handler := handlers.NewVoteHandler(&handlers.MockVoteService{}, &handlers.MockStudentStore{}, nil)

	req := handlers.NewTestRequest(t, "POST", "/votes", handlers.CastVoteRequest{
		PositionID:  testPositionID,
		CandidateID: testCandidateID,
	})

	w := httptest.NewRecorder()
	handler.Cast(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestCastVote_ValidationFailures(t *testing.T) {
	handler := handlers.NewVoteHandler(&handlers.MockVoteService{}, &handlers.MockStudentStore{}, nil)

	tests := []struct {
		name string
		body handlers.CastVoteRequest
	}{
		{name: "missing position", body: handlers.CastVoteRequest{CandidateID: testCandidateID}},
		{name: "missing candidate", body: handlers.CastVoteRequest{PositionID: testPositionID}},
		{name: "malformed position id", body: handlers.CastVoteRequest{PositionID: "not-a-uuid", CandidateID: testCandidateID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := handlers.NewTestRequest(t, "POST", "/votes", tt.body)
			req = handlers.WithAuthContext(req, "student-1", "CSC/2021/001")

			w := httptest.NewRecorder()
			handler.Cast(w, req)

			handlers.AssertErrorResponse(t, w, 400, "bad_request")
		})
	}
}

func TestCastVote_GuardRejections(t *testing.T) {
	tests := []struct {
		name       string
		outcome    services.Outcome
		wantStatus int
		wantError  string
	}{
		{
			name: "cooldown",
			outcome: services.Outcome{
				Reason:     services.ReasonTooSoon,
				Message:    "Please wait before voting again.",
				StatusHint: http.StatusTooManyRequests,
				Transient:  true,
			},
			wantStatus: 429,
			wantError:  "TOO_SOON",
		},
		{
			name: "already voted",
			outcome: services.Outcome{
				Reason:     services.ReasonAlreadyVoted,
				Message:    "You have already voted for this position",
				StatusHint: http.StatusConflict,
			},
			wantStatus: 409,
			wantError:  "ALREADY_VOTED",
		},
		{
			name: "election closed",
			outcome: services.Outcome{
				Reason:     services.ReasonElectionNotActive,
				Message:    "Voting is not currently open.",
				StatusHint: http.StatusForbidden,
			},
			wantStatus: 403,
			wantError:  "ELECTION_NOT_ACTIVE",
		},
		{
			name: "not eligible",
			outcome: services.Outcome{
				Reason:     services.ReasonNotEligible,
				Message:    "You are not eligible to vote in this election.",
				StatusHint: http.StatusForbidden,
			},
			wantStatus: 403,
			wantError:  "NOT_ELIGIBLE",
		},
	}

	mockStudents := &handlers.MockStudentStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Student, error) {
			return testVoter(), nil
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockVotes := &handlers.MockVoteService{
				CastVoteFunc: func(ctx context.Context, voter *models.Student, ipAddress, userAgent, positionID, candidateID string) (*services.VoteResult, error) {
					return &services.VoteResult{Outcome: tt.outcome}, nil
				},
			}

			handler := handlers.NewVoteHandler(mockVotes, mockStudents, nil)
			w := httptest.NewRecorder()
			handler.Cast(w, newVoteRequest(t))

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantError)
		})
	}
}

func TestCastVote_UnknownPosition(t *testing.T) {
	mockVotes := &handlers.MockVoteService{
		CastVoteFunc: func(ctx context.Context, voter *models.Student, ipAddress, userAgent, positionID, candidateID string) (*services.VoteResult, error) {
			return nil, models.ErrNotFound
		},
	}
	mockStudents := &handlers.MockStudentStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Student, error) {
			return testVoter(), nil
		},
	}

	handler := handlers.NewVoteHandler(mockVotes, mockStudents, nil)
	w := httptest.NewRecorder()
	handler.Cast(w, newVoteRequest(t))

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestCastVote_ServiceError(t *testing.T) {
	mockVotes := &handlers.MockVoteService{
		CastVoteFunc: func(ctx context.Context, voter *models.Student, ipAddress, userAgent, positionID, candidateID string) (*services.VoteResult, error) {
			return nil, models.ErrInternalServer
		},
	}
	mockStudents := &handlers.MockStudentStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Student, error) {
			return testVoter(), nil
		},
	}

	handler := handlers.NewVoteHandler(mockVotes, mockStudents, nil)
	w := httptest.NewRecorder()
	handler.Cast(w, newVoteRequest(t))

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}
