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
)

func sampleElection() *models.Election {
	return &models.Election{
		ID:        "election-1",
		Name:      "Student Union Executive Election",
		Type:      models.ElectionTypeGeneral,
		StartDate: time.Date(2026, 3, 9, 6, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 11, 22, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
}

func newElectionHandler(elections *handlers.MockElectionService, eligibility *handlers.MockEligibilityService, positions *handlers.MockPositionStore, students *handlers.MockStudentStore) *handlers.ElectionHandler {
	if elections == nil {
		elections = &handlers.MockElectionService{}
	}
	if eligibility == nil {
		eligibility = &handlers.MockEligibilityService{}
	}
	if positions == nil {
		positions = &handlers.MockPositionStore{}
	}
	if students == nil {
		students = &handlers.MockStudentStore{}
	}
	return handlers.NewElectionHandler(elections, eligibility, positions, students)
}

func TestActiveElection_Success(t *testing.T) {
	mockElections := &handlers.MockElectionService{
		ActiveFunc: func(ctx context.Context) (*models.Election, error) {
			return sampleElection(), nil
		},
	}

	handler := newElectionHandler(mockElections, nil, nil, nil)
	req := httptest.NewRequest("GET", "/elections/active", nil)
	w := httptest.NewRecorder()
	handler.Active(w, req)

	var resp handlers.ElectionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "election-1", resp.ID)
	assert.Equal(t, "Student Union Executive Election", resp.Name)
	assert.True(t, resp.IsActive)
}

func TestActiveElection_NoneRunning(t *testing.T) {
	mockElections := &handlers.MockElectionService{
		ActiveFunc: func(ctx context.Context) (*models.Election, error) {
			return nil, models.ErrNotFound
		},
	}

	handler := newElectionHandler(mockElections, nil, nil, nil)
	req := httptest.NewRequest("GET", "/elections/active", nil)
	w := httptest.NewRecorder()
	handler.Active(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestElectionPositions(t *testing.T) {
	mockElections := &handlers.MockElectionService{
		PositionsFunc: func(ctx context.Context, electionID string) ([]*models.Position, error) {
			assert.Equal(t, "election-1", electionID)
			return []*models.Position{
				{ID: "pos-1", ElectionID: "election-1", Name: "President"},
				{ID: "pos-2", ElectionID: "election-1", Name: "Treasurer"},
			}, nil
		},
	}

	handler := newElectionHandler(mockElections, nil, nil, nil)
	req := httptest.NewRequest("GET", "/elections/election-1/positions", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"electionID": "election-1"})
	w := httptest.NewRecorder()
	handler.Positions(w, req)

	var resp []handlers.PositionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Len(t, resp, 2)
	assert.Equal(t, "President", resp[0].Name)
}

func TestElectionResults_EmbargoedForStudents(t *testing.T) {
	mockElections := &handlers.MockElectionService{
		ResultsFunc: func(ctx context.Context, electionID string, isAdmin bool) ([]models.PositionResult, error) {
			assert.False(t, isAdmin)
			return nil, models.ErrForbidden
		},
	}
	mockStudents := &handlers.MockStudentStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Student, error) {
			return &models.Student{ID: id, Role: models.RoleStudent}, nil
		},
	}

	handler := newElectionHandler(mockElections, nil, nil, mockStudents)
	req := httptest.NewRequest("GET", "/elections/election-1/results", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"electionID": "election-1"})
	req = handlers.WithAuthContext(req, "student-1", "CSC/2021/001")
	w := httptest.NewRecorder()
	handler.Results(w, req)

	handlers.AssertErrorResponse(t, w, 403, "forbidden")
}

func TestElectionResults_AdminBypassesEmbargo(t *testing.T) {
	mockElections := &handlers.MockElectionService{
		ResultsFunc: func(ctx context.Context, electionID string, isAdmin bool) ([]models.PositionResult, error) {
			assert.True(t, isAdmin)
			return []models.PositionResult{
				{
					PositionID:   "pos-1",
					PositionName: "President",
					Candidates: []models.CandidateResult{
						{CandidateID: "cand-1", StudentName: "Ada Obi", VoteCount: 42},
					},
				},
			}, nil
		},
	}
	mockStudents := &handlers.MockStudentStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Student, error) {
			return &models.Student{ID: id, Role: models.RoleAdmin}, nil
		},
	}

	handler := newElectionHandler(mockElections, nil, nil, mockStudents)
	req := httptest.NewRequest("GET", "/elections/election-1/results", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"electionID": "election-1"})
	req = handlers.WithAuthContext(req, "admin-1", "ADM/2019/001")
	w := httptest.NewRecorder()
	handler.Results(w, req)

	var resp []models.PositionResult
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Len(t, resp, 1)
	assert.Equal(t, 42, resp[0].Candidates[0].VoteCount)
}

func TestPositionCandidates_FilteredForVoter(t *testing.T) {
	voter := &models.Student{ID: "student-1", MatricNumber: "CSC/2021/001", Gender: "female", Level: 300, IsActive: true}

	mockStudents := &handlers.MockStudentStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Student, error) {
			return voter, nil
		},
	}
	mockPositions := &handlers.MockPositionStore{
		GetPositionWithElectionFunc: func(ctx context.Context, positionID string) (*models.Position, *models.Election, error) {
			assert.Equal(t, "pos-1", positionID)
			return &models.Position{ID: "pos-1", ElectionID: "election-1", Name: "President"}, sampleElection(), nil
		},
	}
	mockEligibility := &handlers.MockEligibilityService{
		EligibleCandidatesFunc: func(ctx context.Context, v *models.Student, position *models.Position, election *models.Election) ([]*models.Candidate, error) {
			assert.Equal(t, voter.ID, v.ID)
			return []*models.Candidate{
				{ID: "cand-1", FullName: "Ngozi Eze", Level: 400},
			}, nil
		},
	}

	handler := newElectionHandler(nil, mockEligibility, mockPositions, mockStudents)
	req := httptest.NewRequest("GET", "/positions/pos-1/candidates", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"positionID": "pos-1"})
	req = handlers.WithAuthContext(req, "student-1", "CSC/2021/001")
	w := httptest.NewRecorder()
	handler.Candidates(w, req)

	var resp []handlers.CandidateResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Len(t, resp, 1)
	assert.Equal(t, "Ngozi Eze", resp[0].FullName)
}

func TestPositionCandidates_RequiresAuth(t *testing.T) {
	handler := newElectionHandler(nil, nil, nil, nil)
	req := httptest.NewRequest("GET", "/positions/pos-1/candidates", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"positionID": "pos-1"})
	w := httptest.NewRecorder()
	handler.Candidates(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestPositionCandidates_UnknownPosition(t *testing.T) {
	mockStudents := &handlers.MockStudentStore{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Student, error) {
			return &models.Student{ID: id, IsActive: true}, nil
		},
	}
	mockPositions := &handlers.MockPositionStore{
		GetPositionWithElectionFunc: func(ctx context.Context, positionID string) (*models.Position, *models.Election, error) {
			return nil, nil, models.ErrNotFound
		},
	}

	handler := newElectionHandler(nil, nil, mockPositions, mockStudents)
	req := httptest.NewRequest("GET", "/positions/missing/candidates", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"positionID": "missing"})
	req = handlers.WithAuthContext(req, "student-1", "CSC/2021/001")
	w := httptest.NewRecorder()
	handler.Candidates(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}
