package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/tobioye/ballotgate/internal/auth"
	"github.com/tobioye/ballotgate/internal/models"
	"github.com/tobioye/ballotgate/internal/repositories"
	"github.com/tobioye/ballotgate/internal/services"
	pkghttp "github.com/tobioye/ballotgate/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds student claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, studentID, matricNumber string) *http.Request {
	claims := &models.TokenClaims{
		StudentID:    studentID,
		MatricNumber: matricNumber,
		Type:         "access",
	}
	ctx := context.WithValue(req.Context(), auth.StudentContextKey, claims)
	return req.WithContext(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc   func(ctx context.Context, ipAddress, matricNumber, password, userAgent string) (*services.AuthResult, error)
	RefreshFunc func(ctx context.Context, refreshToken string) (*services.AuthResult, error)
}

func (m *MockAuthService) Login(ctx context.Context, ipAddress, matricNumber, password, userAgent string) (*services.AuthResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.LoginFunc(ctx, ipAddress, matricNumber, password, userAgent)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.AuthResult, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.RefreshFunc(ctx, refreshToken)
}

// MockVoteService implements VoteServiceInterface for testing
type MockVoteService struct {
	CastVoteFunc func(ctx context.Context, voter *models.Student, ipAddress, userAgent, positionID, candidateID string) (*services.VoteResult, error)
}

func (m *MockVoteService) CastVote(ctx context.Context, voter *models.Student, ipAddress, userAgent, positionID, candidateID string) (*services.VoteResult, error) {
	if m.CastVoteFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CastVoteFunc(ctx, voter, ipAddress, userAgent, positionID, candidateID)
}

// MockStudentStore implements VoterFetcher and StudentAdminRepository for testing
type MockStudentStore struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.Student, error)
	ReactivateFunc func(ctx context.Context, id string) error
	ClearLockFunc  func(ctx context.Context, id string) error
}

func (m *MockStudentStore) GetByID(ctx context.Context, id string) (*models.Student, error) {
	if m.GetByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *MockStudentStore) Reactivate(ctx context.Context, id string) error {
	if m.ReactivateFunc == nil {
		return nil
	}
	return m.ReactivateFunc(ctx, id)
}

func (m *MockStudentStore) ClearLock(ctx context.Context, id string) error {
	if m.ClearLockFunc == nil {
		return nil
	}
	return m.ClearLockFunc(ctx, id)
}

// MockElectionService implements ElectionServiceInterface for testing
type MockElectionService struct {
	ActiveFunc    func(ctx context.Context) (*models.Election, error)
	PositionsFunc func(ctx context.Context, electionID string) ([]*models.Position, error)
	ResultsFunc   func(ctx context.Context, electionID string, isAdmin bool) ([]models.PositionResult, error)
}

func (m *MockElectionService) Active(ctx context.Context) (*models.Election, error) {
	if m.ActiveFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ActiveFunc(ctx)
}

func (m *MockElectionService) Positions(ctx context.Context, electionID string) ([]*models.Position, error) {
	if m.PositionsFunc == nil {
		return nil, nil
	}
	return m.PositionsFunc(ctx, electionID)
}

func (m *MockElectionService) Results(ctx context.Context, electionID string, isAdmin bool) ([]models.PositionResult, error) {
	if m.ResultsFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ResultsFunc(ctx, electionID, isAdmin)
}

// MockEligibilityService implements EligibilityServiceInterface for testing
type MockEligibilityService struct {
	EligibleCandidatesFunc func(ctx context.Context, voter *models.Student, position *models.Position, election *models.Election) ([]*models.Candidate, error)
}

func (m *MockEligibilityService) EligibleCandidates(ctx context.Context, voter *models.Student, position *models.Position, election *models.Election) ([]*models.Candidate, error) {
	if m.EligibleCandidatesFunc == nil {
		return nil, nil
	}
	return m.EligibleCandidatesFunc(ctx, voter, position, election)
}

// MockPositionStore implements PositionFetcher for testing
type MockPositionStore struct {
	GetPositionWithElectionFunc func(ctx context.Context, positionID string) (*models.Position, *models.Election, error)
}

func (m *MockPositionStore) GetPositionWithElection(ctx context.Context, positionID string) (*models.Position, *models.Election, error) {
	if m.GetPositionWithElectionFunc == nil {
		return nil, nil, models.ErrNotFound
	}
	return m.GetPositionWithElectionFunc(ctx, positionID)
}

// MockIPRestrictionService implements IPRestrictionServiceInterface for testing
type MockIPRestrictionService struct {
	BlockFunc       func(ctx context.Context, ipAddress, reason string) error
	UnblockFunc     func(ctx context.Context, ipAddress string) error
	ListBlockedFunc func(ctx context.Context) ([]*models.IPRestriction, error)
}

func (m *MockIPRestrictionService) Block(ctx context.Context, ipAddress, reason string) error {
	if m.BlockFunc == nil {
		return nil
	}
	return m.BlockFunc(ctx, ipAddress, reason)
}

func (m *MockIPRestrictionService) Unblock(ctx context.Context, ipAddress string) error {
	if m.UnblockFunc == nil {
		return nil
	}
	return m.UnblockFunc(ctx, ipAddress)
}

func (m *MockIPRestrictionService) ListBlocked(ctx context.Context) ([]*models.IPRestriction, error) {
	if m.ListBlockedFunc == nil {
		return nil, nil
	}
	return m.ListBlockedFunc(ctx)
}

// MockMonitorService implements MonitorServiceInterface for testing
type MockMonitorService struct {
	IPViolatorsFunc func(ctx context.Context, window time.Duration) ([]repositories.IPViolator, error)
}

func (m *MockMonitorService) IPViolators(ctx context.Context, window time.Duration) ([]repositories.IPViolator, error) {
	if m.IPViolatorsFunc == nil {
		return nil, nil
	}
	return m.IPViolatorsFunc(ctx, window)
}
