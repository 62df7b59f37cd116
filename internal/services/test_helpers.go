package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/tobioye/ballotgate/internal/models"
	"github.com/tobioye/ballotgate/internal/ratewindow"
	"github.com/tobioye/ballotgate/internal/repositories"
	pkglogger "github.com/tobioye/ballotgate/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

// testLimiter returns a real sliding-window limiter over the in-process
// store, pinned to the given clock.
func testLimiter(now func() time.Time) *ratewindow.Limiter {
	store := ratewindow.NewMemoryStore()
	store.SetClock(now)
	limiter := ratewindow.NewLimiter(store, testLogger())
	limiter.SetClock(now)
	return limiter
}

// MockLoginAttemptLog implements LoginAttemptLog for testing
type MockLoginAttemptLog struct {
	RecordAttemptFunc                       func(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailedByIPFunc                     func(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountDistinctIdentifiersByIPFunc        func(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountDistinctSuccessfulAccountsByIPFunc func(ctx context.Context, ipAddress string, since time.Time) (int, error)

	Recorded []*models.LoginAttempt
}

func (m *MockLoginAttemptLog) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	m.Recorded = append(m.Recorded, attempt)
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

func (m *MockLoginAttemptLog) CountFailedByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountFailedByIPFunc != nil {
		return m.CountFailedByIPFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

func (m *MockLoginAttemptLog) CountDistinctIdentifiersByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountDistinctIdentifiersByIPFunc != nil {
		return m.CountDistinctIdentifiersByIPFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

func (m *MockLoginAttemptLog) CountDistinctSuccessfulAccountsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if m.CountDistinctSuccessfulAccountsByIPFunc != nil {
		return m.CountDistinctSuccessfulAccountsByIPFunc(ctx, ipAddress, since)
	}
	return 0, nil
}

// MockStudentFinder implements StudentFinder and StudentGetter for testing
type MockStudentFinder struct {
	GetByMatricNumberFunc func(ctx context.Context, matricNumber string) (*models.Student, error)
	GetByIDFunc           func(ctx context.Context, id string) (*models.Student, error)
}

func (m *MockStudentFinder) GetByMatricNumber(ctx context.Context, matricNumber string) (*models.Student, error) {
	if m.GetByMatricNumberFunc != nil {
		return m.GetByMatricNumberFunc(ctx, matricNumber)
	}
	return nil, models.ErrNotFound
}

func (m *MockStudentFinder) GetByID(ctx context.Context, id string) (*models.Student, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

// MockIPRegistry implements IPRegistry for testing
type MockIPRegistry struct {
	IsBlockedFunc        func(ctx context.Context, ipAddress string) (bool, error)
	FlagMultiAccountFunc func(ctx context.Context, ipAddress string, accountCount int) error

	Flagged []string
}

func (m *MockIPRegistry) IsBlocked(ctx context.Context, ipAddress string) (bool, error) {
	if m.IsBlockedFunc != nil {
		return m.IsBlockedFunc(ctx, ipAddress)
	}
	return false, nil
}

func (m *MockIPRegistry) FlagMultiAccount(ctx context.Context, ipAddress string, accountCount int) error {
	m.Flagged = append(m.Flagged, ipAddress)
	if m.FlagMultiAccountFunc != nil {
		return m.FlagMultiAccountFunc(ctx, ipAddress, accountCount)
	}
	return nil
}

// MockLockoutRepository implements LockoutRepository for testing
type MockLockoutRepository struct {
	UpdateLockoutStateFunc func(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time, isActive bool) error
	RecordLoginSuccessFunc func(ctx context.Context, id, ipAddress string, at time.Time) error
}

func (m *MockLockoutRepository) UpdateLockoutState(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time, isActive bool) error {
	if m.UpdateLockoutStateFunc != nil {
		return m.UpdateLockoutStateFunc(ctx, id, failedAttempts, lockedUntil, isActive)
	}
	return nil
}

func (m *MockLockoutRepository) RecordLoginSuccess(ctx context.Context, id, ipAddress string, at time.Time) error {
	if m.RecordLoginSuccessFunc != nil {
		return m.RecordLoginSuccessFunc(ctx, id, ipAddress, at)
	}
	return nil
}

// MockVoteAttemptLog implements VoteAttemptLog for testing
type MockVoteAttemptLog struct {
	RecordAttemptFunc                    func(ctx context.Context, attempt *models.VoteAttempt) error
	CountSuccessfulSinceFunc             func(ctx context.Context, voterID string, since time.Time) (int, error)
	LastSuccessfulVoteTimeFunc           func(ctx context.Context, voterID string) (*time.Time, error)
	ExistsOtherSuccessfulVoterFromIPFunc func(ctx context.Context, ipAddress, voterID string, since time.Time) (bool, error)

	Recorded []*models.VoteAttempt
}

func (m *MockVoteAttemptLog) RecordAttempt(ctx context.Context, attempt *models.VoteAttempt) error {
	m.Recorded = append(m.Recorded, attempt)
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

func (m *MockVoteAttemptLog) CountSuccessfulSince(ctx context.Context, voterID string, since time.Time) (int, error) {
	if m.CountSuccessfulSinceFunc != nil {
		return m.CountSuccessfulSinceFunc(ctx, voterID, since)
	}
	return 0, nil
}

func (m *MockVoteAttemptLog) LastSuccessfulVoteTime(ctx context.Context, voterID string) (*time.Time, error) {
	if m.LastSuccessfulVoteTimeFunc != nil {
		return m.LastSuccessfulVoteTimeFunc(ctx, voterID)
	}
	return nil, nil
}

func (m *MockVoteAttemptLog) ExistsOtherSuccessfulVoterFromIP(ctx context.Context, ipAddress, voterID string, since time.Time) (bool, error) {
	if m.ExistsOtherSuccessfulVoterFromIPFunc != nil {
		return m.ExistsOtherSuccessfulVoterFromIPFunc(ctx, ipAddress, voterID, since)
	}
	return false, nil
}

// MockPositionFetcher implements PositionFetcher for testing
type MockPositionFetcher struct {
	GetPositionWithElectionFunc func(ctx context.Context, positionID string) (*models.Position, *models.Election, error)
}

func (m *MockPositionFetcher) GetPositionWithElection(ctx context.Context, positionID string) (*models.Position, *models.Election, error) {
	if m.GetPositionWithElectionFunc != nil {
		return m.GetPositionWithElectionFunc(ctx, positionID)
	}
	return nil, nil, models.ErrNotFound
}

// MockVoteChecker implements VoteChecker for testing
type MockVoteChecker struct {
	ExistsFunc func(ctx context.Context, voterID, positionID string) (bool, error)
}

func (m *MockVoteChecker) Exists(ctx context.Context, voterID, positionID string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, voterID, positionID)
	}
	return false, nil
}

// MockCandidateRepository implements CandidateRepository for testing
type MockCandidateRepository struct {
	ListCandidatesFunc func(ctx context.Context, positionID string) ([]*models.Candidate, error)
	GetCandidateFunc   func(ctx context.Context, candidateID string) (*models.Candidate, error)
}

func (m *MockCandidateRepository) ListCandidates(ctx context.Context, positionID string) ([]*models.Candidate, error) {
	if m.ListCandidatesFunc != nil {
		return m.ListCandidatesFunc(ctx, positionID)
	}
	return []*models.Candidate{}, nil
}

func (m *MockCandidateRepository) GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error) {
	if m.GetCandidateFunc != nil {
		return m.GetCandidateFunc(ctx, candidateID)
	}
	return nil, models.ErrNotFound
}

// MockVoteStore implements VoteStore for testing
type MockVoteStore struct {
	InsertFunc             func(ctx context.Context, voterID, positionID, candidateID string, castAt time.Time) (*models.Vote, error)
	GetByVoterPositionFunc func(ctx context.Context, voterID, positionID string) (*models.Vote, error)
}

func (m *MockVoteStore) Insert(ctx context.Context, voterID, positionID, candidateID string, castAt time.Time) (*models.Vote, error) {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, voterID, positionID, candidateID, castAt)
	}
	return nil, models.ErrInternalServer
}

func (m *MockVoteStore) GetByVoterPosition(ctx context.Context, voterID, positionID string) (*models.Vote, error) {
	if m.GetByVoterPositionFunc != nil {
		return m.GetByVoterPositionFunc(ctx, voterID, positionID)
	}
	return nil, models.ErrNotFound
}

// MockIPRestrictionRepo implements IPRestrictionRepository for testing
type MockIPRestrictionRepo struct {
	GetByIPFunc        func(ctx context.Context, ipAddress string) (*models.IPRestriction, error)
	IsBlockedFunc      func(ctx context.Context, ipAddress string) (bool, error)
	SetBlockedFunc     func(ctx context.Context, ipAddress string, blocked bool, reason string) error
	CreateIfAbsentFunc func(ctx context.Context, ipAddress string, blocked bool, reason string) (bool, error)
	ListBlockedFunc    func(ctx context.Context) ([]*models.IPRestriction, error)
}

func (m *MockIPRestrictionRepo) GetByIP(ctx context.Context, ipAddress string) (*models.IPRestriction, error) {
	if m.GetByIPFunc != nil {
		return m.GetByIPFunc(ctx, ipAddress)
	}
	return nil, models.ErrNotFound
}

func (m *MockIPRestrictionRepo) IsBlocked(ctx context.Context, ipAddress string) (bool, error) {
	if m.IsBlockedFunc != nil {
		return m.IsBlockedFunc(ctx, ipAddress)
	}
	return false, nil
}

func (m *MockIPRestrictionRepo) SetBlocked(ctx context.Context, ipAddress string, blocked bool, reason string) error {
	if m.SetBlockedFunc != nil {
		return m.SetBlockedFunc(ctx, ipAddress, blocked, reason)
	}
	return nil
}

func (m *MockIPRestrictionRepo) CreateIfAbsent(ctx context.Context, ipAddress string, blocked bool, reason string) (bool, error) {
	if m.CreateIfAbsentFunc != nil {
		return m.CreateIfAbsentFunc(ctx, ipAddress, blocked, reason)
	}
	return true, nil
}

func (m *MockIPRestrictionRepo) ListBlocked(ctx context.Context) ([]*models.IPRestriction, error) {
	if m.ListBlockedFunc != nil {
		return m.ListBlockedFunc(ctx)
	}
	return []*models.IPRestriction{}, nil
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	GenerateAccessTokenFunc  func(studentID, matricNumber string) (string, error)
	GenerateRefreshTokenFunc func(studentID, matricNumber string) (string, error)
	ValidateTokenFunc        func(tokenString string) (*models.TokenClaims, error)
}

func (m *MockTokenIssuer) GenerateAccessToken(studentID, matricNumber string) (string, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(studentID, matricNumber)
	}
	return "access-token", nil
}

func (m *MockTokenIssuer) GenerateRefreshToken(studentID, matricNumber string) (string, error) {
	if m.GenerateRefreshTokenFunc != nil {
		return m.GenerateRefreshTokenFunc(studentID, matricNumber)
	}
	return "refresh-token", nil
}

func (m *MockTokenIssuer) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(tokenString)
	}
	return nil, models.ErrUnauthorized
}

// MockElectionStore implements ElectionStore for testing
type MockElectionStore struct {
	GetByIDFunc       func(ctx context.Context, id string) (*models.Election, error)
	GetActiveFunc     func(ctx context.Context) (*models.Election, error)
	ListPositionsFunc func(ctx context.Context, electionID string) ([]*models.Position, error)
	ResultsFunc       func(ctx context.Context, electionID string) ([]models.PositionResult, error)
}

func (m *MockElectionStore) GetByID(ctx context.Context, id string) (*models.Election, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockElectionStore) GetActive(ctx context.Context) (*models.Election, error) {
	if m.GetActiveFunc != nil {
		return m.GetActiveFunc(ctx)
	}
	return nil, models.ErrNotFound
}

func (m *MockElectionStore) ListPositions(ctx context.Context, electionID string) ([]*models.Position, error) {
	if m.ListPositionsFunc != nil {
		return m.ListPositionsFunc(ctx, electionID)
	}
	return []*models.Position{}, nil
}

func (m *MockElectionStore) Results(ctx context.Context, electionID string) ([]models.PositionResult, error) {
	if m.ResultsFunc != nil {
		return m.ResultsFunc(ctx, electionID)
	}
	return []models.PositionResult{}, nil
}

// MockLoginAttemptReporter implements LoginAttemptReporter for testing
type MockLoginAttemptReporter struct {
	ListMultiAccountIPsFunc func(ctx context.Context, since time.Time, maxAccounts int) (map[string]int, error)
	ListBruteForceIPsFunc   func(ctx context.Context, since time.Time, maxFailed int) (map[string]int, error)
}

func (m *MockLoginAttemptReporter) ListMultiAccountIPs(ctx context.Context, since time.Time, maxAccounts int) (map[string]int, error) {
	if m.ListMultiAccountIPsFunc != nil {
		return m.ListMultiAccountIPsFunc(ctx, since, maxAccounts)
	}
	return map[string]int{}, nil
}

func (m *MockLoginAttemptReporter) ListBruteForceIPs(ctx context.Context, since time.Time, maxFailed int) (map[string]int, error) {
	if m.ListBruteForceIPsFunc != nil {
		return m.ListBruteForceIPsFunc(ctx, since, maxFailed)
	}
	return map[string]int{}, nil
}

// MockVoteAttemptReporter implements VoteAttemptReporter for testing
type MockVoteAttemptReporter struct {
	ListIPViolatorsFunc func(ctx context.Context, since time.Time) ([]repositories.IPViolator, error)
	ListRapidVotersFunc func(ctx context.Context, since time.Time, maxVotes int) (map[string]int, error)
}

func (m *MockVoteAttemptReporter) ListIPViolators(ctx context.Context, since time.Time) ([]repositories.IPViolator, error) {
	if m.ListIPViolatorsFunc != nil {
		return m.ListIPViolatorsFunc(ctx, since)
	}
	return []repositories.IPViolator{}, nil
}

func (m *MockVoteAttemptReporter) ListRapidVoters(ctx context.Context, since time.Time, maxVotes int) (map[string]int, error) {
	if m.ListRapidVotersFunc != nil {
		return m.ListRapidVotersFunc(ctx, since, maxVotes)
	}
	return map[string]int{}, nil
}
