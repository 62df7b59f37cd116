package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tobioye/ballotgate/internal/auth"
	"github.com/tobioye/ballotgate/internal/database"
	"github.com/tobioye/ballotgate/internal/handlers"
	middlewareCustom "github.com/tobioye/ballotgate/internal/middleware"
	"github.com/tobioye/ballotgate/internal/ratewindow"
	"github.com/tobioye/ballotgate/internal/routes"
	"github.com/tobioye/ballotgate/internal/services"
	pkghttp "github.com/tobioye/ballotgate/pkg/http"
	pkglogger "github.com/tobioye/ballotgate/pkg/logger"
)

// TestServer wraps httptest.Server with the real service stack on a real
// database. Thresholds are loose enough that tests exercising the happy path
// never trip a limiter by accident; guard behavior is pinned down by the
// service unit tests.
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	logger *slog.Logger
}

// NewTestServer wires the full HTTP stack against the given test database
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	auditLogger := pkglogger.NewAuditLogger(logger)

	studentRepo, electionRepo, voteRepo, loginAttemptRepo, voteAttemptRepo, ipRestrictionRepo :=
		InitializeRepositories(db)

	limiter := ratewindow.NewLimiter(ratewindow.NewMemoryStore(), logger)

	tokenManager := auth.NewTokenManager("test-secret-32-characters-long-for-testing", 15*time.Minute, 7*24*time.Hour)

	lockoutService := services.NewLockoutService(studentRepo, services.LockoutConfig{
		MaxFailedAttempts: 5,
		LockDuration:      30 * time.Minute,
	}, logger)

	ipRestrictionService := services.NewIPRestrictionService(ipRestrictionRepo, logger)

	loginGuard := services.NewLoginGuard(
		loginAttemptRepo,
		studentRepo,
		ipRestrictionService,
		limiter,
		lockoutService,
		services.LoginGuardConfig{
			AuthRequestLimit:            100,
			AuthRequestWindow:           time.Hour,
			MaxFailedLoginsPerIP:        50,
			MaxDistinctIdentifiersPerIP: 50,
			FailedLoginWindow:           time.Hour,
			MaxAccountsPerIP:            50,
			AccountsPerIPWindow:         24 * time.Hour,
			AttemptRetention:            30 * 24 * time.Hour,
		},
		logger,
		auditLogger,
	)

	// No artificial response delay in tests
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{})

	authService := services.NewAuthService(loginGuard, studentRepo, lockoutService, tokenManager, timingDelay, logger)

	eligibilityService := services.NewEligibilityService(electionRepo, logger)
	voteGuard := services.NewVoteGuard(
		electionRepo,
		voteRepo,
		voteAttemptRepo,
		eligibilityService,
		limiter,
		services.VoteGuardConfig{
			MinVoteInterval:    0,
			MaxRapidVotes:      1000,
			RapidVoteWindow:    time.Minute,
			IPChangeVoteWindow: 30 * time.Minute,
			VotingHoursEnabled: false,
		},
		logger,
	)
	voteLedger := services.NewVoteLedger(voteRepo, logger)
	voteService := services.NewVoteService(
		voteGuard,
		voteLedger,
		voteAttemptRepo,
		limiter,
		services.VoteServiceConfig{
			MinVoteInterval:      0,
			RapidVoteWindow:      time.Minute,
			SameCandidateRepeats: 1000,
			SameCandidateWindow:  time.Minute,
		},
		logger,
		auditLogger,
	)

	electionService := services.NewElectionService(electionRepo, logger)
	monitorService := services.NewMonitorService(
		loginAttemptRepo,
		voteAttemptRepo,
		ipRestrictionService,
		services.MonitorConfig{
			MaxAccountsPerIP:     50,
			AccountsPerIPWindow:  24 * time.Hour,
			MaxFailedLoginsPerIP: 50,
			FailedLoginWindow:    time.Hour,
			RapidVoteThreshold:   1000,
			RapidVoteReportSpan:  15 * time.Minute,
		},
		logger,
	)

	ipConfig := &pkghttp.IPConfig{}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	voteHandler := handlers.NewVoteHandler(voteService, studentRepo, ipConfig)
	electionHandler := handlers.NewElectionHandler(electionService, eligibilityService, electionRepo, studentRepo)
	adminHandler := handlers.NewAdminHandler(ipRestrictionService, monitorService, studentRepo, auditLogger, ipConfig, 24*time.Hour)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	routes.RegisterRoutes(router, authHandler, voteHandler, electionHandler, adminHandler, tokenManager, studentRepo, middlewareCustom.RateLimitConfig{
		GeneralLimit:  1000,
		GeneralWindow: time.Hour,
		AuthLimit:     1000,
		AuthWindow:    time.Hour,
	})

	return &TestServer{
		Server: httptest.NewServer(router),
		DB:     db,
		logger: logger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// Request performs an HTTP request against the test server with a JSON body
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth performs an authenticated request using a bearer token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
}

// ParseJSONResponse decodes the response body into target and closes it
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode response: %s: %w", string(data), err)
	}
	return nil
}

// GetErrorMessage extracts the error code from an error response
func GetErrorMessage(resp *http.Response) (string, error) {
	var errResp pkghttp.ErrorResponse
	if err := ParseJSONResponse(resp, &errResp); err != nil {
		return "", err
	}
	return errResp.Error, nil
}
