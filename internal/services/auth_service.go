package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tobioye/ballotgate/internal/models"
	pkgauth "github.com/tobioye/ballotgate/pkg/auth"
)

// TokenIssuer mints and validates session tokens
type TokenIssuer interface {
	GenerateAccessToken(studentID, matricNumber string) (string, error)
	GenerateRefreshToken(studentID, matricNumber string) (string, error)
	ValidateToken(tokenString string) (*models.TokenClaims, error)
}

// StudentGetter fetches an account by ID for token refresh
type StudentGetter interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
}

// ResponsePadder equalizes response time between failure modes
type ResponsePadder interface {
	Wait(success bool)
}

// TokenPair carries a freshly issued access/refresh token set
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthResult is the caller-facing result of a login attempt. Tokens are set
// only when the outcome allows.
type AuthResult struct {
	Outcome
	Student *models.Student
	Tokens  *TokenPair
}

// AuthService authenticates students. All abuse checks live in the guard;
// this layer contributes the credential verdict and the session tokens.
type AuthService struct {
	guard    *LoginGuard
	students StudentGetter
	lockout  *LockoutService
	tokens   TokenIssuer
	padding  ResponsePadder
	logger   *slog.Logger
}

func NewAuthService(
	guard *LoginGuard,
	students StudentGetter,
	lockout *LockoutService,
	tokens TokenIssuer,
	padding ResponsePadder,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		guard:    guard,
		students: students,
		lockout:  lockout,
		tokens:   tokens,
		padding:  padding,
		logger:   logger,
	}
}

// Login evaluates the attempt and issues a token pair on success.
func (s *AuthService) Login(ctx context.Context, ipAddress, matricNumber, password, userAgent string) (*AuthResult, error) {
	result, err := s.guard.EvaluateLogin(ctx, ipAddress, matricNumber, userAgent, func(student *models.Student) bool {
		return pkgauth.ComparePassword(student.PasswordHash, password) == nil
	})
	if err != nil {
		return nil, err
	}

	s.padding.Wait(result.Allow)

	if !result.Allow {
		return &AuthResult{Outcome: result.Outcome}, nil
	}

	pair, err := s.issueTokens(result.Student)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Outcome: result.Outcome, Student: result.Student, Tokens: pair}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The account is
// re-read so a lockout or deactivation after issuance cuts the session off.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.ValidateToken(refreshToken)
	if err != nil || claims.Type != "refresh" {
		return &AuthResult{Outcome: hardReject(ReasonInvalidCredentials, "Invalid or expired refresh token.", http.StatusUnauthorized)}, nil
	}

	student, err := s.students.GetByID(ctx, claims.StudentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &AuthResult{Outcome: hardReject(ReasonInvalidCredentials, "Invalid or expired refresh token.", http.StatusUnauthorized)}, nil
		}
		s.logger.Error("student lookup failed during refresh",
			slog.String("student_id", claims.StudentID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if s.lockout.IsLocked(student) {
		reason := ReasonAccountLocked
		if !student.IsActive {
			reason = ReasonAccountDeactivated
		}
		return &AuthResult{Outcome: hardReject(reason, "Account is not available.", http.StatusForbidden)}, nil
	}

	pair, err := s.issueTokens(student)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Outcome: allowed(), Student: student, Tokens: pair}, nil
}

func (s *AuthService) issueTokens(student *models.Student) (*TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(student.ID, student.MatricNumber)
	if err != nil {
		s.logger.Error("access token generation failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	refresh, err := s.tokens.GenerateRefreshToken(student.ID, student.MatricNumber)
	if err != nil {
		s.logger.Error("refresh token generation failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
