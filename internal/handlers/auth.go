package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tobioye/ballotgate/internal/services"
	pkghttp "github.com/tobioye/ballotgate/pkg/http"
)

// AuthServiceInterface defines the interface for authentication logic
type AuthServiceInterface interface {
	Login(ctx context.Context, ipAddress, matricNumber, password, userAgent string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResult, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	MatricNumber string `json:"matric_number" validate:"required,min=3,max=32"`
	Password     string `json:"password" validate:"required"`
}

// RefreshRequest represents the request body for token refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse carries the issued tokens and the voter's public profile
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	StudentID    string `json:"student_id"`
	MatricNumber string `json:"matric_number"`
	FullName     string `json:"full_name"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.MatricNumber = strings.ToUpper(strings.TrimSpace(req.MatricNumber))
	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	result, err := h.service.Login(r.Context(), ipAddress, req.MatricNumber, req.Password, userAgent)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if !result.Allow {
		writeOutcome(w, result.Outcome)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		StudentID:    result.Student.ID,
		MatricNumber: result.Student.MatricNumber,
		FullName:     result.Student.FullName,
	})
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	if !result.Allow {
		writeOutcome(w, result.Outcome)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		StudentID:    result.Student.ID,
		MatricNumber: result.Student.MatricNumber,
		FullName:     result.Student.FullName,
	})
}
