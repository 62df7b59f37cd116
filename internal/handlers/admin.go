package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tobioye/ballotgate/internal/auth"
	"github.com/tobioye/ballotgate/internal/models"
	"github.com/tobioye/ballotgate/internal/repositories"
	pkghttp "github.com/tobioye/ballotgate/pkg/http"
	pkglogger "github.com/tobioye/ballotgate/pkg/logger"
)

// IPRestrictionServiceInterface defines the interface for the IP registry
type IPRestrictionServiceInterface interface {
	Block(ctx context.Context, ipAddress, reason string) error
	Unblock(ctx context.Context, ipAddress string) error
	ListBlocked(ctx context.Context) ([]*models.IPRestriction, error)
}

// MonitorServiceInterface defines the interface for abuse reports
type MonitorServiceInterface interface {
	IPViolators(ctx context.Context, window time.Duration) ([]repositories.IPViolator, error)
}

// StudentAdminRepository covers the account-recovery operations admins need
type StudentAdminRepository interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	Reactivate(ctx context.Context, id string) error
	ClearLock(ctx context.Context, id string) error
}

// AdminHandler serves the moderation surface: IP blocking, abuse reports and
// account recovery.
type AdminHandler struct {
	restrictions   IPRestrictionServiceInterface
	monitor        MonitorServiceInterface
	students       StudentAdminRepository
	audit          *pkglogger.AuditLogger
	ipConfig       *pkghttp.IPConfig
	violatorWindow time.Duration
}

func NewAdminHandler(restrictions IPRestrictionServiceInterface, monitor MonitorServiceInterface, students StudentAdminRepository, audit *pkglogger.AuditLogger, ipConfig *pkghttp.IPConfig, violatorWindow time.Duration) *AdminHandler {
	return &AdminHandler{
		restrictions:   restrictions,
		monitor:        monitor,
		students:       students,
		audit:          audit,
		ipConfig:       ipConfig,
		violatorWindow: violatorWindow,
	}
}

// logAccountAction records who performed an account-recovery action and from
// where, keyed to the affected student.
func (h *AdminHandler) logAccountAction(r *http.Request, eventType, studentID string) {
	adminID := ""
	if claims := auth.GetStudentFromContext(r); claims != nil {
		adminID = claims.StudentID
	}
	h.audit.LogAccountAction(eventType, studentID, pkghttp.ExtractClientIP(r, h.ipConfig), map[string]string{
		"admin_id": adminID,
	})
}

// BlockIPRequest represents the request body for blocking an IP
type BlockIPRequest struct {
	IPAddress string `json:"ip_address" validate:"required,ip"`
	Reason    string `json:"reason" validate:"required,max=255"`
}

// UnblockIPRequest represents the request body for unblocking an IP
type UnblockIPRequest struct {
	IPAddress string `json:"ip_address" validate:"required,ip"`
}

// BlockedIPResponse represents one blocked address
type BlockedIPResponse struct {
	IPAddress string    `json:"ip_address"`
	Reason    string    `json:"reason"`
	BlockedAt time.Time `json:"blocked_at"`
}

// BlockIP handles POST /admin/ip-restrictions/block
func (h *AdminHandler) BlockIP(w http.ResponseWriter, r *http.Request) {
	var req BlockIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.restrictions.Block(r.Context(), req.IPAddress, req.Reason); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "IP blocked",
		"ip_address": req.IPAddress,
	})
}

// UnblockIP handles POST /admin/ip-restrictions/unblock
func (h *AdminHandler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	var req UnblockIPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.restrictions.Unblock(r.Context(), req.IPAddress); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "IP unblocked",
		"ip_address": req.IPAddress,
	})
}

// ListBlockedIPs handles GET /admin/ip-restrictions
func (h *AdminHandler) ListBlockedIPs(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.restrictions.ListBlocked(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := make([]BlockedIPResponse, 0, len(blocked))
	for _, b := range blocked {
		resp = append(resp, BlockedIPResponse{
			IPAddress: b.IPAddress,
			Reason:    b.Reason,
			BlockedAt: b.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// IPViolators handles GET /admin/ip-violators: IPs from which multiple
// accounts cast votes within the report window.
func (h *AdminHandler) IPViolators(w http.ResponseWriter, r *http.Request) {
	violators, err := h.monitor.IPViolators(r.Context(), h.violatorWindow)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, violators)
}

// ReactivateStudent handles POST /admin/students/{studentID}/reactivate
func (h *AdminHandler) ReactivateStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	if _, err := h.students.GetByID(r.Context(), studentID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Student not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if err := h.students.Reactivate(r.Context(), studentID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.logAccountAction(r, "account_reactivated", studentID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Account reactivated",
		"student_id": studentID,
	})
}

// UnlockStudent handles POST /admin/students/{studentID}/unlock
func (h *AdminHandler) UnlockStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	if _, err := h.students.GetByID(r.Context(), studentID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Student not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if err := h.students.ClearLock(r.Context(), studentID); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.logAccountAction(r, "account_unlocked", studentID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Account unlocked",
		"student_id": studentID,
	})
}
