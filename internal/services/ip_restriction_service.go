package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tobioye/ballotgate/internal/models"
)

// IPRestrictionRepository defines the storage operations for IP restrictions
type IPRestrictionRepository interface {
	GetByIP(ctx context.Context, ipAddress string) (*models.IPRestriction, error)
	IsBlocked(ctx context.Context, ipAddress string) (bool, error)
	SetBlocked(ctx context.Context, ipAddress string, blocked bool, reason string) error
	CreateIfAbsent(ctx context.Context, ipAddress string, blocked bool, reason string) (bool, error)
	ListBlocked(ctx context.Context) ([]*models.IPRestriction, error)
}

// IPRestrictionService is the registry of blocked and flagged addresses.
type IPRestrictionService struct {
	repo   IPRestrictionRepository
	logger *slog.Logger
}

func NewIPRestrictionService(repo IPRestrictionRepository, logger *slog.Logger) *IPRestrictionService {
	return &IPRestrictionService{repo: repo, logger: logger}
}

// IsBlocked reports whether traffic from the IP must be refused.
func (s *IPRestrictionService) IsBlocked(ctx context.Context, ipAddress string) (bool, error) {
	return s.repo.IsBlocked(ctx, ipAddress)
}

// Block upserts an active block. Idempotent admin action.
func (s *IPRestrictionService) Block(ctx context.Context, ipAddress, reason string) error {
	if err := s.repo.SetBlocked(ctx, ipAddress, true, reason); err != nil {
		return err
	}
	s.logger.Warn("ip blocked", slog.String("ip_address", ipAddress), slog.String("reason", reason))
	return nil
}

// Unblock lifts a block but keeps the record for audit. Idempotent.
func (s *IPRestrictionService) Unblock(ctx context.Context, ipAddress string) error {
	if err := s.repo.SetBlocked(ctx, ipAddress, false, "unblocked by admin"); err != nil {
		return err
	}
	s.logger.Info("ip unblocked", slog.String("ip_address", ipAddress))
	return nil
}

// FlagMultiAccount creates a non-blocking restriction the first time an IP is
// seen serving more distinct accounts than allowed. Subsequent calls are
// no-ops; whether flagged IPs get upgraded to blocked is an admin decision.
func (s *IPRestrictionService) FlagMultiAccount(ctx context.Context, ipAddress string, accountCount int) error {
	reason := fmt.Sprintf("flagged: %d different accounts in 24h", accountCount)
	created, err := s.repo.CreateIfAbsent(ctx, ipAddress, false, reason)
	if err != nil {
		return err
	}
	if created {
		s.logger.Warn("ip flagged for multi-account use",
			slog.String("ip_address", ipAddress),
			slog.Int("account_count", accountCount))
	}
	return nil
}

// AutoBlock creates a blocking restriction exactly once, first writer wins.
// Used by the monitoring sweep for brute-force sources.
func (s *IPRestrictionService) AutoBlock(ctx context.Context, ipAddress, reason string) (bool, error) {
	created, err := s.repo.CreateIfAbsent(ctx, ipAddress, true, reason)
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Warn("ip auto-blocked",
			slog.String("ip_address", ipAddress),
			slog.String("reason", reason))
	}
	return created, nil
}

// ListBlocked returns every actively blocked IP for the admin surface.
func (s *IPRestrictionService) ListBlocked(ctx context.Context) ([]*models.IPRestriction, error) {
	return s.repo.ListBlocked(ctx)
}
