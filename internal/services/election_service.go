package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/tobioye/ballotgate/internal/models"
)

// ElectionStore defines the election reads the service needs
type ElectionStore interface {
	GetByID(ctx context.Context, id string) (*models.Election, error)
	GetActive(ctx context.Context) (*models.Election, error)
	ListPositions(ctx context.Context, electionID string) ([]*models.Position, error)
	Results(ctx context.Context, electionID string) ([]models.PositionResult, error)
}

// ElectionService serves election reads and enforces the results embargo:
// tallies stay hidden until voting closes, except for administrators.
type ElectionService struct {
	store  ElectionStore
	logger *slog.Logger
	now    func() time.Time
}

func NewElectionService(store ElectionStore, logger *slog.Logger) *ElectionService {
	return &ElectionService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *ElectionService) SetClock(now func() time.Time) {
	s.now = now
}

// Active returns the currently open election, or ErrNotFound when none is
// running.
func (s *ElectionService) Active(ctx context.Context) (*models.Election, error) {
	return s.store.GetActive(ctx)
}

// Positions lists the positions of an election.
func (s *ElectionService) Positions(ctx context.Context, electionID string) ([]*models.Position, error) {
	return s.store.ListPositions(ctx, electionID)
}

// Results returns per-position tallies. Before end_date only admins may see
// them; everyone else gets ErrForbidden.
func (s *ElectionService) Results(ctx context.Context, electionID string, isAdmin bool) ([]models.PositionResult, error) {
	election, err := s.store.GetByID(ctx, electionID)
	if err != nil {
		return nil, err
	}

	if s.now().Before(election.EndDate) && !isAdmin {
		return nil, models.ErrForbidden
	}

	return s.store.Results(ctx, electionID)
}
