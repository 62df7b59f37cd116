package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tobioye/ballotgate/internal/models"
)

// CandidateRepository defines the candidate reads eligibility needs
type CandidateRepository interface {
	ListCandidates(ctx context.Context, positionID string) ([]*models.Candidate, error)
	GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error)
}

// EligibilityService derives the set of candidates a voter may legally vote
// for in a position: nominated for the position, academically qualified, and
// matching the position's gender restriction. For specific elections the
// voter themselves must meet the election's level and status restrictions.
type EligibilityService struct {
	candidates CandidateRepository
	logger     *slog.Logger
}

func NewEligibilityService(candidates CandidateRepository, logger *slog.Logger) *EligibilityService {
	return &EligibilityService{candidates: candidates, logger: logger}
}

// candidateQualifies applies the nomination-independent requirements: final
// year students in active standing.
func candidateQualifies(c *models.Candidate) bool {
	return c.Level == models.MaxLevel && c.Status == models.StatusActive
}

func matchesGenderRestriction(c *models.Candidate, position *models.Position) bool {
	return position.GenderRestriction == nil || c.Gender == *position.GenderRestriction
}

// voterQualifies applies voter-side restrictions. General elections admit any
// active voter; specific elections additionally restrict by level and status.
func voterQualifies(voter *models.Student, election *models.Election) bool {
	if voter.Status != models.StatusActive {
		return false
	}
	if election.Type != models.ElectionTypeSpecific {
		return true
	}
	if election.MinVoterLevel > 0 && voter.Level < election.MinVoterLevel {
		return false
	}
	if election.AllowedStatus != "" && voter.Status != election.AllowedStatus {
		return false
	}
	return true
}

// EligibleCandidates returns the candidates of a position the voter may
// choose from. An empty set for a qualified voter means nobody eligible is
// running.
func (s *EligibilityService) EligibleCandidates(ctx context.Context, voter *models.Student, position *models.Position, election *models.Election) ([]*models.Candidate, error) {
	if !voterQualifies(voter, election) {
		return []*models.Candidate{}, nil
	}

	all, err := s.candidates.ListCandidates(ctx, position.ID)
	if err != nil {
		return nil, err
	}

	eligible := make([]*models.Candidate, 0, len(all))
	for _, c := range all {
		if candidateQualifies(c) && matchesGenderRestriction(c, position) {
			eligible = append(eligible, c)
		}
	}
	return eligible, nil
}

// IsEligible reports whether the voter may vote for the named candidate in
// the position.
func (s *EligibilityService) IsEligible(ctx context.Context, voter *models.Student, position *models.Position, election *models.Election, candidateID string) (bool, error) {
	if !voterQualifies(voter, election) {
		return false, nil
	}

	candidate, err := s.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if candidate.PositionID != position.ID {
		return false, nil
	}
	return candidateQualifies(candidate) && matchesGenderRestriction(candidate, position), nil
}
