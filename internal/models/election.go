package models

import "time"

// Election types. A general election is open to every active student; a
// specific election restricts voters by level and status.
const (
	ElectionTypeGeneral  = "general"
	ElectionTypeSpecific = "specific"
)

type Election struct {
	ID            string
	Name          string
	Type          string // "general", "specific"
	MinVoterLevel int    // 0 = no restriction; only enforced for "specific" elections
	AllowedStatus string // "" = no restriction
	StartDate     time.Time
	EndDate       time.Time
	IsActive      bool
}

// IsOpen reports whether votes may be cast at the given instant.
func (e *Election) IsOpen(now time.Time) bool {
	return e.IsActive && !now.Before(e.StartDate) && !now.After(e.EndDate)
}

type Position struct {
	ID                string
	ElectionID        string
	Name              string
	GenderRestriction *string // nil = open to all genders
}

type Candidate struct {
	ID         string
	StudentID  string
	PositionID string
	Bio        *string
	CreatedAt  time.Time

	// Populated by joined queries
	FullName string
	Gender   string
	Level    int
	Status   string
}

type Vote struct {
	ID          string
	VoterID     string
	PositionID  string
	CandidateID string
	CastAt      time.Time
}

// PositionResult aggregates vote counts per candidate for one position.
type PositionResult struct {
	PositionID   string            `json:"position_id"`
	PositionName string            `json:"position_name"`
	Candidates   []CandidateResult `json:"candidates"`
}

type CandidateResult struct {
	CandidateID string `json:"candidate_id"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	VoteCount   int    `json:"vote_count"`
}
