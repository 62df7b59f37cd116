package models

import "time"

// IPRestriction records an administrative or automatic restriction on a
// network address. At most one record exists per IP; auto-detection creates
// records lazily with get-or-create semantics (first writer wins).
type IPRestriction struct {
	ID               string
	IPAddress        string
	IsBlocked        bool
	Reason           string
	MaxAccountsPerIP int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
