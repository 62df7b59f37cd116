package models

import (
	"time"
)

// Student levels recognised by the registrar feed.
const (
	MinLevel = 100
	MaxLevel = 500
)

// Student statuses
const (
	StatusActive    = "active"
	StatusGraduated = "graduated"
	StatusInactive  = "inactive"
)

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

type Student struct {
	ID             string
	MatricNumber   string
	FullName       string
	Level          int
	Status         string // "active", "graduated", "inactive"
	Gender         string // "male", "female"
	Role           string // "student", "admin"
	PasswordHash   string
	IsActive       bool       // false once failed attempts exceed the deactivation threshold
	FailedAttempts int        // consecutive failed logins, reset on success
	LockedUntil    *time.Time // temporary lockout expiration
	LastLoginIP    *string
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
