package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims represents the JWT claims carried by access and refresh tokens
type TokenClaims struct {
	Type         string `json:"type"` // "access" or "refresh"
	StudentID    string `json:"student_id"`
	MatricNumber string `json:"matric_number"`
	jwt.RegisteredClaims
}
