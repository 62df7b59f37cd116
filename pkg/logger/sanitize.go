package logger

import (
	"log/slog"
	"strings"
)

// SanitizedMatric masks a matric number for logging, keeping the department
// prefix and the last two characters (e.g. "CSC/2021/001" -> "CSC/******01")
func SanitizedMatric(matricNumber string) string {
	parts := strings.SplitN(matricNumber, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "[invalid-matric]"
	}

	rest := parts[1]
	if len(rest) <= 2 {
		return parts[0] + "/" + strings.Repeat("*", len(rest))
	}
	return parts[0] + "/" + strings.Repeat("*", len(rest)-2) + rest[len(rest)-2:]
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := map[string]bool{
		"password":  true,
		"token":     true,
		"secret":    true,
		"api_key":   true,
		"apikey":    true,
		"matric":    true,
		"apitoken":  true,
		"auth":      true,
		"csrf":      true,
	}

	query := strings.ToLower(rawQuery)
	for param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
