package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Security SecurityConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool // fall back to the in-process rate window store when false
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// SecurityConfig groups every tunable threshold of the integrity engine.
type SecurityConfig struct {
	// Request throttling (per IP)
	GeneralRequestLimit  int // requests per window on all endpoints
	GeneralRequestWindow time.Duration
	AuthRequestLimit     int // stricter cap on authentication endpoints
	AuthRequestWindow    time.Duration

	// Login heuristics
	MaxFailedAttempts       int           // consecutive failures before temp lock
	LockoutDuration         time.Duration // temp lock length at the threshold
	MaxFailedLoginsPerIP    int           // failed logins per IP per window before SUSPICIOUS_ACTIVITY
	MaxAccountsPerIPAttempt int           // distinct identifiers per IP per window before SUSPICIOUS_ACTIVITY
	FailedLoginWindow       time.Duration
	MaxAccountsPerIP        int // distinct successful accounts per IP before auto-flag
	AccountsPerIPWindow     time.Duration

	// Vote heuristics
	MinVoteInterval      time.Duration // cooldown between any two votes by one account
	MaxRapidVotes        int           // votes within RapidVoteWindow before TOO_FAST
	RapidVoteWindow      time.Duration
	SameCandidateRepeats int // soft flag threshold, same candidate
	SameCandidateWindow  time.Duration
	IPChangeVoteWindow   time.Duration // recent-vote horizon for the mid-session IP change check
	VotingHoursEnabled   bool
	VotingHourStart      int // inclusive, local hour
	VotingHourEnd        int // exclusive
	MultiAccountIPBlock  bool // strict one-account-per-IP vote policy; false = flag and log
	MultiAccountIPWindow time.Duration

	// Request screening
	BlacklistedUserAgents []string // substring match, case-insensitive
	WhitelistedIPs        []string // bypass IP blocking, e.g. health probes

	// Failed-login response padding
	TimingBaseDelayMs int
	TimingJitterMs    int

	// Housekeeping and monitoring
	AttemptRetention    time.Duration // purge horizon for attempt logs
	CleanupInterval     time.Duration
	MonitorInterval     time.Duration
	RapidVoteThreshold  int           // sweep report: votes per span before an account is listed
	RapidVoteReportSpan time.Duration
	IPViolatorWindow    time.Duration // default lookback for the violator report
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "ballotgate"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 24*time.Hour),
		},
		Security: SecurityConfig{
			GeneralRequestLimit:  getEnvAsInt("RATE_GENERAL_LIMIT", 100),
			GeneralRequestWindow: getEnvAsDuration("RATE_GENERAL_WINDOW", time.Hour),
			AuthRequestLimit:     getEnvAsInt("RATE_AUTH_LIMIT", 20),
			AuthRequestWindow:    getEnvAsDuration("RATE_AUTH_WINDOW", time.Hour),

			MaxFailedAttempts:       getEnvAsInt("MAX_FAILED_ATTEMPTS", 5),
			LockoutDuration:         getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
			MaxFailedLoginsPerIP:    getEnvAsInt("MAX_FAILED_LOGINS_PER_IP", 10),
			MaxAccountsPerIPAttempt: getEnvAsInt("MAX_ACCOUNTS_PER_IP_ATTEMPT", 5),
			FailedLoginWindow:       getEnvAsDuration("FAILED_LOGIN_WINDOW", time.Hour),
			MaxAccountsPerIP:        getEnvAsInt("MAX_ACCOUNTS_PER_IP", 3),
			AccountsPerIPWindow:     getEnvAsDuration("ACCOUNTS_PER_IP_WINDOW", 24*time.Hour),

			MinVoteInterval:      getEnvAsDuration("MIN_VOTE_INTERVAL", 10*time.Second),
			MaxRapidVotes:        getEnvAsInt("MAX_RAPID_VOTES", 3),
			RapidVoteWindow:      getEnvAsDuration("RAPID_VOTE_WINDOW", 20*time.Second),
			SameCandidateRepeats: getEnvAsInt("SAME_CANDIDATE_REPEATS", 2),
			SameCandidateWindow:  getEnvAsDuration("SAME_CANDIDATE_WINDOW", 5*time.Minute),
			IPChangeVoteWindow:   getEnvAsDuration("IP_CHANGE_VOTE_WINDOW", 30*time.Minute),
			VotingHoursEnabled:   getEnvAsBool("VOTING_HOURS_ENABLED", true),
			VotingHourStart:      getEnvAsInt("VOTING_HOUR_START", 6),
			VotingHourEnd:        getEnvAsInt("VOTING_HOUR_END", 22),
			MultiAccountIPBlock:  getEnvAsBool("VOTE_MULTI_ACCOUNT_IP_BLOCK", false),
			MultiAccountIPWindow: getEnvAsDuration("VOTE_MULTI_ACCOUNT_IP_WINDOW", 72*time.Hour),

			BlacklistedUserAgents: getEnvAsSliceDefault("BLACKLISTED_USER_AGENTS",
				[]string{"bot", "crawler", "spider", "scraper", "curl", "wget", "python-requests"}),
			WhitelistedIPs: getEnvAsSliceDefault("WHITELISTED_IPS", []string{"127.0.0.1", "::1"}),

			TimingBaseDelayMs: getEnvAsInt("TIMING_BASE_DELAY_MS", 100),
			TimingJitterMs:    getEnvAsInt("TIMING_JITTER_MS", 100),

			AttemptRetention:    getEnvAsDuration("ATTEMPT_RETENTION", 30*24*time.Hour),
			CleanupInterval:     getEnvAsDuration("CLEANUP_INTERVAL", time.Hour),
			MonitorInterval:     getEnvAsDuration("MONITOR_INTERVAL", time.Hour),
			RapidVoteThreshold:  getEnvAsInt("MONITOR_RAPID_VOTE_THRESHOLD", 5),
			RapidVoteReportSpan: getEnvAsDuration("MONITOR_RAPID_VOTE_SPAN", 15*time.Minute),
			IPViolatorWindow:    getEnvAsDuration("IP_VIOLATOR_WINDOW", 24*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Security.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (s *SecurityConfig) validate() error {
	if s.MaxFailedAttempts < 1 {
		return fmt.Errorf("MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if s.VotingHourStart < 0 || s.VotingHourStart > 23 || s.VotingHourEnd < 1 || s.VotingHourEnd > 24 {
		return fmt.Errorf("voting hours must fall within a single day")
	}
	if s.VotingHoursEnabled && s.VotingHourStart >= s.VotingHourEnd {
		return fmt.Errorf("VOTING_HOUR_START must be before VOTING_HOUR_END")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func getEnvAsSliceDefault(key string, defaultVal []string) []string {
	if parts := getEnvAsSlice(key); parts != nil {
		return parts
	}
	return defaultVal
}
