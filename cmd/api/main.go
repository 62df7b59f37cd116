package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/tobioye/ballotgate/internal/auth"
	"github.com/tobioye/ballotgate/internal/background"
	"github.com/tobioye/ballotgate/internal/config"
	"github.com/tobioye/ballotgate/internal/database"
	"github.com/tobioye/ballotgate/internal/handlers"
	middlewareCustom "github.com/tobioye/ballotgate/internal/middleware"
	"github.com/tobioye/ballotgate/internal/ratewindow"
	"github.com/tobioye/ballotgate/internal/repositories"
	"github.com/tobioye/ballotgate/internal/routes"
	"github.com/tobioye/ballotgate/internal/services"
	pkghttp "github.com/tobioye/ballotgate/pkg/http"
	pkglogger "github.com/tobioye/ballotgate/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	studentRepo := repositories.NewStudentRepository(db)
	electionRepo := repositories.NewElectionRepository(db)
	voteRepo := repositories.NewVoteRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	voteAttemptRepo := repositories.NewVoteAttemptRepository(db)
	ipRestrictionRepo := repositories.NewIPRestrictionRepository(db)

	// Rate window store: Redis when configured, in-process otherwise
	var windowStore ratewindow.Store
	var memoryStore *ratewindow.MemoryStore
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer client.Close()
		windowStore = ratewindow.NewRedisStore(client)
		logger.Info("rate windows backed by redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		memoryStore = ratewindow.NewMemoryStore()
		windowStore = memoryStore
		logger.Info("rate windows backed by in-process store")
	}
	limiter := ratewindow.NewLimiter(windowStore, logger)

	// Token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Security services
	lockoutService := services.NewLockoutService(studentRepo, services.LockoutConfig{
		MaxFailedAttempts: cfg.Security.MaxFailedAttempts,
		LockDuration:      cfg.Security.LockoutDuration,
	}, logger)

	ipRestrictionService := services.NewIPRestrictionService(ipRestrictionRepo, logger)

	loginGuard := services.NewLoginGuard(
		loginAttemptRepo,
		studentRepo,
		ipRestrictionService,
		limiter,
		lockoutService,
		services.LoginGuardConfig{
			AuthRequestLimit:            cfg.Security.AuthRequestLimit,
			AuthRequestWindow:           cfg.Security.AuthRequestWindow,
			MaxFailedLoginsPerIP:        cfg.Security.MaxFailedLoginsPerIP,
			MaxDistinctIdentifiersPerIP: cfg.Security.MaxAccountsPerIPAttempt,
			FailedLoginWindow:           cfg.Security.FailedLoginWindow,
			MaxAccountsPerIP:            cfg.Security.MaxAccountsPerIP,
			AccountsPerIPWindow:         cfg.Security.AccountsPerIPWindow,
			AttemptRetention:            cfg.Security.AttemptRetention,
		},
		logger,
		auditLogger,
	)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Security.TimingBaseDelayMs,
		RandomDelayMs: cfg.Security.TimingJitterMs,
	})

	authService := services.NewAuthService(loginGuard, studentRepo, lockoutService, tokenManager, timingDelay, logger)

	// Vote pipeline
	eligibilityService := services.NewEligibilityService(electionRepo, logger)
	voteGuard := services.NewVoteGuard(
		electionRepo,
		voteRepo,
		voteAttemptRepo,
		eligibilityService,
		limiter,
		services.VoteGuardConfig{
			MinVoteInterval:      cfg.Security.MinVoteInterval,
			MaxRapidVotes:        cfg.Security.MaxRapidVotes,
			RapidVoteWindow:      cfg.Security.RapidVoteWindow,
			IPChangeVoteWindow:   cfg.Security.IPChangeVoteWindow,
			VotingHoursEnabled:   cfg.Security.VotingHoursEnabled,
			VotingHourStart:      cfg.Security.VotingHourStart,
			VotingHourEnd:        cfg.Security.VotingHourEnd,
			MultiAccountIPBlock:  cfg.Security.MultiAccountIPBlock,
			MultiAccountIPWindow: cfg.Security.MultiAccountIPWindow,
		},
		logger,
	)
	voteLedger := services.NewVoteLedger(voteRepo, logger)
	voteService := services.NewVoteService(
		voteGuard,
		voteLedger,
		voteAttemptRepo,
		limiter,
		services.VoteServiceConfig{
			MinVoteInterval:      cfg.Security.MinVoteInterval,
			RapidVoteWindow:      cfg.Security.RapidVoteWindow,
			SameCandidateRepeats: cfg.Security.SameCandidateRepeats,
			SameCandidateWindow:  cfg.Security.SameCandidateWindow,
		},
		logger,
		auditLogger,
	)

	electionService := services.NewElectionService(electionRepo, logger)

	monitorService := services.NewMonitorService(
		loginAttemptRepo,
		voteAttemptRepo,
		ipRestrictionService,
		services.MonitorConfig{
			MaxAccountsPerIP:     cfg.Security.MaxAccountsPerIP,
			AccountsPerIPWindow:  cfg.Security.AccountsPerIPWindow,
			MaxFailedLoginsPerIP: cfg.Security.MaxFailedLoginsPerIP,
			FailedLoginWindow:    cfg.Security.FailedLoginWindow,
			RapidVoteThreshold:   cfg.Security.RapidVoteThreshold,
			RapidVoteReportSpan:  cfg.Security.RapidVoteReportSpan,
		},
		logger,
	)

	// Background tasks. Redis expires window keys itself, so the sweeper is
	// only wired for the in-process store.
	var sweeper background.Sweeper
	if memoryStore != nil {
		sweeper = memoryStore
	}
	cleanupManager := background.NewCleanupManager(
		loginAttemptRepo,
		voteAttemptRepo,
		sweeper,
		cfg.Security.AttemptRetention,
		logger,
		cfg.Security.CleanupInterval,
	)
	monitorRunner := background.NewMonitorRunner(monitorService, logger, cfg.Security.MonitorInterval)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	voteHandler := handlers.NewVoteHandler(voteService, studentRepo, ipConfig)
	electionHandler := handlers.NewElectionHandler(electionService, eligibilityService, electionRepo, studentRepo)
	adminHandler := handlers.NewAdminHandler(ipRestrictionService, monitorService, studentRepo, auditLogger, ipConfig, cfg.Security.IPViolatorWindow)

	// Request screening ahead of routing: blocked IPs and blacklisted agents
	screening := middlewareCustom.NewScreening(ipRestrictionService, middlewareCustom.ScreeningConfig{
		BlacklistedUserAgents: cfg.Security.BlacklistedUserAgents,
		WhitelistedIPs:        cfg.Security.WhitelistedIPs,
		TrustedProxies:        cfg.Server.TrustedProxies,
	}, logger)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)

	rateLimits := middlewareCustom.RateLimitConfig{
		GeneralLimit:  cfg.Security.GeneralRequestLimit,
		GeneralWindow: cfg.Security.GeneralRequestWindow,
		AuthLimit:     cfg.Security.AuthRequestLimit,
		AuthWindow:    cfg.Security.AuthRequestWindow,
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))
	router.Use(screening.Handler)
	router.Use(middlewareCustom.GeneralRateLimit(rateLimits))

	// Register routes
	routes.RegisterRoutes(router, authHandler, voteHandler, electionHandler, adminHandler, tokenManager, studentRepo, rateLimits)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start background tasks
	taskCtx, taskCancel := context.WithCancel(context.Background())
	defer taskCancel()

	go cleanupManager.Start(taskCtx)
	go monitorRunner.Start(taskCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	taskCancel()
	cleanupManager.Stop()
	monitorRunner.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
